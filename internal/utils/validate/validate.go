package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

var validate = validator.New()

// Validate checks the struct tags of s and reports every failing field in a
// single bad request error.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid request: %s: %w", err.Error(), apiError.ErrApiBadRequest)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		fields = append(fields, describe(fieldError))
	}

	return fmt.Errorf("invalid request: %s: %w", strings.Join(fields, "; "), apiError.ErrApiBadRequest)
}

func describe(fieldError validator.FieldError) string {
	if fieldError.Param() == "" {
		return fmt.Sprintf("%s must be %s", fieldError.Field(), fieldError.Tag())
	}

	return fmt.Sprintf("%s must be %s=%s", fieldError.Field(), fieldError.Tag(), fieldError.Param())
}
