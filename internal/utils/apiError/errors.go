package apiError

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/the127/chunkyard/internal/args"
	"github.com/the127/chunkyard/internal/logging"
)

var ErrApiBadRequest = errors.New("bad Request")
var ErrApiUnsupportedMediaType = errors.New("unsupported media type")
var ErrApiPartMismatch = fmt.Errorf("part does not match the upload: %w", ErrApiBadRequest)
var ErrApiCompletionMismatch = fmt.Errorf("parts do not match the accepted parts: %w", ErrApiBadRequest)

var ErrApiNotFound = errors.New("not found")
var ErrApiUploadNotFound = fmt.Errorf("upload not found: %w", ErrApiNotFound)
var ErrApiPartNotFound = fmt.Errorf("part not found: %w", ErrApiNotFound)
var ErrApiObjectNotFound = fmt.Errorf("object not found: %w", ErrApiNotFound)

var ErrApiConflict = errors.New("conflict")
var ErrApiUploadNotInProgress = fmt.Errorf("upload is not in progress: %w", ErrApiConflict)
var ErrApiConcurrentUpdate = fmt.Errorf("concurrent update: %w", ErrApiConflict)

var ErrApiUnauthorized = errors.New("unauthorized")

type Code string

const (
	CodeBadRequest           Code = "BAD_REQUEST"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInternal             Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type Wrapper struct {
	Errors []Error `json:"errors"`
}

func HandleHttpError(w http.ResponseWriter, err error) {
	var status int
	var code Code
	var message string

	switch {
	case errors.Is(err, ErrApiBadRequest):
		status = http.StatusBadRequest
		code = CodeBadRequest
		message = err.Error()

	case errors.Is(err, ErrApiNotFound):
		status = http.StatusNotFound
		code = CodeNotFound
		message = err.Error()

	case errors.Is(err, ErrApiConflict):
		status = http.StatusConflict
		code = CodeConflict
		message = err.Error()

	case errors.Is(err, ErrApiUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
		code = CodeUnsupportedMediaType
		message = err.Error()

	case errors.Is(err, ErrApiUnauthorized):
		status = http.StatusUnauthorized
		code = CodeUnauthorized
		message = err.Error()

	default:
		status = http.StatusInternalServerError
		code = CodeInternal
		if args.IsProduction() {
			message = "Internal Server Error"
		} else {
			message = err.Error()
		}
	}

	logging.Logger.Errorf("HTTP Error: %d %s", status, message)
	WriteError(w, status, code, message)
}

func WriteError(w http.ResponseWriter, status int, code Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(Wrapper{
		Errors: []Error{{Code: code, Message: message}},
	})
	if err != nil {
		logging.Logger.Errorf("failed to write error response: %s", err)
	}
}
