package upload

import (
	"errors"
	"fmt"
)

var ErrInvalidInput = errors.New("invalid input")
var ErrInitiation = errors.New("upload initiation failed")
var ErrReconciliation = errors.New("listing accepted parts failed")
var ErrTransfer = errors.New("part transfer failed")
var ErrCompletion = errors.New("upload completion failed")
var ErrCancelled = errors.New("upload cancelled")

var ErrInvalidTransition = errors.New("invalid session state transition")
var ErrPersistence = errors.New("checkpoint persistence failed")

// PartError reports which part a transfer failure belongs to.
type PartError struct {
	PartNumber int
	Err        error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d: %v", e.PartNumber, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

func newPartError(partNumber int, err error) error {
	if !errors.Is(err, ErrTransfer) {
		err = fmt.Errorf("%w: %w", ErrTransfer, err)
	}

	return &PartError{
		PartNumber: partNumber,
		Err:        err,
	}
}
