package upload

import (
	"fmt"
	"slices"
)

type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusReconciling  Status = "reconciling"
	StatusUploading    Status = "uploading"
	StatusPaused       Status = "paused"
	StatusCompleting   Status = "completing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true

	default:
		return false
	}
}

// transitions lists the regular edges. Failed and Cancelled are reachable
// from every non-terminal state and are handled in canTransition.
var transitions = map[Status][]Status{
	StatusIdle:         {StatusInitializing},
	StatusInitializing: {StatusReconciling},
	StatusReconciling:  {StatusUploading},
	StatusUploading:    {StatusPaused, StatusCompleting},
	StatusPaused:       {StatusUploading},
	StatusCompleting:   {StatusCompleted},
}

func canTransition(from Status, to Status) bool {
	if from.IsTerminal() {
		return false
	}

	if to == StatusFailed || to == StatusCancelled {
		return true
	}

	return slices.Contains(transitions[from], to)
}

func checkTransition(from Status, to Status) error {
	if !canTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}
