package upload

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type StateTestSuite struct {
	suite.Suite
}

func TestStateTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(StateTestSuite))
}

func (s *StateTestSuite) TestRegularPath() {
	// arrange
	path := []Status{
		StatusIdle,
		StatusInitializing,
		StatusReconciling,
		StatusUploading,
		StatusPaused,
		StatusUploading,
		StatusCompleting,
		StatusCompleted,
	}

	for i := 1; i < len(path); i++ {
		// act
		err := checkTransition(path[i-1], path[i])

		// assert
		s.NoError(err, "%s -> %s", path[i-1], path[i])
	}
}

func (s *StateTestSuite) TestFailureAndCancellationFromAnyActiveState() {
	// arrange
	active := []Status{
		StatusIdle,
		StatusInitializing,
		StatusReconciling,
		StatusUploading,
		StatusPaused,
		StatusCompleting,
	}

	for _, from := range active {
		// act & assert
		s.True(canTransition(from, StatusFailed), from)
		s.True(canTransition(from, StatusCancelled), from)
	}
}

func (s *StateTestSuite) TestTerminalStatesAreFinal() {
	// arrange
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}

	for _, from := range terminal {
		// act
		err := checkTransition(from, StatusUploading)

		// assert
		s.True(from.IsTerminal())
		s.ErrorIs(err, ErrInvalidTransition)
		s.False(canTransition(from, StatusCancelled))
	}
}

func (s *StateTestSuite) TestRejectsSkippingPhases() {
	// act & assert
	s.ErrorIs(checkTransition(StatusIdle, StatusUploading), ErrInvalidTransition)
	s.ErrorIs(checkTransition(StatusPaused, StatusCompleting), ErrInvalidTransition)
	s.ErrorIs(checkTransition(StatusReconciling, StatusCompleted), ErrInvalidTransition)
}
