package storageBackends

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CleanObjectPathTestSuite struct {
	suite.Suite
}

func TestCleanObjectPathTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(CleanObjectPathTestSuite))
}

func (s *CleanObjectPathTestSuite) TestNormalizesSlashes() {
	// act
	cleaned, err := CleanObjectPath("/task-1//primary/report.pdf")

	// assert
	s.Require().NoError(err)
	s.Equal("task-1/primary/report.pdf", cleaned)
}

func (s *CleanObjectPathTestSuite) TestRejectsTraversal() {
	// act
	_, err := CleanObjectPath("task-1/../../etc/passwd")

	// assert
	s.ErrorIs(err, ErrInvalidObjectPath)
}

func (s *CleanObjectPathTestSuite) TestRejectsEmpty() {
	for _, objectPath := range []string{"", "/", "."} {
		_, err := CleanObjectPath(objectPath)
		s.ErrorIs(err, ErrInvalidObjectPath, objectPath)
	}
}
