package main

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type UploadFlagsTestSuite struct {
	suite.Suite
}

func TestUploadFlagsTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(UploadFlagsTestSuite))
}

func (s *UploadFlagsTestSuite) TestDefaults() {
	// act
	f, err := parseUploadFlags([]string{"video.mp4"})

	// assert
	s.Require().NoError(err)
	s.Equal("video.mp4", f.file)
	s.Equal("primary", f.role)
	s.Empty(f.taskId)
	s.False(f.cancel)
}

func (s *UploadFlagsTestSuite) TestAllFlags() {
	// act
	f, err := parseUploadFlags([]string{"--task", "t-1", "--role", "auxiliary", "--cancel", "notes.txt"})

	// assert
	s.Require().NoError(err)
	s.Equal("t-1", f.taskId)
	s.Equal("auxiliary", f.role)
	s.True(f.cancel)
	s.Equal("notes.txt", f.file)
}

func (s *UploadFlagsTestSuite) TestMissingFile() {
	// act
	_, err := parseUploadFlags([]string{"--task", "t-1"})

	// assert
	s.Error(err)
}

func (s *UploadFlagsTestSuite) TestCancelWithoutTask() {
	// act
	_, err := parseUploadFlags([]string{"--cancel", "notes.txt"})

	// assert
	s.Error(err)
}
