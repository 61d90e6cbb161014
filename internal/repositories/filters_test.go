package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type FilterTestSuite struct {
	suite.Suite
}

func TestFilterTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(FilterTestSuite))
}

func (s *FilterTestSuite) TestEmptyUploadFilter() {
	// act
	filter := NewUploadFilter()

	// assert
	s.False(filter.HasId())
	s.False(filter.HasTaskId())
	s.False(filter.HasStatus())
	s.Equal(uuid.Nil, filter.GetId())
	s.Equal("", filter.GetTaskId())
}

func (s *FilterTestSuite) TestUploadFilterDoesNotMutateBase() {
	// arrange
	base := NewUploadFilter().ByTaskId("task-1")

	// act
	narrowed := base.ByStatus(UploadStatusCompleted)

	// assert
	s.False(base.HasStatus())
	s.True(narrowed.HasStatus())
	s.Equal("task-1", narrowed.GetTaskId())
	s.Equal(UploadStatusCompleted, narrowed.GetStatus())
}

func (s *FilterTestSuite) TestUploadPartFilter() {
	// arrange
	uploadId := uuid.New()

	// act
	filter := NewUploadPartFilter().ByUploadId(uploadId).ByPartNumber(3)

	// assert
	s.True(filter.HasUploadId())
	s.Equal(uploadId, filter.GetUploadId())
	s.True(filter.HasPartNumber())
	s.Equal(3, filter.GetPartNumber())
}

func (s *FilterTestSuite) TestUploadTracksChangedFields() {
	// arrange
	upload := NewUpload("task-1", "data.bin", "primary", "application/octet-stream", 10, 10, 1)

	// act
	upload.SetStatus(UploadStatusInProgress)
	upload.SetFilePath("uploads/task-1/primary/data.bin")
	upload.SetStatus(UploadStatusCompleted)

	// assert
	s.Equal([]UploadChange{UploadChangeFilePath, UploadChangeStatus}, upload.GetChanges())
}
