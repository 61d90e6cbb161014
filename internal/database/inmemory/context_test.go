package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

type ContextTestSuite struct {
	suite.Suite
}

func TestContextTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(ContextTestSuite))
}

func (s *ContextTestSuite) newContext() *Context {
	database, err := NewInMemoryDatabase()
	s.Require().NoError(err)

	dbContext, err := database.NewContext(context.Background())
	s.Require().NoError(err)

	return dbContext.(*Context)
}

func (s *ContextTestSuite) TestInsertIsVisibleAfterSave() {
	// arrange
	ctx := context.Background()
	dbContext := s.newContext()
	upload := repositories.NewUpload("task-1", "a.bin", "primary", "application/octet-stream", 30, 10, 3)
	dbContext.Uploads().Insert(upload)

	_, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(upload.GetId()))
	s.Require().ErrorIs(err, apiError.ErrApiUploadNotFound)

	// act
	err = dbContext.SaveChanges(ctx)

	// assert
	s.Require().NoError(err)
	stored, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(upload.GetId()))
	s.Require().NoError(err)
	s.Equal("task-1", stored.GetTaskId())
	s.Equal(3, stored.GetTotalChunks())
	s.Equal(repositories.UploadStatusInProgress, stored.GetStatus())
	s.False(stored.HasChanges())
}

func (s *ContextTestSuite) TestUpdateDoesNotLeakUntilSaved() {
	// arrange
	ctx := context.Background()
	dbContext := s.newContext()
	upload := repositories.NewUpload("task-1", "a.bin", "primary", "", 30, 10, 3)
	dbContext.Uploads().Insert(upload)
	s.Require().NoError(dbContext.SaveChanges(ctx))

	loaded, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(upload.GetId()))
	s.Require().NoError(err)

	// act
	loaded.SetStatus(repositories.UploadStatusCompleted)

	// assert
	unsaved, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(upload.GetId()))
	s.Require().NoError(err)
	s.Equal(repositories.UploadStatusInProgress, unsaved.GetStatus())

	dbContext.Uploads().Update(loaded)
	s.Require().NoError(dbContext.SaveChanges(ctx))
	saved, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(upload.GetId()))
	s.Require().NoError(err)
	s.Equal(repositories.UploadStatusCompleted, saved.GetStatus())
}

func (s *ContextTestSuite) TestFilterByTaskId() {
	// arrange
	ctx := context.Background()
	dbContext := s.newContext()
	dbContext.Uploads().Insert(repositories.NewUpload("task-1", "a.bin", "primary", "", 1, 1, 1))
	dbContext.Uploads().Insert(repositories.NewUpload("task-1", "b.bin", "secondary", "", 1, 1, 1))
	dbContext.Uploads().Insert(repositories.NewUpload("task-2", "c.bin", "primary", "", 1, 1, 1))
	s.Require().NoError(dbContext.SaveChanges(ctx))

	// act
	uploads, count, err := dbContext.Uploads().List(ctx, repositories.NewUploadFilter().ByTaskId("task-1"))

	// assert
	s.Require().NoError(err)
	s.Equal(2, count)
	s.Len(uploads, 2)
}

func (s *ContextTestSuite) TestPartUpsertReplacesAndListsSorted() {
	// arrange
	ctx := context.Background()
	dbContext := s.newContext()
	upload := repositories.NewUpload("task-1", "a.bin", "primary", "", 30, 10, 3)
	dbContext.Uploads().Insert(upload)
	dbContext.UploadParts().Upsert(repositories.NewUploadPart(upload.GetId(), 3, "etag-3", 10))
	dbContext.UploadParts().Upsert(repositories.NewUploadPart(upload.GetId(), 1, "stale", 10))
	s.Require().NoError(dbContext.SaveChanges(ctx))

	// act
	dbContext.UploadParts().Upsert(repositories.NewUploadPart(upload.GetId(), 1, "etag-1", 10))
	s.Require().NoError(dbContext.SaveChanges(ctx))

	// assert
	parts, count, err := dbContext.UploadParts().List(ctx, repositories.NewUploadPartFilter().ByUploadId(upload.GetId()))
	s.Require().NoError(err)
	s.Equal(2, count)
	s.Equal(1, parts[0].GetPartNumber())
	s.Equal("etag-1", parts[0].GetETag())
	s.Equal(3, parts[1].GetPartNumber())

	part, err := dbContext.UploadParts().First(ctx, repositories.NewUploadPartFilter().ByUploadId(upload.GetId()).ByPartNumber(3))
	s.Require().NoError(err)
	s.Equal("etag-3", part.GetETag())
}

func (s *ContextTestSuite) TestDeleteByUploadId() {
	// arrange
	ctx := context.Background()
	dbContext := s.newContext()
	first := repositories.NewUpload("task-1", "a.bin", "primary", "", 10, 10, 1)
	second := repositories.NewUpload("task-1", "b.bin", "primary", "", 10, 10, 1)
	dbContext.Uploads().Insert(first)
	dbContext.Uploads().Insert(second)
	dbContext.UploadParts().Upsert(repositories.NewUploadPart(first.GetId(), 1, "a", 10))
	dbContext.UploadParts().Upsert(repositories.NewUploadPart(second.GetId(), 1, "b", 10))
	s.Require().NoError(dbContext.SaveChanges(ctx))

	// act
	dbContext.UploadParts().DeleteByUploadId(first.GetId())
	err := dbContext.SaveChanges(ctx)

	// assert
	s.Require().NoError(err)
	_, count, err := dbContext.UploadParts().List(ctx, repositories.NewUploadPartFilter())
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ContextTestSuite) TestUpdateOfUnknownUploadFails() {
	// arrange
	ctx := context.Background()
	dbContext := s.newContext()

	// act
	dbContext.Uploads().Update(repositories.NewUpload("task-1", "a.bin", "primary", "", 1, 1, 1))
	err := dbContext.SaveChanges(ctx)

	// assert
	s.ErrorIs(err, apiError.ErrApiUploadNotFound)
}
