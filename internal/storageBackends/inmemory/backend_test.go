package inmemory

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"testing/iotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/the127/chunkyard/internal/storageBackends"
)

type BackendTestSuite struct {
	suite.Suite
}

func TestBackendTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(BackendTestSuite))
}

func (s *BackendTestSuite) TestPartsAreAssembledInOrder() {
	// arrange
	ctx := context.Background()
	backend := New()
	state, err := backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)

	_, err = backend.WritePart(ctx, state, 2, bytes.NewBufferString("world"))
	s.Require().NoError(err)
	_, err = backend.WritePart(ctx, state, 1, bytes.NewBufferString("hello "))
	s.Require().NoError(err)

	// act
	err = backend.CompleteUpload(ctx, state, "task/primary/greeting.txt", []int{1, 2})

	// assert
	s.Require().NoError(err)
	recorder := httptest.NewRecorder()
	s.Require().NoError(backend.DownloadObject(ctx, recorder, "task/primary/greeting.txt"))
	s.Equal("hello world", recorder.Body.String())
	s.Equal("text/plain", recorder.Header().Get("Content-Type"))
}

func (s *BackendTestSuite) TestRewritingPartReplacesData() {
	// arrange
	ctx := context.Background()
	backend := New()
	state, err := backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)
	_, err = backend.WritePart(ctx, state, 1, bytes.NewBufferString("stale"))
	s.Require().NoError(err)

	// act
	written, err := backend.WritePart(ctx, state, 1, bytes.NewBufferString("fresh"))

	// assert
	s.Require().NoError(err)
	s.Equal(int64(5), written)
	s.Require().NoError(backend.CompleteUpload(ctx, state, "object", []int{1}))
	recorder := httptest.NewRecorder()
	s.Require().NoError(backend.DownloadObject(ctx, recorder, "object"))
	s.Equal("fresh", recorder.Body.String())
}

func (s *BackendTestSuite) TestFailedReaderKeepsPreviousPart() {
	// arrange
	ctx := context.Background()
	backend := New()
	state, err := backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)
	_, err = backend.WritePart(ctx, state, 1, bytes.NewBufferString("kept"))
	s.Require().NoError(err)

	// act
	_, err = backend.WritePart(ctx, state, 1, iotest.ErrReader(errors.New("connection reset")))

	// assert
	s.Require().Error(err)
	s.Require().NoError(backend.CompleteUpload(ctx, state, "object", []int{1}))
	recorder := httptest.NewRecorder()
	s.Require().NoError(backend.DownloadObject(ctx, recorder, "object"))
	s.Equal("kept", recorder.Body.String())
}

func (s *BackendTestSuite) TestCompleteWithMissingPart() {
	// arrange
	ctx := context.Background()
	backend := New()
	state, err := backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)

	// act
	err = backend.CompleteUpload(ctx, state, "object", []int{1})

	// assert
	s.ErrorIs(err, storageBackends.ErrPartNotFound)
}

func (s *BackendTestSuite) TestAbortDropsParts() {
	// arrange
	ctx := context.Background()
	backend := New()
	state, err := backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)

	// act
	s.Require().NoError(backend.AbortUpload(ctx, state))

	// assert
	_, err = backend.WritePart(ctx, state, 1, bytes.NewBufferString("late"))
	s.ErrorIs(err, storageBackends.ErrUploadNotInitiated)
}

func (s *BackendTestSuite) TestDownloadUnknownObject() {
	// act
	err := New().DownloadObject(context.Background(), httptest.NewRecorder(), "missing")

	// assert
	s.ErrorIs(err, storageBackends.ErrObjectNotFound)
}
