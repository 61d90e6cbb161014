package directory

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/storageBackends"
)

type BackendTestSuite struct {
	suite.Suite
	root    string
	backend storageBackends.StorageBackend
}

func TestBackendTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(BackendTestSuite))
}

func (s *BackendTestSuite) SetupTest() {
	s.root = s.T().TempDir()

	backend, err := New(config.DirectoryBlobStorageConfig{
		Path:     filepath.Join(s.root, "objects"),
		TempPath: filepath.Join(s.root, "parts"),
	})
	s.Require().NoError(err)
	s.backend = backend
}

func (s *BackendTestSuite) TestPartsAreAssembledInOrder() {
	// arrange
	ctx := context.Background()
	state, err := s.backend.InitiateUpload(ctx, uuid.New(), "application/pdf")
	s.Require().NoError(err)
	_, err = s.backend.WritePart(ctx, state, 2, bytes.NewBufferString("-tail"))
	s.Require().NoError(err)
	_, err = s.backend.WritePart(ctx, state, 1, bytes.NewBufferString("head"))
	s.Require().NoError(err)

	// act
	err = s.backend.CompleteUpload(ctx, state, "task-1/primary/doc.pdf", []int{1, 2})

	// assert
	s.Require().NoError(err)
	data, err := os.ReadFile(filepath.Join(s.root, "objects", "task-1", "primary", "doc.pdf"))
	s.Require().NoError(err)
	s.Equal("head-tail", string(data))
	s.NoDirExists(state["partsPath"])

	recorder := httptest.NewRecorder()
	s.Require().NoError(s.backend.DownloadObject(ctx, recorder, "task-1/primary/doc.pdf"))
	s.Equal("application/pdf", recorder.Header().Get("Content-Type"))
	s.Equal("9", recorder.Header().Get("Content-Length"))
}

func (s *BackendTestSuite) TestFailedReaderKeepsPreviousPart() {
	// arrange
	ctx := context.Background()
	state, err := s.backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)
	_, err = s.backend.WritePart(ctx, state, 1, bytes.NewBufferString("kept"))
	s.Require().NoError(err)

	// act
	_, err = s.backend.WritePart(ctx, state, 1, iotest.ErrReader(errors.New("connection reset")))

	// assert
	s.Require().Error(err)
	data, err := os.ReadFile(partFileName(state["partsPath"], 1))
	s.Require().NoError(err)
	s.Equal("kept", string(data))
	entries, err := os.ReadDir(state["partsPath"])
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *BackendTestSuite) TestCompleteWithMissingPart() {
	// arrange
	ctx := context.Background()
	state, err := s.backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)

	// act
	err = s.backend.CompleteUpload(ctx, state, "object", []int{1})

	// assert
	s.ErrorIs(err, storageBackends.ErrPartNotFound)
}

func (s *BackendTestSuite) TestTraversalIsRejected() {
	// arrange
	ctx := context.Background()
	state, err := s.backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)
	_, err = s.backend.WritePart(ctx, state, 1, bytes.NewBufferString("data"))
	s.Require().NoError(err)

	// act
	err = s.backend.CompleteUpload(ctx, state, "../outside", []int{1})

	// assert
	s.ErrorIs(err, storageBackends.ErrInvalidObjectPath)
	s.NoFileExists(filepath.Join(s.root, "outside"))
}

func (s *BackendTestSuite) TestAbortRemovesParts() {
	// arrange
	ctx := context.Background()
	state, err := s.backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)
	_, err = s.backend.WritePart(ctx, state, 1, bytes.NewBufferString("data"))
	s.Require().NoError(err)

	// act
	err = s.backend.AbortUpload(ctx, state)

	// assert
	s.Require().NoError(err)
	s.NoDirExists(state["partsPath"])
}

func (s *BackendTestSuite) TestDeleteObject() {
	// arrange
	ctx := context.Background()
	state, err := s.backend.InitiateUpload(ctx, uuid.New(), "text/plain")
	s.Require().NoError(err)
	_, err = s.backend.WritePart(ctx, state, 1, bytes.NewBufferString("data"))
	s.Require().NoError(err)
	s.Require().NoError(s.backend.CompleteUpload(ctx, state, "object", []int{1}))

	// act
	err = s.backend.DeleteObject(ctx, "object")

	// assert
	s.Require().NoError(err)
	err = s.backend.DownloadObject(ctx, httptest.NewRecorder(), "object")
	s.ErrorIs(err, storageBackends.ErrObjectNotFound)
}
