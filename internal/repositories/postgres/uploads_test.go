package postgres

import (
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/suite"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/storageBackends"
)

type UploadQueriesTestSuite struct {
	suite.Suite
}

func TestUploadQueriesTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(UploadQueriesTestSuite))
}

func (s *UploadQueriesTestSuite) newUpload() *repositories.Upload {
	upload := repositories.NewUpload("task-1", "data.bin", "primary", "application/octet-stream", 25, 10, 3)
	upload.SetBackendState(storageBackends.StorageBackendState{"dir": "/tmp/uploads/x"})
	upload.ClearChanges()
	return upload
}

func (s *UploadQueriesTestSuite) TestInsert() {
	// arrange
	upload := s.newUpload()
	pgUpload, err := newPostgresUpload(upload)
	s.Require().NoError(err)

	// act
	query, args := buildUploadInsertQuery(pgUpload)

	// assert
	s.Contains(query, "INSERT INTO uploads (id, created_at, updated_at, task_id, filename")
	s.Contains(query, "RETURNING xmin")
	s.Require().Len(args, 13)
	s.Equal(upload.GetId(), args[0])
	s.Equal("task-1", args[3])
	s.Equal(string(repositories.UploadStatusInProgress), args[9])
	s.JSONEq(`{"dir":"/tmp/uploads/x"}`, args[12].(string))
}

func (s *UploadQueriesTestSuite) TestUpdateOnlySetsChangedColumns() {
	// arrange
	upload := s.newUpload()
	upload.SetVersion(uint32(42))
	upload.SetStatus(repositories.UploadStatusCompleted)
	upload.SetFilePath("uploads/task-1/primary/data.bin")
	pgUpload, err := newPostgresUpload(upload)
	s.Require().NoError(err)

	// act
	query, args := buildUploadUpdateQuery(pgUpload, []repositories.UploadChange{
		repositories.UploadChangeStatus,
		repositories.UploadChangeFilePath,
	})

	// assert
	s.Contains(query, "UPDATE uploads SET updated_at = $1, status = $2, file_path = $3")
	s.Contains(query, "id = $4")
	s.Contains(query, "xmin = $5")
	s.Contains(query, "RETURNING xmin")
	s.NotContains(query, "backend_state")
	s.Contains(args, "completed")
	s.Contains(args, uint32(42))
}

func (s *UploadQueriesTestSuite) TestBackendStateRoundTripsThroughRow() {
	// arrange
	upload := s.newUpload()
	pgUpload, err := newPostgresUpload(upload)
	s.Require().NoError(err)

	// act
	mapped, err := pgUpload.Map()

	// assert
	s.Require().NoError(err)
	s.Equal(upload.GetId(), mapped.GetId())
	s.Equal("/tmp/uploads/x", mapped.GetBackendState()["dir"])
	s.Equal(uint32(0), mapped.GetVersion())
}

func (s *UploadQueriesTestSuite) TestMapRejectsCorruptBackendState() {
	// arrange
	pgUpload, err := newPostgresUpload(s.newUpload())
	s.Require().NoError(err)
	pgUpload.backendState = []byte("{")

	// act
	_, err = pgUpload.Map()

	// assert
	s.ErrorContains(err, "decoding backend state")
}

func (s *UploadQueriesTestSuite) TestSelectFilters() {
	// arrange
	r := &UploadRepository{}
	filter := repositories.NewUploadFilter().
		ByTaskId("task-1").
		ByStatus(repositories.UploadStatusAborted)

	// act
	query, args := r.selectQuery(filter).BuildWithFlavor(sqlbuilder.PostgreSQL)

	// assert
	s.Contains(query, "FROM uploads")
	s.Contains(query, "uploads.task_id = $1")
	s.Contains(query, "uploads.status = $2")
	s.Contains(query, "ORDER BY uploads.created_at ASC")
	s.Equal([]interface{}{"task-1", "aborted"}, args)
}
