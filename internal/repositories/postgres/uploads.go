package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/the127/chunkyard/internal/change"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/utils"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

type postgresUpload struct {
	postgresBaseModel
	taskId       string
	filename     string
	fileRole     string
	contentType  string
	fileSize     int64
	chunkSize    int64
	totalChunks  int
	status       string
	filePath     string
	backendState []byte
}

func (u *postgresUpload) Map() (*repositories.Upload, error) {
	var backendState storageBackends.StorageBackendState
	err := json.Unmarshal(u.backendState, &backendState)
	if err != nil {
		return nil, fmt.Errorf("decoding backend state of upload %s: %w", u.id, err)
	}

	return repositories.NewUploadFromDB(
		u.MapBase(),
		u.taskId,
		u.filename,
		u.fileRole,
		u.contentType,
		u.fileSize,
		u.chunkSize,
		u.totalChunks,
		repositories.UploadStatus(u.status),
		u.filePath,
		backendState,
	), nil
}

func newPostgresUpload(upload *repositories.Upload) (*postgresUpload, error) {
	backendState, err := json.Marshal(upload.GetBackendState())
	if err != nil {
		return nil, fmt.Errorf("encoding backend state: %w", err)
	}

	return &postgresUpload{
		postgresBaseModel: newPostgresBaseModel(upload.BaseModel),
		taskId:            upload.GetTaskId(),
		filename:          upload.GetFilename(),
		fileRole:          upload.GetFileRole(),
		contentType:       upload.GetContentType(),
		fileSize:          upload.GetFileSize(),
		chunkSize:         upload.GetChunkSize(),
		totalChunks:       upload.GetTotalChunks(),
		status:            string(upload.GetStatus()),
		filePath:          upload.GetFilePath(),
		backendState:      backendState,
	}, nil
}

func (u *postgresUpload) scanTargets() []any {
	return []any{
		&u.id,
		&u.createdAt,
		&u.updatedAt,
		&u.xmin,
		&u.taskId,
		&u.filename,
		&u.fileRole,
		&u.contentType,
		&u.fileSize,
		&u.chunkSize,
		&u.totalChunks,
		&u.status,
		&u.filePath,
		&u.backendState,
	}
}

type UploadRepository struct {
	db            *sql.DB
	changeTracker *change.Tracker
	entityType    int
}

func NewPostgresUploadRepository(db *sql.DB, changeTracker *change.Tracker, entityType int) *UploadRepository {
	return &UploadRepository{
		db:            db,
		changeTracker: changeTracker,
		entityType:    entityType,
	}
}

func (r *UploadRepository) selectQuery(filter *repositories.UploadFilter) *sqlbuilder.SelectBuilder {
	s := sqlbuilder.Select(
		"uploads.id",
		"uploads.created_at",
		"uploads.updated_at",
		"uploads.xmin",
		"uploads.task_id",
		"uploads.filename",
		"uploads.file_role",
		"uploads.content_type",
		"uploads.file_size",
		"uploads.chunk_size",
		"uploads.total_chunks",
		"uploads.status",
		"uploads.file_path",
		"uploads.backend_state",
	).From("uploads")

	if filter.HasId() {
		s.Where(s.Equal("uploads.id", filter.GetId()))
	}

	if filter.HasTaskId() {
		s.Where(s.Equal("uploads.task_id", filter.GetTaskId()))
	}

	if filter.HasStatus() {
		s.Where(s.Equal("uploads.status", string(filter.GetStatus())))
	}

	s.OrderBy("uploads.created_at").Asc()

	return s
}

func (r *UploadRepository) First(ctx context.Context, filter *repositories.UploadFilter) (*repositories.Upload, error) {
	s := r.selectQuery(filter)
	s.Limit(1)

	query, args := s.BuildWithFlavor(sqlbuilder.PostgreSQL)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	row := r.db.QueryRowContext(ctx, query, args...)

	var upload postgresUpload
	err := row.Scan(upload.scanTargets()...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("scanning row: %w", err)
	}

	return upload.Map()
}

func (r *UploadRepository) Single(ctx context.Context, filter *repositories.UploadFilter) (*repositories.Upload, error) {
	result, err := r.First(ctx, filter)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, apiError.ErrApiUploadNotFound
	}
	return result, nil
}

func (r *UploadRepository) List(ctx context.Context, filter *repositories.UploadFilter) ([]*repositories.Upload, int, error) {
	s := r.selectQuery(filter)
	s.SelectMore("count(*) over() as total_count")

	query, args := s.BuildWithFlavor(sqlbuilder.PostgreSQL)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying db: %w", err)
	}
	defer utils.PanicOnError(rows.Close, "closing rows")

	var uploads []*repositories.Upload
	var totalCount int
	for rows.Next() {
		var upload postgresUpload
		err := rows.Scan(append(upload.scanTargets(), &totalCount)...)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning row: %w", err)
		}

		mapped, err := upload.Map()
		if err != nil {
			return nil, 0, err
		}
		uploads = append(uploads, mapped)
	}

	return uploads, totalCount, rows.Err()
}

func (r *UploadRepository) Insert(upload *repositories.Upload) {
	r.changeTracker.Add(change.NewEntry(change.Added, r.entityType, upload))
}

func (r *UploadRepository) ExecuteInsert(ctx context.Context, tx *sql.Tx, upload *repositories.Upload) error {
	pgUpload, err := newPostgresUpload(upload)
	if err != nil {
		return err
	}

	query, args := buildUploadInsertQuery(pgUpload)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	row := tx.QueryRowContext(ctx, query, args...)

	var xmin uint32

	err = row.Scan(&xmin)
	if err != nil {
		return fmt.Errorf("inserting upload: %w", err)
	}

	upload.SetVersion(xmin)
	upload.ClearChanges()
	return nil
}

func buildUploadInsertQuery(pgUpload *postgresUpload) (string, []interface{}) {
	s := sqlbuilder.InsertInto("uploads").
		Cols(
			"id",
			"created_at",
			"updated_at",
			"task_id",
			"filename",
			"file_role",
			"content_type",
			"file_size",
			"chunk_size",
			"total_chunks",
			"status",
			"file_path",
			"backend_state",
		).
		Values(
			pgUpload.id,
			pgUpload.createdAt,
			pgUpload.updatedAt,
			pgUpload.taskId,
			pgUpload.filename,
			pgUpload.fileRole,
			pgUpload.contentType,
			pgUpload.fileSize,
			pgUpload.chunkSize,
			pgUpload.totalChunks,
			pgUpload.status,
			pgUpload.filePath,
			string(pgUpload.backendState),
		)

	s.Returning("xmin")

	return s.BuildWithFlavor(sqlbuilder.PostgreSQL)
}

func (r *UploadRepository) Update(upload *repositories.Upload) {
	r.changeTracker.Add(change.NewEntry(change.Updated, r.entityType, upload))
}

func (r *UploadRepository) ExecuteUpdate(ctx context.Context, tx *sql.Tx, upload *repositories.Upload) error {
	if !upload.HasChanges() {
		return nil
	}

	pgUpload, err := newPostgresUpload(upload)
	if err != nil {
		return err
	}

	query, args := buildUploadUpdateQuery(pgUpload, upload.GetChanges())
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	row := tx.QueryRowContext(ctx, query, args...)

	var xmin uint32

	err = row.Scan(&xmin)
	if errors.Is(err, sql.ErrNoRows) {
		// the row is gone or was updated by someone else since it was read
		return fmt.Errorf("updating upload: %w", apiError.ErrApiConcurrentUpdate)
	}

	if err != nil {
		return fmt.Errorf("updating upload: %w", err)
	}

	upload.SetVersion(xmin)
	upload.ClearChanges()
	return nil
}

func buildUploadUpdateQuery(pgUpload *postgresUpload, changes []repositories.UploadChange) (string, []interface{}) {
	s := sqlbuilder.Update("uploads")
	s.Where(s.Equal("id", pgUpload.id))
	s.Where(s.Equal("xmin", pgUpload.xmin))

	s.Set(s.Assign("updated_at", pgUpload.updatedAt))
	for _, field := range changes {
		switch field {
		case repositories.UploadChangeStatus:
			s.SetMore(s.Assign("status", pgUpload.status))
		case repositories.UploadChangeFilePath:
			s.SetMore(s.Assign("file_path", pgUpload.filePath))
		case repositories.UploadChangeBackendState:
			s.SetMore(s.Assign("backend_state", string(pgUpload.backendState)))

		default:
			panic(fmt.Errorf("unknown upload change: %d", field))
		}
	}

	s.Returning("xmin")

	return s.BuildWithFlavor(sqlbuilder.PostgreSQL)
}
