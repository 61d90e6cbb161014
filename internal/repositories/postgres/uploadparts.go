package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/the127/chunkyard/internal/change"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/utils"
)

type postgresUploadPart struct {
	postgresBaseModel
	uploadId   uuid.UUID
	partNumber int
	etag       string
	size       int64
}

func (p *postgresUploadPart) Map() *repositories.UploadPart {
	return repositories.NewUploadPartFromDB(
		p.MapBase(),
		p.uploadId,
		p.partNumber,
		p.etag,
		p.size,
	)
}

func newPostgresUploadPart(part *repositories.UploadPart) *postgresUploadPart {
	return &postgresUploadPart{
		postgresBaseModel: newPostgresBaseModel(part.BaseModel),
		uploadId:          part.GetUploadId(),
		partNumber:        part.GetPartNumber(),
		etag:              part.GetETag(),
		size:              part.GetSize(),
	}
}

func (p *postgresUploadPart) scanTargets() []any {
	return []any{&p.id, &p.createdAt, &p.updatedAt, &p.xmin, &p.uploadId, &p.partNumber, &p.etag, &p.size}
}

type UploadPartRepository struct {
	db            *sql.DB
	changeTracker *change.Tracker
	entityType    int
}

func NewPostgresUploadPartRepository(db *sql.DB, changeTracker *change.Tracker, entityType int) *UploadPartRepository {
	return &UploadPartRepository{
		db:            db,
		changeTracker: changeTracker,
		entityType:    entityType,
	}
}

func (r *UploadPartRepository) selectQuery(filter *repositories.UploadPartFilter) *sqlbuilder.SelectBuilder {
	s := sqlbuilder.Select(
		"upload_parts.id",
		"upload_parts.created_at",
		"upload_parts.updated_at",
		"upload_parts.xmin",
		"upload_parts.upload_id",
		"upload_parts.part_number",
		"upload_parts.etag",
		"upload_parts.size",
	).From("upload_parts")

	if filter.HasUploadId() {
		s.Where(s.Equal("upload_parts.upload_id", filter.GetUploadId()))
	}

	if filter.HasPartNumber() {
		s.Where(s.Equal("upload_parts.part_number", filter.GetPartNumber()))
	}

	s.OrderBy("upload_parts.upload_id", "upload_parts.part_number").Asc()

	return s
}

func (r *UploadPartRepository) First(ctx context.Context, filter *repositories.UploadPartFilter) (*repositories.UploadPart, error) {
	s := r.selectQuery(filter)
	s.Limit(1)

	query, args := s.BuildWithFlavor(sqlbuilder.PostgreSQL)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	row := r.db.QueryRowContext(ctx, query, args...)

	var part postgresUploadPart
	err := row.Scan(part.scanTargets()...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("scanning row: %w", err)
	}

	return part.Map(), nil
}

func (r *UploadPartRepository) List(ctx context.Context, filter *repositories.UploadPartFilter) ([]*repositories.UploadPart, int, error) {
	s := r.selectQuery(filter)
	s.SelectMore("count(*) over() as total_count")

	query, args := s.BuildWithFlavor(sqlbuilder.PostgreSQL)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying db: %w", err)
	}
	defer utils.PanicOnError(rows.Close, "closing rows")

	var parts []*repositories.UploadPart
	var totalCount int
	for rows.Next() {
		var part postgresUploadPart
		err := rows.Scan(append(part.scanTargets(), &totalCount)...)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning row: %w", err)
		}
		parts = append(parts, part.Map())
	}

	return parts, totalCount, rows.Err()
}

func (r *UploadPartRepository) Upsert(part *repositories.UploadPart) {
	r.changeTracker.Add(change.NewEntry(change.Added, r.entityType, part))
}

func (r *UploadPartRepository) ExecuteUpsert(ctx context.Context, tx *sql.Tx, part *repositories.UploadPart) error {
	query, args := buildUploadPartUpsertQuery(newPostgresUploadPart(part))
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	row := tx.QueryRowContext(ctx, query, args...)

	var xmin uint32

	err := row.Scan(&xmin)
	if err != nil {
		return fmt.Errorf("upserting part %d of upload %s: %w", part.GetPartNumber(), part.GetUploadId(), err)
	}

	part.SetVersion(xmin)
	return nil
}

func buildUploadPartUpsertQuery(pgPart *postgresUploadPart) (string, []interface{}) {
	s := sqlbuilder.InsertInto("upload_parts").
		Cols(
			"id",
			"created_at",
			"updated_at",
			"upload_id",
			"part_number",
			"etag",
			"size",
		).
		Values(
			pgPart.id,
			pgPart.createdAt,
			pgPart.updatedAt,
			pgPart.uploadId,
			pgPart.partNumber,
			pgPart.etag,
			pgPart.size,
		)

	s.SQL("on conflict (upload_id, part_number) do update set etag = excluded.etag, size = excluded.size, updated_at = excluded.updated_at")
	s.Returning("xmin")

	return s.BuildWithFlavor(sqlbuilder.PostgreSQL)
}

func (r *UploadPartRepository) DeleteByUploadId(uploadId uuid.UUID) {
	r.changeTracker.Add(change.NewEntry(change.Deleted, r.entityType, uploadId))
}

func (r *UploadPartRepository) ExecuteDeleteByUploadId(ctx context.Context, tx *sql.Tx, uploadId uuid.UUID) error {
	query, args := buildUploadPartDeleteQuery(uploadId)
	logging.Logger.Debugf("query: %s, args: %+v", query, args)
	_, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting parts of upload %s: %w", uploadId, err)
	}

	return nil
}

func buildUploadPartDeleteQuery(uploadId uuid.UUID) (string, []interface{}) {
	s := sqlbuilder.DeleteFrom("upload_parts")
	s.Where(s.Equal("upload_id", uploadId))

	return s.BuildWithFlavor(sqlbuilder.PostgreSQL)
}
