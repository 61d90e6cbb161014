package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/change"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/repositories/postgres"
	"github.com/the127/chunkyard/internal/utils"
)

type Context struct {
	db            *sql.DB
	changeTracker *change.Tracker

	uploads     *postgres.UploadRepository
	uploadParts *postgres.UploadPartRepository
}

func newContext(db *sql.DB) *Context {
	return &Context{
		db:            db,
		changeTracker: change.NewTracker(),
	}
}

func (c *Context) Uploads() repositories.UploadRepository {
	return c.uploadRepository()
}

func (c *Context) uploadRepository() *postgres.UploadRepository {
	if c.uploads == nil {
		c.uploads = postgres.NewPostgresUploadRepository(c.db, c.changeTracker, db.UploadType)
	}

	return c.uploads
}

func (c *Context) UploadParts() repositories.UploadPartRepository {
	return c.uploadPartRepository()
}

func (c *Context) uploadPartRepository() *postgres.UploadPartRepository {
	if c.uploadParts == nil {
		c.uploadParts = postgres.NewPostgresUploadPartRepository(c.db, c.changeTracker, db.UploadPartType)
	}

	return c.uploadParts
}

func (c *Context) SaveChanges(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: 0,
		ReadOnly:  false,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer utils.IgnoreError(tx.Rollback)

	changes := c.changeTracker.GetChanges()
	for _, changeEntry := range changes {
		err := c.applyChange(ctx, tx, changeEntry)
		if err != nil {
			return fmt.Errorf("failed to apply change: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.changeTracker.Clear()
	return nil
}

func (c *Context) applyChange(ctx context.Context, tx *sql.Tx, entry *change.Entry) error {
	switch entry.GetItemType() {
	case db.UploadType:
		return c.applyUploadChange(ctx, tx, entry)

	case db.UploadPartType:
		return c.applyUploadPartChange(ctx, tx, entry)

	default:
		return fmt.Errorf("unsupported item type: %d", entry.GetItemType())
	}
}

func (c *Context) applyUploadChange(ctx context.Context, tx *sql.Tx, entry *change.Entry) error {
	switch entry.GetChangeType() {
	case change.Added:
		return c.uploadRepository().ExecuteInsert(ctx, tx, entry.GetItem().(*repositories.Upload))

	case change.Updated:
		return c.uploadRepository().ExecuteUpdate(ctx, tx, entry.GetItem().(*repositories.Upload))

	default:
		return fmt.Errorf("unsupported change type: %d", entry.GetChangeType())
	}
}

func (c *Context) applyUploadPartChange(ctx context.Context, tx *sql.Tx, entry *change.Entry) error {
	switch entry.GetChangeType() {
	case change.Added, change.Updated:
		return c.uploadPartRepository().ExecuteUpsert(ctx, tx, entry.GetItem().(*repositories.UploadPart))

	case change.Deleted:
		return c.uploadPartRepository().ExecuteDeleteByUploadId(ctx, tx, entry.GetItem().(uuid.UUID))

	default:
		return fmt.Errorf("unsupported change type: %d", entry.GetChangeType())
	}
}
