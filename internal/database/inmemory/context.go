package inmemory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/the127/chunkyard/internal/change"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/repositories/inmemory"
)

type Context struct {
	db            *memdb.MemDB
	changeTracker *change.Tracker

	uploads     *inmemory.UploadRepository
	uploadParts *inmemory.UploadPartRepository
}

func newContext(db *memdb.MemDB) *Context {
	return &Context{
		db:            db,
		changeTracker: change.NewTracker(),
	}
}

func (c *Context) Uploads() repositories.UploadRepository {
	return c.uploadRepository()
}

func (c *Context) uploadRepository() *inmemory.UploadRepository {
	if c.uploads == nil {
		c.uploads = inmemory.NewInMemoryUploadRepository(c.db, c.changeTracker, db.UploadType)
	}
	return c.uploads
}

func (c *Context) UploadParts() repositories.UploadPartRepository {
	return c.uploadPartRepository()
}

func (c *Context) uploadPartRepository() *inmemory.UploadPartRepository {
	if c.uploadParts == nil {
		c.uploadParts = inmemory.NewInMemoryUploadPartRepository(c.db, c.changeTracker, db.UploadPartType)
	}
	return c.uploadParts
}

func (c *Context) SaveChanges(_ context.Context) error {
	tx := c.db.Txn(true)
	defer tx.Abort()

	changes := c.changeTracker.GetChanges()
	for _, changeEntry := range changes {
		err := c.applyChange(tx, changeEntry)
		if err != nil {
			return fmt.Errorf("failed to apply change: %w", err)
		}
	}

	tx.Commit()
	c.changeTracker.Clear()
	return nil
}

func (c *Context) applyChange(tx *memdb.Txn, entry *change.Entry) error {
	switch entry.GetItemType() {
	case db.UploadType:
		return c.applyUploadChange(tx, entry)

	case db.UploadPartType:
		return c.applyUploadPartChange(tx, entry)

	default:
		return fmt.Errorf("unsupported item type: %d", entry.GetItemType())
	}
}

func (c *Context) applyUploadChange(tx *memdb.Txn, entry *change.Entry) error {
	switch entry.GetChangeType() {
	case change.Added:
		return c.uploadRepository().ExecuteInsert(tx, entry.GetItem().(*repositories.Upload))

	case change.Updated:
		return c.uploadRepository().ExecuteUpdate(tx, entry.GetItem().(*repositories.Upload))

	default:
		return fmt.Errorf("unsupported change type: %d", entry.GetChangeType())
	}
}

func (c *Context) applyUploadPartChange(tx *memdb.Txn, entry *change.Entry) error {
	switch entry.GetChangeType() {
	case change.Added, change.Updated:
		return c.uploadPartRepository().ExecuteUpsert(tx, entry.GetItem().(*repositories.UploadPart))

	case change.Deleted:
		return c.uploadPartRepository().ExecuteDeleteByUploadId(tx, entry.GetItem().(uuid.UUID))

	default:
		return fmt.Errorf("unsupported change type: %d", entry.GetChangeType())
	}
}
