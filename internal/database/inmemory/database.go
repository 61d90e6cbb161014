package inmemory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/repositories/inmemory"
)

type database struct {
	memDB *memdb.MemDB
}

func NewInMemoryDatabase() (db.Database, error) {
	memDb, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	return &database{
		memDB: memDb,
	}, nil
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			inmemory.UploadsTable: {
				Name: inmemory.UploadsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &UUIDValueIndexer{Getter: func(obj interface{}) uuid.UUID {
							return obj.(*repositories.Upload).GetId()
						}},
					},
					"task_id": {
						Name: "task_id",
						Indexer: &StringValueIndexer{Getter: func(obj interface{}) string {
							return obj.(*repositories.Upload).GetTaskId()
						}},
					},
				},
			},
			inmemory.UploadPartsTable: {
				Name: inmemory.UploadPartsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &StringValueIndexer{Getter: func(obj interface{}) string {
							return obj.(*repositories.UploadPart).GetKey()
						}},
					},
					"upload_id": {
						Name: "upload_id",
						Indexer: &UUIDValueIndexer{Getter: func(obj interface{}) uuid.UUID {
							return obj.(*repositories.UploadPart).GetUploadId()
						}},
					},
				},
			},
		},
	}
}

// Migrate is a no-op, the schema is applied when the database is created.
func (d *database) Migrate() error {
	return nil
}

func (d *database) NewContext(_ context.Context) (db.Context, error) {
	return newContext(d.memDB), nil
}

func (d *database) Close() error {
	return nil
}
