package inmemory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/the127/chunkyard/internal/change"
	"github.com/the127/chunkyard/internal/repositories"
)

const UploadPartsTable = "upload_parts"

type UploadPartRepository struct {
	db            *memdb.MemDB
	changeTracker *change.Tracker
	entityType    int
}

func NewInMemoryUploadPartRepository(db *memdb.MemDB, changeTracker *change.Tracker, entityType int) *UploadPartRepository {
	return &UploadPartRepository{
		db:            db,
		changeTracker: changeTracker,
		entityType:    entityType,
	}
}

func (r *UploadPartRepository) applyFilter(iterator memdb.ResultIterator, filter *repositories.UploadPartFilter) ([]*repositories.UploadPart, int, error) {
	var result []*repositories.UploadPart

	obj := iterator.Next()
	for obj != nil {
		typed := *obj.(*repositories.UploadPart)

		if r.matches(&typed, filter) {
			result = append(result, &typed)
		}

		obj = iterator.Next()
	}

	slices.SortFunc(result, func(a, b *repositories.UploadPart) int {
		return a.GetPartNumber() - b.GetPartNumber()
	})

	return result, len(result), nil
}

func (r *UploadPartRepository) matches(part *repositories.UploadPart, filter *repositories.UploadPartFilter) bool {
	if filter.HasUploadId() {
		if part.GetUploadId() != filter.GetUploadId() {
			return false
		}
	}

	if filter.HasPartNumber() {
		if part.GetPartNumber() != filter.GetPartNumber() {
			return false
		}
	}

	return true
}

func (r *UploadPartRepository) query(filter *repositories.UploadPartFilter) ([]*repositories.UploadPart, int, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	var iterator memdb.ResultIterator
	var err error

	switch {
	case filter.HasUploadId() && filter.HasPartNumber():
		iterator, err = txn.Get(UploadPartsTable, "id", repositories.UploadPartKey(filter.GetUploadId(), filter.GetPartNumber()))

	case filter.HasUploadId():
		iterator, err = txn.Get(UploadPartsTable, "upload_id", filter.GetUploadId())

	default:
		iterator, err = txn.Get(UploadPartsTable, "id")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get upload parts: %w", err)
	}

	result, count, err := r.applyFilter(iterator, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to apply filter: %w", err)
	}

	return result, count, nil
}

func (r *UploadPartRepository) First(_ context.Context, filter *repositories.UploadPartFilter) (*repositories.UploadPart, error) {
	result, _, err := r.query(filter)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	return result[0], nil
}

func (r *UploadPartRepository) List(_ context.Context, filter *repositories.UploadPartFilter) ([]*repositories.UploadPart, int, error) {
	return r.query(filter)
}

func (r *UploadPartRepository) Upsert(part *repositories.UploadPart) {
	r.changeTracker.Add(change.NewEntry(change.Added, r.entityType, part))
}

func (r *UploadPartRepository) DeleteByUploadId(uploadId uuid.UUID) {
	r.changeTracker.Add(change.NewEntry(change.Deleted, r.entityType, uploadId))
}

func (r *UploadPartRepository) ExecuteUpsert(tx *memdb.Txn, part *repositories.UploadPart) error {
	stored := *part

	// the id index is the upload/part key, so inserting replaces an earlier attempt
	err := tx.Insert(UploadPartsTable, &stored)
	if err != nil {
		return fmt.Errorf("failed to upsert upload part: %w", err)
	}

	return nil
}

func (r *UploadPartRepository) ExecuteDeleteByUploadId(tx *memdb.Txn, uploadId uuid.UUID) error {
	_, err := tx.DeleteAll(UploadPartsTable, "upload_id", uploadId)
	if err != nil {
		return fmt.Errorf("failed to delete upload parts: %w", err)
	}

	return nil
}
