package inmemory

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/the127/chunkyard/internal/change"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

const UploadsTable = "uploads"

type UploadRepository struct {
	db            *memdb.MemDB
	changeTracker *change.Tracker
	entityType    int
}

func NewInMemoryUploadRepository(db *memdb.MemDB, changeTracker *change.Tracker, entityType int) *UploadRepository {
	return &UploadRepository{
		db:            db,
		changeTracker: changeTracker,
		entityType:    entityType,
	}
}

func (r *UploadRepository) applyFilter(iterator memdb.ResultIterator, filter *repositories.UploadFilter) ([]*repositories.Upload, int, error) {
	var result []*repositories.Upload

	obj := iterator.Next()
	for obj != nil {
		typed := *obj.(*repositories.Upload)
		typed.ClearChanges()

		if r.matches(&typed, filter) {
			result = append(result, &typed)
		}

		obj = iterator.Next()
	}

	count := len(result)

	return result, count, nil
}

func (r *UploadRepository) matches(upload *repositories.Upload, filter *repositories.UploadFilter) bool {
	if filter.HasId() {
		if upload.GetId() != filter.GetId() {
			return false
		}
	}

	if filter.HasTaskId() {
		if upload.GetTaskId() != filter.GetTaskId() {
			return false
		}
	}

	if filter.HasStatus() {
		if upload.GetStatus() != filter.GetStatus() {
			return false
		}
	}

	return true
}

func (r *UploadRepository) query(filter *repositories.UploadFilter) ([]*repositories.Upload, int, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	var iterator memdb.ResultIterator
	var err error

	switch {
	case filter.HasId():
		iterator, err = txn.Get(UploadsTable, "id", filter.GetId())

	case filter.HasTaskId():
		iterator, err = txn.Get(UploadsTable, "task_id", filter.GetTaskId())

	default:
		iterator, err = txn.Get(UploadsTable, "id")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get uploads: %w", err)
	}

	result, count, err := r.applyFilter(iterator, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to apply filter: %w", err)
	}

	return result, count, nil
}

func (r *UploadRepository) First(_ context.Context, filter *repositories.UploadFilter) (*repositories.Upload, error) {
	result, _, err := r.query(filter)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	return result[0], nil
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

func (r *UploadRepository) List(_ context.Context, filter *repositories.UploadFilter) ([]*repositories.Upload, int, error) {
	return r.query(filter)
}

func (r *UploadRepository) Insert(upload *repositories.Upload) {
	r.changeTracker.Add(change.NewEntry(change.Added, r.entityType, upload))
}

func (r *UploadRepository) Update(upload *repositories.Upload) {
	r.changeTracker.Add(change.NewEntry(change.Updated, r.entityType, upload))
}

func (r *UploadRepository) ExecuteInsert(tx *memdb.Txn, upload *repositories.Upload) error {
	stored := *upload
	stored.ClearChanges()

	err := tx.Insert(UploadsTable, &stored)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}

	upload.ClearChanges()
	return nil
}

func (r *UploadRepository) ExecuteUpdate(tx *memdb.Txn, upload *repositories.Upload) error {
	existing, err := tx.First(UploadsTable, "id", upload.GetId())
	if err != nil {
		return fmt.Errorf("failed to get upload: %w", err)
	}
	if existing == nil {
		return apiError.ErrApiUploadNotFound
	}

	return r.ExecuteInsert(tx, upload)
}
