package commands

import (
	"context"
	"fmt"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

type CompleteUpload struct {
	UploadId uuid.UUID
	Parts    []CompletedPart
}

type CompletedPart struct {
	PartNumber int
	ETag       string
}

type CompleteUploadResponse struct {
	FilePath string
}

func HandleCompleteUpload(ctx context.Context, command CompleteUpload) (*CompleteUploadResponse, error) {
	scope := middlewares.GetScope(ctx)

	dbFactory := ioc.GetDependency[db.Factory](scope)
	dbContext, err := dbFactory.NewDbContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	entry, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(command.UploadId))
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	switch entry.GetStatus() {
	case repositories.UploadStatusCompleted:
		// a retried completion whose response got lost
		return &CompleteUploadResponse{
			FilePath: entry.GetFilePath(),
		}, nil

	case repositories.UploadStatusAborted:
		return nil, fmt.Errorf("upload %s is aborted: %w", entry.GetId(), apiError.ErrApiUploadNotInProgress)
	}

	accepted, _, err := dbContext.UploadParts().List(ctx, repositories.NewUploadPartFilter().ByUploadId(entry.GetId()))
	if err != nil {
		return nil, fmt.Errorf("listing parts: %w", err)
	}

	partNumbers, err := matchCompletedParts(entry.GetTotalChunks(), command.Parts, accepted)
	if err != nil {
		return nil, err
	}

	objectPath := ObjectPath(entry)

	storageBackend := ioc.GetDependency[storageBackends.StorageBackend](scope)
	err = storageBackend.CompleteUpload(ctx, entry.GetBackendState(), objectPath, partNumbers)
	if err != nil {
		return nil, fmt.Errorf("assembling upload: %w", err)
	}

	entry.SetStatus(repositories.UploadStatusCompleted)
	entry.SetFilePath(objectPath)
	dbContext.Uploads().Update(entry)
	dbContext.UploadParts().DeleteByUploadId(entry.GetId())

	err = dbContext.SaveChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	logging.Logger.Infof("completed upload %s as %s", entry.GetId(), objectPath)

	return &CompleteUploadResponse{
		FilePath: objectPath,
	}, nil
}

// matchCompletedParts checks that the client lists every part exactly once,
// in ascending order, with the etag the server handed out for it.
func matchCompletedParts(totalChunks int, requested []CompletedPart, accepted []*repositories.UploadPart) ([]int, error) {
	if len(requested) != totalChunks {
		return nil, fmt.Errorf("got %d parts, upload has %d: %w", len(requested), totalChunks, apiError.ErrApiCompletionMismatch)
	}

	acceptedByNumber := make(map[int]*repositories.UploadPart, len(accepted))
	for _, part := range accepted {
		acceptedByNumber[part.GetPartNumber()] = part
	}

	partNumbers := make([]int, 0, len(requested))
	for i, part := range requested {
		if part.PartNumber != i+1 {
			return nil, fmt.Errorf("parts must be listed in ascending order, expected part %d at position %d, got %d: %w",
				i+1, i+1, part.PartNumber, apiError.ErrApiCompletionMismatch)
		}

		stored, ok := acceptedByNumber[part.PartNumber]
		if !ok {
			return nil, fmt.Errorf("part %d was never uploaded: %w", part.PartNumber, apiError.ErrApiCompletionMismatch)
		}

		if stored.GetETag() != part.ETag {
			return nil, fmt.Errorf("part %d has etag %s, got %s: %w", part.PartNumber, stored.GetETag(), part.ETag, apiError.ErrApiCompletionMismatch)
		}

		partNumbers = append(partNumbers, part.PartNumber)
	}

	return partNumbers, nil
}
