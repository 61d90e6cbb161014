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

type AbortUpload struct {
	UploadId uuid.UUID
}

type AbortUploadResponse struct{}

func HandleAbortUpload(ctx context.Context, command AbortUpload) (*AbortUploadResponse, error) {
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
	case repositories.UploadStatusAborted:
		return &AbortUploadResponse{}, nil

	case repositories.UploadStatusCompleted:
		return nil, fmt.Errorf("upload %s is completed: %w", entry.GetId(), apiError.ErrApiUploadNotInProgress)
	}

	storageBackend := ioc.GetDependency[storageBackends.StorageBackend](scope)
	err = storageBackend.AbortUpload(ctx, entry.GetBackendState())
	if err != nil {
		return nil, fmt.Errorf("aborting storage upload: %w", err)
	}

	entry.SetStatus(repositories.UploadStatusAborted)
	dbContext.Uploads().Update(entry)
	dbContext.UploadParts().DeleteByUploadId(entry.GetId())

	err = dbContext.SaveChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	logging.Logger.Infof("aborted upload %s", entry.GetId())

	return &AbortUploadResponse{}, nil
}
