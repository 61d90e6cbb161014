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
	"github.com/the127/chunkyard/internal/upload"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

const defaultContentType = "application/octet-stream"

type InitiateUpload struct {
	TaskId      string
	Filename    string
	FileSize    int64
	FileRole    string
	ChunkSize   int64
	ContentType string
}

type InitiateUploadResponse struct {
	TaskId      string
	UploadId    uuid.UUID
	TotalChunks int
	Parts       []upload.Part
}

func HandleInitiateUpload(ctx context.Context, command InitiateUpload) (*InitiateUploadResponse, error) {
	err := validateFilename(command.Filename)
	if err != nil {
		return nil, err
	}

	fileRole, err := upload.ParseFileRole(command.FileRole)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apiError.ErrApiBadRequest, err)
	}

	parts, err := upload.Plan(command.FileSize, command.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apiError.ErrApiBadRequest, err)
	}

	if len(parts) > MaxParts {
		return nil, fmt.Errorf("upload needs %d parts, at most %d are allowed: %w", len(parts), MaxParts, apiError.ErrApiBadRequest)
	}

	taskId := command.TaskId
	if taskId == "" {
		taskId = uuid.NewString()
	}

	contentType := command.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	scope := middlewares.GetScope(ctx)

	dbFactory := ioc.GetDependency[db.Factory](scope)
	dbContext, err := dbFactory.NewDbContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	entry := repositories.NewUpload(
		taskId,
		command.Filename,
		string(fileRole),
		contentType,
		command.FileSize,
		command.ChunkSize,
		len(parts),
	)

	storageBackend := ioc.GetDependency[storageBackends.StorageBackend](scope)
	state, err := storageBackend.InitiateUpload(ctx, entry.GetId(), contentType)
	if err != nil {
		return nil, fmt.Errorf("initiating storage upload: %w", err)
	}
	entry.SetBackendState(state)

	dbContext.Uploads().Insert(entry)

	err = dbContext.SaveChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	logging.Logger.Infof("initiated upload %s for task %s (%s, %d parts)", entry.GetId(), taskId, fileRole, len(parts))

	return &InitiateUploadResponse{
		TaskId:      taskId,
		UploadId:    entry.GetId(),
		TotalChunks: len(parts),
		Parts:       parts,
	}, nil
}
