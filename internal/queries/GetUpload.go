package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/repositories"
)

type GetUpload struct {
	UploadId uuid.UUID
}

type GetUploadResponse struct {
	Id            uuid.UUID
	TaskId        string
	Filename      string
	FileRole      string
	ContentType   string
	FileSize      int64
	ChunkSize     int64
	TotalChunks   int
	AcceptedParts int
	Status        repositories.UploadStatus
	FilePath      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func HandleGetUpload(ctx context.Context, query GetUpload) (*GetUploadResponse, error) {
	scope := middlewares.GetScope(ctx)

	dbFactory := ioc.GetDependency[db.Factory](scope)
	dbContext, err := dbFactory.NewDbContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	upload, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(query.UploadId))
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	return toGetUploadResponse(ctx, dbContext, upload)
}

func toGetUploadResponse(ctx context.Context, dbContext db.Context, upload *repositories.Upload) (*GetUploadResponse, error) {
	_, acceptedParts, err := dbContext.UploadParts().List(ctx, repositories.NewUploadPartFilter().ByUploadId(upload.GetId()))
	if err != nil {
		return nil, fmt.Errorf("listing parts: %w", err)
	}

	// parts are released once an upload is completed
	if upload.GetStatus() == repositories.UploadStatusCompleted {
		acceptedParts = upload.GetTotalChunks()
	}

	return &GetUploadResponse{
		Id:            upload.GetId(),
		TaskId:        upload.GetTaskId(),
		Filename:      upload.GetFilename(),
		FileRole:      upload.GetFileRole(),
		ContentType:   upload.GetContentType(),
		FileSize:      upload.GetFileSize(),
		ChunkSize:     upload.GetChunkSize(),
		TotalChunks:   upload.GetTotalChunks(),
		AcceptedParts: acceptedParts,
		Status:        upload.GetStatus(),
		FilePath:      upload.GetFilePath(),
		CreatedAt:     upload.GetCreatedAt(),
		UpdatedAt:     upload.GetUpdatedAt(),
	}, nil
}
