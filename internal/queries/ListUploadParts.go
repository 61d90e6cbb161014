package queries

import (
	"context"
	"fmt"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/repositories"
)

type ListUploadParts struct {
	UploadId uuid.UUID
}

type ListUploadPartsResponse PagedResponse[ListUploadPartsResponseItem]

type ListUploadPartsResponseItem struct {
	PartNumber int
	ETag       string
	Size       int64
}

func HandleListUploadParts(ctx context.Context, query ListUploadParts) (*ListUploadPartsResponse, error) {
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

	parts, count, err := dbContext.UploadParts().List(ctx, repositories.NewUploadPartFilter().ByUploadId(upload.GetId()))
	if err != nil {
		return nil, fmt.Errorf("listing parts: %w", err)
	}

	items := make([]ListUploadPartsResponseItem, len(parts))
	for i, part := range parts {
		items[i] = ListUploadPartsResponseItem{
			PartNumber: part.GetPartNumber(),
			ETag:       part.GetETag(),
			Size:       part.GetSize(),
		}
	}

	return &ListUploadPartsResponse{
		Items:      items,
		TotalCount: count,
	}, nil
}
