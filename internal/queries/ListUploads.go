package queries

import (
	"context"
	"fmt"
	"slices"

	"github.com/The127/ioc"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/repositories"
)

type ListUploads struct {
	TaskId *string
	Status *repositories.UploadStatus
}

type ListUploadsResponse PagedResponse[GetUploadResponse]

func HandleListUploads(ctx context.Context, query ListUploads) (*ListUploadsResponse, error) {
	scope := middlewares.GetScope(ctx)

	dbFactory := ioc.GetDependency[db.Factory](scope)
	dbContext, err := dbFactory.NewDbContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	filter := repositories.NewUploadFilter()
	if query.TaskId != nil {
		filter = filter.ByTaskId(*query.TaskId)
	}
	if query.Status != nil {
		filter = filter.ByStatus(*query.Status)
	}

	uploads, count, err := dbContext.Uploads().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}

	slices.SortFunc(uploads, func(a, b *repositories.Upload) int {
		return a.GetCreatedAt().Compare(b.GetCreatedAt())
	})

	items := make([]GetUploadResponse, 0, len(uploads))
	for _, upload := range uploads {
		item, err := toGetUploadResponse(ctx, dbContext, upload)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return &ListUploadsResponse{
		Items:      items,
		TotalCount: count,
	}, nil
}
