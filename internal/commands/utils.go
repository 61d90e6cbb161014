package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

// MaxParts bounds the number of parts a single upload may be split into.
const MaxParts = 10000

func getUploadInProgress(ctx context.Context, dbContext database.Context, uploadId uuid.UUID) (*repositories.Upload, error) {
	upload, err := dbContext.Uploads().Single(ctx, repositories.NewUploadFilter().ById(uploadId))
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	if upload.GetStatus() != repositories.UploadStatusInProgress {
		return nil, fmt.Errorf("upload %s is %s: %w", uploadId, upload.GetStatus(), apiError.ErrApiUploadNotInProgress)
	}

	return upload, nil
}

func validateFilename(filename string) error {
	switch {
	case filename == "", filename == ".", filename == "..":
		return fmt.Errorf("invalid filename %q: %w", filename, apiError.ErrApiBadRequest)

	case strings.ContainsAny(filename, "/\\\x00"):
		return fmt.Errorf("filename %q must not contain path separators: %w", filename, apiError.ErrApiBadRequest)

	default:
		return nil
	}
}

// ObjectPath is where a completed upload is stored.
func ObjectPath(upload *repositories.Upload) string {
	return fmt.Sprintf("%s/%s/%s", upload.GetTaskId(), upload.GetFileRole(), upload.GetFilename())
}
