package storageBackends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")
var ErrPartNotFound = errors.New("part not found")
var ErrUploadNotInitiated = errors.New("upload not initiated")
var ErrInvalidObjectPath = errors.New("invalid object path")

type StorageBackendState map[string]string

// StorageBackend stages numbered parts of an upload and assembles them into a
// stored object. Writing a part number again replaces the staged data.
type StorageBackend interface {
	InitiateUpload(ctx context.Context, id uuid.UUID, contentType string) (StorageBackendState, error)
	// WritePart stages the reader's content. A part is only replaced when the
	// reader is drained without error.
	WritePart(ctx context.Context, state StorageBackendState, partNumber int, reader io.Reader) (int64, error)
	// CompleteUpload concatenates the given parts in order into objectPath and
	// releases the staged data.
	CompleteUpload(ctx context.Context, state StorageBackendState, objectPath string, partNumbers []int) error
	AbortUpload(ctx context.Context, state StorageBackendState) error

	DeleteObject(ctx context.Context, objectPath string) error

	DownloadObject(ctx context.Context, w http.ResponseWriter, objectPath string) error
}

// CleanObjectPath normalizes a slash separated object path and rejects paths
// escaping the storage root.
func CleanObjectPath(objectPath string) (string, error) {
	if objectPath == "" {
		return "", ErrInvalidObjectPath
	}

	for _, segment := range strings.Split(objectPath, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidObjectPath, objectPath)
		}
	}

	cleaned := strings.TrimPrefix(path.Clean("/"+objectPath), "/")
	if cleaned == "" {
		return "", ErrInvalidObjectPath
	}

	return cleaned, nil
}
