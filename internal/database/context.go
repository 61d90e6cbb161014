package database

import (
	"context"

	"github.com/the127/chunkyard/internal/repositories"
)

const (
	UploadType int = iota
	UploadPartType
)

// Context queues writes until SaveChanges applies them in one transaction.
type Context interface {
	Uploads() repositories.UploadRepository
	UploadParts() repositories.UploadPartRepository

	SaveChanges(ctx context.Context) error
}
