package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/repositories"
)

type postgresBaseModel struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	xmin      uint32
}

func newPostgresBaseModel(b repositories.BaseModel) postgresBaseModel {
	xmin, _ := b.GetVersion().(uint32)

	return postgresBaseModel{
		id:        b.GetId(),
		createdAt: b.GetCreatedAt(),
		updatedAt: b.GetUpdatedAt(),
		xmin:      xmin,
	}
}

func (b *postgresBaseModel) MapBase() repositories.BaseModel {
	return repositories.NewBaseModelFromDB(b.id, b.createdAt, b.updatedAt, b.xmin)
}
