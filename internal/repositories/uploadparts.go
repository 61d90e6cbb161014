package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/utils/pointer"
)

// UploadPart records a part the server has durably accepted. Parts are
// immutable, uploading the same part number again replaces the record.
type UploadPart struct {
	BaseModel

	uploadId   uuid.UUID
	partNumber int
	etag       string
	size       int64
}

func NewUploadPart(uploadId uuid.UUID, partNumber int, etag string, size int64) *UploadPart {
	return &UploadPart{
		BaseModel:  NewBaseModel(),
		uploadId:   uploadId,
		partNumber: partNumber,
		etag:       etag,
		size:       size,
	}
}

func NewUploadPartFromDB(base BaseModel, uploadId uuid.UUID, partNumber int, etag string, size int64) *UploadPart {
	return &UploadPart{
		BaseModel:  base,
		uploadId:   uploadId,
		partNumber: partNumber,
		etag:       etag,
		size:       size,
	}
}

func (p *UploadPart) GetUploadId() uuid.UUID {
	return p.uploadId
}

func (p *UploadPart) GetPartNumber() int {
	return p.partNumber
}

func (p *UploadPart) GetETag() string {
	return p.etag
}

func (p *UploadPart) GetSize() int64 {
	return p.size
}

// GetKey identifies a part within its upload.
func (p *UploadPart) GetKey() string {
	return UploadPartKey(p.uploadId, p.partNumber)
}

func UploadPartKey(uploadId uuid.UUID, partNumber int) string {
	return fmt.Sprintf("%s/%d", uploadId, partNumber)
}

type UploadPartFilter struct {
	UploadId   *uuid.UUID
	PartNumber *int
}

func NewUploadPartFilter() *UploadPartFilter {
	return &UploadPartFilter{}
}

func (f *UploadPartFilter) clone() *UploadPartFilter {
	cloned := *f
	return &cloned
}

func (f *UploadPartFilter) ByUploadId(uploadId uuid.UUID) *UploadPartFilter {
	cloned := f.clone()
	cloned.UploadId = pointer.To(uploadId)
	return cloned
}

func (f *UploadPartFilter) HasUploadId() bool {
	return f.UploadId != nil
}

func (f *UploadPartFilter) GetUploadId() uuid.UUID {
	return pointer.DerefOrZero(f.UploadId)
}

func (f *UploadPartFilter) ByPartNumber(partNumber int) *UploadPartFilter {
	cloned := f.clone()
	cloned.PartNumber = pointer.To(partNumber)
	return cloned
}

func (f *UploadPartFilter) HasPartNumber() bool {
	return f.PartNumber != nil
}

func (f *UploadPartFilter) GetPartNumber() int {
	return pointer.DerefOrZero(f.PartNumber)
}

type UploadPartRepository interface {
	First(ctx context.Context, filter *UploadPartFilter) (*UploadPart, error)
	// List returns parts ordered by part number.
	List(ctx context.Context, filter *UploadPartFilter) ([]*UploadPart, int, error)
	Upsert(part *UploadPart)
	DeleteByUploadId(uploadId uuid.UUID)
}
