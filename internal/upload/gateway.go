package upload

import (
	"context"
	"io"
)

type InitiateRequest struct {
	TaskID      string
	Filename    string
	ContentType string
	TotalBytes  int64
	FileRole    FileRole
	ChunkSize   int64
}

type InitiateResponse struct {
	TaskID      string
	UploadID    string
	TotalChunks int
	// Parts may be empty, in which case the locally planned parts are used.
	Parts []Part
}

// ProgressFunc reports the bytes of the current part sent so far.
type ProgressFunc func(loaded int64, total int64)

// Gateway is the remote side of a multipart upload.
//
// UploadPart must be safe to retry: uploading an accepted part again either
// overwrites it or is rejected idempotently. Cancelling ctx aborts an in-flight
// UploadPart. Failures are reported wrapped in the matching sentinel
// (ErrInitiation, ErrTransfer, ErrReconciliation, ErrCompletion).
type Gateway interface {
	Initiate(ctx context.Context, request InitiateRequest) (*InitiateResponse, error)
	UploadPart(ctx context.Context, uploadID string, part Part, payload io.ReadSeeker, onProgress ProgressFunc) (Receipt, error)
	ListAcceptedParts(ctx context.Context, uploadID string) ([]Receipt, error)
	Complete(ctx context.Context, uploadID string, parts []Receipt) (string, error)
	Abort(ctx context.Context, uploadID string) error
}

// ProgressReader counts bytes read through it and reports them. Seeking back
// to the start resets the count, which happens when a transport retries.
type ProgressReader struct {
	Reader     io.ReadSeeker
	Total      int64
	OnProgress ProgressFunc

	read int64
}

func (r *ProgressReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		if r.OnProgress != nil {
			r.OnProgress(r.read, r.Total)
		}
	}
	return n, err
}

func (r *ProgressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.Reader.Seek(offset, whence)
	if err == nil {
		r.read = pos
	}
	return pos, err
}
