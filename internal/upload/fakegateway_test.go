package upload

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// fakeGateway keeps uploads in memory and lets tests inject failures.
type fakeGateway struct {
	mu sync.Mutex

	nextID    int
	uploads   map[string]map[int][]byte
	initiated []InitiateRequest
	uploaded  []int
	handles   []string
	completed []Receipt
	aborted   []string

	serverParts []Part
	failParts   map[int]error
	listErr     error
	listExtra   []Receipt
	completeErr error

	// onUpload runs before a part is stored. Returning true makes the part
	// block until ctx is done.
	onUpload func(part Part) bool
	// onComplete runs before the upload is completed.
	onComplete func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		uploads:   make(map[string]map[int][]byte),
		failParts: make(map[int]error),
	}
}

func (g *fakeGateway) Initiate(_ context.Context, request InitiateRequest) (*InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	uploadID := fmt.Sprintf("upload-%d", g.nextID)
	g.uploads[uploadID] = make(map[int][]byte)
	g.initiated = append(g.initiated, request)

	return &InitiateResponse{
		TaskID:      request.TaskID,
		UploadID:    uploadID,
		TotalChunks: TotalChunks(request.TotalBytes, request.ChunkSize),
		Parts:       g.serverParts,
	}, nil
}

func (g *fakeGateway) seed(uploadID string, parts map[int][]byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.uploads[uploadID] = parts
}

func (g *fakeGateway) UploadPart(ctx context.Context, uploadID string, part Part, payload io.ReadSeeker, onProgress ProgressFunc) (Receipt, error) {
	if g.onUpload != nil && g.onUpload(part) {
		<-ctx.Done()
		return Receipt{}, ctx.Err()
	}

	g.mu.Lock()
	err := g.failParts[part.Number]
	g.mu.Unlock()
	if err != nil {
		return Receipt{}, err
	}

	data, err := io.ReadAll(&ProgressReader{Reader: payload, Total: part.Size, OnProgress: onProgress})
	if err != nil {
		return Receipt{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	parts, ok := g.uploads[uploadID]
	if !ok {
		return Receipt{}, fmt.Errorf("unknown upload %s", uploadID)
	}

	parts[part.Number] = data
	g.uploaded = append(g.uploaded, part.Number)
	g.handles = append(g.handles, part.ServerHandle)

	return Receipt{
		PartNumber: part.Number,
		ETag:       fmt.Sprintf("etag-%d", part.Number),
		Size:       int64(len(data)),
	}, nil
}

func (g *fakeGateway) ListAcceptedParts(_ context.Context, uploadID string) ([]Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listErr != nil {
		return nil, g.listErr
	}

	receipts := make([]Receipt, 0, len(g.uploads[uploadID]))
	for n, data := range g.uploads[uploadID] {
		receipts = append(receipts, Receipt{
			PartNumber: n,
			ETag:       fmt.Sprintf("etag-%d", n),
			Size:       int64(len(data)),
		})
	}
	sortReceipts(receipts)

	return append(receipts, g.listExtra...), nil
}

func (g *fakeGateway) Complete(_ context.Context, uploadID string, parts []Receipt) (string, error) {
	if g.onComplete != nil {
		g.onComplete()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.completeErr != nil {
		return "", g.completeErr
	}

	g.completed = parts
	return "mem://" + uploadID, nil
}

func (g *fakeGateway) Abort(_ context.Context, uploadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.aborted = append(g.aborted, uploadID)
	delete(g.uploads, uploadID)
	return nil
}

func (g *fakeGateway) assembled(uploadID string) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	var result []byte
	for n := 1; n <= len(g.uploads[uploadID]); n++ {
		result = append(result, g.uploads[uploadID][n]...)
	}
	return result
}

func (g *fakeGateway) uploadedParts() []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]int(nil), g.uploaded...)
}
