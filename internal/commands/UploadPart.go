package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	db "github.com/the127/chunkyard/internal/database"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/upload"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

type UploadPart struct {
	UploadId   uuid.UUID
	PartNumber int
	// ContentLength is -1 when unknown.
	ContentLength int64
	// Sha256 is the optional hex checksum announced by the client.
	Sha256 string
	Body   io.Reader
}

type UploadPartResponse struct {
	PartNumber int
	ETag       string
	Size       int64
}

func HandleUploadPart(ctx context.Context, command UploadPart) (*UploadPartResponse, error) {
	scope := middlewares.GetScope(ctx)

	dbFactory := ioc.GetDependency[db.Factory](scope)
	dbContext, err := dbFactory.NewDbContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	entry, err := getUploadInProgress(ctx, dbContext, command.UploadId)
	if err != nil {
		return nil, err
	}

	if command.PartNumber < 1 || command.PartNumber > entry.GetTotalChunks() {
		return nil, fmt.Errorf("part %d of %d: %w", command.PartNumber, entry.GetTotalChunks(), apiError.ErrApiPartNotFound)
	}

	parts, err := upload.Plan(entry.GetFileSize(), entry.GetChunkSize())
	if err != nil {
		return nil, fmt.Errorf("planning parts: %w", err)
	}
	expectedSize := parts[command.PartNumber-1].Size

	if command.ContentLength >= 0 && command.ContentLength != expectedSize {
		return nil, fmt.Errorf("part %d has %d bytes, expected %d: %w", command.PartNumber, command.ContentLength, expectedSize, apiError.ErrApiPartMismatch)
	}

	reader := newVerifyingReader(command.Body, expectedSize, command.Sha256)

	storageBackend := ioc.GetDependency[storageBackends.StorageBackend](scope)
	written, err := storageBackend.WritePart(ctx, entry.GetBackendState(), command.PartNumber, reader)
	if err != nil {
		return nil, fmt.Errorf("writing part %d: %w", command.PartNumber, err)
	}

	etag := reader.checksum()
	dbContext.UploadParts().Upsert(repositories.NewUploadPart(entry.GetId(), command.PartNumber, etag, written))

	err = dbContext.SaveChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("saving part: %w", err)
	}

	return &UploadPartResponse{
		PartNumber: command.PartNumber,
		ETag:       etag,
		Size:       written,
	}, nil
}

// verifyingReader fails the final read when the content does not have the
// expected size or checksum, so storage never commits a corrupt part.
type verifyingReader struct {
	reader   io.Reader
	hasher   hash.Hash
	expected int64
	sha256   string
	read     int64
}

func newVerifyingReader(reader io.Reader, expected int64, sha256Hex string) *verifyingReader {
	return &verifyingReader{
		reader:   io.LimitReader(reader, expected+1),
		hasher:   sha256.New(),
		expected: expected,
		sha256:   strings.ToLower(strings.TrimSpace(sha256Hex)),
	}
}

func (r *verifyingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)
	r.hasher.Write(p[:n])

	if r.read > r.expected {
		return n, fmt.Errorf("part exceeds %d bytes: %w", r.expected, apiError.ErrApiPartMismatch)
	}

	if errors.Is(err, io.EOF) {
		if r.read != r.expected {
			return n, fmt.Errorf("part has %d bytes, expected %d: %w", r.read, r.expected, apiError.ErrApiPartMismatch)
		}

		if r.sha256 != "" && r.sha256 != r.checksum() {
			return n, fmt.Errorf("part checksum %s does not match %s: %w", r.checksum(), r.sha256, apiError.ErrApiPartMismatch)
		}
	}

	return n, err
}

func (r *verifyingReader) checksum() string {
	return hex.EncodeToString(r.hasher.Sum(nil))
}
