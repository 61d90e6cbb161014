package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/the127/chunkyard/internal/services/kv"
)

// Checkpoint is the durable record of an upload's progress.
type Checkpoint struct {
	TaskID        string            `json:"task_id"`
	UploadID      string            `json:"upload_id"`
	FileRole      FileRole          `json:"file_role"`
	Filename      string            `json:"filename"`
	FileSize      int64             `json:"file_size"`
	ChunkSize     int64             `json:"chunk_size"`
	TotalChunks   int               `json:"total_chunks"`
	UploadedParts []int             `json:"uploaded_parts"`
	Receipts      map[string]string `json:"receipts,omitempty"`
	// PartHandles keeps the per part destinations the server issued at
	// initiation, a resumed session has no other way to learn them.
	PartHandles map[string]string `json:"part_handles,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// AcceptedReceipts expands the checkpoint back into receipts, sorted by part
// number.
func (c *Checkpoint) AcceptedReceipts() []Receipt {
	receipts := make([]Receipt, 0, len(c.UploadedParts))
	for _, n := range c.UploadedParts {
		receipts = append(receipts, Receipt{
			PartNumber: n,
			ETag:       c.Receipts[strconv.Itoa(n)],
		})
	}
	sortReceipts(receipts)
	return receipts
}

func (c *Checkpoint) setAccepted(accepted map[int]Receipt) {
	c.UploadedParts = make([]int, 0, len(accepted))
	c.Receipts = make(map[string]string, len(accepted))

	for n, receipt := range accepted {
		c.UploadedParts = append(c.UploadedParts, n)
		if receipt.ETag != "" {
			c.Receipts[strconv.Itoa(n)] = receipt.ETag
		}
	}

	sort.Ints(c.UploadedParts)
}

func (c *Checkpoint) setPartHandles(parts []Part) {
	c.PartHandles = nil
	for _, part := range parts {
		if part.ServerHandle == "" {
			continue
		}
		if c.PartHandles == nil {
			c.PartHandles = make(map[string]string, len(parts))
		}
		c.PartHandles[strconv.Itoa(part.Number)] = part.ServerHandle
	}
}

// ApplyPartHandles returns a copy of plan carrying the stored destinations.
func (c *Checkpoint) ApplyPartHandles(plan []Part) []Part {
	if len(c.PartHandles) == 0 {
		return plan
	}

	parts := make([]Part, len(plan))
	for i, part := range plan {
		part.ServerHandle = c.PartHandles[strconv.Itoa(part.Number)]
		parts[i] = part
	}
	return parts
}

// CheckpointStore persists checkpoints keyed by task and file role. Callers
// guarantee a single writer per key.
type CheckpointStore interface {
	Save(ctx context.Context, checkpoint Checkpoint) error
	// Load returns nil without error when no checkpoint exists.
	Load(ctx context.Context, taskID string, role FileRole) (*Checkpoint, error)
	// Clear is a no-op for absent keys.
	Clear(ctx context.Context, taskID string, role FileRole) error
}

func CheckpointKey(taskID string, role FileRole) string {
	return fmt.Sprintf("%s:%s", taskID, role)
}

type kvCheckpointStore struct {
	store kv.Store
	opts  []kv.Option
}

// NewKvCheckpointStore stores checkpoints as json values. opts are applied to
// every write, e.g. kv.WithExpiration to let abandoned checkpoints age out.
func NewKvCheckpointStore(store kv.Store, opts ...kv.Option) CheckpointStore {
	return &kvCheckpointStore{
		store: store,
		opts:  opts,
	}
}

func (s *kvCheckpointStore) Save(ctx context.Context, checkpoint Checkpoint) error {
	jsonBytes, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	err = s.store.Set(ctx, CheckpointKey(checkpoint.TaskID, checkpoint.FileRole), string(jsonBytes), s.opts...)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}

	return nil
}

func (s *kvCheckpointStore) Load(ctx context.Context, taskID string, role FileRole) (*Checkpoint, error) {
	value, ok, err := s.store.Get(ctx, CheckpointKey(taskID, role))
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var checkpoint Checkpoint
	err = json.Unmarshal([]byte(value), &checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &checkpoint, nil
}

func (s *kvCheckpointStore) Clear(ctx context.Context, taskID string, role FileRole) error {
	err := s.store.Delete(ctx, CheckpointKey(taskID, role))
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	return nil
}
