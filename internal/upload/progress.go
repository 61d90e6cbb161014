package upload

import (
	"sync"
	"time"

	"github.com/the127/chunkyard/internal/services/clock"
)

type ProgressSnapshot struct {
	UploadedBytes  int64
	TotalBytes     int64
	Percentage     float64
	BytesPerSecond float64
	Elapsed        time.Duration
	// EstimatedRemaining is zero while no throughput has been measured.
	EstimatedRemaining time.Duration
}

// ProgressTracker turns byte counters into throughput and time estimates.
// Throughput only counts bytes sent since Begin, so resumed uploads do not
// report the previously accepted bytes as instantaneous transfer.
type ProgressTracker struct {
	clock      clock.Service
	totalBytes int64

	mu         sync.Mutex
	startedAt  time.Time
	baseline   int64
	uploaded   int64
	percentage float64
	finished   bool
}

func NewProgressTracker(c clock.Service, totalBytes int64) *ProgressTracker {
	if c == nil {
		c = clock.NewClockService()
	}

	return &ProgressTracker{
		clock:      c,
		totalBytes: totalBytes,
	}
}

// Begin starts a measurement run with alreadyUploaded bytes counted as done.
func (t *ProgressTracker) Begin(alreadyUploaded int64) ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startedAt = t.clock.Now()
	t.baseline = alreadyUploaded
	t.uploaded = max(t.uploaded, alreadyUploaded)
	t.percentage = max(t.percentage, t.percentageOf(t.uploaded))

	return t.snapshotLocked()
}

// Update records the total number of bytes known to be uploaded. Values lower
// than what was already reported are ignored, so the percentage never goes
// backwards within a run.
func (t *ProgressTracker) Update(uploadedBytes int64) ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if uploadedBytes > t.totalBytes {
		uploadedBytes = t.totalBytes
	}

	if uploadedBytes > t.uploaded {
		t.uploaded = uploadedBytes
	}

	t.percentage = max(t.percentage, t.percentageOf(t.uploaded))

	return t.snapshotLocked()
}

// Finish marks the transfer as complete, which is the only way a zero byte
// upload reaches 100%.
func (t *ProgressTracker) Finish() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.uploaded = t.totalBytes
	t.percentage = 100
	t.finished = true

	return t.snapshotLocked()
}

func (t *ProgressTracker) Snapshot() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshotLocked()
}

func (t *ProgressTracker) percentageOf(uploaded int64) float64 {
	if t.totalBytes <= 0 {
		return 0
	}

	return float64(uploaded) / float64(t.totalBytes) * 100
}

func (t *ProgressTracker) snapshotLocked() ProgressSnapshot {
	snapshot := ProgressSnapshot{
		UploadedBytes: t.uploaded,
		TotalBytes:    t.totalBytes,
		Percentage:    t.percentage,
	}

	if t.startedAt.IsZero() {
		return snapshot
	}

	snapshot.Elapsed = t.clock.Now().Sub(t.startedAt)

	sent := t.uploaded - t.baseline
	if snapshot.Elapsed <= 0 || sent <= 0 {
		return snapshot
	}

	snapshot.BytesPerSecond = float64(sent) / snapshot.Elapsed.Seconds()

	if !t.finished {
		remaining := t.totalBytes - t.uploaded
		snapshot.EstimatedRemaining = time.Duration(float64(remaining) / snapshot.BytesPerSecond * float64(time.Second))
	}

	return snapshot
}
