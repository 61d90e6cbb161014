package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/services/clock"
)

const defaultContentType = "application/octet-stream"

type EventType string

const (
	EventStatusChanged EventType = "status_changed"
	EventProgress      EventType = "progress"
	EventPartCompleted EventType = "part_completed"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
)

type Event struct {
	Type       EventType
	Status     Status
	PartNumber int
	Progress   ProgressSnapshot
	Reference  string
	Err        error
}

type Options struct {
	// TaskID identifies the logical transfer. A random id is generated when
	// empty; resuming requires passing the same id again.
	TaskID     string
	FileRole   FileRole
	Filename   string
	Source     io.ReaderAt
	TotalBytes int64
	ChunkSize  int64

	// ContentType is sniffed from the first bytes of Source when empty.
	ContentType string

	// Events receives lifecycle and progress events. Sends never block, a
	// full channel drops the event, so buffer it.
	Events chan<- Event

	Clock clock.Service
}

type Result struct {
	Status        Status
	TaskID        string
	UploadID      string
	Reference     string
	AcceptedParts []int
	Progress      ProgressSnapshot
}

// Session drives one resumable multipart upload through its state machine.
// Parts are uploaded one at a time in ascending order. Pause and Cancel may be
// called from any goroutine; both are observed between parts, Cancel also
// aborts the part in flight.
type Session struct {
	opts    Options
	gateway Gateway
	store   CheckpointStore
	tracker *ProgressTracker
	plan    []Part

	mu              sync.Mutex
	status          Status
	uploadID        string
	parts           []Part
	accepted        map[int]Receipt
	reference       string
	pauseRequested  bool
	cancelRequested bool
	cancelErr       error
	abortRun        context.CancelFunc
	running         chan struct{}
}

func NewSession(opts Options, gateway Gateway, store CheckpointStore) (*Session, error) {
	if gateway == nil || store == nil {
		return nil, fmt.Errorf("gateway and checkpoint store are required: %w", ErrInvalidInput)
	}

	if opts.TaskID == "" {
		opts.TaskID = uuid.NewString()
	}

	_, err := ParseFileRole(string(opts.FileRole))
	if err != nil {
		return nil, err
	}

	if opts.Filename == "" {
		return nil, fmt.Errorf("filename is required: %w", ErrInvalidInput)
	}

	if opts.Source == nil && opts.TotalBytes > 0 {
		return nil, fmt.Errorf("source is required: %w", ErrInvalidInput)
	}

	plan, err := Plan(opts.TotalBytes, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = clock.NewClockService()
	}

	return &Session{
		opts:     opts,
		gateway:  gateway,
		store:    store,
		tracker:  NewProgressTracker(opts.Clock, opts.TotalBytes),
		plan:     plan,
		status:   StatusIdle,
		parts:    plan,
		accepted: make(map[int]Receipt),
	}, nil
}

func (s *Session) TaskID() string {
	return s.opts.TaskID
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

func (s *Session) Progress() ProgressSnapshot {
	return s.tracker.Snapshot()
}

func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resultLocked()
}

// Start runs the upload until it completes, pauses, fails or is cancelled.
// A pause returns a Paused result and no error.
func (s *Session) Start(ctx context.Context) (*Result, error) {
	runCtx, err := s.beginRun(ctx, StatusIdle, StatusInitializing)
	if err != nil {
		return nil, err
	}
	defer s.endRun()

	err = s.initialize(runCtx)
	if err != nil {
		return s.fail(ctx, err)
	}

	if s.isCancelRequested() {
		return s.cancelled(ctx)
	}

	err = s.transition(StatusReconciling)
	if err != nil {
		return s.fail(ctx, err)
	}

	err = s.reconcile(runCtx)
	if err != nil {
		return s.fail(ctx, err)
	}

	err = s.transition(StatusUploading)
	if err != nil {
		return s.fail(ctx, err)
	}

	return s.uploadLoop(ctx, runCtx)
}

// Resume continues a paused session without initiating or reconciling again.
func (s *Session) Resume(ctx context.Context) (*Result, error) {
	runCtx, err := s.beginRun(ctx, StatusPaused, StatusUploading)
	if err != nil {
		return nil, err
	}
	defer s.endRun()

	return s.uploadLoop(ctx, runCtx)
}

// Pause asks the running loop to stop before the next part.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() || s.status == StatusPaused {
		return
	}

	s.pauseRequested = true
}

// Cancel abandons the upload: the server side upload is aborted on a best
// effort basis and the checkpoint is removed. When a run is active Cancel
// waits for it to observe the request. Cancelling an idle session abandons a
// checkpointed upload left behind by an earlier process.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.status.IsTerminal() {
		s.mu.Unlock()
		return s.cancelOutcome(ctx)
	}

	s.cancelRequested = true
	running := s.running
	if s.abortRun != nil {
		s.abortRun()
	}
	s.mu.Unlock()

	if running == nil {
		return s.finishCancelled(ctx)
	}

	select {
	case <-running:
		return s.cancelOutcome(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cancelOutcome reports whether the upload really ended cancelled with its
// checkpoint gone. A run may finish before it observes the request, either by
// completing or by pausing, in which case the cancellation is finished here.
func (s *Session) cancelOutcome(ctx context.Context) error {
	s.mu.Lock()
	status := s.status
	cancelErr := s.cancelErr
	s.mu.Unlock()

	switch {
	case status == StatusCancelled && cancelErr != nil:
		return s.retryClear(ctx)
	case status == StatusCancelled:
		return nil
	case status.IsTerminal():
		return fmt.Errorf("cannot cancel %s upload: %w", status, ErrInvalidTransition)
	default:
		return s.finishCancelled(ctx)
	}
}

func (s *Session) retryClear(ctx context.Context) error {
	err := s.store.Clear(context.WithoutCancel(ctx), s.opts.TaskID, s.opts.FileRole)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.mu.Lock()
	s.cancelErr = err
	s.mu.Unlock()

	return err
}

func (s *Session) beginRun(ctx context.Context, from Status, to Status) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running != nil {
		return nil, fmt.Errorf("upload is already running: %w", ErrInvalidTransition)
	}

	if s.cancelRequested {
		return nil, ErrCancelled
	}

	if s.status != from {
		return nil, fmt.Errorf("expected %s upload, got %s: %w", from, s.status, ErrInvalidTransition)
	}

	err := checkTransition(s.status, to)
	if err != nil {
		return nil, err
	}

	runCtx, abort := context.WithCancel(ctx)
	s.abortRun = abort
	s.running = make(chan struct{})
	s.setStatusLocked(to)

	return runCtx, nil
}

func (s *Session) endRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abortRun != nil {
		s.abortRun()
		s.abortRun = nil
	}

	if s.running != nil {
		close(s.running)
		s.running = nil
	}
}

func (s *Session) initialize(ctx context.Context) error {
	checkpoint, err := s.store.Load(ctx, s.opts.TaskID, s.opts.FileRole)
	if err != nil {
		return fmt.Errorf("%w: loading checkpoint: %w", ErrPersistence, err)
	}

	if checkpoint != nil && !s.matchesCheckpoint(checkpoint) {
		logging.Logger.Warnf("discarding stale checkpoint for %s (upload %s, %d bytes in %d chunks)",
			CheckpointKey(s.opts.TaskID, s.opts.FileRole), checkpoint.UploadID, checkpoint.FileSize, checkpoint.TotalChunks)

		err = s.store.Clear(ctx, s.opts.TaskID, s.opts.FileRole)
		if err != nil {
			return fmt.Errorf("%w: clearing stale checkpoint: %w", ErrPersistence, err)
		}
		checkpoint = nil
	}

	if checkpoint != nil {
		s.mu.Lock()
		s.uploadID = checkpoint.UploadID
		s.parts = checkpoint.ApplyPartHandles(s.plan)
		for _, receipt := range checkpoint.AcceptedReceipts() {
			if s.inPlan(receipt.PartNumber) {
				s.accepted[receipt.PartNumber] = s.withSize(receipt)
			}
		}
		accepted := len(s.accepted)
		s.mu.Unlock()

		logging.Logger.Infof("resuming upload %s of %s with %d of %d parts accepted",
			checkpoint.UploadID, s.opts.Filename, accepted, len(s.plan))
		return nil
	}

	contentType := s.opts.ContentType
	if contentType == "" {
		contentType = detectContentType(s.opts.Source, s.opts.TotalBytes)
	}

	response, err := s.gateway.Initiate(ctx, InitiateRequest{
		TaskID:      s.opts.TaskID,
		Filename:    s.opts.Filename,
		ContentType: contentType,
		TotalBytes:  s.opts.TotalBytes,
		FileRole:    s.opts.FileRole,
		ChunkSize:   s.opts.ChunkSize,
	})
	if err != nil {
		return wrapWith(ErrInitiation, err)
	}

	parts, err := s.adoptParts(response)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.uploadID = response.UploadID
	s.parts = parts
	s.mu.Unlock()

	logging.Logger.Infof("initiated upload %s of %s (%d bytes in %d parts)",
		response.UploadID, s.opts.Filename, s.opts.TotalBytes, len(parts))

	return s.saveCheckpoint(ctx)
}

func (s *Session) matchesCheckpoint(checkpoint *Checkpoint) bool {
	if checkpoint.UploadID == "" {
		return false
	}

	if checkpoint.FileSize != s.opts.TotalBytes {
		return false
	}

	if checkpoint.ChunkSize != 0 && checkpoint.ChunkSize != s.opts.ChunkSize {
		return false
	}

	return checkpoint.TotalChunks == len(s.plan)
}

// adoptParts prefers the server's part list because it may carry per part
// destinations, but only when it partitions the file the same way.
func (s *Session) adoptParts(response *InitiateResponse) ([]Part, error) {
	if response.UploadID == "" {
		return nil, fmt.Errorf("%w: server returned no upload id", ErrInitiation)
	}

	if response.TotalChunks != 0 && response.TotalChunks != len(s.plan) {
		return nil, fmt.Errorf("%w: server expects %d chunks, planned %d", ErrInitiation, response.TotalChunks, len(s.plan))
	}

	if len(response.Parts) == 0 {
		return s.plan, nil
	}

	err := ValidateParts(response.Parts, s.opts.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: server part list: %w", ErrInitiation, err)
	}

	if len(response.Parts) != len(s.plan) {
		return nil, fmt.Errorf("%w: server planned %d parts, planned %d", ErrInitiation, len(response.Parts), len(s.plan))
	}

	for i, part := range response.Parts {
		if part.Start != s.plan[i].Start || part.End != s.plan[i].End {
			return nil, fmt.Errorf("%w: server part %d covers [%d, %d), planned [%d, %d)",
				ErrInitiation, part.Number, part.Start, part.End, s.plan[i].Start, s.plan[i].End)
		}
	}

	return response.Parts, nil
}

// reconcile merges the server's view of accepted parts into the local one.
// Either side may be ahead, so the union is kept. Failing to list is not
// fatal, the upload continues from the local checkpoint.
func (s *Session) reconcile(ctx context.Context) error {
	s.mu.Lock()
	uploadID := s.uploadID
	s.mu.Unlock()

	receipts, err := s.gateway.ListAcceptedParts(ctx, uploadID)
	if err != nil {
		logging.Logger.Warnf("could not list accepted parts of upload %s, continuing with local checkpoint: %s",
			uploadID, wrapWith(ErrReconciliation, err))
		return nil
	}

	s.mu.Lock()
	added := 0
	for _, receipt := range receipts {
		if !s.inPlan(receipt.PartNumber) {
			logging.Logger.Warnf("server reports unknown part %d for upload %s", receipt.PartNumber, uploadID)
			continue
		}

		local, ok := s.accepted[receipt.PartNumber]
		if ok {
			if local.ETag == "" && receipt.ETag != "" {
				local.ETag = receipt.ETag
				s.accepted[receipt.PartNumber] = local
				added++
			}
			continue
		}

		s.accepted[receipt.PartNumber] = s.withSize(receipt)
		added++
	}
	accepted := len(s.accepted)
	s.mu.Unlock()

	logging.Logger.Debugf("reconciled upload %s: server reports %d parts, %d of %d accepted",
		uploadID, len(receipts), accepted, len(s.plan))

	if added == 0 {
		return nil
	}

	return s.saveCheckpoint(ctx)
}

func (s *Session) uploadLoop(ctx context.Context, runCtx context.Context) (*Result, error) {
	s.emitProgress(0, s.tracker.Begin(s.acceptedBytes()))

	s.mu.Lock()
	parts := s.parts
	s.mu.Unlock()

	for _, part := range parts {
		if s.isAccepted(part.Number) {
			continue
		}

		if s.isCancelRequested() {
			return s.cancelled(ctx)
		}

		if s.isPauseRequested() {
			return s.pause(ctx)
		}

		receipt, err := s.uploadPart(runCtx, part)
		if err != nil {
			return s.fail(ctx, err)
		}

		s.mu.Lock()
		s.accepted[part.Number] = receipt
		s.mu.Unlock()

		err = s.saveCheckpoint(ctx)
		if err != nil {
			return s.fail(ctx, err)
		}

		snapshot := s.tracker.Update(s.acceptedBytes())
		s.emit(Event{Type: EventPartCompleted, Status: StatusUploading, PartNumber: part.Number, Progress: snapshot})
		s.emitProgress(part.Number, snapshot)
	}

	if s.isCancelRequested() {
		return s.cancelled(ctx)
	}

	if s.isPauseRequested() {
		return s.pause(ctx)
	}

	return s.complete(ctx, runCtx)
}

func (s *Session) uploadPart(ctx context.Context, part Part) (Receipt, error) {
	s.mu.Lock()
	uploadID := s.uploadID
	s.mu.Unlock()

	committed := s.acceptedBytes()
	payload := io.NewSectionReader(s.opts.Source, part.Start, part.Size)

	onProgress := func(loaded int64, _ int64) {
		s.emitProgress(part.Number, s.tracker.Update(committed+loaded))
	}

	logging.Logger.Debugf("uploading part %d/%d of upload %s (%d bytes)", part.Number, len(s.plan), uploadID, part.Size)

	receipt, err := s.gateway.UploadPart(ctx, uploadID, part, payload, onProgress)
	if err != nil {
		return Receipt{}, newPartError(part.Number, err)
	}

	if receipt.PartNumber == 0 {
		receipt.PartNumber = part.Number
	}

	if receipt.PartNumber != part.Number {
		return Receipt{}, newPartError(part.Number, fmt.Errorf("server acknowledged part %d", receipt.PartNumber))
	}

	if receipt.Size == 0 {
		receipt.Size = part.Size
	}

	return receipt, nil
}

func (s *Session) complete(ctx context.Context, runCtx context.Context) (*Result, error) {
	err := s.transition(StatusCompleting)
	if err != nil {
		return s.fail(ctx, err)
	}

	s.mu.Lock()
	uploadID := s.uploadID
	receipts := s.sortedReceiptsLocked()
	s.mu.Unlock()

	reference, err := s.gateway.Complete(runCtx, uploadID, receipts)
	if err != nil {
		return s.fail(ctx, wrapWith(ErrCompletion, err))
	}

	err = s.store.Clear(context.WithoutCancel(ctx), s.opts.TaskID, s.opts.FileRole)
	if err != nil {
		logging.Logger.Errorf("upload %s completed but its checkpoint could not be cleared: %s", uploadID, err)
	}

	snapshot := s.tracker.Finish()

	s.mu.Lock()
	s.reference = reference
	s.setStatusLocked(StatusCompleted)
	result := s.resultLocked()
	s.mu.Unlock()

	logging.Logger.Infof("completed upload %s of %s: %s", uploadID, s.opts.Filename, reference)
	s.emit(Event{Type: EventCompleted, Status: StatusCompleted, Reference: reference, Progress: snapshot})

	return result, nil
}

func (s *Session) pause(ctx context.Context) (*Result, error) {
	err := s.saveCheckpoint(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}

	s.mu.Lock()
	s.pauseRequested = false
	err = checkTransition(s.status, StatusPaused)
	if err == nil {
		s.setStatusLocked(StatusPaused)
	}
	result := s.resultLocked()
	s.mu.Unlock()

	if err != nil {
		return s.fail(ctx, err)
	}

	logging.Logger.Infof("paused upload %s of %s with %d of %d parts accepted",
		result.UploadID, s.opts.Filename, len(result.AcceptedParts), len(s.plan))

	return result, nil
}

// fail moves the session to Failed and keeps the checkpoint so a later Start
// resumes. Errors caused by a requested cancellation end in Cancelled instead.
func (s *Session) fail(ctx context.Context, err error) (*Result, error) {
	if s.isCancelRequested() {
		return s.cancelled(ctx)
	}

	s.mu.Lock()
	if canTransition(s.status, StatusFailed) {
		s.setStatusLocked(StatusFailed)
	}
	uploadID := s.uploadID
	result := s.resultLocked()
	s.mu.Unlock()

	logging.Logger.Errorf("upload %s of %s failed: %s", uploadID, s.opts.Filename, err)
	s.emit(Event{Type: EventFailed, Status: StatusFailed, Err: err, Progress: result.Progress})

	return result, err
}

func (s *Session) cancelled(ctx context.Context) (*Result, error) {
	err := s.finishCancelled(ctx)
	result := s.Result()

	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return result, ErrCancelled
}

// finishCancelled aborts the server side upload and clears the checkpoint.
// The checkpoint is cleared even when the abort fails.
func (s *Session) finishCancelled(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.status == StatusCancelled {
		s.mu.Unlock()
		return nil
	}
	wasIdle := s.status == StatusIdle
	uploadID := s.uploadID
	s.setStatusLocked(StatusCancelled)
	s.mu.Unlock()

	if uploadID == "" && wasIdle {
		checkpoint, err := s.store.Load(ctx, s.opts.TaskID, s.opts.FileRole)
		if err != nil {
			logging.Logger.Warnf("could not load checkpoint of cancelled task %s: %s", s.opts.TaskID, err)
		} else if checkpoint != nil {
			uploadID = checkpoint.UploadID
		}
	}

	if uploadID != "" {
		err := s.gateway.Abort(ctx, uploadID)
		if err != nil {
			logging.Logger.Warnf("could not abort upload %s: %s", uploadID, err)
		}
	}

	err := s.store.Clear(ctx, s.opts.TaskID, s.opts.FileRole)
	if err != nil {
		logging.Logger.Errorf("could not clear checkpoint of cancelled upload %s: %s", uploadID, err)
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
	} else {
		logging.Logger.Infof("cancelled upload %s of %s", uploadID, s.opts.Filename)
	}

	s.mu.Lock()
	s.cancelErr = err
	s.mu.Unlock()

	return err
}

func (s *Session) saveCheckpoint(ctx context.Context) error {
	s.mu.Lock()
	checkpoint := Checkpoint{
		TaskID:      s.opts.TaskID,
		UploadID:    s.uploadID,
		FileRole:    s.opts.FileRole,
		Filename:    s.opts.Filename,
		FileSize:    s.opts.TotalBytes,
		ChunkSize:   s.opts.ChunkSize,
		TotalChunks: len(s.plan),
		Timestamp:   s.opts.Clock.Now(),
	}
	checkpoint.setAccepted(s.accepted)
	checkpoint.setPartHandles(s.parts)
	s.mu.Unlock()

	err := s.store.Save(context.WithoutCancel(ctx), checkpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (s *Session) transition(to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := checkTransition(s.status, to)
	if err != nil {
		return err
	}

	s.setStatusLocked(to)
	return nil
}

func (s *Session) setStatusLocked(to Status) {
	logging.Logger.Debugf("upload %s: %s -> %s", CheckpointKey(s.opts.TaskID, s.opts.FileRole), s.status, to)
	s.status = to
	s.emit(Event{Type: EventStatusChanged, Status: to})
}

func (s *Session) emit(event Event) {
	if s.opts.Events == nil {
		return
	}

	select {
	case s.opts.Events <- event:
	default:
	}
}

func (s *Session) emitProgress(partNumber int, snapshot ProgressSnapshot) {
	s.emit(Event{Type: EventProgress, Status: StatusUploading, PartNumber: partNumber, Progress: snapshot})
}

func (s *Session) isCancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelRequested
}

func (s *Session) isPauseRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pauseRequested
}

func (s *Session) isAccepted(partNumber int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.accepted[partNumber]
	return ok
}

func (s *Session) acceptedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, part := range s.parts {
		if _, ok := s.accepted[part.Number]; ok {
			total += part.Size
		}
	}
	return total
}

func (s *Session) inPlan(partNumber int) bool {
	return partNumber >= 1 && partNumber <= len(s.plan)
}

func (s *Session) withSize(receipt Receipt) Receipt {
	if receipt.Size == 0 {
		receipt.Size = s.plan[receipt.PartNumber-1].Size
	}
	return receipt
}

func (s *Session) sortedReceiptsLocked() []Receipt {
	receipts := make([]Receipt, 0, len(s.accepted))
	for _, receipt := range s.accepted {
		receipts = append(receipts, receipt)
	}
	sortReceipts(receipts)
	return receipts
}

func (s *Session) resultLocked() *Result {
	accepted := make([]int, 0, len(s.accepted))
	for n := range s.accepted {
		accepted = append(accepted, n)
	}
	sort.Ints(accepted)

	return &Result{
		Status:        s.status,
		TaskID:        s.opts.TaskID,
		UploadID:      s.uploadID,
		Reference:     s.reference,
		AcceptedParts: accepted,
		Progress:      s.tracker.Snapshot(),
	}
}

func wrapWith(sentinel error, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func detectContentType(source io.ReaderAt, size int64) string {
	if source == nil || size == 0 {
		return defaultContentType
	}

	mtype, err := mimetype.DetectReader(io.NewSectionReader(source, 0, min(size, 3072)))
	if err != nil {
		return defaultContentType
	}

	return mtype.String()
}
