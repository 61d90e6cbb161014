package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/change"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/utils/pointer"
)

type UploadStatus string

const (
	UploadStatusInProgress UploadStatus = "in_progress"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusAborted    UploadStatus = "aborted"
)

type UploadChange int

const (
	UploadChangeStatus UploadChange = iota
	UploadChangeFilePath
	UploadChangeBackendState
)

type Upload struct {
	BaseModel
	change.List[UploadChange]

	taskId       string
	filename     string
	fileRole     string
	contentType  string
	fileSize     int64
	chunkSize    int64
	totalChunks  int
	status       UploadStatus
	filePath     string
	backendState storageBackends.StorageBackendState
}

func NewUpload(taskId string, filename string, fileRole string, contentType string, fileSize int64, chunkSize int64, totalChunks int) *Upload {
	return &Upload{
		BaseModel:   NewBaseModel(),
		List:        change.NewChanges[UploadChange](),
		taskId:      taskId,
		filename:    filename,
		fileRole:    fileRole,
		contentType: contentType,
		fileSize:    fileSize,
		chunkSize:   chunkSize,
		totalChunks: totalChunks,
		status:      UploadStatusInProgress,
	}
}

func NewUploadFromDB(
	base BaseModel,
	taskId string,
	filename string,
	fileRole string,
	contentType string,
	fileSize int64,
	chunkSize int64,
	totalChunks int,
	status UploadStatus,
	filePath string,
	backendState storageBackends.StorageBackendState,
) *Upload {
	return &Upload{
		BaseModel:    base,
		List:         change.NewChanges[UploadChange](),
		taskId:       taskId,
		filename:     filename,
		fileRole:     fileRole,
		contentType:  contentType,
		fileSize:     fileSize,
		chunkSize:    chunkSize,
		totalChunks:  totalChunks,
		status:       status,
		filePath:     filePath,
		backendState: backendState,
	}
}

func (u *Upload) GetTaskId() string {
	return u.taskId
}

func (u *Upload) GetFilename() string {
	return u.filename
}

func (u *Upload) GetFileRole() string {
	return u.fileRole
}

func (u *Upload) GetContentType() string {
	return u.contentType
}

func (u *Upload) GetFileSize() int64 {
	return u.fileSize
}

func (u *Upload) GetChunkSize() int64 {
	return u.chunkSize
}

func (u *Upload) GetTotalChunks() int {
	return u.totalChunks
}

func (u *Upload) GetStatus() UploadStatus {
	return u.status
}

func (u *Upload) SetStatus(status UploadStatus) {
	if u.status == status {
		return
	}

	u.status = status
	u.touch()
	u.TrackChange(UploadChangeStatus)
}

func (u *Upload) GetFilePath() string {
	return u.filePath
}

func (u *Upload) SetFilePath(filePath string) {
	if u.filePath == filePath {
		return
	}

	u.filePath = filePath
	u.touch()
	u.TrackChange(UploadChangeFilePath)
}

func (u *Upload) GetBackendState() storageBackends.StorageBackendState {
	return u.backendState
}

func (u *Upload) SetBackendState(state storageBackends.StorageBackendState) {
	u.backendState = state
	u.touch()
	u.TrackChange(UploadChangeBackendState)
}

type UploadFilter struct {
	Id     *uuid.UUID
	TaskId *string
	Status *UploadStatus
}

func NewUploadFilter() *UploadFilter {
	return &UploadFilter{}
}

func (f *UploadFilter) clone() *UploadFilter {
	cloned := *f
	return &cloned
}

func (f *UploadFilter) ById(id uuid.UUID) *UploadFilter {
	cloned := f.clone()
	cloned.Id = pointer.To(id)
	return cloned
}

func (f *UploadFilter) HasId() bool {
	return f.Id != nil
}

func (f *UploadFilter) GetId() uuid.UUID {
	return pointer.DerefOrZero(f.Id)
}

func (f *UploadFilter) ByTaskId(taskId string) *UploadFilter {
	cloned := f.clone()
	cloned.TaskId = pointer.To(taskId)
	return cloned
}

func (f *UploadFilter) HasTaskId() bool {
	return f.TaskId != nil
}

func (f *UploadFilter) GetTaskId() string {
	return pointer.DerefOrZero(f.TaskId)
}

func (f *UploadFilter) ByStatus(status UploadStatus) *UploadFilter {
	cloned := f.clone()
	cloned.Status = pointer.To(status)
	return cloned
}

func (f *UploadFilter) HasStatus() bool {
	return f.Status != nil
}

func (f *UploadFilter) GetStatus() UploadStatus {
	return pointer.DerefOrZero(f.Status)
}

type UploadRepository interface {
	Single(ctx context.Context, filter *UploadFilter) (*Upload, error)
	First(ctx context.Context, filter *UploadFilter) (*Upload, error)
	List(ctx context.Context, filter *UploadFilter) ([]*Upload, int, error)
	Insert(upload *Upload)
	Update(upload *Upload)
}
