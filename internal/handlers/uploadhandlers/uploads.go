package uploadhandlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/The127/ioc"
	"github.com/The127/mediatr"
	"github.com/google/uuid"
	"github.com/the127/chunkyard/internal/commands"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/handlers"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/queries"
	"github.com/the127/chunkyard/internal/repositories"
	"github.com/the127/chunkyard/internal/upload"
	"github.com/the127/chunkyard/internal/utils/apiError"
	"github.com/the127/chunkyard/internal/utils/decoding"
	"github.com/the127/chunkyard/internal/utils/validate"
)

type InitiateUploadRequest struct {
	TaskId      string `json:"task_id"`
	Filename    string `json:"filename" validate:"required"`
	FileSize    int64  `json:"file_size" validate:"gte=0"`
	FileRole    string `json:"file_role" validate:"required,oneof=primary auxiliary"`
	ChunkSize   int64  `json:"chunk_size" validate:"gt=0"`
	ContentType string `json:"content_type"`
}

type InitiateUploadResponse struct {
	TaskId      string        `json:"task_id"`
	UploadId    uuid.UUID     `json:"upload_id"`
	TotalChunks int           `json:"total_chunks"`
	Parts       []upload.Part `json:"parts"`
}

func InitiateUpload(w http.ResponseWriter, r *http.Request) {
	var dto InitiateUploadRequest
	err := decoding.HttpBodyAsJson(w, r, &dto)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	err = validate.Validate(dto)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	response, err := mediatr.Send[*commands.InitiateUploadResponse](ctx, mediator, commands.InitiateUpload{
		TaskId:      dto.TaskId,
		Filename:    dto.Filename,
		FileSize:    dto.FileSize,
		FileRole:    dto.FileRole,
		ChunkSize:   dto.ChunkSize,
		ContentType: dto.ContentType,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	parts := make([]upload.Part, len(response.Parts))
	for i, part := range response.Parts {
		parts[i] = part
		parts[i].ServerHandle = partUrl(config.C.Server.ExternalUrl, response.UploadId, part.Number)
	}

	writeJson(w, http.StatusCreated, InitiateUploadResponse{
		TaskId:      response.TaskId,
		UploadId:    response.UploadId,
		TotalChunks: response.TotalChunks,
		Parts:       parts,
	})
}

func partUrl(externalUrl string, uploadId uuid.UUID, partNumber int) string {
	if externalUrl == "" {
		return ""
	}

	return fmt.Sprintf("%s/api/v1/uploads/%s/parts/%d", strings.TrimSuffix(externalUrl, "/"), uploadId, partNumber)
}

type GetUploadResponse struct {
	Id            uuid.UUID `json:"upload_id"`
	TaskId        string    `json:"task_id"`
	Filename      string    `json:"filename"`
	FileRole      string    `json:"file_role"`
	ContentType   string    `json:"content_type"`
	FileSize      int64     `json:"file_size"`
	ChunkSize     int64     `json:"chunk_size"`
	TotalChunks   int       `json:"total_chunks"`
	AcceptedParts int       `json:"accepted_parts"`
	Status        string    `json:"status"`
	FilePath      string    `json:"file_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toGetUploadResponse(upload queries.GetUploadResponse) GetUploadResponse {
	return GetUploadResponse{
		Id:            upload.Id,
		TaskId:        upload.TaskId,
		Filename:      upload.Filename,
		FileRole:      upload.FileRole,
		ContentType:   upload.ContentType,
		FileSize:      upload.FileSize,
		ChunkSize:     upload.ChunkSize,
		TotalChunks:   upload.TotalChunks,
		AcceptedParts: upload.AcceptedParts,
		Status:        string(upload.Status),
		FilePath:      upload.FilePath,
		CreatedAt:     upload.CreatedAt,
		UpdatedAt:     upload.UpdatedAt,
	}
}

func GetUpload(w http.ResponseWriter, r *http.Request) {
	uploadId, err := uploadIdFromRoute(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	response, err := mediatr.Send[*queries.GetUploadResponse](ctx, mediator, queries.GetUpload{
		UploadId: uploadId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	writeJson(w, http.StatusOK, toGetUploadResponse(*response))
}

type ListUploadsResponse handlers.PagedResponse[GetUploadResponse]

func ListUploads(w http.ResponseWriter, r *http.Request) {
	query := queries.ListUploads{}

	taskId := r.URL.Query().Get("task_id")
	if taskId != "" {
		query.TaskId = &taskId
	}

	status := r.URL.Query().Get("status")
	if status != "" {
		typed := repositories.UploadStatus(status)
		query.Status = &typed
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	uploads, err := mediatr.Send[*queries.ListUploadsResponse](ctx, mediator, query)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	response := ListUploadsResponse{
		Items:      make([]GetUploadResponse, len(uploads.Items)),
		TotalCount: uploads.TotalCount,
	}
	for i, item := range uploads.Items {
		response.Items[i] = toGetUploadResponse(item)
	}

	writeJson(w, http.StatusOK, response)
}

type CompleteUploadRequest struct {
	Parts []CompleteUploadRequestPart `json:"parts" validate:"required,dive"`
}

type CompleteUploadRequestPart struct {
	PartNumber int    `json:"part_number" validate:"gte=1"`
	ETag       string `json:"etag" validate:"required"`
	Size       int64  `json:"size"`
}

type CompleteUploadResponse struct {
	FilePath string `json:"file_path"`
}

func CompleteUpload(w http.ResponseWriter, r *http.Request) {
	uploadId, err := uploadIdFromRoute(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	var dto CompleteUploadRequest
	err = decoding.HttpBodyAsJson(w, r, &dto)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	err = validate.Validate(dto)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	parts := make([]commands.CompletedPart, len(dto.Parts))
	for i, part := range dto.Parts {
		parts[i] = commands.CompletedPart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		}
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	response, err := mediatr.Send[*commands.CompleteUploadResponse](ctx, mediator, commands.CompleteUpload{
		UploadId: uploadId,
		Parts:    parts,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	writeJson(w, http.StatusOK, CompleteUploadResponse{
		FilePath: response.FilePath,
	})
}

func AbortUpload(w http.ResponseWriter, r *http.Request) {
	uploadId, err := uploadIdFromRoute(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	_, err = mediatr.Send[*commands.AbortUploadResponse](ctx, mediator, commands.AbortUpload{
		UploadId: uploadId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
