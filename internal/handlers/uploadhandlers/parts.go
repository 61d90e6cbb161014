package uploadhandlers

import (
	"net/http"

	"github.com/The127/ioc"
	"github.com/The127/mediatr"
	"github.com/the127/chunkyard/internal/commands"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/queries"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

const ContentSha256Header = "X-Content-Sha256"

type PartResponse struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}

func UploadPart(w http.ResponseWriter, r *http.Request) {
	uploadId, err := uploadIdFromRoute(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	partNumber, err := partNumberFromRoute(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	response, err := mediatr.Send[*commands.UploadPartResponse](ctx, mediator, commands.UploadPart{
		UploadId:      uploadId,
		PartNumber:    partNumber,
		ContentLength: r.ContentLength,
		Sha256:        r.Header.Get(ContentSha256Header),
		Body:          r.Body,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	writeJson(w, http.StatusOK, PartResponse{
		PartNumber: response.PartNumber,
		ETag:       response.ETag,
		Size:       response.Size,
	})
}

type ListPartsResponse struct {
	Parts []PartResponse `json:"parts"`
}

func ListParts(w http.ResponseWriter, r *http.Request) {
	uploadId, err := uploadIdFromRoute(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	parts, err := mediatr.Send[*queries.ListUploadPartsResponse](ctx, mediator, queries.ListUploadParts{
		UploadId: uploadId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	response := ListPartsResponse{
		Parts: make([]PartResponse, len(parts.Items)),
	}
	for i, part := range parts.Items {
		response.Parts[i] = PartResponse{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
			Size:       part.Size,
		}
	}

	writeJson(w, http.StatusOK, response)
}
