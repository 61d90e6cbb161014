package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/upload"
)

const ContentSha256Header = "X-Content-Sha256"

type initiateRequest struct {
	TaskID      string `json:"task_id,omitempty"`
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	FileRole    string `json:"file_role"`
	ChunkSize   int64  `json:"chunk_size"`
	ContentType string `json:"content_type,omitempty"`
}

type initiateResponse struct {
	TaskID      string        `json:"task_id"`
	UploadID    string        `json:"upload_id"`
	TotalChunks int           `json:"total_chunks"`
	Parts       []upload.Part `json:"parts"`
}

type listPartsResponse struct {
	Parts []upload.Receipt `json:"parts"`
}

type completeRequest struct {
	Parts []upload.Receipt `json:"parts"`
}

type completeResponse struct {
	FilePath string `json:"file_path"`
}

type errorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Gateway talks to the chunkyard upload api.
type Gateway struct {
	client  *retryablehttp.Client
	baseUrl string
	token   string
}

func New(c config.HttpGatewayConfig) *Gateway {
	client := retryablehttp.NewClient()
	client.RetryMax = c.RetryMax
	client.HTTPClient.Timeout = c.Timeout
	client.Logger = logging.Leveled{Logger: logging.Logger}

	return NewWithClient(client, c.BaseUrl, c.Token)
}

func NewWithClient(client *retryablehttp.Client, baseUrl string, token string) *Gateway {
	return &Gateway{
		client:  client,
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		token:   token,
	}
}

func (g *Gateway) Initiate(ctx context.Context, request upload.InitiateRequest) (*upload.InitiateResponse, error) {
	body, err := json.Marshal(initiateRequest{
		TaskID:      request.TaskID,
		Filename:    request.Filename,
		FileSize:    request.TotalBytes,
		FileRole:    string(request.FileRole),
		ChunkSize:   request.ChunkSize,
		ContentType: request.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrInitiation, err)
	}

	req, err := g.newRequest(ctx, http.MethodPost, g.url("uploads"), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrInitiation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var response initiateResponse
	err = g.do(req, http.StatusCreated, &response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrInitiation, err)
	}

	return &upload.InitiateResponse{
		TaskID:      response.TaskID,
		UploadID:    response.UploadID,
		TotalChunks: response.TotalChunks,
		Parts:       response.Parts,
	}, nil
}

func (g *Gateway) UploadPart(ctx context.Context, uploadID string, part upload.Part, payload io.ReadSeeker, onProgress upload.ProgressFunc) (upload.Receipt, error) {
	checksum, err := sha256Of(payload)
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: hashing part: %w", upload.ErrTransfer, err)
	}

	partUrl := part.ServerHandle
	if partUrl == "" {
		partUrl = g.url("uploads", uploadID, "parts", fmt.Sprint(part.Number))
	}

	body := &upload.ProgressReader{
		Reader:     payload,
		Total:      part.Size,
		OnProgress: onProgress,
	}

	req, err := g.newRequest(ctx, http.MethodPut, partUrl, body)
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: %w", upload.ErrTransfer, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(ContentSha256Header, checksum)

	// retryablehttp does not set the length for io.ReadSeeker bodies
	req.ContentLength = part.Size

	var receipt upload.Receipt
	err = g.do(req, http.StatusOK, &receipt)
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: %w", upload.ErrTransfer, err)
	}

	if receipt.ETag != "" && receipt.ETag != checksum {
		return upload.Receipt{}, fmt.Errorf("%w: server acknowledged checksum %s, sent %s", upload.ErrTransfer, receipt.ETag, checksum)
	}

	return receipt, nil
}

func (g *Gateway) ListAcceptedParts(ctx context.Context, uploadID string) ([]upload.Receipt, error) {
	req, err := g.newRequest(ctx, http.MethodGet, g.url("uploads", uploadID, "parts"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrReconciliation, err)
	}

	var response listPartsResponse
	err = g.do(req, http.StatusOK, &response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrReconciliation, err)
	}

	return response.Parts, nil
}

func (g *Gateway) Complete(ctx context.Context, uploadID string, parts []upload.Receipt) (string, error) {
	body, err := json.Marshal(completeRequest{Parts: parts})
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}

	req, err := g.newRequest(ctx, http.MethodPost, g.url("uploads", uploadID, "complete"), body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var response completeResponse
	err = g.do(req, http.StatusOK, &response)
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}

	return response.FilePath, nil
}

func (g *Gateway) Abort(ctx context.Context, uploadID string) error {
	req, err := g.newRequest(ctx, http.MethodDelete, g.url("uploads", uploadID), nil)
	if err != nil {
		return err
	}

	err = g.do(req, http.StatusNoContent, nil)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil
	}

	return err
}

func (g *Gateway) url(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}

	return g.baseUrl + "/api/v1/" + strings.Join(escaped, "/")
}

func (g *Gateway) newRequest(ctx context.Context, method string, target string, body interface{}) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	if g.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.token))
	}

	return req, nil
}

func (g *Gateway) do(req *retryablehttp.Request, expectedStatus int, response any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			logging.Logger.Warnf("failed to close response body: %s", err)
		}
	}(resp.Body)

	if resp.StatusCode != expectedStatus {
		return unwrapError(resp)
	}

	if response == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// StatusError is returned for unexpected response codes.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func unwrapError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return err
	}

	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}

	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && len(parsed.Errors) > 0 {
		statusErr.Code = parsed.Errors[0].Code
		statusErr.Message = parsed.Errors[0].Message
	}

	return statusErr
}

func sha256Of(payload io.ReadSeeker) (string, error) {
	hasher := sha256.New()

	_, err := io.Copy(hasher, payload)
	if err != nil {
		return "", err
	}

	_, err = payload.Seek(0, io.SeekStart)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
