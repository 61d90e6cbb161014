package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/The127/ioc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/suite"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/gateways/httpapi"
	"github.com/the127/chunkyard/internal/middlewares/authentication"
	"github.com/the127/chunkyard/internal/server"
	"github.com/the127/chunkyard/internal/services/kv"
	"github.com/the127/chunkyard/internal/setup"
	"github.com/the127/chunkyard/internal/upload"
)

const content = "0123456789abcdefghijKLMNO"

type GatewayTestSuite struct {
	suite.Suite
	server  *httptest.Server
	token   string
	gateway *httpapi.Gateway
	store   upload.CheckpointStore
}

func TestGatewayTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(GatewayTestSuite))
}

func (s *GatewayTestSuite) SetupTest() {
	serverConfig := config.ServerConfig{
		Auth: config.AuthConfig{
			Secret: "integration-secret",
			Issuer: "chunkyard",
		},
	}

	dc := ioc.NewDependencyCollection()
	setup.Clock(dc)
	setup.Database(dc, config.DatabaseConfig{Mode: config.DatabaseModeInMemory})
	setup.Blob(dc, config.BlobStorageConfig{Mode: config.BlobStorageModeInMemory})
	setup.Mediator(dc)

	s.server = httptest.NewServer(server.NewRouter(dc.BuildProvider(), serverConfig))
	s.T().Cleanup(s.server.Close)

	token, err := authentication.IssueToken(serverConfig.Auth, "integration", time.Hour, time.Now())
	s.Require().NoError(err)
	s.token = token

	s.gateway = s.newGateway(token)
	s.store = upload.NewKvCheckpointStore(kv.NewMemoryStore())
}

func (s *GatewayTestSuite) newGateway(token string) *httpapi.Gateway {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil

	return httpapi.NewWithClient(client, s.server.URL+"/", token)
}

func (s *GatewayTestSuite) newSession(gateway upload.Gateway) *upload.Session {
	source := bytes.NewReader([]byte(content))

	session, err := upload.NewSession(upload.Options{
		TaskID:     "task-1",
		FileRole:   upload.FileRolePrimary,
		Filename:   "data.bin",
		Source:     source,
		TotalBytes: int64(source.Len()),
		ChunkSize:  10,
	}, gateway, s.store)
	s.Require().NoError(err)

	return session
}

func (s *GatewayTestSuite) download(objectPath string) (int, string) {
	request, err := http.NewRequest(http.MethodGet, s.server.URL+"/blobs/api/v1/"+objectPath, nil)
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+s.token)

	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	return response.StatusCode, string(body)
}

func (s *GatewayTestSuite) uploadStatus(uploadID string) string {
	request, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/uploads/"+uploadID, nil)
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+s.token)

	response, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer response.Body.Close()
	s.Require().Equal(http.StatusOK, response.StatusCode)

	var dto struct {
		Status string `json:"status"`
	}
	s.Require().NoError(json.NewDecoder(response.Body).Decode(&dto))

	return dto.Status
}

func (s *GatewayTestSuite) TestUploadEndToEnd() {
	// arrange
	session := s.newSession(s.gateway)

	// act
	result, err := session.Start(context.Background())

	// assert
	s.Require().NoError(err)
	s.Equal(upload.StatusCompleted, result.Status)
	s.Equal("task-1/primary/data.bin", result.Reference)

	status, body := s.download(result.Reference)
	s.Equal(http.StatusOK, status)
	s.Equal(content, body)

	checkpoint, err := s.store.Load(context.Background(), "task-1", upload.FileRolePrimary)
	s.Require().NoError(err)
	s.Nil(checkpoint)
}

func (s *GatewayTestSuite) TestResumeAfterFailure() {
	// arrange
	failing := &countingGateway{Gateway: s.gateway, failPart: 2}
	_, err := s.newSession(failing).Start(context.Background())
	s.Require().ErrorIs(err, upload.ErrTransfer)

	counting := &countingGateway{Gateway: s.gateway}

	// act
	result, err := s.newSession(counting).Start(context.Background())

	// assert
	s.Require().NoError(err)
	s.Equal([]int{2, 3}, counting.uploadedParts())
	s.Zero(counting.initiated)

	_, body := s.download(result.Reference)
	s.Equal(content, body)
}

func (s *GatewayTestSuite) TestListAcceptedParts() {
	// arrange
	ctx := context.Background()
	initiated, err := s.gateway.Initiate(ctx, upload.InitiateRequest{
		TaskID:     "task-2",
		Filename:   "data.bin",
		TotalBytes: 4,
		FileRole:   upload.FileRoleAuxiliary,
		ChunkSize:  2,
	})
	s.Require().NoError(err)
	s.Require().Len(initiated.Parts, 2)

	receipt, err := s.gateway.UploadPart(ctx, initiated.UploadID, initiated.Parts[1], bytes.NewReader([]byte("cd")), nil)
	s.Require().NoError(err)

	// act
	receipts, err := s.gateway.ListAcceptedParts(ctx, initiated.UploadID)

	// assert
	s.Require().NoError(err)
	s.Equal([]upload.Receipt{receipt}, receipts)
	s.Equal(2, receipts[0].PartNumber)
}

func (s *GatewayTestSuite) TestCompletionMismatch() {
	// arrange
	ctx := context.Background()
	initiated, err := s.gateway.Initiate(ctx, upload.InitiateRequest{
		TaskID:     "task-3",
		Filename:   "data.bin",
		TotalBytes: 2,
		FileRole:   upload.FileRolePrimary,
		ChunkSize:  2,
	})
	s.Require().NoError(err)

	// act
	_, err = s.gateway.Complete(ctx, initiated.UploadID, []upload.Receipt{{PartNumber: 1, ETag: "never-uploaded"}})

	// assert
	s.ErrorIs(err, upload.ErrCompletion)

	var statusErr *httpapi.StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusBadRequest, statusErr.StatusCode)
}

func (s *GatewayTestSuite) TestAbortIsIdempotent() {
	// arrange
	ctx := context.Background()
	initiated, err := s.gateway.Initiate(ctx, upload.InitiateRequest{
		TaskID:     "task-4",
		Filename:   "data.bin",
		TotalBytes: 2,
		FileRole:   upload.FileRolePrimary,
		ChunkSize:  2,
	})
	s.Require().NoError(err)

	// act
	first := s.gateway.Abort(ctx, initiated.UploadID)
	second := s.gateway.Abort(ctx, initiated.UploadID)

	// assert
	s.NoError(first)
	s.NoError(second)
}

func (s *GatewayTestSuite) TestRejectsMissingToken() {
	// arrange
	gateway := s.newGateway("")

	// act
	_, err := gateway.Initiate(context.Background(), upload.InitiateRequest{
		TaskID:     "task-5",
		Filename:   "data.bin",
		TotalBytes: 1,
		FileRole:   upload.FileRolePrimary,
		ChunkSize:  1,
	})

	// assert
	s.ErrorIs(err, upload.ErrInitiation)

	var statusErr *httpapi.StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusUnauthorized, statusErr.StatusCode)
}

func (s *GatewayTestSuite) TestCancelAbortsServerUpload() {
	// arrange
	ctx := context.Background()
	failing := &countingGateway{Gateway: s.gateway, failPart: 3}
	first, err := s.newSession(failing).Start(ctx)
	s.Require().Error(err)

	// act
	err = s.newSession(s.gateway).Cancel(ctx)

	// assert
	s.Require().NoError(err)

	s.Equal("aborted", s.uploadStatus(first.UploadID))

	checkpoint, err := s.store.Load(ctx, "task-1", upload.FileRolePrimary)
	s.Require().NoError(err)
	s.Nil(checkpoint)
}

// countingGateway records uploaded parts and optionally fails one of them.
type countingGateway struct {
	upload.Gateway
	failPart int

	mu        sync.Mutex
	uploaded  []int
	initiated int
}

func (g *countingGateway) Initiate(ctx context.Context, request upload.InitiateRequest) (*upload.InitiateResponse, error) {
	g.mu.Lock()
	g.initiated++
	g.mu.Unlock()

	return g.Gateway.Initiate(ctx, request)
}

func (g *countingGateway) UploadPart(ctx context.Context, uploadID string, part upload.Part, payload io.ReadSeeker, onProgress upload.ProgressFunc) (upload.Receipt, error) {
	if part.Number == g.failPart {
		return upload.Receipt{}, errors.New("connection reset by peer")
	}

	g.mu.Lock()
	g.uploaded = append(g.uploaded, part.Number)
	g.mu.Unlock()

	return g.Gateway.UploadPart(ctx, uploadID, part, payload, onProgress)
}

func (g *countingGateway) uploadedParts() []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]int(nil), g.uploaded...)
}
