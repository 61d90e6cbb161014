package miniostore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/gateways"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/upload"
)

const listPageSize = 1000

// Core is the part of minio.Core the gateway needs.
type Core interface {
	NewMultipartUpload(ctx context.Context, bucket string, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(ctx context.Context, bucket string, object string, uploadID string, partID int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error)
	ListObjectParts(ctx context.Context, bucket string, object string, uploadID string, partNumberMarker int, maxParts int) (minio.ListObjectPartsResult, error)
	CompleteMultipartUpload(ctx context.Context, bucket string, object string, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket string, object string, uploadID string) error
}

type Gateway struct {
	core   Core
	bucket string
	prefix string
}

func New(c config.MinioGatewayConfig) (*Gateway, error) {
	core, err := minio.NewCore(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSsl,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client for %s: %w", c.Endpoint, err)
	}

	return NewWithCore(core, c.Bucket, c.Prefix), nil
}

func NewWithCore(core Core, bucket string, prefix string) *Gateway {
	return &Gateway{
		core:   core,
		bucket: bucket,
		prefix: prefix,
	}
}

func (g *Gateway) Initiate(ctx context.Context, request upload.InitiateRequest) (*upload.InitiateResponse, error) {
	key := gateways.ObjectKey(g.prefix, request)

	multipartId, err := g.core.NewMultipartUpload(ctx, g.bucket, key, minio.PutObjectOptions{
		ContentType: request.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating multipart upload for %s: %w", upload.ErrInitiation, key, err)
	}

	return &upload.InitiateResponse{
		TaskID:      request.TaskID,
		UploadID:    gateways.EncodeUploadID(key, multipartId),
		TotalChunks: upload.TotalChunks(request.TotalBytes, request.ChunkSize),
	}, nil
}

func (g *Gateway) UploadPart(ctx context.Context, uploadID string, part upload.Part, payload io.ReadSeeker, onProgress upload.ProgressFunc) (upload.Receipt, error) {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: %w", upload.ErrTransfer, err)
	}

	body := &upload.ProgressReader{
		Reader:     payload,
		Total:      part.Size,
		OnProgress: onProgress,
	}

	objectPart, err := g.core.PutObjectPart(ctx, g.bucket, key, multipartId, part.Number, body, part.Size, minio.PutObjectPartOptions{})
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: %w", upload.ErrTransfer, err)
	}

	return upload.Receipt{
		PartNumber: part.Number,
		ETag:       objectPart.ETag,
		Size:       part.Size,
	}, nil
}

func (g *Gateway) ListAcceptedParts(ctx context.Context, uploadID string) ([]upload.Receipt, error) {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrReconciliation, err)
	}

	var receipts []upload.Receipt
	marker := 0
	for {
		result, err := g.core.ListObjectParts(ctx, g.bucket, key, multipartId, marker, listPageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", upload.ErrReconciliation, err)
		}

		for _, part := range result.ObjectParts {
			receipts = append(receipts, upload.Receipt{
				PartNumber: part.PartNumber,
				ETag:       part.ETag,
				Size:       part.Size,
			})
		}

		if !result.IsTruncated || result.NextPartNumberMarker <= marker {
			return receipts, nil
		}
		marker = result.NextPartNumberMarker
	}
}

func (g *Gateway) Complete(ctx context.Context, uploadID string, parts []upload.Receipt) (string, error) {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}

	completed := make([]minio.CompletePart, len(parts))
	for i, part := range parts {
		completed[i] = minio.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		}
	}

	info, err := g.core.CompleteMultipartUpload(ctx, g.bucket, key, multipartId, completed, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}

	if info.Location != "" {
		return info.Location, nil
	}

	return gateways.Reference(g.bucket, key), nil
}

func (g *Gateway) Abort(ctx context.Context, uploadID string) error {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return err
	}

	err = g.core.AbortMultipartUpload(ctx, g.bucket, key, multipartId)
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchUpload" {
		logging.Logger.Debugf("multipart upload %s of %s is already gone", multipartId, key)
		return nil
	}

	return err
}
