package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/gateways"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/upload"
)

// S3API is the subset of the s3 client used for multipart uploads.
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListParts(ctx context.Context, params *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Gateway uploads straight into an S3 bucket using its multipart api.
type Gateway struct {
	client S3API
	bucket string
	prefix string
}

// New loads credentials from the default aws chain.
func New(ctx context.Context, c config.S3GatewayConfig) (*Gateway, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})

	return NewWithClient(client, c.Bucket, c.Prefix), nil
}

func NewWithClient(client S3API, bucket string, prefix string) *Gateway {
	return &Gateway{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (g *Gateway) Initiate(ctx context.Context, request upload.InitiateRequest) (*upload.InitiateResponse, error) {
	key := gateways.ObjectKey(g.prefix, request)

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}
	if request.ContentType != "" {
		input.ContentType = aws.String(request.ContentType)
	}

	output, err := g.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: creating multipart upload for %s: %w", upload.ErrInitiation, key, err)
	}

	return &upload.InitiateResponse{
		TaskID:      request.TaskID,
		UploadID:    gateways.EncodeUploadID(key, aws.ToString(output.UploadId)),
		TotalChunks: upload.TotalChunks(request.TotalBytes, request.ChunkSize),
	}, nil
}

func (g *Gateway) UploadPart(ctx context.Context, uploadID string, part upload.Part, payload io.ReadSeeker, onProgress upload.ProgressFunc) (upload.Receipt, error) {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: %w", upload.ErrTransfer, err)
	}

	output, err := g.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(multipartId),
		PartNumber:    aws.Int32(int32(part.Number)),
		ContentLength: aws.Int64(part.Size),
		Body: &upload.ProgressReader{
			Reader:     payload,
			Total:      part.Size,
			OnProgress: onProgress,
		},
	})
	if err != nil {
		return upload.Receipt{}, fmt.Errorf("%w: %w", upload.ErrTransfer, err)
	}

	return upload.Receipt{
		PartNumber: part.Number,
		ETag:       aws.ToString(output.ETag),
		Size:       part.Size,
	}, nil
}

func (g *Gateway) ListAcceptedParts(ctx context.Context, uploadID string) ([]upload.Receipt, error) {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upload.ErrReconciliation, err)
	}

	var receipts []upload.Receipt
	var marker *string
	for {
		output, err := g.client.ListParts(ctx, &s3.ListPartsInput{
			Bucket:           aws.String(g.bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(multipartId),
			PartNumberMarker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", upload.ErrReconciliation, err)
		}

		for _, part := range output.Parts {
			receipts = append(receipts, upload.Receipt{
				PartNumber: int(aws.ToInt32(part.PartNumber)),
				ETag:       aws.ToString(part.ETag),
				Size:       aws.ToInt64(part.Size),
			})
		}

		if !aws.ToBool(output.IsTruncated) || output.NextPartNumberMarker == nil {
			return receipts, nil
		}
		marker = output.NextPartNumberMarker
	}
}

func (g *Gateway) Complete(ctx context.Context, uploadID string, parts []upload.Receipt) (string, error) {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}

	completed := make([]types.CompletedPart, len(parts))
	for i, part := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(int32(part.PartNumber)),
		}
	}

	output, err := g.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(multipartId),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", upload.ErrCompletion, err)
	}

	if location := aws.ToString(output.Location); location != "" {
		return location, nil
	}

	return gateways.Reference(g.bucket, key), nil
}

func (g *Gateway) Abort(ctx context.Context, uploadID string) error {
	key, multipartId, err := gateways.DecodeUploadID(uploadID)
	if err != nil {
		return err
	}

	_, err = g.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(multipartId),
	})
	if isNoSuchUpload(err) {
		logging.Logger.Debugf("multipart upload %s of %s is already gone", multipartId, key)
		return nil
	}

	return err
}

func isNoSuchUpload(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload"
}
