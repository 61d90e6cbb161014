package setup

import (
	"context"
	"fmt"

	"github.com/The127/ioc"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/gateways/httpapi"
	"github.com/the127/chunkyard/internal/gateways/miniostore"
	"github.com/the127/chunkyard/internal/gateways/s3store"
	"github.com/the127/chunkyard/internal/services/kv"
	"github.com/the127/chunkyard/internal/upload"
)

// Gateway registers the upload gateway selected by c.Gateway.
func Gateway(ctx context.Context, dc *ioc.DependencyCollection, c config.UploadConfig) {
	gateway := newGateway(ctx, c)

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) upload.Gateway {
		return gateway
	})
}

func newGateway(ctx context.Context, c config.UploadConfig) upload.Gateway {
	switch c.Gateway {
	case config.GatewayModeHttp:
		return httpapi.New(c.Http)

	case config.GatewayModeS3:
		gateway, err := s3store.New(ctx, c.S3)
		if err != nil {
			panic(fmt.Errorf("failed to create s3 gateway: %w", err))
		}
		return gateway

	case config.GatewayModeMinio:
		gateway, err := miniostore.New(c.Minio)
		if err != nil {
			panic(fmt.Errorf("failed to create minio gateway: %w", err))
		}
		return gateway

	default:
		panic(fmt.Errorf("unsupported upload gateway: %s", c.Gateway))
	}
}

// Checkpoints registers the checkpoint store on top of the kv store. Kv must
// be registered as well.
func Checkpoints(dc *ioc.DependencyCollection, c config.UploadConfig) {
	ioc.RegisterSingleton(dc, func(dp *ioc.DependencyProvider) upload.CheckpointStore {
		store := ioc.GetDependency[kv.Store](dp)

		var opts []kv.Option
		if c.CheckpointTtl > 0 {
			opts = append(opts, kv.WithExpiration(c.CheckpointTtl))
		}

		return upload.NewKvCheckpointStore(store, opts...)
	})
}
