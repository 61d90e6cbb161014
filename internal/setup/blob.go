package setup

import (
	"fmt"

	"github.com/The127/ioc"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/storageBackends/directory"
	"github.com/the127/chunkyard/internal/storageBackends/inmemory"
)

func Blob(dc *ioc.DependencyCollection, c config.BlobStorageConfig) {
	backend := newStorageBackend(c)

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) storageBackends.StorageBackend {
		return backend
	})
}

func newStorageBackend(c config.BlobStorageConfig) storageBackends.StorageBackend {
	switch c.Mode {
	case config.BlobStorageModeInMemory:
		return inmemory.New()

	case config.BlobStorageModeDirectory:
		backend, err := directory.New(c.Directory)
		if err != nil {
			panic(fmt.Errorf("failed to create directory storage: %w", err))
		}
		return backend

	default:
		panic(fmt.Errorf("unsupported blob storage mode: %s", c.Mode))
	}
}
