package blobhandlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/The127/ioc"
	"github.com/gorilla/mux"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/storageBackends"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

func DownloadObject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := middlewares.GetScope(ctx)

	vars := mux.Vars(r)
	objectPath := vars["path"]

	storageBackend := ioc.GetDependency[storageBackends.StorageBackend](scope)
	err := storageBackend.DownloadObject(ctx, w, objectPath)
	switch {
	case errors.Is(err, storageBackends.ErrObjectNotFound):
		apiError.HandleHttpError(w, fmt.Errorf("%s: %w", objectPath, apiError.ErrApiObjectNotFound))

	case errors.Is(err, storageBackends.ErrInvalidObjectPath):
		apiError.HandleHttpError(w, fmt.Errorf("%w: %w", apiError.ErrApiBadRequest, err))

	case err != nil:
		apiError.HandleHttpError(w, err)
	}
}
