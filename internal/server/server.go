package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/The127/ioc"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/handlers/blobhandlers"
	"github.com/the127/chunkyard/internal/handlers/uploadhandlers"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/middlewares/authentication"
	"github.com/the127/chunkyard/internal/utils/apiError"

	gh "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func Serve(root *ioc.DependencyProvider, serverConfig config.ServerConfig) *http.Server {
	addr := fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port)
	logging.Logger.Infof("Starting server on %s", addr)
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(root, serverConfig),
	}

	go serve(srv)

	return srv
}

func Shutdown(ctx context.Context, srv *http.Server) error {
	logging.Logger.Infof("Stopping server on %s", srv.Addr)
	return srv.Shutdown(ctx)
}

func serve(srv *http.Server) {
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(fmt.Errorf("error while running server: %w", err))
	}
}

func NewRouter(root *ioc.DependencyProvider, serverConfig config.ServerConfig) *mux.Router {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Logger.Infof("Not found API Request: %s %s", r.Method, r.URL.Path)
		apiError.WriteError(w, http.StatusNotFound, apiError.CodeNotFound, "route not found")
	})

	r.Use(middlewares.RecoverMiddleware())
	r.Use(middlewares.LoggingMiddleware())
	r.Use(middlewares.ScopeMiddleware(root))

	r.Use(gh.CORS(
		gh.AllowedOrigins(serverConfig.AllowedOrigins),
		gh.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE"}),
		gh.AllowedHeaders([]string{"Authorization", "Content-Type", uploadhandlers.ContentSha256Header}),
		gh.AllowCredentials(),
		gh.MaxAge(3600),
	))

	mapApi(r, serverConfig)
	mapBlobApi(r, serverConfig)

	return r
}

func mapBlobApi(r *mux.Router, serverConfig config.ServerConfig) {
	apiRouter := r.PathPrefix("/blobs/api/v1").Subrouter()
	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	authApiRouter := apiRouter.PathPrefix("").Subrouter()
	authApiRouter.Use(authentication.ApiAuthenticationMiddleware(serverConfig.Auth))

	authApiRouter.HandleFunc("/{path:.+}", blobhandlers.DownloadObject).Methods(http.MethodGet, http.MethodOptions)
}

func mapApi(r *mux.Router, serverConfig config.ServerConfig) {
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// unauthenticated endpoints need to go above the authentication middleware
	authApiRouter := apiRouter.PathPrefix("").Subrouter()
	authApiRouter.Use(authentication.ApiAuthenticationMiddleware(serverConfig.Auth))

	authApiRouter.HandleFunc("/uploads", uploadhandlers.InitiateUpload).Methods(http.MethodPost, http.MethodOptions)
	authApiRouter.HandleFunc("/uploads", uploadhandlers.ListUploads).Methods(http.MethodGet, http.MethodOptions)
	authApiRouter.HandleFunc("/uploads/{uploadId}", uploadhandlers.GetUpload).Methods(http.MethodGet, http.MethodOptions)
	authApiRouter.HandleFunc("/uploads/{uploadId}", uploadhandlers.AbortUpload).Methods(http.MethodDelete, http.MethodOptions)

	authApiRouter.HandleFunc("/uploads/{uploadId}/parts", uploadhandlers.ListParts).Methods(http.MethodGet, http.MethodOptions)
	authApiRouter.HandleFunc("/uploads/{uploadId}/parts/{partNumber}", uploadhandlers.UploadPart).Methods(http.MethodPut, http.MethodOptions)

	authApiRouter.HandleFunc("/uploads/{uploadId}/complete", uploadhandlers.CompleteUpload).Methods(http.MethodPost, http.MethodOptions)
}
