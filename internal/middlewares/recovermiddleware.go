package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

// RecoverMiddleware turns a panicking handler into a 500 error response.
func RecoverMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logging.Logger.Errorf("recovered from panic in %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
					apiError.WriteError(w, http.StatusInternalServerError, apiError.CodeInternal, "Internal Server Error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
