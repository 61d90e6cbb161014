package middlewares

import (
	"net/http"
	"time"

	"github.com/the127/chunkyard/internal/logging"

	"github.com/gorilla/mux"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// LoggingMiddleware logs every request with its response status. Part uploads
// are long running so the request size and duration are logged too.
func LoggingMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logging.Logger.Infof("API Request: %s %s -> %d (in %d bytes, out %d bytes, %s)",
				r.Method,
				r.URL.Path,
				recorder.status,
				r.ContentLength,
				recorder.bytes,
				time.Since(started).Round(time.Millisecond))
		})
	}
}
