package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration and mount id
func LoggingMiddleware(logger *log.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default status
			}

			next.ServeHTTP(rw, r)

			// The route context is filled in by the router while serving
			mount := "-"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if id := rctx.URLParam("id"); id != "" {
					mount = id
				}
			}

			reqID := chimiddleware.GetReqID(r.Context())
			if reqID == "" {
				reqID = "-"
			}

			logger.Println(FormatLogEntry(r.Method, r.URL.Path, rw.statusCode, time.Since(start), mount) +
				fmt.Sprintf(" bytes=%d req_id=%s", rw.written, reqID))
		})
	}
}

// FormatLogEntry formats a consistent log entry
func FormatLogEntry(method, path string, status int, duration time.Duration, mount string) string {
	return fmt.Sprintf(
		"method=%s path=%s status=%d duration=%s mount=%s",
		method,
		path,
		status,
		duration.Round(time.Millisecond),
		mount,
	)
}
