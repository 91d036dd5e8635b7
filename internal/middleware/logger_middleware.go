package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"superid/internal/logging"

	"github.com/google/uuid"
)

const requestInfoKey contextKey = "requestInfo"

// requestInfo is filled in by inner middleware so the access log can report
// who made the request.
type requestInfo struct {
	id     string
	userID string
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}

// RequestID returns the id LoggerMiddleware assigned to the request.
func RequestID(ctx context.Context) string {
	if info := requestInfoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func LoggerMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{id: uuid.New().String()}
			ctx := context.WithValue(r.Context(), requestInfoKey, info)
			w.Header().Set("X-Request-ID", info.id)

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r.WithContext(ctx))

			userID := info.userID
			if userID == "" {
				userID = "anonymous"
			}

			args := []any{
				"request_id", info.id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", rw.statusCode,
				"duration", time.Since(start),
				"user", userID,
			}
			if rw.statusCode >= http.StatusInternalServerError {
				logger.Error(ctx, "request", args...)
				return
			}
			logger.Info(ctx, "request", args...)
		})
	}
}
