package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/mimic/pkg/metrics"
)

// MetricsMiddleware records request count, latency and failures for endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, elapsedMs)

		if kind := failureKind(rec.status); kind != "" {
			metrics.RecordErrorByComponent("http", kind)
		}
	}
}

// failureKind buckets error statuses; successes return "".
func failureKind(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusUnprocessableEntity:
		return "invalid_artifact"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return ""
	}
}

// statusRecorder remembers the status written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
