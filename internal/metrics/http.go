package metrics

import (
	"net/http"
	"strings"
	"time"
)

// HTTPMiddleware wraps an HTTP handler to collect request count, duration
// and in-flight metrics.
func HTTPMiddleware(m *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RecordHTTP(r.Method, normalizePath(r.URL.Path), wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(w.statusCode)
	}
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

var knownPaths = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/metrics":                true,
	"/v1/version":             true,
	"/v1/catalog":             true,
	"/v1/baselines":           true,
	"/v1/evaluations":         true,
	"/v1/evaluations/compare": true,
	"/v1/evaluations/export":  true,
	"/v1/evaluations/recent":  true,
}

// normalizePath maps unknown paths to a single label value.
func normalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	if knownPaths[path] {
		return path
	}
	return "other"
}
