package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/schema"
)

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.writer.(http.Flusher); ok {
		f.Flush()
	}
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path = path + "?" + r.URL.RawQuery
		}
		logger := pslog.Ctx(r.Context()).With("remote", clientIP(r))
		sessionID, windowID := requestTarget(r)
		if sessionID != "" {
			logger = logger.With("session", sessionID)
		}
		if windowID != "" {
			logger = logger.With("window", windowID)
		}
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			logger.Trace("http request", "method", r.Method, "path", path, "status", status)
			return
		}
		logger.Info("http request", "method", r.Method, "route", r.Pattern, "path", path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds())
		logger.Debug("http request details", "ua", r.UserAgent())
	})
}

// requestTarget reports the session or window a matched route addressed. The
// mux records the pattern and path values on the request it serves.
func requestTarget(r *http.Request) (schema.SessionID, string) {
	switch {
	case strings.Contains(r.Pattern, "/api/sessions/{id}"):
		return schema.SessionID(r.PathValue("id")), ""
	case strings.Contains(r.Pattern, "/api/windows/{id}"):
		return "", r.PathValue("id")
	}
	return "", r.URL.Query().Get("window")
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return r.RemoteAddr
}
