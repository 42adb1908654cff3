package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pkt.systems/pslog"
)

func loggedEntry(t *testing.T, method, target string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	mux := http.NewServeMux()
	noop := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	mux.HandleFunc("DELETE /api/sessions/{id}", noop)
	mux.HandleFunc("GET /api/windows/{id}/status", noop)
	mux.HandleFunc("GET /api/sessions", noop)

	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(pslog.ContextWithLogger(context.Background(), logger))
	withRequestLogging(mux).ServeHTTP(httptest.NewRecorder(), req)

	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	entry := map[string]any{}
	if err := json.Unmarshal(bytes.TrimSpace(line), &entry); err != nil {
		t.Fatalf("parse log entry %q: %v", line, err)
	}
	return entry
}

func TestRequestLogNamesSession(t *testing.T) {
	entry := loggedEntry(t, http.MethodDelete, "/api/sessions/abc-123")
	if entry["session"] != "abc-123" {
		t.Fatalf("expected session field, got %+v", entry)
	}
	if entry["route"] != "DELETE /api/sessions/{id}" {
		t.Fatalf("expected route field, got %+v", entry)
	}
	if _, ok := entry["window"]; ok {
		t.Fatalf("unexpected window field, got %+v", entry)
	}
}

func TestRequestLogNamesWindow(t *testing.T) {
	entry := loggedEntry(t, http.MethodGet, "/api/windows/42/status")
	if entry["window"] != "42" {
		t.Fatalf("expected window field from path, got %+v", entry)
	}
	entry = loggedEntry(t, http.MethodGet, "/api/sessions?window=7")
	if entry["window"] != "7" {
		t.Fatalf("expected window field from query, got %+v", entry)
	}
	if _, ok := entry["session"]; ok {
		t.Fatalf("unexpected session field, got %+v", entry)
	}
}
