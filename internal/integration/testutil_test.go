package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"pkt.systems/tabkeeper/core"
	"pkt.systems/tabkeeper/httpapi"
	"pkt.systems/tabkeeper/internal/badge"
	"pkt.systems/tabkeeper/internal/eventbus"
	"pkt.systems/tabkeeper/internal/metrics"
	"pkt.systems/tabkeeper/internal/persist"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/internal/windowhost/memhost"
	"pkt.systems/tabkeeper/schema"
)

type testServer struct {
	host    *memhost.Host
	service core.Service
	painted *badge.Recorder
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	http    *httptest.Server
}

// newTestServer wires the engine the way serve does, over an in-memory host
// and the given store, with the event loop running.
func newTestServer(t *testing.T, host *memhost.Host, store persist.Store) *testServer {
	t.Helper()
	m := metrics.New()
	adapter := sessionstore.NewAdapter(store, nil, m)
	painted := badge.NewRecorder()
	hub := httpapi.NewHub(100)
	bus := eventbus.New(nil)
	svc, err := core.NewService(schema.ServiceConfig{
		Debounce:       10 * time.Millisecond,
		StartupRetries: 3,
		StartupDelay:   time.Millisecond,
	}, core.ServiceDeps{
		Host:              host,
		Store:             adapter,
		Presenter:         badge.NewPresenter(adapter, host, painted, m, nil),
		EventSink:         core.EventFanout{hub, bus},
		Metrics:           m,
		SchedulerObserver: m,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.Initialize(ctx); err != nil {
			t.Errorf("initialize: %v", err)
		}
		_ = svc.Run(ctx)
	}()
	srv := httptest.NewServer(httpapi.NewServer(httpapi.Config{}, svc, hub, m.Handler()).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		svc.Close()
		_ = adapter.Close()
	})
	return &testServer{host: host, service: svc, painted: painted, bus: bus, metrics: m, http: srv}
}

func (ts *testServer) url(path string) string {
	return ts.http.URL + path
}

func writeJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func readJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode >= 300 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatal(err)
	}
}

func listSessions(t *testing.T, ts *testServer, windowID schema.WindowID) schema.ListSessionsResponse {
	t.Helper()
	resp, err := http.Get(ts.url("/api/sessions?window=" + strconv.FormatInt(int64(windowID), 10)))
	if err != nil {
		t.Fatal(err)
	}
	var out schema.ListSessionsResponse
	readJSON(t, resp, &out)
	return out
}

func records(urls ...string) []schema.TabRecord {
	out := make([]schema.TabRecord, 0, len(urls))
	for _, u := range urls {
		out = append(out, schema.TabRecord{URL: u, Title: u})
	}
	return out
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
