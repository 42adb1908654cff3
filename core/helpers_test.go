package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"pkt.systems/tabkeeper/internal/badge"
	"pkt.systems/tabkeeper/internal/persist"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/internal/windowhost/memhost"
	"pkt.systems/tabkeeper/schema"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type eventRecorder struct {
	mu     sync.Mutex
	events []schema.SessionEvent
}

func (r *eventRecorder) OnSessionEvent(event schema.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(typ schema.SessionEventType) []schema.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schema.SessionEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc     *service
	host    *memhost.Host
	store   *persist.MemoryStore
	adapter *sessionstore.Adapter
	painted *badge.Recorder
	events  *eventRecorder
	sleeps  int
}

func newFixture(t *testing.T, cfg schema.ServiceConfig, host *memhost.Host, sessions ...schema.Session) *fixture {
	t.Helper()
	if host == nil {
		host = memhost.New()
	}
	f := &fixture{
		host:    host,
		store:   persist.NewMemoryStore(sessions...),
		painted: badge.NewRecorder(),
		events:  &eventRecorder{},
	}
	f.adapter = sessionstore.NewAdapter(f.store, nil, nil)
	t.Cleanup(func() { _ = f.adapter.Close() })
	var sleeper windowhost.Sleeper = func(context.Context) error {
		f.sleeps++
		return nil
	}
	svc, err := NewService(cfg, ServiceDeps{
		Host:      host,
		Store:     f.adapter,
		Presenter: badge.NewPresenter(f.adapter, host, f.painted, nil, nil),
		EventSink: f.events,
		Sleeper:   sleeper,
		Clock:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(svc.Close)
	f.svc = svc.(*service)
	return f
}

func (f *fixture) sessions(t *testing.T) []schema.Session {
	t.Helper()
	out, err := f.store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return out
}

func (f *fixture) session(t *testing.T, id schema.SessionID) schema.Session {
	t.Helper()
	for _, s := range f.sessions(t) {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("session %s not found", id)
	return schema.Session{}
}

func tabs(urls ...string) []schema.TabRecord {
	out := make([]schema.TabRecord, 0, len(urls))
	for _, u := range urls {
		out = append(out, schema.TabRecord{URL: u, Title: u})
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
