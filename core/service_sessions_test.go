package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/tabkeeper/internal/windowhost/memhost"
	"pkt.systems/tabkeeper/schema"
)

func TestCaptureWindow(t *testing.T) {
	host := memhost.New()
	w := host.AddWindow(
		schema.TabRecord{URL: "https://a.example/", Title: "A", Pinned: true},
		schema.TabRecord{URL: "https://b.example/", Title: "B"},
	)
	f := newFixture(t, schema.ServiceConfig{}, host)
	ctx := context.Background()

	resp, err := f.svc.CaptureWindow(ctx, schema.CaptureWindowRequest{WindowID: w, Name: "  work  "})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got := resp.Session
	if got.ID == "" || got.Name != "work" || !got.BoundTo(w) || len(got.Tabs) != 2 || !got.Tabs[0].Pinned {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.Timestamp.Equal(testNow) {
		t.Fatalf("expected timestamp %v, got %v", testNow, got.Timestamp)
	}
	if st, ok := f.painted.Last(w); !ok || !st.Saved {
		t.Fatalf("expected window painted saved")
	}
	if len(f.events.ofType(schema.SessionEventCreated)) != 1 {
		t.Fatalf("expected created event")
	}

	if _, err := f.svc.CaptureWindow(ctx, schema.CaptureWindowRequest{WindowID: w}); !errors.Is(err, schema.ErrWindowAlreadySaved) {
		t.Fatalf("expected ErrWindowAlreadySaved, got %v", err)
	}
	if _, err := f.svc.CaptureWindow(ctx, schema.CaptureWindowRequest{WindowID: 99}); !errors.Is(err, schema.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	empty := host.AddWindow()
	if _, err := f.svc.CaptureWindow(ctx, schema.CaptureWindowRequest{WindowID: empty}); !errors.Is(err, schema.ErrEmptyWindow) {
		t.Fatalf("expected ErrEmptyWindow, got %v", err)
	}
	if len(f.sessions(t)) != 1 {
		t.Fatalf("rejected captures must not be stored")
	}
}

func TestCaptureWithoutNameIsUnsaved(t *testing.T) {
	host := memhost.New()
	w := host.AddWindow(tabs("https://a.example/")...)
	f := newFixture(t, schema.ServiceConfig{}, host)
	resp, err := f.svc.CaptureWindow(context.Background(), schema.CaptureWindowRequest{WindowID: w, Name: "   "})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if resp.Session.Saved() {
		t.Fatalf("expected an unnamed session")
	}
	if st, _ := f.painted.Last(w); st.Saved {
		t.Fatalf("unnamed session must paint unsaved")
	}
}

func TestRenameSession(t *testing.T) {
	f := newFixture(t, schema.ServiceConfig{}, nil,
		schema.Session{ID: "a", CurrentID: schema.WindowRef(3), Tabs: tabs("https://a.example/")},
	)
	ctx := context.Background()
	resp, err := f.svc.RenameSession(ctx, schema.RenameSessionRequest{SessionID: "a", Name: " reading "})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if resp.Session.Name != "reading" || f.session(t, "a").Name != "reading" {
		t.Fatalf("expected trimmed name, got %q", resp.Session.Name)
	}
	if _, err := f.svc.RenameSession(ctx, schema.RenameSessionRequest{SessionID: "a", Name: "  "}); !errors.Is(err, schema.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := f.svc.RenameSession(ctx, schema.RenameSessionRequest{SessionID: "missing", Name: "x"}); !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if f.session(t, "a").Name != "reading" {
		t.Fatalf("rejected rename must not change the name")
	}
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, schema.ServiceConfig{}, nil,
		schema.Session{ID: "a", Tabs: tabs("https://a.example/")},
		schema.Session{ID: "b", Tabs: tabs("https://b.example/")},
	)
	ctx := context.Background()
	if err := f.svc.DeleteSession(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.sessions(t); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected sessions after delete: %+v", got)
	}
	if err := f.svc.DeleteSession(ctx, "a"); !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	host := memhost.New()
	live := host.AddWindow(tabs("https://a.example/")...)
	f := newFixture(t, schema.ServiceConfig{}, host,
		schema.Session{ID: "old", Name: "old", CurrentID: schema.WindowRef(77), Tabs: tabs("https://x.example/"), Timestamp: schema.Millis(testNow.Add(-time.Hour))},
		schema.Session{ID: "new", Name: "new", CurrentID: schema.WindowRef(live), Tabs: tabs("https://a.example/", "https://b.example/"), Timestamp: schema.Millis(testNow)},
	)
	resp, err := f.svc.ListSessions(context.Background(), schema.ListSessionsRequest{CurrentWindow: schema.WindowRef(live)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Sessions) != 2 || resp.Sessions[0].ID != "new" || resp.Sessions[1].ID != "old" {
		t.Fatalf("expected newest first, got %+v", resp.Sessions)
	}
	first, second := resp.Sessions[0], resp.Sessions[1]
	if !first.Open || !first.Current || first.TabCount != 2 {
		t.Fatalf("unexpected flags on live session: %+v", first)
	}
	if second.Open || second.Current {
		t.Fatalf("stale binding must not be open: %+v", second)
	}
	if !resp.CurrentSaved {
		t.Fatalf("expected current window reported saved")
	}
}

func TestOpenSessionFocusesLiveWindow(t *testing.T) {
	host := memhost.New()
	w := host.AddWindow(tabs("https://a.example/")...)
	f := newFixture(t, schema.ServiceConfig{}, host,
		schema.Session{ID: "a", Name: "a", CurrentID: schema.WindowRef(w), Tabs: tabs("https://a.example/")},
	)
	resp, err := f.svc.OpenSession(context.Background(), "a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if resp.Created || resp.WindowID != w {
		t.Fatalf("expected focus of window %d, got %+v", w, resp)
	}
	if host.Focused() != w {
		t.Fatalf("expected window focused")
	}
	if len(host.Creations()) != 0 {
		t.Fatalf("focus must not create tabs")
	}
}

func TestOpenSessionMaterializesClosedSession(t *testing.T) {
	f := newFixture(t, schema.ServiceConfig{}, nil,
		schema.Session{ID: "a", Name: "a", CurrentID: schema.WindowRef(40), Tabs: []schema.TabRecord{
			{URL: "https://a.example/", Pinned: true},
			{URL: "https://b.example/"},
		}},
		schema.Session{ID: "b", Tabs: tabs("https://z.example/")},
	)
	resp, err := f.svc.OpenSession(context.Background(), "a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !resp.Created {
		t.Fatalf("expected a new window")
	}
	if !f.session(t, "a").BoundTo(resp.WindowID) {
		t.Fatalf("expected session bound to the new window")
	}
	if st, ok := f.painted.Last(resp.WindowID); !ok || !st.Saved {
		t.Fatalf("expected new window painted saved")
	}
	if len(f.events.ofType(schema.SessionEventBound)) != 1 {
		t.Fatalf("expected bound event")
	}
	if _, err := f.svc.OpenSession(context.Background(), "missing"); !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCloseSessionWindow(t *testing.T) {
	host := memhost.New()
	w := host.AddWindow(tabs("https://a.example/")...)
	f := newFixture(t, schema.ServiceConfig{}, host,
		schema.Session{ID: "a", CurrentID: schema.WindowRef(w), Tabs: tabs("https://a.example/")},
		schema.Session{ID: "b", Tabs: tabs("https://b.example/")},
	)
	ctx := context.Background()
	if err := f.svc.CloseSessionWindow(ctx, "a"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := host.Window(ctx, w); !errors.Is(err, schema.ErrWindowNotFound) {
		t.Fatalf("expected window removed, got %v", err)
	}
	if f.session(t, "a").CurrentID != nil {
		t.Fatalf("expected session unbound")
	}
	if err := f.svc.CloseSessionWindow(ctx, "b"); !errors.Is(err, schema.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound for unbound session, got %v", err)
	}
}

func TestWindowStatus(t *testing.T) {
	f := newFixture(t, schema.ServiceConfig{}, nil,
		schema.Session{ID: "a", Name: "a", CurrentID: schema.WindowRef(1), Tabs: tabs("https://a.example/")},
		schema.Session{ID: "b", CurrentID: schema.WindowRef(2), Tabs: tabs("https://b.example/")},
	)
	ctx := context.Background()
	st, err := f.svc.WindowStatus(ctx, 1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Saved || st.Session != "a" {
		t.Fatalf("expected window 1 saved by a, got %+v", st)
	}
	st, _ = f.svc.WindowStatus(ctx, 2)
	if st.Saved {
		t.Fatalf("unnamed session must not count as saved")
	}
}

func TestNewServiceRequiresHostAndStore(t *testing.T) {
	if _, err := NewService(schema.ServiceConfig{}, ServiceDeps{}); !errors.Is(err, schema.ErrHostUnavailable) {
		t.Fatalf("expected ErrHostUnavailable, got %v", err)
	}
	if _, err := NewService(schema.ServiceConfig{}, ServiceDeps{Host: memhost.New()}); err == nil {
		t.Fatalf("expected missing store error")
	}
}
