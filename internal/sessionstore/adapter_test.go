package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pkt.systems/tabkeeper/internal/persist"
	"pkt.systems/tabkeeper/schema"
)

func seed() []schema.Session {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []schema.Session{
		{ID: "a", Name: "alpha", CurrentID: schema.WindowRef(1), Tabs: []schema.TabRecord{{URL: "https://a.example/"}}, Timestamp: schema.Millis(ts)},
		{ID: "b", CurrentID: schema.WindowRef(1), Tabs: []schema.TabRecord{{URL: "https://b.example/"}}, Timestamp: schema.Millis(ts.Add(time.Hour))},
		{ID: "c", Name: "gamma", Tabs: []schema.TabRecord{{URL: "https://c.example/"}}, Timestamp: schema.Millis(ts.Add(-time.Hour))},
	}
}

func TestUpdateWritesOnlyOnChange(t *testing.T) {
	store := persist.NewMemoryStore(seed()...)
	a := NewAdapter(store, nil, nil)
	defer func() { _ = a.Close() }()

	if err := a.Update(context.Background(), func(c *Collection) (bool, error) { return false, nil }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.Saves() != 0 {
		t.Fatalf("expected no write for unchanged collection")
	}
	if err := a.Update(context.Background(), func(c *Collection) (bool, error) {
		return true, c.Rename("c", "renamed")
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.Saves() != 1 {
		t.Fatalf("expected one write, got %d", store.Saves())
	}
	view, err := a.View(context.Background())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if s, _ := view.Get("c"); s.Name != "renamed" {
		t.Fatalf("expected rename to persist, got %+v", s)
	}
}

func TestUpdateErrorSkipsWrite(t *testing.T) {
	store := persist.NewMemoryStore(seed()...)
	a := NewAdapter(store, nil, nil)
	defer func() { _ = a.Close() }()

	boom := errors.New("boom")
	err := a.Update(context.Background(), func(c *Collection) (bool, error) {
		c.Unbind(1)
		return true, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if store.Saves() != 0 {
		t.Fatalf("expected failed update not to write")
	}
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	store := persist.NewMemoryStore()
	a := NewAdapter(store, nil, nil)
	defer func() { _ = a.Close() }()

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := a.Update(context.Background(), func(c *Collection) (bool, error) {
				c.Add(schema.Session{ID: schema.SessionID(fmt.Sprintf("s%d", i)), Tabs: []schema.TabRecord{{URL: "about:blank"}}})
				return true, nil
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	sessions, _ := store.Load(context.Background())
	if len(sessions) != writers {
		t.Fatalf("expected %d sessions, got %d", writers, len(sessions))
	}
}

func TestClosedAdapterRejectsWork(t *testing.T) {
	a := NewAdapter(persist.NewMemoryStore(), nil, nil)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	err := a.Update(context.Background(), func(c *Collection) (bool, error) { return false, nil })
	if !errors.Is(err, schema.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

func TestCollectionUnbindAll(t *testing.T) {
	c := NewCollection(seed())
	ids := c.Unbind(1)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected a and b unbound, got %v", ids)
	}
	for _, s := range c.Sessions() {
		if s.CurrentID != nil {
			t.Fatalf("expected %s to be unbound", s.ID)
		}
	}
}

func TestCollectionBindStealsWindow(t *testing.T) {
	c := NewCollection(seed())
	i, _ := c.IndexOf("c")
	c.Bind(i, 1)
	bound := c.BoundTo(1)
	if len(bound) != 1 || bound[0] != i {
		t.Fatalf("expected only c bound to window 1, got %v", bound)
	}
}

func TestCollectionSortedNewestFirst(t *testing.T) {
	c := NewCollection(seed())
	sorted := c.Sorted()
	if sorted[0].ID != "b" || sorted[1].ID != "a" || sorted[2].ID != "c" {
		t.Fatalf("unexpected order: %s %s %s", sorted[0].ID, sorted[1].ID, sorted[2].ID)
	}
	if c.At(0).ID != "a" {
		t.Fatalf("sorting must not reorder the collection")
	}
}

func TestCollectionDelete(t *testing.T) {
	c := NewCollection(seed())
	if _, err := c.Delete("missing"); !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	removed, err := c.Delete("b")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.ID != "b" || c.Len() != 2 {
		t.Fatalf("unexpected delete result: %+v len=%d", removed, c.Len())
	}
}

func TestCollectionSavedWindow(t *testing.T) {
	c := NewCollection(seed())
	id, ok := c.SavedWindow(1)
	if !ok || id != "a" {
		t.Fatalf("expected window 1 saved by a, got %q %v", id, ok)
	}
	i, _ := c.IndexOf("a")
	c.Clear(i)
	if _, ok := c.SavedWindow(1); ok {
		t.Fatalf("unnamed session b must not mark the window saved")
	}
}
