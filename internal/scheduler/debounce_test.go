package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/tabkeeper/schema"
)

func TestScheduleCoalescesBurst(t *testing.T) {
	d := New(30*time.Millisecond, nil, nil)
	defer d.Stop()

	var runs atomic.Int32
	var last atomic.Int32
	done := make(chan struct{}, 4)
	for i := 1; i <= 5; i++ {
		i := i
		d.Schedule(1, func() {
			runs.Add(1)
			last.Store(int32(i))
			done <- struct{}{}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for debounced op")
	}
	time.Sleep(60 * time.Millisecond)
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
	if last.Load() != 5 {
		t.Fatalf("expected the latest op to run, got %d", last.Load())
	}
	if d.Pending() != 0 {
		t.Fatalf("expected no pending entries, got %d", d.Pending())
	}
}

func TestScheduleIsPerWindow(t *testing.T) {
	d := New(20*time.Millisecond, nil, nil)
	defer d.Stop()

	var mu sync.Mutex
	seen := map[schema.WindowID]int{}
	var wg sync.WaitGroup
	wg.Add(2)
	for _, id := range []schema.WindowID{1, 2} {
		id := id
		d.Schedule(id, func() {
			mu.Lock()
			seen[id]++
			mu.Unlock()
			wg.Done()
		})
	}
	waitGroup(t, &wg)
	if seen[1] != 1 || seen[2] != 1 {
		t.Fatalf("expected one run per window, got %v", seen)
	}
}

func TestCancelPreventsRun(t *testing.T) {
	d := New(20*time.Millisecond, nil, nil)
	defer d.Stop()

	var runs atomic.Int32
	d.Schedule(3, func() { runs.Add(1) })
	if !d.Cancel(3) {
		t.Fatalf("expected pending op to be cancelled")
	}
	if d.Cancel(3) {
		t.Fatalf("expected second cancel to be a no-op")
	}
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("expected cancelled op not to run")
	}
}

func TestStopRefusesNewWork(t *testing.T) {
	d := New(time.Hour, nil, nil)
	d.Schedule(1, func() {})
	d.Stop()
	if d.Pending() != 0 {
		t.Fatalf("expected pending entries to be dropped")
	}
	if d.Schedule(1, func() {}) {
		t.Fatalf("expected schedule after stop to be refused")
	}
}

func TestObserverSeesReplacement(t *testing.T) {
	obs := &countingObserver{}
	d := New(20*time.Millisecond, nil, obs)
	defer d.Stop()

	fired := make(chan struct{})
	d.Schedule(9, func() {})
	d.Schedule(9, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for op")
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.scheduled != 2 || obs.replaced != 1 {
		t.Fatalf("unexpected schedule counts: %+v", obs)
	}
	if obs.fired != 1 {
		t.Fatalf("expected one fire, got %d", obs.fired)
	}
}

type countingObserver struct {
	mu        sync.Mutex
	scheduled int
	replaced  int
	fired     int
}

func (o *countingObserver) Scheduled(_ schema.WindowID, replaced bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheduled++
	if replaced {
		o.replaced++
	}
}

func (o *countingObserver) Fired(schema.WindowID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fired++
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for ops")
	}
}
