package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestObservationsAreExposed(t *testing.T) {
	m := New()
	m.Reconciled(KindAll, 20*time.Millisecond, nil)
	m.Reconciled(KindWindow, time.Millisecond, errors.New("boom"))
	m.Matched(true)
	m.Matched(false)
	m.Scheduled(3, false)
	m.Scheduled(3, true)
	m.Fired(3)
	m.StoreWrite(nil)
	m.PaintFailed(3)
	m.SessionCount(5)

	body := scrape(t, m)
	for _, want := range []string{
		`tabkeeper_reconciles_total{kind="all",result="ok"} 1`,
		`tabkeeper_reconciles_total{kind="window",result="error"} 1`,
		`tabkeeper_match_outcomes_total{outcome="matched"} 1`,
		`tabkeeper_match_outcomes_total{outcome="unmatched"} 1`,
		`tabkeeper_debounce_scheduled_total{replaced="true"} 1`,
		`tabkeeper_debounce_fired_total 1`,
		`tabkeeper_store_writes_total{result="ok"} 1`,
		`tabkeeper_paint_failures_total 1`,
		`tabkeeper_sessions 5`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestNilMetricsIgnoresObservations(t *testing.T) {
	var m *Metrics
	m.Reconciled(KindRemoved, time.Second, nil)
	m.Matched(true)
	m.Scheduled(1, true)
	m.Fired(1)
	m.StoreWrite(nil)
	m.PaintFailed(1)
	m.SessionCount(1)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}
