package core

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/scheduler"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/schema"
)

// Presenter repaints the saved/unsaved state of windows.
type Presenter interface {
	Update(ctx context.Context, windowID schema.WindowID)
	RefreshAll(ctx context.Context, windows []schema.WindowID) error
}

// Metrics records reconciliation outcomes.
type Metrics interface {
	Reconciled(kind string, elapsed time.Duration, err error)
	Matched(ok bool)
	SessionCount(n int)
}

// ServiceDeps captures the collaborators of the core service. Host and Store
// are required.
type ServiceDeps struct {
	Host      windowhost.Host
	Store     *sessionstore.Adapter
	Presenter Presenter
	EventSink EventSink
	Metrics   Metrics
	// SchedulerObserver is told about debounced window updates.
	SchedulerObserver scheduler.Observer
	// Sleeper paces the startup wait. Defaults to a fixed delay of
	// ServiceConfig.StartupDelay.
	Sleeper windowhost.Sleeper
	Clock   func() time.Time
	Logger  pslog.Logger
}

type nopPresenter struct{}

func (nopPresenter) Update(context.Context, schema.WindowID) {}

func (nopPresenter) RefreshAll(context.Context, []schema.WindowID) error { return nil }

type nopMetrics struct{}

func (nopMetrics) Reconciled(string, time.Duration, error) {}

func (nopMetrics) Matched(bool) {}

func (nopMetrics) SessionCount(int) {}
