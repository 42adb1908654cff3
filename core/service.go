package core

import (
	"context"
	"errors"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/logx"
	"pkt.systems/tabkeeper/internal/scheduler"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/schema"
)

// service implements the reconciliation engine.
type service struct {
	cfg       schema.ServiceConfig
	host      windowhost.Host
	store     *sessionstore.Adapter
	presenter Presenter
	sink      EventSink
	metrics   Metrics
	sleep     windowhost.Sleeper
	now       func() time.Time
	sched     *scheduler.Debouncer
	logger    pslog.Logger
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	if deps.Host == nil {
		return nil, schema.ErrHostUnavailable
	}
	if deps.Store == nil {
		return nil, errors.New("core: session store required")
	}
	cfg = schema.NormalizeServiceConfig(cfg)
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if deps.Presenter == nil {
		deps.Presenter = nopPresenter{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Sleeper == nil {
		deps.Sleeper = windowhost.FixedDelay(cfg.StartupDelay)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &service{
		cfg:       cfg,
		host:      deps.Host,
		store:     deps.Store,
		presenter: deps.Presenter,
		sink:      deps.EventSink,
		metrics:   deps.Metrics,
		sleep:     deps.Sleeper,
		now:       deps.Clock,
		sched:     scheduler.New(cfg.Debounce, logger, deps.SchedulerObserver),
		logger:    logger,
	}, nil
}

func (s *service) Run(ctx context.Context) error {
	defer s.sched.Stop()
	events := s.host.Events()
	log := pslog.Ctx(ctx)
	log.Info("service event loop start")
	for {
		select {
		case <-ctx.Done():
			log.Info("service event loop stop", "reason", ctx.Err())
			return nil
		case ev, ok := <-events:
			if !ok {
				log.Info("service event loop stop", "reason", "host closed")
				return nil
			}
			s.HandleEvent(ctx, ev)
		}
	}
}

func (s *service) HandleEvent(ctx context.Context, ev schema.HostEvent) {
	log := logx.WithWindow(ctx, ev.WindowID)
	log.Trace("service event", "type", ev.Type, "tab", int64(ev.TabID), "status", ev.Status)
	switch ev.Type {
	case schema.HostWindowRemoved:
		s.sched.Cancel(ev.WindowID)
		if err := s.WindowRemoved(ctx, ev.WindowID); err != nil {
			log.Warn("service window removed failed", "err", err)
		}
	case schema.HostWindowFocusChanged:
		if ev.WindowID != schema.WindowIDNone {
			s.presenter.Update(ctx, ev.WindowID)
		}
	case schema.HostTabUpdated:
		if ev.Status == schema.TabStatusComplete {
			s.scheduleWindow(ctx, ev.WindowID)
		}
	case schema.HostTabAttached, schema.HostTabDetached:
		s.scheduleWindow(ctx, ev.WindowID)
	default:
		log.Debug("service event ignored", "type", ev.Type)
	}
}

// scheduleWindow debounces a window refresh. The operation runs on a context
// detached from ctx's cancellation so that it completes once fired.
func (s *service) scheduleWindow(ctx context.Context, windowID schema.WindowID) {
	opCtx := context.WithoutCancel(ctx)
	log := logx.WithWindow(opCtx, windowID)
	opCtx = logx.ContextWithWindowLogger(opCtx, log, windowID)
	s.sched.Schedule(windowID, func() {
		if err := s.ReconcileWindow(opCtx, windowID); err != nil {
			log.Warn("service window refresh failed", "err", err)
		}
		s.presenter.Update(opCtx, windowID)
	})
}

func (s *service) Close() {
	s.sched.Stop()
}

func (s *service) publish(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}
