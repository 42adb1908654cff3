package tabkeeper

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/core"
	"pkt.systems/tabkeeper/httpapi"
	"pkt.systems/tabkeeper/internal/badge"
	"pkt.systems/tabkeeper/internal/metrics"
	"pkt.systems/tabkeeper/internal/persist"
	"pkt.systems/tabkeeper/internal/scheduler"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/schema"
)

// Server composes the reconciliation loop and the HTTP API.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Service exposes the composed engine, e.g. for CLI commands.
	Service() core.Service
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service schema.ServiceConfig
	HTTP    httpapi.Config
}

// ServerDeps captures dependencies required to build the server. Host and
// Store are required.
type ServerDeps struct {
	Host  windowhost.Host
	Store persist.Store
	// Painter renders badge state. Defaults to a logging painter.
	Painter   badge.Painter
	Metrics   *metrics.Metrics
	EventSink core.EventSink
	Logger    pslog.Logger
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP      bool
	enableEventLoop bool
}

// WithHTTP enables the HTTP API server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithEventLoop enables startup reconciliation and host event processing.
func WithEventLoop() ServerOption {
	return func(o *serverOptions) { o.enableEventLoop = true }
}

// New constructs a composable tabkeeper server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableEventLoop {
		return nil, errors.New("no services enabled")
	}
	if deps.Host == nil {
		return nil, schema.ErrHostUnavailable
	}
	if deps.Store == nil {
		return nil, errors.New("session store dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	painter := deps.Painter
	if painter == nil {
		painter = badge.LogPainter{Logger: logger}
	}

	var storeObs sessionstore.Observer
	var paintObs badge.Observer
	var coreMetrics core.Metrics
	var schedObs scheduler.Observer
	if deps.Metrics != nil {
		storeObs, paintObs, coreMetrics, schedObs = deps.Metrics, deps.Metrics, deps.Metrics, deps.Metrics
	}

	adapter := sessionstore.NewAdapter(deps.Store, logger, storeObs)
	presenter := badge.NewPresenter(adapter, deps.Host, painter, paintObs, logger)

	var hub *httpapi.Hub
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HTTP.HubHistory)
	}
	serviceDeps := core.ServiceDeps{
		Host:              deps.Host,
		Store:             adapter,
		Presenter:         presenter,
		EventSink:         fanout(deps.EventSink, hubSink(hub)),
		Metrics:           coreMetrics,
		SchedulerObserver: schedObs,
		Logger:            logger,
	}
	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		var metricsHandler http.Handler
		if deps.Metrics != nil {
			metricsHandler = deps.Metrics.Handler()
		}
		httpSrv = httpapi.NewServer(cfg.HTTP, service, hub, metricsHandler)
	}

	return &compositeServer{
		cfg:     cfg,
		options: options,
		service: service,
		adapter: adapter,
		httpSrv: httpSrv,
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	service core.Service
	adapter *sessionstore.Adapter
	httpSrv *httpapi.Server
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	stopped bool
}

func (s *compositeServer) Service() core.Service {
	return s.service
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"event_loop", s.options.enableEventLoop,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
	)
	if s.options.enableEventLoop {
		go func() {
			if err := s.service.Initialize(s.ctx); err != nil && s.ctx.Err() == nil {
				log.Error("server initial reconcile failed", "err", err)
			}
			if err := s.service.Run(s.ctx); err != nil {
				log.Error("server event loop failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.options.enableHTTP && s.httpSrv != nil {
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	stopped := s.stopped
	s.stopped = true
	log := s.logger
	s.mu.Unlock()
	if !started || stopped {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	s.service.Close()
	if err := s.adapter.Close(); err != nil {
		log.Warn("server store close failed", "err", err)
	} else {
		log.Info("server store close ok")
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
