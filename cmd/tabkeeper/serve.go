package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper"
	"pkt.systems/tabkeeper/httpapi"
	"pkt.systems/tabkeeper/internal/appconfig"
	"pkt.systems/tabkeeper/internal/eventbus"
	"pkt.systems/tabkeeper/internal/metrics"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/internal/windowhost/cdphost"
	"pkt.systems/tabkeeper/internal/windowhost/memhost"
	"pkt.systems/tabkeeper/schema"
)

const (
	hostBrowser = "browser"
	hostMemory  = "memory"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var hostKind string
	var noHTTP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Track browser windows and serve the session API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(ctx, cfg.Store, logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			host, closeHost, err := openHost(ctx, hostKind, cfg.Browser, logger)
			if err != nil {
				return err
			}
			defer closeHost()

			bus := eventbus.New(logger)
			events, unsubscribe := bus.Subscribe()
			defer unsubscribe()
			go logSessionEvents(logger, events)

			opts := []tabkeeper.ServerOption{tabkeeper.WithEventLoop()}
			if !noHTTP {
				opts = append(opts, tabkeeper.WithHTTP())
			}
			serverCfg := tabkeeper.ServerConfig{
				Service: cfg.Reconcile.ServiceConfig(),
				HTTP:    toHTTPConfig(cfg.HTTP),
			}
			server, err := tabkeeper.New(serverCfg, tabkeeper.ServerDeps{
				Host:      host,
				Store:     store,
				Metrics:   metrics.New(),
				EventSink: bus,
				Logger:    logger,
			}, opts...)
			if err != nil {
				return err
			}

			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&hostKind, "host", hostBrowser, "windowing host (browser or memory)")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "run the reconciler without the HTTP API")
	return cmd
}

func openHost(ctx context.Context, kind string, cfg appconfig.BrowserConfig, logger pslog.Logger) (windowhost.Host, func(), error) {
	switch kind {
	case hostBrowser, "":
		host, err := cdphost.New(ctx, cdphost.Config{
			RemoteURL: cfg.RemoteURL,
			ExecPath:  cfg.ExecPath,
			Headless:  cfg.Headless,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("browser host: %w", err)
		}
		return host, host.Close, nil
	case hostMemory:
		host := memhost.New()
		logger.Warn("host selected", "host", hostMemory)
		return host, host.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported host %q", kind)
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:       cfg.Addr,
		BasePath:   cfg.BasePath,
		HubHistory: cfg.HubHistory,
	}
}

func logSessionEvents(logger pslog.Logger, events <-chan schema.SessionEvent) {
	for ev := range events {
		attrs := []any{"type", ev.Type}
		if ev.SessionID != "" {
			attrs = append(attrs, "session", ev.SessionID)
		}
		if ev.WindowID != nil {
			attrs = append(attrs, "window", int64(*ev.WindowID))
		}
		logger.Debug("session event", attrs...)
	}
}
