package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper"
	"pkt.systems/tabkeeper/internal/badge"
	"pkt.systems/tabkeeper/internal/eventbus"
	"pkt.systems/tabkeeper/internal/persist"
	"pkt.systems/tabkeeper/internal/windowhost/memhost"
	"pkt.systems/tabkeeper/schema"
)

const simulateWait = 5 * time.Second

func newSimulateCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted session against an in-memory browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 50*time.Millisecond, "per-window quiet period")
	return cmd
}

func records(urls ...string) []schema.TabRecord {
	out := make([]schema.TabRecord, 0, len(urls))
	for _, u := range urls {
		out = append(out, schema.TabRecord{URL: u, Title: u})
	}
	return out
}

// runSimulation restores a saved session into a running browser, captures a
// second window, follows a navigation, then closes and reopens the capture.
func runSimulation(ctx context.Context, out io.Writer, debounce time.Duration) error {
	logger := pslog.Ctx(ctx)
	host := memhost.New()
	defer host.Close()

	research := host.AddWindow(records("https://go.dev/doc/", "https://pkg.go.dev/net/url", "https://example.com/notes")...)
	shopping := host.AddWindow(records("https://shop.example/cart", "https://shop.example/item/42")...)
	store := persist.NewMemoryStore(schema.Session{
		ID:        "research",
		Name:      "Research",
		Tabs:      records("https://go.dev/doc/", "https://pkg.go.dev/net/url?tab=versions"),
		Timestamp: schema.Millis(time.Now().Add(-time.Hour)),
	})

	bus := eventbus.New(logger)
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	server, err := tabkeeper.New(tabkeeper.ServerConfig{
		Service: schema.ServiceConfig{Debounce: debounce, StartupRetries: 1, StartupDelay: time.Millisecond},
	}, tabkeeper.ServerDeps{
		Host:      host,
		Store:     store,
		Painter:   badge.NewRecorder(),
		EventSink: bus,
		Logger:    logger,
	}, tabkeeper.WithEventLoop())
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := server.Start(runCtx); err != nil {
		return err
	}
	defer func() { _ = server.Stop(context.Background()) }()
	svc := server.Service()

	await := func(typ schema.SessionEventType) error {
		timer := time.NewTimer(simulateWait)
		defer timer.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return errors.New("event bus closed")
				}
				printEvent(out, ev)
				if ev.Type == typ {
					return nil
				}
			case <-timer.C:
				return fmt.Errorf("timed out waiting for %s event", typ)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	_, _ = fmt.Fprintf(out, "# startup: windows %d and %d open\n", research, shopping)
	if err := await(schema.SessionEventReconciled); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "# capture window %d\n", shopping)
	captured, err := svc.CaptureWindow(ctx, schema.CaptureWindowRequest{WindowID: shopping, Name: "Shopping"})
	if err != nil {
		return err
	}
	if err := await(schema.SessionEventCreated); err != nil {
		return err
	}

	w, err := host.Window(ctx, research)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "# navigate a tab in window %d\n", research)
	if err := host.Navigate(w.Tabs[len(w.Tabs)-1].ID, "https://example.com/notes/2", "notes 2"); err != nil {
		return err
	}
	if err := await(schema.SessionEventUpdated); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "# close and reopen %q\n", captured.Session.Name)
	if err := svc.CloseSessionWindow(ctx, captured.Session.ID); err != nil {
		return err
	}
	if err := await(schema.SessionEventUnbound); err != nil {
		return err
	}
	opened, err := svc.OpenSession(ctx, captured.Session.ID)
	if err != nil {
		return err
	}
	if err := await(schema.SessionEventBound); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "# reopened in window %d\n", opened.WindowID)

	final, err := svc.ListSessions(ctx, schema.ListSessionsRequest{})
	if err != nil {
		return err
	}
	sessions := make([]schema.Session, 0, len(final.Sessions))
	for _, view := range final.Sessions {
		sessions = append(sessions, view.Session)
	}
	return printSessions(out, sessions)
}

func printEvent(out io.Writer, ev schema.SessionEvent) {
	window := "-"
	if ev.WindowID != nil {
		window = fmt.Sprintf("%d", *ev.WindowID)
	}
	session := string(ev.SessionID)
	if session == "" {
		session = "-"
	}
	_, _ = fmt.Fprintf(out, "event %-10s session=%s window=%s\n", ev.Type, session, window)
}
