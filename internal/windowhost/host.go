// Package windowhost defines the browser windowing host the reconciler
// drives: window/tab queries, window and tab commands, and lifecycle events.
package windowhost

import (
	"context"
	"time"

	"pkt.systems/tabkeeper/schema"
)

// Host exposes the live windows of a browser.
type Host interface {
	// Windows enumerates every window with its tabs in strip order.
	Windows(ctx context.Context) ([]schema.Window, error)
	// Window returns one window; schema.ErrWindowNotFound when it is gone.
	Window(ctx context.Context, id schema.WindowID) (schema.Window, error)
	// CreateWindow opens a window, seeded with url when non-empty.
	CreateWindow(ctx context.Context, url string, focused bool) (schema.Window, error)
	// CreateTab appends a tab to windowID.
	CreateTab(ctx context.Context, windowID schema.WindowID, url string, pinned bool) (schema.LiveTab, error)
	// FocusWindow raises the window.
	FocusWindow(ctx context.Context, id schema.WindowID) error
	// RemoveWindow closes the window and its tabs.
	RemoveWindow(ctx context.Context, id schema.WindowID) error
	// ActiveTab returns the active tab of windowID, if any.
	ActiveTab(ctx context.Context, windowID schema.WindowID) (schema.LiveTab, bool, error)
	// Events streams lifecycle notifications until the host closes.
	Events() <-chan schema.HostEvent
}

// WaitForWindows polls host until it reports at least one window, at most
// retries times with delay between polls. It returns the last enumeration,
// which is empty when the wait was exhausted.
func WaitForWindows(ctx context.Context, host Host, retries int, delay Sleeper) ([]schema.Window, error) {
	var windows []schema.Window
	for i := 0; i < retries; i++ {
		var err error
		windows, err = host.Windows(ctx)
		if err != nil {
			return nil, err
		}
		if len(windows) > 0 {
			return windows, nil
		}
		if i == retries-1 {
			break
		}
		if err := delay(ctx); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

// Sleeper blocks for a fixed backoff or until ctx is done.
type Sleeper func(ctx context.Context) error

// FixedDelay returns a Sleeper that waits d.
func FixedDelay(d time.Duration) Sleeper {
	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
