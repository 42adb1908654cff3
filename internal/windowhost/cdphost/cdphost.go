// Package cdphost drives a Chrome browser over the DevTools protocol as the
// windowing host.
//
// The protocol has no notion of pinned tabs, focus events, or tab strip
// order: pinned tabs are created unpinned and reported unpinned, the first
// page target of a window stands in for its active tab, and tab order is the
// order Chrome lists targets in.
package cdphost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/schema"
)

const (
	pageTarget   = "page"
	blankURL     = "about:blank"
	lookupLimit  = 8
	eventBacklog = 256
)

// Config selects how the browser is reached.
type Config struct {
	// RemoteURL is a DevTools websocket URL of a running browser. When empty
	// a browser is launched.
	RemoteURL string
	// ExecPath overrides the launched browser binary.
	ExecPath string
	// Headless launches the browser without a UI.
	Headless bool
}

// Host implements windowhost.Host over chromedp.
type Host struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    pslog.Logger

	control target.ID

	mu       sync.Mutex
	tabIDs   map[target.ID]schema.TabID
	targets  map[schema.TabID]target.ID
	nextTab  schema.TabID
	windowOf map[target.ID]schema.WindowID

	raw    chan any
	events chan schema.HostEvent
	done   chan struct{}
}

// New connects to (or launches) a browser and starts translating target
// events into host events.
func New(ctx context.Context, cfg Config, logger pslog.Logger) (*Host, error) {
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}
	bctx, bcancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		bcancel()
		allocCancel()
	}
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		return nil, fmt.Errorf("cdphost: start browser: %w", err)
	}
	h := &Host{
		ctx:      bctx,
		cancel:   cancel,
		log:      logger.With("host", "cdp"),
		tabIDs:   make(map[target.ID]schema.TabID),
		targets:  make(map[schema.TabID]target.ID),
		nextTab:  1,
		windowOf: make(map[target.ID]schema.WindowID),
		raw:      make(chan any, eventBacklog),
		events:   make(chan schema.HostEvent, eventBacklog),
		done:     make(chan struct{}),
	}
	if c := chromedp.FromContext(bctx); c != nil && c.Target != nil {
		h.control = c.Target.TargetID
	}
	chromedp.ListenBrowser(bctx, h.listen)
	if err := target.SetDiscoverTargets(true).Do(h.exec(ctx)); err != nil {
		cancel()
		return nil, fmt.Errorf("cdphost: discover targets: %w", err)
	}
	if _, err := h.Windows(ctx); err != nil {
		cancel()
		return nil, err
	}
	go h.translate()
	h.log.Info("cdphost ready", "remote", cfg.RemoteURL != "")
	return h, nil
}

// Close shuts the browser connection and ends the event stream.
func (h *Host) Close() {
	h.cancel()
	<-h.done
}

func (h *Host) exec(ctx context.Context) context.Context {
	c := chromedp.FromContext(h.ctx)
	return cdp.WithExecutor(ctx, c.Browser)
}

// listen runs on the chromedp event loop and must not block.
func (h *Host) listen(ev any) {
	switch ev.(type) {
	case *target.EventTargetCreated, *target.EventTargetInfoChanged, *target.EventTargetDestroyed:
	default:
		return
	}
	select {
	case h.raw <- ev:
	default:
		h.log.Warn("cdphost event dropped")
	}
}

func (h *Host) translate() {
	defer close(h.done)
	defer close(h.events)
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.raw:
			for _, out := range h.handle(ev) {
				select {
				case h.events <- out:
				case <-h.ctx.Done():
					return
				}
			}
		}
	}
}

func (h *Host) handle(ev any) []schema.HostEvent {
	ctx := h.ctx
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if !h.isTab(e.TargetInfo) {
			return nil
		}
		windowID, err := h.lookupWindow(ctx, e.TargetInfo.TargetID)
		if err != nil {
			h.log.Debug("cdphost window lookup failed", "target", e.TargetInfo.TargetID, "err", err)
			return nil
		}
		tabID := h.remember(e.TargetInfo.TargetID, windowID)
		return []schema.HostEvent{{Type: schema.HostTabAttached, WindowID: windowID, TabID: tabID}}
	case *target.EventTargetInfoChanged:
		if !h.isTab(e.TargetInfo) {
			return nil
		}
		windowID, err := h.lookupWindow(ctx, e.TargetInfo.TargetID)
		if err != nil {
			h.log.Debug("cdphost window lookup failed", "target", e.TargetInfo.TargetID, "err", err)
			return nil
		}
		h.mu.Lock()
		prev, known := h.windowOf[e.TargetInfo.TargetID]
		h.mu.Unlock()
		tabID := h.remember(e.TargetInfo.TargetID, windowID)
		if known && prev != windowID {
			return []schema.HostEvent{
				{Type: schema.HostTabDetached, WindowID: prev, TabID: tabID},
				{Type: schema.HostTabAttached, WindowID: windowID, TabID: tabID},
			}
		}
		return []schema.HostEvent{{Type: schema.HostTabUpdated, WindowID: windowID, TabID: tabID, Status: schema.TabStatusComplete}}
	case *target.EventTargetDestroyed:
		h.mu.Lock()
		windowID, known := h.windowOf[e.TargetID]
		tabID := h.tabIDs[e.TargetID]
		delete(h.windowOf, e.TargetID)
		delete(h.tabIDs, e.TargetID)
		delete(h.targets, tabID)
		remaining := 0
		for _, w := range h.windowOf {
			if w == windowID {
				remaining++
			}
		}
		h.mu.Unlock()
		if !known {
			return nil
		}
		if remaining == 0 {
			return []schema.HostEvent{{Type: schema.HostWindowRemoved, WindowID: windowID}}
		}
		return []schema.HostEvent{{Type: schema.HostTabDetached, WindowID: windowID, TabID: tabID}}
	}
	return nil
}

func (h *Host) isTab(info *target.Info) bool {
	return info != nil && info.Type == pageTarget && info.TargetID != h.control
}

func (h *Host) remember(id target.ID, windowID schema.WindowID) schema.TabID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.windowOf[id] = windowID
	if tabID, ok := h.tabIDs[id]; ok {
		return tabID
	}
	tabID := h.nextTab
	h.nextTab++
	h.tabIDs[id] = tabID
	h.targets[tabID] = id
	return tabID
}

func (h *Host) lookupWindow(ctx context.Context, id target.ID) (schema.WindowID, error) {
	windowID, _, err := browser.GetWindowForTarget().WithTargetID(id).Do(h.exec(ctx))
	if err != nil {
		return 0, err
	}
	return schema.WindowID(windowID), nil
}

// Windows lists page targets grouped by browser window.
func (h *Host) Windows(ctx context.Context) ([]schema.Window, error) {
	infos, err := target.GetTargets().Do(h.exec(ctx))
	if err != nil {
		return nil, fmt.Errorf("cdphost: list targets: %w", err)
	}
	var pages []*target.Info
	for _, info := range infos {
		if h.isTab(info) {
			pages = append(pages, info)
		}
	}
	windowIDs := make([]schema.WindowID, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)
	for i, info := range pages {
		i, id := i, info.TargetID
		g.Go(func() error {
			windowID, err := h.lookupWindow(gctx, id)
			if err != nil {
				return fmt.Errorf("cdphost: window for %s: %w", id, err)
			}
			windowIDs[i] = windowID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []schema.Window
	pos := make(map[schema.WindowID]int)
	for i, info := range pages {
		windowID := windowIDs[i]
		tabID := h.remember(info.TargetID, windowID)
		idx, ok := pos[windowID]
		if !ok {
			idx = len(out)
			pos[windowID] = idx
			out = append(out, schema.Window{ID: windowID})
		}
		out[idx].Tabs = append(out[idx].Tabs, schema.LiveTab{
			ID:       tabID,
			WindowID: windowID,
			URL:      info.URL,
			Title:    info.Title,
			Active:   len(out[idx].Tabs) == 0,
		})
	}
	if out == nil {
		out = []schema.Window{}
	}
	return out, nil
}

// Window returns one window or schema.ErrWindowNotFound.
func (h *Host) Window(ctx context.Context, id schema.WindowID) (schema.Window, error) {
	windows, err := h.Windows(ctx)
	if err != nil {
		return schema.Window{}, err
	}
	for _, w := range windows {
		if w.ID == id {
			return w, nil
		}
	}
	return schema.Window{}, schema.ErrWindowNotFound
}

// CreateWindow opens a new browser window.
func (h *Host) CreateWindow(ctx context.Context, url string, focused bool) (schema.Window, error) {
	if url == "" {
		url = blankURL
	}
	id, err := target.CreateTarget(url).WithNewWindow(true).WithBackground(!focused).Do(h.exec(ctx))
	if err != nil {
		return schema.Window{}, fmt.Errorf("cdphost: create window: %w", err)
	}
	windowID, err := h.lookupWindow(ctx, id)
	if err != nil {
		return schema.Window{}, err
	}
	h.remember(id, windowID)
	return h.Window(ctx, windowID)
}

// CreateTab opens url in windowID. Chrome places new targets in the most
// recently activated window, so a tab of the window is activated first.
func (h *Host) CreateTab(ctx context.Context, windowID schema.WindowID, url string, pinned bool) (schema.LiveTab, error) {
	w, err := h.Window(ctx, windowID)
	if err != nil {
		return schema.LiveTab{}, err
	}
	if len(w.Tabs) > 0 {
		if anchor, ok := h.targetFor(w.Tabs[0].ID); ok {
			if err := target.ActivateTarget(anchor).Do(h.exec(ctx)); err != nil {
				return schema.LiveTab{}, fmt.Errorf("cdphost: activate window: %w", err)
			}
		}
	}
	id, err := target.CreateTarget(url).WithBackground(true).Do(h.exec(ctx))
	if err != nil {
		return schema.LiveTab{}, fmt.Errorf("cdphost: create tab: %w", err)
	}
	landed, err := h.lookupWindow(ctx, id)
	if err != nil {
		return schema.LiveTab{}, err
	}
	if landed != windowID {
		h.log.Warn("cdphost tab landed in another window", "window", int64(windowID), "landed", int64(landed))
	}
	if pinned {
		h.log.Debug("cdphost pinning unsupported", "url", url)
	}
	tabID := h.remember(id, landed)
	return schema.LiveTab{ID: tabID, WindowID: landed, URL: url}, nil
}

// FocusWindow activates the first tab of the window.
func (h *Host) FocusWindow(ctx context.Context, id schema.WindowID) error {
	w, err := h.Window(ctx, id)
	if err != nil {
		return err
	}
	if len(w.Tabs) == 0 {
		return schema.ErrWindowNotFound
	}
	anchor, ok := h.targetFor(w.Tabs[0].ID)
	if !ok {
		return schema.ErrWindowNotFound
	}
	return target.ActivateTarget(anchor).Do(h.exec(ctx))
}

// RemoveWindow closes every tab of the window.
func (h *Host) RemoveWindow(ctx context.Context, id schema.WindowID) error {
	w, err := h.Window(ctx, id)
	if err != nil {
		return err
	}
	var errs []error
	for _, tab := range w.Tabs {
		tid, ok := h.targetFor(tab.ID)
		if !ok {
			continue
		}
		if err := target.CloseTarget(tid).Do(h.exec(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ActiveTab returns the first tab of the window.
func (h *Host) ActiveTab(ctx context.Context, windowID schema.WindowID) (schema.LiveTab, bool, error) {
	w, err := h.Window(ctx, windowID)
	if err != nil {
		return schema.LiveTab{}, false, err
	}
	if len(w.Tabs) == 0 {
		return schema.LiveTab{}, false, nil
	}
	return w.Tabs[0], true, nil
}

// Events streams translated target events.
func (h *Host) Events() <-chan schema.HostEvent {
	return h.events
}

func (h *Host) targetFor(id schema.TabID) (target.ID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tid, ok := h.targets[id]
	return tid, ok
}
