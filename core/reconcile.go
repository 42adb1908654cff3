package core

import (
	"context"
	"errors"
	"sort"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/logx"
	"pkt.systems/tabkeeper/internal/match"
	"pkt.systems/tabkeeper/internal/metrics"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/internal/urlnorm"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/schema"
)

func (s *service) Initialize(ctx context.Context) error {
	log := pslog.Ctx(ctx)
	windows, err := windowhost.WaitForWindows(ctx, s.host, s.cfg.StartupRetries, s.sleep)
	if err != nil {
		log.Warn("service startup wait failed", "err", err)
		return err
	}
	if len(windows) == 0 {
		log.Warn("service startup wait exhausted", "retries", s.cfg.StartupRetries, "delay", s.cfg.StartupDelay)
	} else {
		log.Info("service startup windows ready", "windows", len(windows))
	}
	return s.reconcileAll(ctx, windows)
}

func (s *service) ReconcileAll(ctx context.Context) error {
	windows, err := s.host.Windows(ctx)
	if err != nil {
		s.metrics.Reconciled(metrics.KindAll, 0, err)
		pslog.Ctx(ctx).Warn("reconcile all enumerate failed", "err", err)
		return err
	}
	return s.reconcileAll(ctx, windows)
}

type candidate struct {
	index int
	match match.Match
}

func (s *service) reconcileAll(ctx context.Context, windows []schema.Window) (err error) {
	start := time.Now()
	defer func() { s.metrics.Reconciled(metrics.KindAll, time.Since(start), err) }()
	log := pslog.Ctx(ctx)

	idx := match.BuildIndex(ctx, windows)
	now := s.now()
	var bound, total int
	err = s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		total = c.Len()
		if total == 0 {
			return false, nil
		}
		var candidates []candidate
		for i := 0; i < c.Len(); i++ {
			m, ok := match.FindBestMatch(ctx, c.At(i).Tabs, idx)
			s.metrics.Matched(ok)
			if ok {
				candidates = append(candidates, candidate{index: i, match: m})
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].match.Count > candidates[b].match.Count
		})
		assigned := make(map[schema.WindowID]bool, len(candidates))
		binding := make(map[int]schema.WindowID, len(candidates))
		for _, cand := range candidates {
			if assigned[cand.match.WindowID] {
				continue
			}
			assigned[cand.match.WindowID] = true
			binding[cand.index] = cand.match.WindowID
		}
		for i := 0; i < c.Len(); i++ {
			windowID, ok := binding[i]
			if !ok {
				c.Clear(i)
				c.Touch(i, now)
				continue
			}
			c.SetTabs(i, refreshTabs(ctx, c.At(i).Tabs, idx, windowID), now)
			c.Bind(i, windowID)
		}
		bound = len(binding)
		s.metrics.SessionCount(total)
		return true, nil
	})
	if err != nil {
		log.Warn("reconcile all failed", "err", err)
		return err
	}
	log.Info("reconcile all ok", "windows", len(windows), "sessions", total, "bound", bound)
	s.publish(schema.SessionEvent{Type: schema.SessionEventReconciled})

	ids := make([]schema.WindowID, 0, len(windows))
	for _, w := range windows {
		ids = append(ids, w.ID)
	}
	if perr := s.presenter.RefreshAll(ctx, ids); perr != nil {
		log.Warn("reconcile all repaint failed", "err", perr)
	}
	return nil
}

// refreshTabs copies live url, title, and pinned state onto saved tabs that
// are open in windowID. Saved order is kept.
func refreshTabs(ctx context.Context, saved []schema.TabRecord, idx *match.Index, windowID schema.WindowID) []schema.TabRecord {
	out := make([]schema.TabRecord, len(saved))
	for i, tab := range saved {
		out[i] = tab
		entry, ok := idx.Lookup(urlnorm.Normalize(ctx, tab.URL))
		if !ok || entry.WindowID != windowID {
			continue
		}
		out[i] = schema.TabRecord{URL: entry.URL, Title: entry.Title, Pinned: entry.Pinned}
	}
	return out
}

func (s *service) ReconcileWindow(ctx context.Context, windowID schema.WindowID) (err error) {
	start := time.Now()
	log := logx.WithWindow(ctx, windowID)
	c, err := s.store.View(ctx)
	if err != nil {
		return err
	}
	if _, ok := c.FirstBoundTo(windowID); !ok {
		log.Trace("reconcile window untracked")
		return nil
	}
	defer func() { s.metrics.Reconciled(metrics.KindWindow, time.Since(start), err) }()

	w, err := s.host.Window(ctx, windowID)
	if errors.Is(err, schema.ErrWindowNotFound) {
		log.Info("reconcile window gone, falling back to full pass")
		return s.ReconcileAll(ctx)
	}
	if err != nil {
		return err
	}
	records := w.Records()
	if len(records) == 0 {
		log.Debug("reconcile window empty, keeping saved tabs")
		return nil
	}
	now := s.now()
	var updated schema.SessionID
	err = s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		i, ok := c.FirstBoundTo(windowID)
		if !ok {
			return false, nil
		}
		c.SetTabs(i, records, now)
		updated = c.At(i).ID
		return true, nil
	})
	if err != nil {
		log.Warn("reconcile window failed", "err", err)
		return err
	}
	if updated == "" {
		log.Debug("reconcile window binding moved before write")
		return nil
	}
	logx.WithSession(log, updated).Debug("reconcile window ok", "tabs", len(records))
	s.publish(schema.SessionEvent{Type: schema.SessionEventUpdated, SessionID: updated, WindowID: schema.WindowRef(windowID)})
	return nil
}

func (s *service) WindowRemoved(ctx context.Context, windowID schema.WindowID) (err error) {
	start := time.Now()
	defer func() { s.metrics.Reconciled(metrics.KindRemoved, time.Since(start), err) }()
	var unbound []schema.SessionID
	err = s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		unbound = c.Unbind(windowID)
		return len(unbound) > 0, nil
	})
	if err != nil {
		return err
	}
	log := logx.WithWindow(ctx, windowID)
	if len(unbound) == 0 {
		log.Trace("service window removed untracked")
		return nil
	}
	log.Info("service window removed", "unbound", len(unbound))
	for _, id := range unbound {
		s.publish(schema.SessionEvent{Type: schema.SessionEventUnbound, SessionID: id, WindowID: schema.WindowRef(windowID)})
	}
	return nil
}
