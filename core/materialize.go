package core

import (
	"context"
	"fmt"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/windowhost"
	"pkt.systems/tabkeeper/schema"
)

// Materialize opens a window for tabs. The window is seeded with the first
// unpinned tab; pinned tabs are created next, then the remaining unpinned
// tabs, each group in saved order. When every tab is pinned the window is
// created without a URL and the host's initial tab stays in place.
func Materialize(ctx context.Context, host windowhost.Host, tabs []schema.TabRecord) (schema.WindowID, error) {
	var pinned, unpinned []schema.TabRecord
	for _, tab := range tabs {
		if tab.Pinned {
			pinned = append(pinned, tab)
		} else {
			unpinned = append(unpinned, tab)
		}
	}
	seed := ""
	if len(unpinned) > 0 {
		seed = unpinned[0].URL
		unpinned = unpinned[1:]
	}
	w, err := host.CreateWindow(ctx, seed, true)
	if err != nil {
		return 0, fmt.Errorf("create window: %w", err)
	}
	for _, tab := range pinned {
		if _, err := host.CreateTab(ctx, w.ID, tab.URL, true); err != nil {
			return w.ID, fmt.Errorf("create pinned tab: %w", err)
		}
	}
	for _, tab := range unpinned {
		if _, err := host.CreateTab(ctx, w.ID, tab.URL, false); err != nil {
			return w.ID, fmt.Errorf("create tab: %w", err)
		}
	}
	pslog.Ctx(ctx).Debug("materialize window ok", "window", int64(w.ID), "pinned", len(pinned), "tabs", len(tabs))
	return w.ID, nil
}

func (s *service) CreateWindow(ctx context.Context, req schema.CreateWindowRequest) (schema.CreateWindowResponse, error) {
	windowID, err := Materialize(ctx, s.host, req.Tabs)
	if err != nil {
		pslog.Ctx(ctx).Warn("service create window failed", "err", err)
		return schema.CreateWindowResponse{Success: false, Error: err.Error()}, nil
	}
	return schema.CreateWindowResponse{Success: true, WindowID: windowID}, nil
}
