// Package badge paints the saved/unsaved indicator for browser windows.
package badge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/schema"
)

// Icon and badge colours.
const (
	SavedColor    = "#2563eb"
	UnsavedColor  = "#9ca3af"
	BadgeOnText   = "on"
	BadgeOnColor  = "#05e70d"
	BadgeOffColor = "transparent"
)

// State is what gets painted for one window.
type State struct {
	WindowID   schema.WindowID `json:"windowId"`
	TabID      schema.TabID    `json:"tabId"`
	HasTab     bool            `json:"hasTab"`
	Saved      bool            `json:"saved"`
	IconColor  string          `json:"iconColor"`
	BadgeText  string          `json:"badgeText"`
	BadgeColor string          `json:"badgeColor"`
}

// StateFor computes the paint state for a window.
func StateFor(windowID schema.WindowID, saved bool) State {
	st := State{WindowID: windowID, Saved: saved, IconColor: UnsavedColor, BadgeColor: BadgeOffColor}
	if saved {
		st.IconColor = SavedColor
		st.BadgeText = BadgeOnText
		st.BadgeColor = BadgeOnColor
	}
	return st
}

// IconSVG renders the toolbar icon in the state's colour.
func IconSVG(saved bool) string {
	color := UnsavedColor
	if saved {
		color = SavedColor
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="128" height="128" viewBox="0 0 24 24" fill="none" stroke="%s" stroke-width="2" stroke-linecap="round" stroke-linejoin="round">
  <rect x="4" y="4" width="16" height="16" rx="2" />
  <line x1="4" y1="9" x2="20" y2="9" />
  <line x1="8" y1="4" x2="8" y2="9" />
  <line x1="12" y1="4" x2="12" y2="9" />
  <line x1="16" y1="4" x2="16" y2="9" />
</svg>
`, color)
}

// Painter applies a state to the browser UI.
type Painter interface {
	Paint(ctx context.Context, st State) error
}

// Sessions is the read side of the session collection.
type Sessions interface {
	View(ctx context.Context) (*sessionstore.Collection, error)
}

// Tabs resolves the active tab of a window.
type Tabs interface {
	ActiveTab(ctx context.Context, windowID schema.WindowID) (schema.LiveTab, bool, error)
}

// Observer is told about paint failures.
type Observer interface {
	PaintFailed(windowID schema.WindowID)
}

// Presenter derives window state from the collection and paints it.
type Presenter struct {
	sessions Sessions
	tabs     Tabs
	painter  Painter
	obs      Observer
	log      pslog.Logger
}

// NewPresenter constructs a Presenter. obs may be nil.
func NewPresenter(sessions Sessions, tabs Tabs, painter Painter, obs Observer, logger pslog.Logger) *Presenter {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Presenter{sessions: sessions, tabs: tabs, painter: painter, obs: obs, log: logger}
}

// Update repaints one window. Failures are logged and counted, never returned.
func (p *Presenter) Update(ctx context.Context, windowID schema.WindowID) {
	if p == nil {
		return
	}
	if err := p.update(ctx, windowID); err != nil {
		if p.obs != nil {
			p.obs.PaintFailed(windowID)
		}
		p.log.With("window", int64(windowID)).Warn("badge paint failed", "err", err)
	}
}

// RefreshAll repaints every window and returns the combined failures.
func (p *Presenter) RefreshAll(ctx context.Context, windows []schema.WindowID) error {
	if p == nil {
		return nil
	}
	var result *multierror.Error
	for _, windowID := range windows {
		if err := p.update(ctx, windowID); err != nil {
			if p.obs != nil {
				p.obs.PaintFailed(windowID)
			}
			result = multierror.Append(result, fmt.Errorf("window %d: %w", windowID, err))
		}
	}
	return result.ErrorOrNil()
}

func (p *Presenter) update(ctx context.Context, windowID schema.WindowID) error {
	if windowID == schema.WindowIDNone {
		return nil
	}
	c, err := p.sessions.View(ctx)
	if err != nil {
		return err
	}
	_, saved := c.SavedWindow(windowID)
	st := StateFor(windowID, saved)
	if p.tabs != nil {
		tab, ok, err := p.tabs.ActiveTab(ctx, windowID)
		if errors.Is(err, schema.ErrWindowNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if ok {
			st.TabID = tab.ID
			st.HasTab = true
		}
	}
	if p.painter == nil {
		return nil
	}
	return p.painter.Paint(ctx, st)
}

// LogPainter writes every paint as a debug log line.
type LogPainter struct {
	Logger pslog.Logger
}

// Paint implements Painter.
func (p LogPainter) Paint(ctx context.Context, st State) error {
	logger := p.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	logger.With("window", int64(st.WindowID)).Debug("badge painted", "saved", st.Saved, "icon", st.IconColor, "badge", st.BadgeText)
	return nil
}

// Recorder keeps the last painted state per window.
type Recorder struct {
	mu     sync.Mutex
	states map[schema.WindowID]State
	paints int
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{states: make(map[schema.WindowID]State)}
}

// Paint implements Painter.
func (r *Recorder) Paint(_ context.Context, st State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[st.WindowID] = st
	r.paints++
	return nil
}

// Last returns the most recent state painted for windowID.
func (r *Recorder) Last(windowID schema.WindowID) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[windowID]
	return st, ok
}

// Paints returns the number of paints recorded.
func (r *Recorder) Paints() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paints
}

// Multi paints to every painter in order and joins their failures.
type Multi []Painter

// Paint implements Painter.
func (m Multi) Paint(ctx context.Context, st State) error {
	var result *multierror.Error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Paint(ctx, st); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
