package core

import (
	"context"
	"errors"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/logx"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/schema"
)

func (s *service) CaptureWindow(ctx context.Context, req schema.CaptureWindowRequest) (schema.CaptureWindowResponse, error) {
	log := logx.WithWindow(ctx, req.WindowID)
	name := strings.TrimSpace(req.Name)
	if name != "" {
		normalized, err := schema.NormalizeSessionName(name)
		if err != nil {
			return schema.CaptureWindowResponse{}, err
		}
		name = normalized
	}
	w, err := s.host.Window(ctx, req.WindowID)
	if err != nil {
		return schema.CaptureWindowResponse{}, err
	}
	if len(w.Tabs) == 0 {
		return schema.CaptureWindowResponse{}, schema.ErrEmptyWindow
	}
	session := schema.Session{
		ID:        newSessionID(),
		Name:      name,
		CurrentID: schema.WindowRef(w.ID),
		Tabs:      w.Records(),
		Timestamp: schema.Millis(s.now()),
	}
	err = s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		if _, ok := c.FirstBoundTo(w.ID); ok {
			return false, schema.ErrWindowAlreadySaved
		}
		c.Add(session)
		return true, nil
	})
	if err != nil {
		log.Info("service capture rejected", "err", err)
		return schema.CaptureWindowResponse{}, err
	}
	logx.WithSession(log, session.ID).Info("service capture ok", "tabs", len(session.Tabs), "named", session.Saved())
	s.publish(schema.SessionEvent{Type: schema.SessionEventCreated, SessionID: session.ID, WindowID: schema.WindowRef(w.ID)})
	s.presenter.Update(ctx, w.ID)
	return schema.CaptureWindowResponse{Session: session}, nil
}

func (s *service) RenameSession(ctx context.Context, req schema.RenameSessionRequest) (schema.RenameSessionResponse, error) {
	name, err := schema.NormalizeSessionName(req.Name)
	if err != nil {
		return schema.RenameSessionResponse{}, err
	}
	var renamed schema.Session
	err = s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		if err := c.Rename(req.SessionID, name); err != nil {
			return false, err
		}
		renamed, _ = c.Get(req.SessionID)
		return true, nil
	})
	if err != nil {
		return schema.RenameSessionResponse{}, err
	}
	logx.WithSession(pslog.Ctx(ctx), renamed.ID).Info("service session renamed")
	s.publish(schema.SessionEvent{Type: schema.SessionEventRenamed, SessionID: renamed.ID, WindowID: renamed.CurrentID})
	if renamed.CurrentID != nil {
		s.presenter.Update(ctx, *renamed.CurrentID)
	}
	return schema.RenameSessionResponse{Session: renamed}, nil
}

func (s *service) DeleteSession(ctx context.Context, id schema.SessionID) error {
	var removed schema.Session
	err := s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		var err error
		removed, err = c.Delete(id)
		return err == nil, err
	})
	if err != nil {
		return err
	}
	logx.WithSession(pslog.Ctx(ctx), id).Info("service session deleted")
	s.publish(schema.SessionEvent{Type: schema.SessionEventDeleted, SessionID: id, WindowID: removed.CurrentID})
	if removed.CurrentID != nil {
		s.presenter.Update(ctx, *removed.CurrentID)
	}
	return nil
}

func (s *service) ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	c, err := s.store.View(ctx)
	if err != nil {
		return schema.ListSessionsResponse{}, err
	}
	live := make(map[schema.WindowID]bool)
	windows, err := s.host.Windows(ctx)
	if err != nil {
		pslog.Ctx(ctx).Warn("service list windows failed", "err", err)
	}
	for _, w := range windows {
		live[w.ID] = true
	}
	sorted := c.Sorted()
	resp := schema.ListSessionsResponse{Sessions: make([]schema.SessionView, 0, len(sorted))}
	for _, session := range sorted {
		view := schema.SessionView{Session: session, TabCount: len(session.Tabs)}
		if session.CurrentID != nil {
			view.Open = live[*session.CurrentID]
			if req.CurrentWindow != nil && *session.CurrentID == *req.CurrentWindow {
				view.Current = true
				resp.CurrentSaved = true
			}
		}
		resp.Sessions = append(resp.Sessions, view)
	}
	return resp, nil
}

func (s *service) OpenSession(ctx context.Context, id schema.SessionID) (schema.OpenSessionResponse, error) {
	c, err := s.store.View(ctx)
	if err != nil {
		return schema.OpenSessionResponse{}, err
	}
	session, ok := c.Get(id)
	if !ok {
		return schema.OpenSessionResponse{}, schema.ErrSessionNotFound
	}
	log := logx.WithSession(pslog.Ctx(ctx), id)
	if session.CurrentID != nil {
		err := s.host.FocusWindow(ctx, *session.CurrentID)
		if err == nil {
			log.Info("service session focused", "window", int64(*session.CurrentID))
			return schema.OpenSessionResponse{WindowID: *session.CurrentID}, nil
		}
		if !errors.Is(err, schema.ErrWindowNotFound) {
			return schema.OpenSessionResponse{}, err
		}
	}
	windowID, err := Materialize(ctx, s.host, session.Tabs)
	if err != nil {
		log.Warn("service session materialize failed", "err", err)
		return schema.OpenSessionResponse{}, err
	}
	err = s.store.Update(ctx, func(c *sessionstore.Collection) (bool, error) {
		i, ok := c.IndexOf(id)
		if !ok {
			return false, schema.ErrSessionNotFound
		}
		c.Bind(i, windowID)
		return true, nil
	})
	if err != nil {
		return schema.OpenSessionResponse{}, err
	}
	log.Info("service session opened", "window", int64(windowID), "tabs", len(session.Tabs))
	s.publish(schema.SessionEvent{Type: schema.SessionEventBound, SessionID: id, WindowID: schema.WindowRef(windowID)})
	s.presenter.Update(ctx, windowID)
	return schema.OpenSessionResponse{WindowID: windowID, Created: true}, nil
}

func (s *service) CloseSessionWindow(ctx context.Context, id schema.SessionID) error {
	c, err := s.store.View(ctx)
	if err != nil {
		return err
	}
	session, ok := c.Get(id)
	if !ok {
		return schema.ErrSessionNotFound
	}
	if session.CurrentID == nil {
		return schema.ErrWindowNotFound
	}
	windowID := *session.CurrentID
	if err := s.host.RemoveWindow(ctx, windowID); err != nil {
		return err
	}
	logx.WithSession(logx.WithWindow(ctx, windowID), id).Info("service session window closed")
	return s.WindowRemoved(ctx, windowID)
}

func (s *service) WindowStatus(ctx context.Context, windowID schema.WindowID) (schema.WindowStatus, error) {
	c, err := s.store.View(ctx)
	if err != nil {
		return schema.WindowStatus{}, err
	}
	status := schema.WindowStatus{WindowID: windowID}
	status.Session, status.Saved = c.SavedWindow(windowID)
	return status, nil
}
