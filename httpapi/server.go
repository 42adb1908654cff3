package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/tabkeeper/core"
	"pkt.systems/tabkeeper/internal/badge"
	"pkt.systems/tabkeeper/internal/logx"
	"pkt.systems/tabkeeper/schema"
)

const maxBodyBytes = 1 << 20

type windowStatusResponse struct {
	schema.WindowStatus
	IconColor  string `json:"iconColor"`
	BadgeText  string `json:"badgeText"`
	BadgeColor string `json:"badgeColor"`
}

// Server serves the presentation API.
type Server struct {
	cfg      Config
	service  core.Service
	hub      *Hub
	metrics  http.Handler
	basePath string
}

// NewServer constructs an HTTP server. metrics may be nil.
func NewServer(cfg Config, service core.Service, hub *Hub, metrics http.Handler) *Server {
	if hub == nil {
		hub = NewHub(cfg.HubHistory)
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		hub:      hub,
		metrics:  metrics,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCapture)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleRename)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/sessions/{id}/open", s.handleOpen)
	mux.HandleFunc("POST /api/sessions/{id}/close", s.handleClose)
	mux.HandleFunc("POST /api/windows", s.handleCreateWindow)
	mux.HandleFunc("GET /api/windows/{id}/status", s.handleWindowStatus)
	mux.HandleFunc("GET /api/windows/{id}/icon.svg", s.handleWindowIcon)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	return root
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	var req schema.ListSessionsRequest
	if raw := r.URL.Query().Get("window"); raw != "" {
		windowID, err := schema.ParseWindowID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.CurrentWindow = schema.WindowRef(windowID)
	}
	resp, err := s.service.ListSessions(r.Context(), req)
	if err != nil {
		log.Warn("http sessions list failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http sessions list ok", "count", len(resp.Sessions))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	var payload schema.CaptureWindowRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http capture decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.CaptureWindow(r.Context(), payload)
	if err != nil {
		log.Warn("http capture failed", "window", int64(payload.WindowID), "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
	log.Info("http capture ok", "session", resp.Session.ID)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id := schema.SessionID(r.PathValue("id"))
	log := logx.WithSession(logx.Ctx(r.Context()), id)
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http rename decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.RenameSession(r.Context(), schema.RenameSessionRequest{SessionID: id, Name: payload.Name})
	if err != nil {
		log.Warn("http rename failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := schema.SessionID(r.PathValue("id"))
	if err := s.service.DeleteSession(r.Context(), id); err != nil {
		logx.WithSession(logx.Ctx(r.Context()), id).Warn("http delete failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	id := schema.SessionID(r.PathValue("id"))
	resp, err := s.service.OpenSession(r.Context(), id)
	if err != nil {
		logx.WithSession(logx.Ctx(r.Context()), id).Warn("http open failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := schema.SessionID(r.PathValue("id"))
	if err := s.service.CloseSessionWindow(r.Context(), id); err != nil {
		logx.WithSession(logx.Ctx(r.Context()), id).Warn("http close failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateWindow(w http.ResponseWriter, r *http.Request) {
	var payload schema.CreateWindowRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, schema.CreateWindowResponse{Error: err.Error()})
		return
	}
	resp, err := s.service.CreateWindow(r.Context(), payload)
	if err != nil {
		writeJSON(w, statusFor(err), schema.CreateWindowResponse{Error: err.Error()})
		return
	}
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (s *Server) windowStatus(w http.ResponseWriter, r *http.Request) (schema.WindowStatus, bool) {
	windowID, err := schema.ParseWindowID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return schema.WindowStatus{}, false
	}
	status, err := s.service.WindowStatus(r.Context(), windowID)
	if err != nil {
		logx.WithWindow(r.Context(), windowID).Warn("http window status failed", "err", err)
		writeError(w, statusFor(err), err)
		return schema.WindowStatus{}, false
	}
	return status, true
}

func (s *Server) handleWindowStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.windowStatus(w, r)
	if !ok {
		return
	}
	state := badge.StateFor(status.WindowID, status.Saved)
	writeJSON(w, http.StatusOK, windowStatusResponse{
		WindowStatus: status,
		IconColor:    state.IconColor,
		BadgeText:    state.BadgeText,
		BadgeColor:   state.BadgeColor,
	})
}

func (s *Server) handleWindowIcon(w http.ResponseWriter, r *http.Request) {
	status, ok := s.windowStatus(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, badge.IconSVG(status.Saved))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe, seq := s.hub.Subscribe()
	defer unsubscribe()

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID, seq)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
	} else if snapshot, err := s.service.ListSessions(r.Context(), schema.ListSessionsRequest{}); err == nil {
		_ = writeSSEvent(w, StreamEvent{Type: "snapshot", Snapshot: &snapshot, Timestamp: time.Now()})
	}
	flusher.Flush()

	log.Info("http stream opened", "last_id", lastID, "replay", replayCount)
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrSessionNotFound), errors.Is(err, schema.ErrWindowNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrInvalidName), errors.Is(err, schema.ErrEmptyWindow):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrWindowAlreadySaved):
		return http.StatusConflict
	case errors.Is(err, schema.ErrStoreClosed), errors.Is(err, schema.ErrHostUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
