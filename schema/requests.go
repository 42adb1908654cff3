package schema

// CreateWindowRequest asks the background side to materialize a tab list.
type CreateWindowRequest struct {
	Tabs []TabRecord `json:"tabs"`
}

// CreateWindowResponse reports the created window or the failure.
type CreateWindowResponse struct {
	Success  bool     `json:"success"`
	WindowID WindowID `json:"windowId,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// CaptureWindowRequest saves a live window as a new session.
type CaptureWindowRequest struct {
	WindowID WindowID `json:"windowId"`
	Name     string   `json:"name"`
}

// CaptureWindowResponse returns the created session.
type CaptureWindowResponse struct {
	Session Session `json:"session"`
}

// RenameSessionRequest changes a session's user label.
type RenameSessionRequest struct {
	SessionID SessionID `json:"sessionId"`
	Name      string    `json:"name"`
}

// RenameSessionResponse returns the renamed session.
type RenameSessionResponse struct {
	Session Session `json:"session"`
}

// ListSessionsRequest lists sessions relative to the caller's window.
type ListSessionsRequest struct {
	CurrentWindow *WindowID `json:"currentWindow,omitempty"`
}

// ListSessionsResponse lists sessions newest first.
type ListSessionsResponse struct {
	Sessions []SessionView `json:"sessions"`
	// CurrentSaved reports whether the caller's window is already bound.
	CurrentSaved bool `json:"currentSaved"`
}

// OpenSessionResponse reports which window now shows the session.
type OpenSessionResponse struct {
	WindowID WindowID `json:"windowId"`
	Created  bool     `json:"created"`
}
