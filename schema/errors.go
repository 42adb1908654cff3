package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrWindowNotFound indicates a referenced window no longer exists.
	ErrWindowNotFound = errors.New("window not found")
	// ErrEmptyWindow indicates a window without tabs cannot be captured.
	ErrEmptyWindow = errors.New("window has no tabs")
	// ErrWindowAlreadySaved indicates the window is already bound to a session.
	ErrWindowAlreadySaved = errors.New("window already saved")
	// ErrInvalidName indicates an empty or invalid session name.
	ErrInvalidName = errors.New("invalid session name")
	// ErrStoreClosed indicates the session store no longer accepts work.
	ErrStoreClosed = errors.New("session store closed")
	// ErrHostUnavailable indicates no windowing host is configured.
	ErrHostUnavailable = errors.New("windowing host not configured")
)
