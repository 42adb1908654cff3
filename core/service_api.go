package core

import (
	"context"

	"pkt.systems/tabkeeper/schema"
)

// Service is the transport-agnostic API of the reconciliation engine.
type Service interface {
	// Initialize waits for the host to report windows, then runs ReconcileAll.
	Initialize(ctx context.Context) error
	ReconcileAll(ctx context.Context) error
	ReconcileWindow(ctx context.Context, windowID schema.WindowID) error
	WindowRemoved(ctx context.Context, windowID schema.WindowID) error
	HandleEvent(ctx context.Context, event schema.HostEvent)
	// Run consumes host events until ctx is done or the host closes.
	Run(ctx context.Context) error

	CaptureWindow(ctx context.Context, req schema.CaptureWindowRequest) (schema.CaptureWindowResponse, error)
	RenameSession(ctx context.Context, req schema.RenameSessionRequest) (schema.RenameSessionResponse, error)
	DeleteSession(ctx context.Context, id schema.SessionID) error
	ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error)
	OpenSession(ctx context.Context, id schema.SessionID) (schema.OpenSessionResponse, error)
	CloseSessionWindow(ctx context.Context, id schema.SessionID) error
	WindowStatus(ctx context.Context, windowID schema.WindowID) (schema.WindowStatus, error)
	CreateWindow(ctx context.Context, req schema.CreateWindowRequest) (schema.CreateWindowResponse, error)

	// Close cancels pending debounced updates.
	Close()
}
