package schema

// HostEventType identifies a windowing host notification.
type HostEventType string

const (
	// HostWindowRemoved reports a closed window.
	HostWindowRemoved HostEventType = "window-removed"
	// HostWindowFocusChanged reports a focus change; WindowID may be WindowIDNone.
	HostWindowFocusChanged HostEventType = "window-focus-changed"
	// HostTabUpdated reports a tab state change with a load status.
	HostTabUpdated HostEventType = "tab-updated"
	// HostTabAttached reports a tab moved into WindowID.
	HostTabAttached HostEventType = "tab-attached"
	// HostTabDetached reports a tab moved out of WindowID.
	HostTabDetached HostEventType = "tab-detached"
)

// TabStatusComplete is the load status that triggers reconciliation.
const TabStatusComplete = "complete"

// HostEvent is a window or tab lifecycle notification from the host.
type HostEvent struct {
	Type     HostEventType `json:"type"`
	WindowID WindowID      `json:"windowId"`
	TabID    TabID         `json:"tabId,omitempty"`
	Status   string        `json:"status,omitempty"`
}

// SessionEventType describes a session collection change.
type SessionEventType string

const (
	// SessionEventCreated indicates a captured window.
	SessionEventCreated SessionEventType = "created"
	// SessionEventUpdated indicates refreshed tabs.
	SessionEventUpdated SessionEventType = "updated"
	// SessionEventRenamed indicates a new user label.
	SessionEventRenamed SessionEventType = "renamed"
	// SessionEventDeleted indicates a removed session.
	SessionEventDeleted SessionEventType = "deleted"
	// SessionEventBound indicates a session attached to a live window.
	SessionEventBound SessionEventType = "bound"
	// SessionEventUnbound indicates a session whose window closed.
	SessionEventUnbound SessionEventType = "unbound"
	// SessionEventReconciled indicates a full reconciliation pass.
	SessionEventReconciled SessionEventType = "reconciled"
)

// SessionEvent notifies the presentation layer about collection changes.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID SessionID        `json:"sessionId,omitempty"`
	WindowID  *WindowID        `json:"windowId,omitempty"`
}
