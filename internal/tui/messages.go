package tui

import (
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
	"github.com/SFZPL/lead-automation-system-sub000/internal/service"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// DashboardLoadedMsg carries a freshly loaded dashboard
type DashboardLoadedMsg struct {
	Dashboard *service.Dashboard
	Err       error
}

// OperationStartedMsg signals that the backend accepted a start request
type OperationStartedMsg struct {
	Operation domain.Operation
}

// SnapshotMsg carries the operation tracker state after a change
type SnapshotMsg struct {
	Snapshot operation.Snapshot
}

// CacheUpdatedMsg signals that a query result was committed to the cache
type CacheUpdatedMsg struct {
	Key string
}

// NotificationMsg shows a one-shot banner
type NotificationMsg struct {
	Notification domain.Notification
}

// ClearBannerMsg hides the banner shown with sequence Seq
type ClearBannerMsg struct {
	Seq int
}

// OutlookConnectedMsg signals the end of an authorization window flow
type OutlookConnectedMsg struct {
	Status domain.AuthorizationStatus
	Err    error
}

// AuthWindow is an open authorization window the operator can mark closed
type AuthWindow interface {
	Close()
}

// AuthWindowOpenedMsg hands the model the window of a connect in progress
type AuthWindowOpenedMsg struct {
	Window AuthWindow
}

// StatusMsg sets a temporary footer hint
type StatusMsg struct {
	Message string
	IsError bool
}

// ClearStatusMsg clears the footer hint
type ClearStatusMsg struct{}
