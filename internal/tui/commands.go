package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Command factories for async operations

// LoadDashboardCmd loads every dashboard section. reload forces a refetch.
func LoadDashboardCmd(svc DashboardLoader, filter domain.FollowupFilter, reload bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		load := svc.Load
		if reload {
			load = svc.Reload
		}
		d, err := load(ctx, filter)
		return DashboardLoadedMsg{Dashboard: d, Err: err}
	}
}

// StartOperationCmd asks the backend to start an operation
func StartOperationCmd(ops Operations, opType domain.OperationType) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		op, err := ops.Start(ctx, opType)
		if err != nil {
			return ErrMsg{Err: err, Context: "starting " + opType.Label()}
		}
		return OperationStartedMsg{Operation: op}
	}
}

// ConnectOutlookCmd runs the authorization window flow. Cancelling ctx
// abandons the wait.
func ConnectOutlookCmd(ctx context.Context, outlook OutlookConnector) tea.Cmd {
	return func() tea.Msg {
		status, err := outlook.Connect(ctx)
		return OutlookConnectedMsg{Status: status, Err: err}
	}
}

// ClearBannerCmd hides banner seq after ttl
func ClearBannerCmd(seq int, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return ClearBannerMsg{Seq: seq}
	})
}

// ClearStatusCmd clears the footer hint after a delay
func ClearStatusCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
