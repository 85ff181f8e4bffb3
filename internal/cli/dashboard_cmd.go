package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/tui"
)

func newDashboardCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd, e)
		},
	}
}

func runDashboard(cmd *cobra.Command, e *env) error {
	if e.json() {
		return errors.New("the dashboard is interactive; -o json is not supported")
	}

	observer := tui.NewChannelObserver()
	a, err := e.openSession(observer)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.Session.EnsureFresh(ctx, 5*time.Minute); err != nil {
		e.logger.Warn("token refresh failed", "error", err)
	}

	a.OnWindow = func(w *adapter.BrowserWindow) { observer.OnAuthWindow(w) }
	a.Tracker.Observe(observer.OnSnapshot)
	a.Cache.Subscribe(observer.OnCacheEntry)
	a.Start(ctx)

	model := tui.NewModel(tui.Deps{
		Dashboard: a,
		Ops:       a.Tracker,
		Outlook:   a.Outlook,
		Prefs:     a.Store,
		Events:    observer,
		Logger:    e.logger,
	}, tui.Options{
		ErrorCap:        e.cfg.UI.ErrorDisplayCap,
		NotificationTTL: e.cfg.UI.NotificationTTL,
		DefaultTab:      e.cfg.UI.DefaultTab,
	})

	e.logger.Info("starting TUI", "version", Version, "server", e.cfg.Server.URL)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		e.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	e.logger.Info("shutting down")
	return nil
}
