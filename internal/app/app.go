// Package app assembles the client from configuration: session store, backend
// client, query cache, operation tracker, push channel and OAuth connector.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/backend"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/oauth"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
	"github.com/SFZPL/lead-automation-system-sub000/internal/push"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
	"github.com/SFZPL/lead-automation-system-sub000/internal/service"
	"github.com/SFZPL/lead-automation-system-sub000/internal/store"
)

// App holds every long-lived component
type App struct {
	Config *adapter.Config
	Logger *slog.Logger

	Store      *store.Store
	Client     *backend.Client
	Cache      *querycache.Cache
	Poller     *querycache.Poller
	Tracker    *operation.Tracker
	Dispatcher *push.Dispatcher
	Channel    *push.Channel
	Launcher   *adapter.Launcher
	Connector  *oauth.Connector

	Session     *service.SessionService
	Leads       *service.LeadService
	Outlook     *service.OutlookService
	Followups   *service.FollowupService
	NDA         *service.NDAService
	Knowledge   *service.KnowledgeService
	Assignments *service.AssignmentService
	Reports     *service.ReportService
	Dashboard   *service.DashboardService

	// OnWindow, when set, receives each authorization window as it opens so
	// the caller can signal its closure.
	OnWindow func(w *adapter.BrowserWindow)

	notifier domain.Notifier

	// background work started by hooks; cancelled and awaited by Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	filter domain.FollowupFilter
}

// New wires the application. notifier receives operation notifications and
// may be nil.
func New(cfg *adapter.Config, logger *slog.Logger, notifier domain.Notifier) (*App, error) {
	st, err := store.New(adapter.GetDataPath(), cfg.Server.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return newApp(cfg, logger, notifier, st)
}

func newApp(cfg *adapter.Config, logger *slog.Logger, notifier domain.Notifier, st *store.Store) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = domain.NoOpNotifier{}
	}

	pushURL, err := cfg.ResolvePushURL()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Store: st, notifier: notifier}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.Client = backend.NewClient(cfg.Server.URL, st, backend.Options{
		Timeout:       cfg.HTTP.Timeout,
		ReportTimeout: cfg.HTTP.ReportTimeout,
	}, logger)
	a.Cache = querycache.New(st, logger)
	a.Tracker = operation.NewTracker(a.Client, notifier, logger)

	a.Launcher = adapter.NewLauncher(cfg.Browser.Command, cfg.Browser.Args, logger)
	a.Connector = oauth.NewConnector(a.Client, oauth.OpenerFunc(a.openWindow), st, oauth.Config{
		PollInterval: cfg.OAuth.PollInterval,
		Timeout:      cfg.OAuth.Timeout,
	}, logger)

	// Services
	a.Session = service.NewSessionService(a.Client, st, a.Cache, logger)
	a.Leads = service.NewLeadService(a.Client, a.Cache, cfg.Polling.Counts)
	a.Outlook = service.NewOutlookService(a.Connector, a.Cache, cfg.Polling.OutlookStatus, logger)
	a.Followups = service.NewFollowupService(a.Client, a.Cache, cfg.Polling.Followups, logger)
	a.NDA = service.NewNDAService(a.Client, a.Cache, logger)
	a.Knowledge = service.NewKnowledgeService(a.Client, a.Cache, logger)
	a.Assignments = service.NewAssignmentService(a.Client, a.Cache, cfg.Polling.Assignments, logger)
	a.Reports = service.NewReportService(a.Client, a.Cache, logger)
	a.Dashboard = service.NewDashboardService(a.Leads, a.Outlook, a.Followups, a.NDA,
		a.Knowledge, a.Assignments, a.Reports, logger)

	// A finished run changes the lead pool
	a.Tracker.OnTerminal(func(op domain.Operation) {
		logger.Info("operation finished", "id", op.ID, "status", op.Status)
		a.Leads.Invalidate()
		a.background(func(ctx context.Context) {
			if _, err := a.Leads.Refresh(ctx); err != nil {
				logger.Warn("lead count refresh failed", "error", err)
			}
		})
	})

	// Push channel
	a.Dispatcher = push.NewDispatcher(logger)
	a.Dispatcher.OnOperation(a.Tracker.Apply)
	a.Dispatcher.OnAuthorization(func(m push.AuthorizationChanged) {
		a.Connector.NotifyCompleted(m.State)
		a.Outlook.Invalidate()
	})
	a.Channel = push.NewChannel(push.Config{
		URL:          pushURL,
		ReconnectMin: cfg.Push.ReconnectMin,
		ReconnectMax: cfg.Push.ReconnectMax,
		MaxAttempts:  cfg.Push.MaxAttempts,
	}, st, a.Dispatcher, logger)
	a.Channel.OnConnect(func(ctx context.Context) {
		if err := a.Tracker.Resync(ctx); err != nil {
			logger.Warn("operation resync failed", "error", err)
		}
	})

	a.Poller = querycache.NewPoller(logger)
	if err := a.watch(); err != nil {
		return nil, err
	}

	return a, nil
}

// watch registers the polled dashboard queries
func (a *App) watch() error {
	p := a.Config.Polling
	return errors.Join(
		a.Poller.Watch("lead-counts", p.Counts, func(ctx context.Context) error {
			_, err := a.Leads.Refresh(ctx)
			return err
		}),
		a.Poller.Watch("followups", p.Followups, func(ctx context.Context) error {
			_, err := a.Followups.Refresh(ctx, a.followupFilter())
			return err
		}),
		a.Poller.Watch("outlook-status", p.OutlookStatus, func(ctx context.Context) error {
			_, err := a.Outlook.Refresh(ctx)
			return err
		}),
		a.Poller.Watch("assignments", p.Assignments, func(ctx context.Context) error {
			_, err := a.Assignments.Refresh(ctx, domain.AssignmentPending)
			return err
		}),
	)
}

// background runs fn off the caller's goroutine, bounded by the HTTP timeout
func (a *App) background(fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if t := a.Config.HTTP.Timeout; t > 0 {
			ctx, cancel = context.WithTimeout(a.ctx, t)
		} else {
			ctx, cancel = context.WithCancel(a.ctx)
		}
		defer cancel()
		fn(ctx)
	}()
}

func (a *App) openWindow(url string) (oauth.Window, error) {
	w, err := a.Launcher.OpenWindow(url)
	if err != nil {
		return nil, err
	}
	if a.OnWindow != nil {
		a.OnWindow(w)
	}
	return w, nil
}

func (a *App) followupFilter() domain.FollowupFilter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter
}

// Load loads the dashboard and remembers filter for background polling
func (a *App) Load(ctx context.Context, filter domain.FollowupFilter) (*service.Dashboard, error) {
	a.mu.Lock()
	a.filter = filter
	a.mu.Unlock()
	return a.Dashboard.Load(ctx, filter)
}

// Reload invalidates and loads the dashboard. It also resyncs the tracked
// operation, which is the only way to see progress while the push channel is
// down.
func (a *App) Reload(ctx context.Context, filter domain.FollowupFilter) (*service.Dashboard, error) {
	a.mu.Lock()
	a.filter = filter
	a.mu.Unlock()
	if err := a.Tracker.Resync(ctx); err != nil {
		a.Logger.Warn("operation resync failed", "error", err)
	}
	return a.Dashboard.Reload(ctx, filter)
}

// Start begins background polling and the push channel. Both stop when ctx
// is cancelled or Close is called.
func (a *App) Start(ctx context.Context) {
	a.Poller.Start()
	go func() {
		if err := a.Channel.Run(ctx); err != nil {
			a.Logger.Error("push channel stopped", "error", err)
			a.notifier.Notify(domain.Notification{
				Kind:    domain.NotifyError,
				Title:   "Live updates unavailable",
				Message: "Progress will update on refresh",
			})
		}
	}()
}

// Close stops polling and closes the session store
func (a *App) Close() error {
	a.cancel()
	a.wg.Wait()
	a.Poller.Stop()
	return a.Store.Close()
}
