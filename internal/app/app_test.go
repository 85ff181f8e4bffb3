package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/push"
	"github.com/SFZPL/lead-automation-system-sub000/internal/service"
	"github.com/SFZPL/lead-automation-system-sub000/internal/store"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (r *recordingNotifier) Notify(n domain.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notes...)
}

func newTestApp(t *testing.T, mutate func(cfg *adapter.Config)) (*App, *recordingNotifier, *atomic.Int32) {
	t.Helper()
	var countCalls atomic.Int32

	r := chi.NewRouter()
	r.Post("/api/operations/enrich-leads", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"operation_id": "op-7", "status": "started"})
	})
	r.Get("/api/leads/counts", func(w http.ResponseWriter, r *http.Request) {
		n := int(countCalls.Add(1))
		_ = json.NewEncoder(w).Encode(map[string]int{"total": 10 * n, "enriched": n})
	})
	r.Get("/auth/outlook/authorize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"auth_url": "https://login.example.com/consent", "state": "st-1"})
	})
	r.Get("/auth/outlook/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"authorized": true, "user_email": "rep@example.com"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := adapter.DefaultConfig()
	cfg.Server.URL = srv.URL
	if mutate != nil {
		mutate(cfg)
	}

	st := store.NewMemory()
	require.NoError(t, st.SaveToken("token"))

	notifier := &recordingNotifier{}
	a, err := newApp(cfg, adapter.NullLogger(), notifier, st)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, notifier, &countCalls
}

func TestNewApp_SchedulesPolledQueries(t *testing.T) {
	a, _, _ := newTestApp(t, nil)
	assert.Equal(t, 4, a.Poller.Jobs())
}

func TestNewApp_ZeroIntervalDisablesPolling(t *testing.T) {
	a, _, _ := newTestApp(t, func(cfg *adapter.Config) {
		cfg.Polling.Followups = 0
		cfg.Polling.Assignments = 0
	})
	assert.Equal(t, 2, a.Poller.Jobs())
}

func TestNewApp_RejectsUnusableServerURL(t *testing.T) {
	cfg := adapter.DefaultConfig()
	cfg.Server.URL = "ftp://example.com"

	_, err := newApp(cfg, adapter.NullLogger(), nil, store.NewMemory())
	assert.Error(t, err)
}

func TestPushEvents_DriveTrackerAndRefreshCounts(t *testing.T) {
	a, notifier, countCalls := newTestApp(t, nil)
	ctx := context.Background()

	counts, err := a.Leads.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, counts.Total)

	var (
		mu      sync.Mutex
		commits []domain.CacheEntry
	)
	a.Cache.Subscribe(func(e domain.CacheEntry) {
		mu.Lock()
		commits = append(commits, e)
		mu.Unlock()
	})

	_, err = a.Tracker.Start(ctx, domain.OperationEnrichLeads)
	require.NoError(t, err)

	progress := 50.0
	a.Dispatcher.Dispatch(push.OperationUpdate{Event: domain.OperationEvent{
		OperationID: "op-7", Status: domain.StatusRunning, Progress: &progress,
	}})
	op, ok := a.Tracker.Current()
	require.True(t, ok)
	assert.Equal(t, 50, op.Progress)

	a.Dispatcher.Dispatch(push.OperationUpdate{Event: domain.OperationEvent{
		OperationID: "op-7", Status: domain.StatusCompleted,
	}})

	notes := notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifySuccess, notes[0].Kind)

	// Completion refetches the counts without anyone reading them
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range commits {
			if strings.HasPrefix(e.Key, service.PrefixLeadCounts) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), countCalls.Load())

	counts, err = a.Leads.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, counts.Total)
	assert.Equal(t, int32(2), countCalls.Load())
}

func TestLeadRefreshAfterCompletion_WorksWithoutPolling(t *testing.T) {
	a, _, countCalls := newTestApp(t, func(cfg *adapter.Config) {
		cfg.Polling.Counts = 0
	})
	ctx := context.Background()

	_, err := a.Leads.Counts(ctx)
	require.NoError(t, err)
	_, err = a.Tracker.Start(ctx, domain.OperationEnrichLeads)
	require.NoError(t, err)

	a.Dispatcher.Dispatch(push.OperationUpdate{Event: domain.OperationEvent{
		OperationID: "op-7", Status: domain.StatusCompleted,
	}})

	require.Eventually(t, func() bool { return countCalls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestPushAuthorization_CompletesConnectFlow(t *testing.T) {
	a, _, _ := newTestApp(t, func(cfg *adapter.Config) {
		cfg.OAuth.PollInterval = 10 * time.Millisecond
		cfg.OAuth.Timeout = 5 * time.Second
	})
	a.Launcher = adapter.NewLauncher("true", nil, adapter.NullLogger())
	var opened atomic.Int32
	a.OnWindow = func(*adapter.BrowserWindow) { opened.Add(1) }

	type result struct {
		status domain.AuthorizationStatus
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := a.Outlook.Connect(context.Background())
		done <- result{status, err}
	}()

	require.Eventually(t, a.Connector.InProgress, 2*time.Second, 10*time.Millisecond)

	// A handshake for some other flow is ignored
	a.Dispatcher.Dispatch(push.AuthorizationChanged{Authorized: true, State: "other"})
	assert.True(t, a.Connector.InProgress())

	a.Dispatcher.Dispatch(push.AuthorizationChanged{Authorized: true, State: "st-1"})

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.status.Authorized)
		assert.Equal(t, "rep@example.com", res.status.UserEmail)
	case <-time.After(3 * time.Second):
		t.Fatal("connect did not finish after handshake")
	}
	assert.Equal(t, int32(1), opened.Load())
	_, ok := a.Store.OAuthState()
	assert.False(t, ok)
}

func TestLoad_RemembersFollowupFilter(t *testing.T) {
	a, _, _ := newTestApp(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := a.Load(ctx, domain.FollowupFilter{DaysBack: 7})
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, domain.FollowupFilter{DaysBack: 7}, a.followupFilter())
	assert.Equal(t, 10, d.Counts.Total)
	// Unrouted sections fail on their own
	assert.Contains(t, d.Errors, "followups")
}

func TestConnect_ClosingWindowReadsStatus(t *testing.T) {
	a, _, _ := newTestApp(t, func(cfg *adapter.Config) {
		cfg.OAuth.PollInterval = 10 * time.Millisecond
		cfg.OAuth.Timeout = 5 * time.Second
	})
	a.Launcher = adapter.NewLauncher("true", nil, adapter.NullLogger())
	a.OnWindow = func(w *adapter.BrowserWindow) { w.Close() }

	status, err := a.Outlook.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rep@example.com", status.UserEmail)
	assert.False(t, a.Connector.InProgress())
}
