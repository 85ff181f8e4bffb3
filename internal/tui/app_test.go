package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
	"github.com/SFZPL/lead-automation-system-sub000/internal/service"
	"github.com/SFZPL/lead-automation-system-sub000/internal/store"
)

type fakeDashboard struct {
	mu      sync.Mutex
	d       *service.Dashboard
	loads   int
	reloads int
	filters []domain.FollowupFilter
}

func (f *fakeDashboard) Load(_ context.Context, filter domain.FollowupFilter) (*service.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.filters = append(f.filters, filter)
	return f.d, nil
}

func (f *fakeDashboard) Reload(_ context.Context, filter domain.FollowupFilter) (*service.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	f.filters = append(f.filters, filter)
	return f.d, nil
}

type fakeOps struct {
	mu       sync.Mutex
	canStart bool
	started  []domain.OperationType
	cancels  int
}

func (f *fakeOps) Start(_ context.Context, t domain.OperationType) (domain.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, t)
	return domain.Operation{ID: "op-1", Type: t, Status: domain.StatusStarting}, nil
}

func (f *fakeOps) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeOps) CanStart() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canStart
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, prefs Preferences) (Model, *fakeDashboard, *fakeOps) {
	t.Helper()
	dash := &fakeDashboard{d: &service.Dashboard{
		Counts: domain.LeadCounts{Total: 10, Enriched: 4, Unenriched: 6},
		Followups: []domain.Followup{
			{ID: "1", LeadName: "Acme Corp", DaysSince: 5, Status: domain.FollowupPending},
			{ID: "2", LeadName: "Globex", DaysSince: 9, Status: domain.FollowupPending},
			{ID: "3", LeadName: "Initech", DaysSince: 12, Status: domain.FollowupDrafted},
		},
		Errors: map[string]error{},
	}}
	ops := &fakeOps{canStart: true}
	m := NewModel(Deps{
		Dashboard: dash,
		Ops:       ops,
		Prefs:     prefs,
		Logger:    adapter.NullLogger(),
	}, Options{ErrorCap: 3, NotificationTTL: time.Second})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), dash, ops
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func runningSnapshot() operation.Snapshot {
	return operation.Snapshot{
		Tracked: true,
		Operation: domain.Operation{
			ID: "op-1", Type: domain.OperationEnrichLeads, Status: domain.StatusRunning,
			Progress: 40, CurrentStep: "Enriching", LeadsProcessed: 4, TotalLeads: 10,
		},
	}
}

func TestNewModel_RestoresPreferences(t *testing.T) {
	prefs := store.NewMemory()
	require.NoError(t, prefs.SavePreference(PrefTab, "documents"))
	require.NoError(t, prefs.SavePreference(PrefFollowupFilter, "acme"))
	require.NoError(t, prefs.SavePreference(PrefDaysBack, "14"))

	m, _, _ := newTestModel(t, prefs)

	assert.Equal(t, TabDocuments, m.Tab)
	assert.Equal(t, "acme", m.filters[TabFollowups])
	assert.Equal(t, 14, m.DaysBack)
	assert.Equal(t, domain.FollowupFilter{DaysBack: 14}, m.FollowupFilter())
}

func TestTabSwitch_PersistsTab(t *testing.T) {
	prefs := store.NewMemory()
	m, _, _ := newTestModel(t, prefs)
	require.Equal(t, TabOverview, m.Tab)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabFollowups, m.Tab)
	v, ok := prefs.Preference(PrefTab)
	require.True(t, ok)
	assert.Equal(t, "followups", v)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, TabOverview, m.Tab)
}

func TestStartKey_StartsWhenIdle(t *testing.T) {
	m, _, ops := newTestModel(t, nil)

	_, cmd := update(t, m, runeKey("p"))
	require.NotNil(t, cmd)
	msg := cmd()

	started, ok := msg.(OperationStartedMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, domain.OperationFullPipeline, started.Operation.Type)
	assert.Equal(t, []domain.OperationType{domain.OperationFullPipeline}, ops.started)
}

func TestStartKey_DisabledWhileRunning(t *testing.T) {
	m, _, ops := newTestModel(t, nil)
	m, _ = update(t, m, SnapshotMsg{Snapshot: runningSnapshot()})

	m, cmd := update(t, m, runeKey("e"))

	assert.Contains(t, m.StatusMsg, "already running")
	assert.True(t, m.StatusIsErr)
	require.NotNil(t, cmd) // status clear timer only
	assert.Empty(t, ops.started)
	assert.Contains(t, m.View(), "disabled until this operation finishes")
}

func TestStartKey_ReenabledAfterTerminal(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	m, _ = update(t, m, SnapshotMsg{Snapshot: runningSnapshot()})

	done := runningSnapshot()
	done.Operation.Status = domain.StatusCompleted
	done.Operation.Progress = 100
	m, _ = update(t, m, SnapshotMsg{Snapshot: done})

	assert.True(t, m.keys.StartExtract.Enabled())
	assert.False(t, m.keys.Cancel.Enabled())
}

func TestCancelKey_StopsTracking(t *testing.T) {
	m, _, ops := newTestModel(t, nil)
	m, _ = update(t, m, SnapshotMsg{Snapshot: runningSnapshot()})

	m, _ = update(t, m, runeKey("x"))

	assert.Equal(t, 1, ops.cancels)
	assert.Contains(t, m.StatusMsg, "Stopped tracking")
}

func TestOperationPanel_CapsErrors(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	snap := runningSnapshot()
	snap.Operation.Status = domain.StatusFailed
	snap.Operation.Errors = []string{"e1", "e2", "e3", "e4", "e5"}
	m, _ = update(t, m, SnapshotMsg{Snapshot: snap})

	view := m.View()
	assert.Contains(t, view, "e3")
	assert.NotContains(t, view, "e4")
	assert.Contains(t, view, "+2 more")
	assert.Contains(t, view, "Leads: 4 / 10")
}

func TestBanner_ClearsOnlyItsOwnNotification(t *testing.T) {
	m, _, _ := newTestModel(t, nil)

	m, cmd := update(t, m, NotificationMsg{Notification: domain.Notification{Kind: domain.NotifySuccess, Title: "Lead enrichment completed"}})
	require.NotNil(t, cmd)
	first := m.Banner.Seq()

	m, _ = update(t, m, NotificationMsg{Notification: domain.Notification{Kind: domain.NotifyError, Title: "Lead extraction failed"}})
	m, _ = update(t, m, ClearBannerMsg{Seq: first})

	n, ok := m.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, "Lead extraction failed", n.Title)

	m, _ = update(t, m, ClearBannerMsg{Seq: m.Banner.Seq()})
	assert.False(t, m.Banner.Visible())
}

func TestFilter_NarrowsRowsAndPersists(t *testing.T) {
	prefs := store.NewMemory()
	m, dash, _ := newTestModel(t, prefs)
	m, _ = update(t, m, DashboardLoadedMsg{Dashboard: dash.d})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Len(t, m.followupRows(), 3)

	m, _ = update(t, m, runeKey("/"))
	require.True(t, m.Filter.Active())
	for _, r := range "glo" {
		m, _ = update(t, m, runeKey(string(r)))
	}

	rows := m.followupRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Globex", rows[0].Label)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Filter.Active())
	v, ok := prefs.Preference(PrefFollowupFilter)
	require.True(t, ok)
	assert.Equal(t, "glo", v)
}

func TestFilter_OverviewShowsHint(t *testing.T) {
	m, _, _ := newTestModel(t, nil)

	m, _ = update(t, m, runeKey("/"))

	assert.False(t, m.Filter.Active())
	assert.Contains(t, m.StatusMsg, "Follow-ups or Documents")
}

func TestDaysBack_CyclesPersistsAndReloads(t *testing.T) {
	prefs := store.NewMemory()
	m, dash, _ := newTestModel(t, prefs)
	m, _ = update(t, m, DashboardLoadedMsg{Dashboard: dash.d})

	m, cmd := update(t, m, runeKey("d"))
	assert.Equal(t, 3, m.DaysBack)
	v, _ := prefs.Preference(PrefDaysBack)
	assert.Equal(t, "3", v)

	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []domain.FollowupFilter{{DaysBack: 3}}, dash.filters)
}

func TestCacheUpdate_QueuesBehindLoadInFlight(t *testing.T) {
	m, dash, _ := newTestModel(t, nil)
	require.True(t, m.Loading)

	m, cmd := update(t, m, CacheUpdatedMsg{Key: "/api/leads/counts"})
	assert.Nil(t, cmd)
	assert.True(t, m.reloadQueued)

	m, cmd = update(t, m, DashboardLoadedMsg{Dashboard: dash.d})
	assert.False(t, m.reloadQueued)
	assert.True(t, m.Loading)
	require.NotNil(t, cmd)
	assert.IsType(t, DashboardLoadedMsg{}, cmd())
}

func TestRefreshKey_Reloads(t *testing.T) {
	m, dash, _ := newTestModel(t, nil)

	_, cmd := update(t, m, runeKey("r"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, dash.reloads)
}

func TestDashboardSectionError_Shown(t *testing.T) {
	m, dash, _ := newTestModel(t, nil)
	d := *dash.d
	d.Errors = map[string]error{"counts": errors.New("server offline")}
	m, _ = update(t, m, DashboardLoadedMsg{Dashboard: &d})

	view := m.View()
	assert.Contains(t, view, "Unavailable: server offline")
	assert.Contains(t, view, "Follow-ups due: 3")
}

func TestOutlookConnected_Cancelled(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	m.Connecting = true

	m, _ = update(t, m, OutlookConnectedMsg{Err: context.Canceled})

	assert.False(t, m.Connecting)
	assert.Equal(t, "Outlook connection cancelled", m.StatusMsg)
	assert.False(t, m.Banner.Visible())
}

func TestOutlookConnected_PopupBlocked(t *testing.T) {
	m, _, _ := newTestModel(t, nil)

	m, _ = update(t, m, OutlookConnectedMsg{Err: domain.ErrPopupBlocked})

	n, ok := m.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, domain.NotifyError, n.Kind)
	assert.Equal(t, "Could not open a browser window", n.Message)
}

func TestChannelObserver_KeepsLatestSnapshot(t *testing.T) {
	o := NewChannelObserver()
	first := runningSnapshot()
	second := runningSnapshot()
	second.Operation.Progress = 80

	o.OnSnapshot(first)
	o.OnSnapshot(second)

	msg := o.Listen()()
	snap, ok := msg.(SnapshotMsg)
	require.True(t, ok)
	assert.Equal(t, 80, snap.Snapshot.Operation.Progress)
}

func TestChannelObserver_NeverBlocks(t *testing.T) {
	o := NewChannelObserver()
	done := make(chan struct{})
	go func() {
		for i := 0; i < observerBuffer*2; i++ {
			o.Notify(domain.Notification{Title: "n"})
			o.OnCacheEntry(domain.CacheEntry{Key: "k"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer blocked")
	}
	assert.IsType(t, NotificationMsg{}, o.Listen()())
}

type fakeWindow struct {
	once   sync.Once
	closed chan struct{}
}

func newFakeWindow() *fakeWindow { return &fakeWindow{closed: make(chan struct{})} }

func (w *fakeWindow) Close() { w.once.Do(func() { close(w.closed) }) }

// windowOutlook behaves like the connector: it waits for the window to close,
// then reports the status the backend returns.
type windowOutlook struct {
	window *fakeWindow
}

func (o *windowOutlook) Connect(ctx context.Context) (domain.AuthorizationStatus, error) {
	select {
	case <-o.window.closed:
		return domain.AuthorizationStatus{Authorized: false}, nil
	case <-ctx.Done():
		return domain.AuthorizationStatus{}, ctx.Err()
	}
}

func TestOutlookConnect_EnterClosesWindowAndReadsStatus(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	win := newFakeWindow()
	m.outlook = &windowOutlook{window: win}

	m, connectCmd := update(t, m, runeKey("o"))
	require.NotNil(t, connectCmd)
	require.True(t, m.Connecting)

	result := make(chan tea.Msg, 1)
	go func() { result <- connectCmd() }()

	m, _ = update(t, m, AuthWindowOpenedMsg{Window: win})
	assert.True(t, m.keys.Confirm.Enabled())
	assert.Contains(t, m.StatusMsg, "press Enter")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.Connecting, "still waiting for the status read")
	assert.False(t, m.keys.Confirm.Enabled())

	var msg tea.Msg
	select {
	case msg = <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not finish after the window closed")
	}
	connected, ok := msg.(OutlookConnectedMsg)
	require.True(t, ok)
	require.NoError(t, connected.Err)

	m, _ = update(t, m, connected)
	assert.False(t, m.Connecting)
	n, ok := m.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, "Authorization was not completed", n.Message)
}

func TestOutlookConnect_EscapeCancelsAndClosesWindow(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	win := newFakeWindow()
	m.outlook = &windowOutlook{window: win}

	m, connectCmd := update(t, m, runeKey("o"))
	require.NotNil(t, connectCmd)
	m, _ = update(t, m, AuthWindowOpenedMsg{Window: win})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	msg := connectCmd()
	m, _ = update(t, m, msg)

	assert.Equal(t, "Outlook connection cancelled", m.StatusMsg)
	assert.False(t, m.keys.Confirm.Enabled())
	select {
	case <-win.closed:
	default:
		t.Fatal("window left open after cancel")
	}
}

func TestAuthWindow_ClosedWhenNotConnecting(t *testing.T) {
	m, _, _ := newTestModel(t, nil)
	win := newFakeWindow()

	m, _ = update(t, m, AuthWindowOpenedMsg{Window: win})

	assert.False(t, m.keys.Confirm.Enabled())
	select {
	case <-win.closed:
	default:
		t.Fatal("stray window left open")
	}
}
