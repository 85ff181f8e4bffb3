package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
	"github.com/SFZPL/lead-automation-system-sub000/internal/service"
	"github.com/SFZPL/lead-automation-system-sub000/internal/tui/components"
	"github.com/SFZPL/lead-automation-system-sub000/internal/tui/styles"
)

// Tab is one of the dashboard pages
type Tab int

const (
	TabOverview Tab = iota
	TabFollowups
	TabDocuments
	tabCount
)

var tabNames = [tabCount]string{"overview", "followups", "documents"}
var tabTitles = [tabCount]string{"Overview", "Follow-ups", "Documents"}

func (t Tab) String() string { return tabNames[t] }

// ParseTab maps a persisted tab name back to a Tab
func ParseTab(s string) (Tab, bool) {
	for i, name := range tabNames {
		if name == s {
			return Tab(i), true
		}
	}
	return TabOverview, false
}

// Preference keys, written on every change
const (
	PrefTab            = "ui.tab"
	PrefFollowupFilter = "ui.filter.followups"
	PrefDocumentFilter = "ui.filter.documents"
	PrefDaysBack       = "ui.followups.days_back"
)

// daysBackChoices is the follow-up window cycle; 0 means no limit
var daysBackChoices = []int{0, 3, 7, 14, 30}

// statusHintDuration is how long footer hints stay up
const statusHintDuration = 4 * time.Second

// DashboardLoader loads the dashboard sections
type DashboardLoader interface {
	Load(ctx context.Context, filter domain.FollowupFilter) (*service.Dashboard, error)
	Reload(ctx context.Context, filter domain.FollowupFilter) (*service.Dashboard, error)
}

// Operations starts and tracks backend jobs
type Operations interface {
	Start(ctx context.Context, opType domain.OperationType) (domain.Operation, error)
	Cancel()
	CanStart() bool
}

// OutlookConnector runs the Outlook authorization flow
type OutlookConnector interface {
	Connect(ctx context.Context) (domain.AuthorizationStatus, error)
}

// Preferences persists UI choices
type Preferences interface {
	Preference(key string) (string, bool)
	SavePreference(key, value string) error
}

// Deps are the services the dashboard drives
type Deps struct {
	Dashboard DashboardLoader
	Ops       Operations
	Outlook   OutlookConnector
	Prefs     Preferences
	Events    *ChannelObserver
	Logger    *slog.Logger
}

// Options tune the dashboard
type Options struct {
	ErrorCap        int
	NotificationTTL time.Duration
	DefaultTab      string
}

// Model is the main Bubble Tea model for the application
type Model struct {
	Ready  bool
	Width  int
	Height int

	// Services
	dashboard DashboardLoader
	ops       Operations
	outlook   OutlookConnector
	prefs     Preferences
	events    *ChannelObserver
	logger    *slog.Logger
	opts      Options

	keys KeyMap

	// Data
	Tab      Tab
	Data     *service.Dashboard
	Snapshot operation.Snapshot

	// Filters, per tab
	Filter   components.FilterBar
	filters  [tabCount]string
	DaysBack int
	cursor   [tabCount]int

	// UI state
	Loading       bool
	reloadQueued  bool
	Connecting    bool
	cancelConnect context.CancelFunc
	authWindow    AuthWindow
	Banner        components.Banner
	StatusMsg     string
	StatusIsErr   bool
	ShowHelp      bool
	Spinner       spinner.Model
}

// NewModel creates a new application model, restoring the persisted tab and
// filters
func NewModel(deps Deps, opts Options) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.ErrorCap <= 0 {
		opts.ErrorCap = operation.DefaultErrorCap
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = 5 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.SpinnerStyle

	m := Model{
		dashboard: deps.Dashboard,
		ops:       deps.Ops,
		outlook:   deps.Outlook,
		prefs:     deps.Prefs,
		events:    deps.Events,
		logger:    deps.Logger,
		opts:      opts,
		keys:      DefaultKeyMap(),
		Filter:    components.NewFilterBar(),
		Spinner:   sp,
		Loading:   true,
	}
	m.keys.SetOperationsEnabled(true)

	if t, ok := ParseTab(opts.DefaultTab); ok {
		m.Tab = t
	}
	m.restorePreferences()
	m.Filter.SetValue(m.filters[m.Tab])
	return m
}

func (m *Model) restorePreferences() {
	if m.prefs == nil {
		return
	}
	if v, ok := m.prefs.Preference(PrefTab); ok {
		if t, ok := ParseTab(v); ok {
			m.Tab = t
		}
	}
	if v, ok := m.prefs.Preference(PrefFollowupFilter); ok {
		m.filters[TabFollowups] = v
	}
	if v, ok := m.prefs.Preference(PrefDocumentFilter); ok {
		m.filters[TabDocuments] = v
	}
	if v, ok := m.prefs.Preference(PrefDaysBack); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			m.DaysBack = n
		}
	}
}

func (m Model) savePreference(key, value string) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.SavePreference(key, value); err != nil {
		m.logger.Warn("failed to save preference", "key", key, "error", err)
	}
}

func filterPrefKey(t Tab) string {
	if t == TabDocuments {
		return PrefDocumentFilter
	}
	return PrefFollowupFilter
}

// FollowupFilter is the query the follow-up section is loaded with
func (m Model) FollowupFilter() domain.FollowupFilter {
	return domain.FollowupFilter{DaysBack: m.DaysBack}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		LoadDashboardCmd(m.dashboard, m.FollowupFilter(), false),
		m.Spinner.Tick,
		m.listen(),
	)
}

func (m Model) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return m.events.Listen()
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case DashboardLoadedMsg:
		m.Loading = false
		if msg.Err != nil {
			m.logger.Warn("dashboard load failed", "error", msg.Err)
			return m.setStatus("Could not load dashboard: "+msg.Err.Error(), true)
		}
		m.Data = msg.Dashboard
		m.clampCursors()
		if m.reloadQueued {
			m.reloadQueued = false
			return m.load(false)
		}
		return m, nil

	case SnapshotMsg:
		m.Snapshot = msg.Snapshot
		m.keys.SetOperationsEnabled(snapshotAllowsStart(msg.Snapshot))
		return m, m.listen()

	case CacheUpdatedMsg:
		model, cmd := m.load(false)
		return model, tea.Batch(cmd, m.listen())

	case NotificationMsg:
		seq := m.Banner.Show(msg.Notification)
		return m, tea.Batch(ClearBannerCmd(seq, m.opts.NotificationTTL), m.listen())

	case ClearBannerMsg:
		m.Banner.Clear(msg.Seq)
		return m, nil

	case OperationStartedMsg:
		m.logger.Info("operation started", "id", msg.Operation.ID, "type", msg.Operation.Type)
		return m, nil

	case OutlookConnectedMsg:
		return m.handleOutlookConnected(msg)

	case AuthWindowOpenedMsg:
		if !m.Connecting {
			msg.Window.Close()
			return m, m.listen()
		}
		m.authWindow = msg.Window
		m.keys.Confirm.SetEnabled(true)
		model, cmd := m.setStatus("Finish signing in to Outlook, then press Enter. Esc cancels.", false)
		return model, tea.Batch(cmd, m.listen())

	case ErrMsg:
		if errors.Is(msg.Err, domain.ErrOperationInProgress) {
			return m.setStatus("An operation is already running", true)
		}
		m.logger.Error("command failed", "context", msg.Context, "error", msg.Err)
		return m.notify(domain.Notification{Kind: domain.NotifyError, Title: "Error " + msg.Context, Message: msg.Err.Error()})

	case StatusMsg:
		return m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

// load starts a dashboard load, or queues one behind a load in flight
func (m Model) load(reload bool) (tea.Model, tea.Cmd) {
	if m.Loading && !reload {
		m.reloadQueued = true
		return m, nil
	}
	m.Loading = true
	return m, LoadDashboardCmd(m.dashboard, m.FollowupFilter(), reload)
}

func (m Model) setStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.StatusMsg = text
	m.StatusIsErr = isErr
	return m, ClearStatusCmd(statusHintDuration)
}

func (m Model) notify(n domain.Notification) (tea.Model, tea.Cmd) {
	seq := m.Banner.Show(n)
	return m, ClearBannerCmd(seq, m.opts.NotificationTTL)
}

func (m Model) handleOutlookConnected(msg OutlookConnectedMsg) (tea.Model, tea.Cmd) {
	m.Connecting = false
	m.cancelConnect = nil
	m.dropAuthWindow()

	var n domain.Notification
	switch {
	case errors.Is(msg.Err, context.Canceled):
		return m.setStatus("Outlook connection cancelled", false)
	case errors.Is(msg.Err, domain.ErrPopupBlocked):
		n = domain.Notification{Kind: domain.NotifyError, Title: "Outlook", Message: "Could not open a browser window"}
	case msg.Err != nil:
		n = domain.Notification{Kind: domain.NotifyError, Title: "Outlook", Message: msg.Err.Error()}
	case msg.Status.Authorized:
		n = domain.Notification{Kind: domain.NotifySuccess, Title: "Outlook connected", Message: msg.Status.UserEmail}
	default:
		n = domain.Notification{Kind: domain.NotifyInfo, Title: "Outlook", Message: "Authorization was not completed"}
	}

	model, notifyCmd := m.notify(n)
	model, loadCmd := model.(Model).load(false)
	return model, tea.Batch(notifyCmd, loadCmd)
}

// dropAuthWindow closes and forgets the current authorization window
func (m *Model) dropAuthWindow() {
	if m.authWindow != nil {
		m.authWindow.Close()
		m.authWindow = nil
	}
	m.keys.Confirm.SetEnabled(false)
}

func snapshotAllowsStart(s operation.Snapshot) bool {
	if s.Starting {
		return false
	}
	return !s.Tracked || s.Operation.Status.Terminal()
}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Filter.Active() {
		var cmd tea.Cmd
		var done bool
		m.Filter, cmd, done = m.Filter.Update(msg)
		m.filters[m.Tab] = m.Filter.Value()
		m.cursor[m.Tab] = 0
		if done {
			m.savePreference(filterPrefKey(m.Tab), m.filters[m.Tab])
		}
		return m, cmd
	}

	if m.ShowHelp {
		m.ShowHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancelConnect != nil {
			m.cancelConnect()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Confirm):
		// The connector sees the closed window and reads the final status
		m.dropAuthWindow()
		return m.setStatus("Checking Outlook authorization...", false)

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = true
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		m.setTab((m.Tab + 1) % tabCount)
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.setTab((m.Tab + tabCount - 1) % tabCount)
		return m, nil

	case key.Matches(msg, m.keys.StartExtract):
		return m.startOperation(domain.OperationExtractLeads)

	case key.Matches(msg, m.keys.StartEnrich):
		return m.startOperation(domain.OperationEnrichLeads)

	case key.Matches(msg, m.keys.StartPipeline):
		return m.startOperation(domain.OperationFullPipeline)

	case key.Matches(msg, Keys.StartExtract, Keys.StartEnrich, Keys.StartPipeline):
		// Start keys are disabled in m.keys while an operation runs
		return m.setStatus("An operation is already running. Press x to stop tracking it.", true)

	case key.Matches(msg, m.keys.Cancel):
		m.ops.Cancel()
		return m.setStatus("Stopped tracking. The job keeps running on the server.", false)

	case key.Matches(msg, m.keys.Refresh):
		return m.load(true)

	case key.Matches(msg, m.keys.Filter):
		if m.Tab == TabOverview {
			return m.setStatus("Switch to Follow-ups or Documents to filter", false)
		}
		m.Filter.Focus(m.filters[m.Tab])
		return m, textinput.Blink

	case key.Matches(msg, m.keys.DaysBack):
		m.DaysBack = nextDaysBack(m.DaysBack)
		m.savePreference(PrefDaysBack, strconv.Itoa(m.DaysBack))
		m.cursor[TabFollowups] = 0
		return m.load(false)

	case key.Matches(msg, m.keys.Connect):
		if m.Connecting || m.outlook == nil {
			return m, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.Connecting = true
		m.cancelConnect = cancel
		return m, ConnectOutlookCmd(ctx, m.outlook)

	case key.Matches(msg, m.keys.Escape):
		if m.Connecting && m.cancelConnect != nil {
			m.cancelConnect()
			return m, nil
		}
		m.Banner.Clear(m.Banner.Seq())
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor[m.Tab] > 0 {
			m.cursor[m.Tab]--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor[m.Tab] < m.rowCount()-1 {
			m.cursor[m.Tab]++
		}
		return m, nil
	}

	return m, nil
}

func (m Model) startOperation(t domain.OperationType) (tea.Model, tea.Cmd) {
	if !m.ops.CanStart() {
		return m.setStatus("An operation is already running", true)
	}
	return m, StartOperationCmd(m.ops, t)
}

func (m *Model) setTab(t Tab) {
	m.Tab = t
	m.Filter.SetValue(m.filters[t])
	m.savePreference(PrefTab, t.String())
}

func (m *Model) clampCursors() {
	for t := Tab(0); t < tabCount; t++ {
		n := m.rowCountFor(t)
		if m.cursor[t] >= n {
			m.cursor[t] = max(n-1, 0)
		}
	}
}

func (m Model) rowCount() int {
	return m.rowCountFor(m.Tab)
}

func (m Model) rowCountFor(t Tab) int {
	switch t {
	case TabFollowups:
		return len(m.followupRows())
	case TabDocuments:
		return len(m.documentRows())
	default:
		return 0
	}
}

func nextDaysBack(current int) int {
	for i, d := range daysBackChoices {
		if d == current {
			return daysBackChoices[(i+1)%len(daysBackChoices)]
		}
	}
	return daysBackChoices[0]
}

func daysBackLabel(days int) string {
	if days == 0 {
		return "all time"
	}
	return fmt.Sprintf("last %d days", days)
}
