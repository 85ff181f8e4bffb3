package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
)

const observerBuffer = 64

// ChannelObserver forwards tracker snapshots, cache commits and notifications
// to the Bubble Tea loop. Senders never block. Snapshots keep only the latest
// value; other events are dropped when the buffer is full.
type ChannelObserver struct {
	snapshots chan operation.Snapshot
	events    chan tea.Msg
}

// NewChannelObserver creates an observer
func NewChannelObserver() *ChannelObserver {
	return &ChannelObserver{
		snapshots: make(chan operation.Snapshot, 1),
		events:    make(chan tea.Msg, observerBuffer),
	}
}

// OnSnapshot receives tracker state changes
func (o *ChannelObserver) OnSnapshot(s operation.Snapshot) {
	for {
		select {
		case o.snapshots <- s:
			return
		default:
		}
		// Replace the unread snapshot with the newer one
		select {
		case <-o.snapshots:
		default:
		}
	}
}

// OnCacheEntry receives query cache commits
func (o *ChannelObserver) OnCacheEntry(e domain.CacheEntry) {
	o.send(CacheUpdatedMsg{Key: e.Key})
}

// OnAuthWindow receives each authorization window as it opens
func (o *ChannelObserver) OnAuthWindow(w AuthWindow) {
	o.send(AuthWindowOpenedMsg{Window: w})
}

// Notify implements domain.Notifier
func (o *ChannelObserver) Notify(n domain.Notification) {
	o.send(NotificationMsg{Notification: n})
}

func (o *ChannelObserver) send(msg tea.Msg) {
	select {
	case o.events <- msg:
	default:
	}
}

// Listen returns a command that waits for the next forwarded message. The
// model re-issues it after handling each one.
func (o *ChannelObserver) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-o.snapshots:
			return SnapshotMsg{Snapshot: s}
		case msg := <-o.events:
			return msg
		}
	}
}

var _ domain.Notifier = (*ChannelObserver)(nil)
