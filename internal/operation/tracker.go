// Package operation tracks the long-running backend job the operator started.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// DefaultErrorCap is how many errors are shown before the rest are summarised.
const DefaultErrorCap = 5

const maxEarlyEvents = 64

// API is the subset of the backend the tracker needs.
type API interface {
	StartOperation(ctx context.Context, opType domain.OperationType) (string, error)
	OperationStatus(ctx context.Context, id string) (domain.OperationEvent, error)
}

// Snapshot is the tracker state handed to observers.
type Snapshot struct {
	Operation domain.Operation
	Tracked   bool
	Starting  bool
}

// Tracker is the client-side state machine for one operation at a time.
// Status only moves forward; a terminal operation fires its notification and
// hooks exactly once.
type Tracker struct {
	api      API
	notifier domain.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	current    *domain.Operation
	starting   bool
	early      []domain.OperationEvent // events seen while the start request is in flight
	notified   bool
	onTerminal []func(domain.Operation)
	observers  []func(Snapshot)
}

// NewTracker creates a tracker. notifier may be nil.
func NewTracker(api API, notifier domain.Notifier, logger *slog.Logger) *Tracker {
	if notifier == nil {
		notifier = domain.NoOpNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{api: api, notifier: notifier, logger: logger, now: time.Now}
}

// OnTerminal registers fn to run once when an operation completes or fails.
func (t *Tracker) OnTerminal(fn func(domain.Operation)) {
	t.mu.Lock()
	t.onTerminal = append(t.onTerminal, fn)
	t.mu.Unlock()
}

// Observe registers fn to receive a snapshot after every state change.
func (t *Tracker) Observe(fn func(Snapshot)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Current returns a copy of the tracked operation.
func (t *Tracker) Current() (domain.Operation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return domain.Operation{}, false
	}
	return t.current.Clone(), true
}

// CanStart reports whether a new operation may be started.
func (t *Tracker) CanStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canStartLocked()
}

func (t *Tracker) canStartLocked() bool {
	return !t.starting && (t.current == nil || t.current.Status.Terminal())
}

// Start asks the backend to begin an operation and tracks it in the starting
// state. It is refused without a network call while another operation is
// non-terminal. A failed start leaves the tracker unchanged.
func (t *Tracker) Start(ctx context.Context, opType domain.OperationType) (domain.Operation, error) {
	if !opType.Valid() {
		return domain.Operation{}, domain.Invalid("type", fmt.Sprintf("unknown operation type %q", opType))
	}

	t.mu.Lock()
	if !t.canStartLocked() {
		t.mu.Unlock()
		return domain.Operation{}, domain.ErrOperationInProgress
	}
	t.starting = true
	t.early = nil
	t.mu.Unlock()
	t.emit()

	id, err := t.api.StartOperation(ctx, opType)

	t.mu.Lock()
	t.starting = false
	early := t.early
	t.early = nil
	if err != nil {
		t.mu.Unlock()
		t.emit()
		t.logger.Error("failed to start operation", "type", opType, "error", err)
		return domain.Operation{}, err
	}
	op := &domain.Operation{
		ID:        id,
		Type:      opType,
		Status:    domain.StatusStarting,
		Progress:  0,
		StartedAt: t.now(),
	}
	t.current = op
	t.notified = false
	snapshot := op.Clone()
	t.mu.Unlock()

	t.logger.Info("operation started", "id", id, "type", opType)
	t.emit()

	// The push channel can deliver progress before the start response arrives
	for _, ev := range early {
		if ev.OperationID == id {
			t.Apply(ev)
		}
	}
	if len(early) > 0 {
		if current, ok := t.Current(); ok && current.ID == id {
			snapshot = current
		}
	}
	return snapshot, nil
}

// Apply folds a progress event into the tracked operation. Events for other
// ids, and events that would move the status backward, are ignored.
func (t *Tracker) Apply(ev domain.OperationEvent) {
	t.mu.Lock()
	op := t.current
	if op == nil && t.starting {
		if len(t.early) < maxEarlyEvents {
			t.early = append(t.early, ev)
		}
		t.mu.Unlock()
		return
	}
	if op == nil || op.ID != ev.OperationID {
		t.mu.Unlock()
		t.logger.Debug("ignoring event for untracked operation", "id", ev.OperationID)
		return
	}
	if op.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	advance := op.Status.CanAdvanceTo(ev.Status)
	if !advance && ev.Status != op.Status {
		t.mu.Unlock()
		t.logger.Debug("ignoring backward status", "id", op.ID, "from", op.Status, "to", ev.Status)
		return
	}

	if advance {
		op.Status = ev.Status
	}
	if ev.Progress != nil {
		op.Progress = domain.ClampProgress(*ev.Progress)
	}
	if ev.CurrentStep != "" {
		op.CurrentStep = ev.CurrentStep
	}
	if ev.LeadsProcessed != nil {
		op.LeadsProcessed = *ev.LeadsProcessed
	}
	if ev.TotalLeads != nil {
		op.TotalLeads = *ev.TotalLeads
	}
	// Event errors are the run's cumulative list; keep only what is new.
	if len(ev.Errors) > len(op.Errors) {
		op.Errors = append(op.Errors, ev.Errors[len(op.Errors):]...)
	}
	if op.Status == domain.StatusCompleted {
		op.Progress = 100
	}

	var finished *domain.Operation
	if op.Status.Terminal() && !t.notified {
		op.FinishedAt = t.now()
		t.notified = true
		done := op.Clone()
		finished = &done
	}
	hooks := append([]func(domain.Operation){}, t.onTerminal...)
	t.mu.Unlock()

	t.emit()

	if finished != nil {
		t.logger.Info("operation finished", "id", finished.ID, "status", finished.Status, "errors", len(finished.Errors))
		t.notifier.Notify(terminalNotification(*finished))
		for _, fn := range hooks {
			fn(*finished)
		}
	}
}

// Cancel stops tracking the current operation. The backend job is not
// stopped; later events for it are ignored.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	if t.current == nil {
		t.mu.Unlock()
		return
	}
	id := t.current.ID
	t.current = nil
	t.notified = false
	t.mu.Unlock()

	t.logger.Info("operation tracking cancelled", "id", id)
	t.emit()
}

// Resync reads the tracked operation's status and applies it, recovering
// events missed while the push channel was down.
func (t *Tracker) Resync(ctx context.Context) error {
	t.mu.Lock()
	if t.current == nil || t.current.Status.Terminal() {
		t.mu.Unlock()
		return nil
	}
	id := t.current.ID
	t.mu.Unlock()

	ev, err := t.api.OperationStatus(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.logger.Warn("tracked operation unknown to backend", "id", id)
		}
		return fmt.Errorf("resync operation %s: %w", id, err)
	}
	t.Apply(ev)
	return nil
}

// DisplayErrors returns at most limit errors and how many were left out.
func (t *Tracker) DisplayErrors(limit int) ([]string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil, 0
	}
	return CapErrors(t.current.Errors, limit)
}

// CapErrors splits errs into the shown prefix and the hidden remainder count.
func CapErrors(errs []string, limit int) ([]string, int) {
	if limit <= 0 {
		limit = DefaultErrorCap
	}
	if len(errs) <= limit {
		return append([]string(nil), errs...), 0
	}
	return append([]string(nil), errs[:limit]...), len(errs) - limit
}

func (t *Tracker) emit() {
	t.mu.Lock()
	s := Snapshot{Starting: t.starting}
	if t.current != nil {
		s.Operation = t.current.Clone()
		s.Tracked = true
	}
	observers := append([]func(Snapshot){}, t.observers...)
	t.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

func terminalNotification(op domain.Operation) domain.Notification {
	if op.Status == domain.StatusCompleted {
		msg := "Finished"
		if op.TotalLeads > 0 {
			msg = fmt.Sprintf("Processed %d of %d leads", op.LeadsProcessed, op.TotalLeads)
		}
		return domain.Notification{
			Kind:    domain.NotifySuccess,
			Title:   op.Type.Label() + " completed",
			Message: msg,
		}
	}
	msg := "The operation failed"
	if n := len(op.Errors); n > 0 {
		msg = op.Errors[n-1]
	}
	return domain.Notification{
		Kind:    domain.NotifyError,
		Title:   op.Type.Label() + " failed",
		Message: msg,
	}
}
