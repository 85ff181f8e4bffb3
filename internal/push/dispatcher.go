package push

import (
	"log/slog"
	"sync"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Dispatcher is the single place decoded messages are routed to handlers.
type Dispatcher struct {
	mu            sync.RWMutex
	operations    []func(domain.OperationEvent)
	authorization []func(AuthorizationChanged)
	logger        *slog.Logger
}

// NewDispatcher creates a dispatcher with no handlers.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// OnOperation registers a handler for operation progress events.
func (d *Dispatcher) OnOperation(fn func(domain.OperationEvent)) {
	d.mu.Lock()
	d.operations = append(d.operations, fn)
	d.mu.Unlock()
}

// OnAuthorization registers a handler for Outlook authorization changes.
func (d *Dispatcher) OnAuthorization(fn func(AuthorizationChanged)) {
	d.mu.Lock()
	d.authorization = append(d.authorization, fn)
	d.mu.Unlock()
}

// Dispatch routes msg to its handlers.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch m := msg.(type) {
	case OperationUpdate:
		for _, fn := range d.operations {
			fn(m.Event)
		}
	case AuthorizationChanged:
		for _, fn := range d.authorization {
			fn(m)
		}
	case Heartbeat:
		// Answered by the channel
	default:
		d.logger.Debug("ignoring push message", "type", msg.Type())
	}
}
