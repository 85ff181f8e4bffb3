package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SFZPL/lead-automation-system-sub000/internal/backend"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Message types carried in the envelope "type" field
const (
	TypeOperationUpdate = "operation_update"
	TypeOutlookAuth     = "outlook_auth"
	TypePing            = "ping"
	TypePong            = "pong"
)

// ErrUnknownMessage is returned by Decode for envelope types this client does not handle.
var ErrUnknownMessage = errors.New("unknown push message type")

// Envelope is the wire frame: {"type": "...", "data": {...}}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is one decoded push message.
type Message interface {
	Type() string
}

// OperationUpdate reports progress of a long-running operation.
type OperationUpdate struct {
	Event domain.OperationEvent
}

func (OperationUpdate) Type() string { return TypeOperationUpdate }

// AuthorizationChanged is sent by the backend once the Outlook callback has
// exchanged its code. It completes the OAuth handshake without waiting for
// the window to close.
type AuthorizationChanged struct {
	Authorized bool   `json:"authorized"`
	UserEmail  string `json:"user_email"`
	State      string `json:"state"`
}

func (AuthorizationChanged) Type() string { return TypeOutlookAuth }

// Heartbeat is a keepalive in either direction.
type Heartbeat struct {
	Pong bool
}

func (h Heartbeat) Type() string {
	if h.Pong {
		return TypePong
	}
	return TypePing
}

// Decode parses one frame into a typed message.
func Decode(frame []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Type {
	case TypeOperationUpdate:
		var dto backend.OperationStatusDTO
		if err := json.Unmarshal(env.Data, &dto); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		ev, err := backend.MapOperationEvent(dto)
		if err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
		return OperationUpdate{Event: ev}, nil

	case TypeOutlookAuth:
		var msg AuthorizationChanged
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
			}
		}
		return msg, nil

	case TypePing:
		return Heartbeat{}, nil
	case TypePong:
		return Heartbeat{Pong: true}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// Encode builds a frame for msg. Only heartbeats are ever sent by the client.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(Envelope{Type: msg.Type()})
}
