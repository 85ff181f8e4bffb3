// Package oauth drives the Outlook authorization window flow.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

const (
	DefaultPollInterval = 1 * time.Second
	DefaultTimeout      = 5 * time.Minute
)

// Window is an opened authorization window.
type Window interface {
	Closed() bool
}

// Opener opens the authorization URL in a new window.
type Opener interface {
	Open(url string) (Window, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) (Window, error)

func (f OpenerFunc) Open(url string) (Window, error) { return f(url) }

// API is the backend surface the connector uses.
type API interface {
	AuthorizationURL(ctx context.Context) (domain.AuthorizationRequest, error)
	AuthorizationStatus(ctx context.Context) (domain.AuthorizationStatus, error)
	RevokeAuthorization(ctx context.Context) error
}

// StateStore persists the anti-forgery state for the flow in progress.
type StateStore interface {
	OAuthState() (string, bool)
	SaveOAuthState(state string) error
	ClearOAuthState() error
}

// Config holds the window polling settings.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Connector orchestrates the Outlook authorization flow. The backend performs
// the code exchange through its own callback; the connector only learns the
// outcome by querying the status endpoint once the flow ends.
type Connector struct {
	api    API
	opener Opener
	states StateStore
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	active    bool
	handshake chan struct{}
}

// NewConnector creates a connector
func NewConnector(api API, opener Opener, states StateStore, cfg Config, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Connector{api: api, opener: opener, states: states, cfg: cfg, logger: logger}
}

// Connect runs the full flow and returns the resulting authorization status.
// A window that closes without completing yields authorized=false and no error.
// If the window cannot be opened the flow stops with domain.ErrPopupBlocked.
func (c *Connector) Connect(ctx context.Context) (domain.AuthorizationStatus, error) {
	req, err := c.api.AuthorizationURL(ctx)
	if err != nil {
		return domain.AuthorizationStatus{}, fmt.Errorf("failed to get authorization url: %w", err)
	}
	if err := c.states.SaveOAuthState(req.State); err != nil {
		return domain.AuthorizationStatus{}, fmt.Errorf("failed to save oauth state: %w", err)
	}
	defer func() {
		if err := c.states.ClearOAuthState(); err != nil {
			c.logger.Warn("failed to clear oauth state", "error", err)
		}
	}()

	handshake := c.begin()
	defer c.end()

	window, err := c.opener.Open(req.URL)
	if err != nil {
		c.logger.Warn("authorization window blocked", "error", err)
		if !errors.Is(err, domain.ErrPopupBlocked) {
			err = fmt.Errorf("%w: %v", domain.ErrPopupBlocked, err)
		}
		return domain.AuthorizationStatus{}, err
	}
	c.logger.Info("authorization window opened")

	if err := c.wait(ctx, window, handshake); err != nil {
		return domain.AuthorizationStatus{}, err
	}

	status, err := c.api.AuthorizationStatus(ctx)
	if err != nil {
		return domain.AuthorizationStatus{}, fmt.Errorf("failed to query authorization status: %w", err)
	}
	c.logger.Info("authorization flow finished", "authorized", status.Authorized)
	return status, nil
}

// wait blocks until the window closes, the handshake arrives, or the flow times out.
func (c *Connector) wait(ctx context.Context, window Window, handshake <-chan struct{}) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.cfg.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-handshake:
			c.logger.Debug("authorization handshake received")
			return nil
		case <-deadline.C:
			c.logger.Warn("authorization window timed out", "timeout", c.cfg.Timeout)
			return nil
		case <-ticker.C:
			if window.Closed() {
				c.logger.Debug("authorization window closed")
				return nil
			}
		}
	}
}

func (c *Connector) begin() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.handshake = make(chan struct{}, 1)
	return c.handshake
}

func (c *Connector) end() {
	c.mu.Lock()
	c.active = false
	c.handshake = nil
	c.mu.Unlock()
}

// NotifyCompleted signals that the backend callback finished. state, when
// non-empty, must match the flow in progress. Signals outside a flow are dropped.
func (c *Connector) NotifyCompleted(state string) {
	if state != "" {
		if saved, ok := c.states.OAuthState(); !ok || saved != state {
			c.logger.Warn("ignoring authorization handshake with unexpected state")
			return
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	select {
	case c.handshake <- struct{}{}:
	default:
	}
}

// InProgress reports whether a flow is waiting on the window.
func (c *Connector) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Status queries the current authorization state
func (c *Connector) Status(ctx context.Context) (domain.AuthorizationStatus, error) {
	return c.api.AuthorizationStatus(ctx)
}

// Revoke disconnects the account and returns the refreshed status
func (c *Connector) Revoke(ctx context.Context) (domain.AuthorizationStatus, error) {
	if err := c.api.RevokeAuthorization(ctx); err != nil {
		return domain.AuthorizationStatus{}, fmt.Errorf("failed to revoke authorization: %w", err)
	}
	c.logger.Info("outlook authorization revoked")
	return c.Status(ctx)
}
