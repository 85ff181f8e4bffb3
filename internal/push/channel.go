package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Reconnect defaults
const (
	DefaultReconnectMin = 1 * time.Second
	DefaultReconnectMax = 30 * time.Second
	jitterFraction      = 0.2
)

// Config controls the push connection.
type Config struct {
	URL          string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	MaxAttempts  int // consecutive failed dials before giving up; 0 means unlimited
}

// Channel is the single push connection for an app session. Run owns its
// lifecycle: it dials, reads and dispatches frames, and reconnects with
// jittered exponential backoff until the context is cancelled.
type Channel struct {
	cfg        Config
	tokens     domain.TokenSource
	dispatcher *Dispatcher
	dialer     *websocket.Dialer
	logger     *slog.Logger

	mu        sync.Mutex
	onConnect []func(ctx context.Context)
	connected bool

	jitter func(time.Duration) time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewChannel creates a channel. It does not connect until Run is called.
func NewChannel(cfg Config, tokens domain.TokenSource, dispatcher *Dispatcher, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = DefaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(DefaultReconnectMax, cfg.ReconnectMin)
	}
	return &Channel{
		cfg:        cfg,
		tokens:     tokens,
		dispatcher: dispatcher,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger:     logger,
		jitter:     jitter,
		sleep:      sleepCtx,
	}
}

// OnConnect registers fn to run after every successful dial, including
// reconnects. Hooks run on their own goroutine so reading starts immediately.
func (c *Channel) OnConnect(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run connects and keeps the channel open until ctx is cancelled, which
// returns nil. It returns an error only when MaxAttempts is exhausted.
func (c *Channel) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	failures := 0

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if c.cfg.MaxAttempts > 0 && failures >= c.cfg.MaxAttempts {
				return fmt.Errorf("push channel: giving up after %d attempts: %w", failures, err)
			}
			wait := c.jitter(backoff)
			c.logger.Warn("push channel dial failed", "url", c.cfg.URL, "attempt", failures, "retry_in", wait, "error", err)
			if c.sleep(ctx, wait) != nil {
				return nil
			}
			backoff = min(backoff*2, c.cfg.ReconnectMax)
			continue
		}

		failures = 0
		connectedAt := time.Now()
		c.setConnected(true)
		c.logger.Info("push channel connected", "url", c.cfg.URL)
		c.runConnectHooks(ctx)

		err = c.readLoop(ctx, conn)
		c.setConnected(false)
		if ctx.Err() != nil {
			return nil
		}

		// A connection that stayed up for a while is not part of a failure streak.
		if time.Since(connectedAt) > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMin
		}
		wait := c.jitter(backoff)
		c.logger.Warn("push channel disconnected", "retry_in", wait, "error", err)
		if c.sleep(ctx, wait) != nil {
			return nil
		}
		backoff = min(backoff*2, c.cfg.ReconnectMax)
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok && token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := Decode(frame)
		switch {
		case errors.Is(err, ErrUnknownMessage):
			c.logger.Debug("ignoring push message", "error", err)
			continue
		case err != nil:
			c.logger.Warn("dropping malformed push message", "error", err)
			continue
		}

		if hb, ok := msg.(Heartbeat); ok && !hb.Pong {
			if reply, err := Encode(Heartbeat{Pong: true}); err == nil {
				if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
					return err
				}
			}
			continue
		}
		c.dispatcher.Dispatch(msg)
	}
}

func (c *Channel) runConnectHooks(ctx context.Context) {
	c.mu.Lock()
	hooks := append([]func(context.Context){}, c.onConnect...)
	c.mu.Unlock()
	for _, fn := range hooks {
		go fn(ctx)
	}
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// jitter spreads d by ±20%
func jitter(d time.Duration) time.Duration {
	delta := (rand.Float64()*2 - 1) * jitterFraction * float64(d)
	return d + time.Duration(delta)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
