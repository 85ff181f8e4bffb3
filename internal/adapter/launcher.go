package adapter

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Launcher opens authorization URLs in a browser window
type Launcher struct {
	command string   // configured browser command, empty for system default
	args    []string // additional arguments for the browser
	logger  *slog.Logger

	// run starts a command; replaced in tests
	run func(name string, args ...string) error
}

// defaultOpeners is the system URL handler per platform, tried in order
var defaultOpeners = map[string][][]string{
	"darwin":  {{"open"}},
	"windows": {{"rundll32", "url.dll,FileProtocolHandler"}, {"cmd", "/c", "start", ""}},
	"linux":   {{"xdg-open"}, {"sensible-browser"}, {"x-www-browser"}},
}

// NewLauncher creates a Launcher. An empty command uses the system default handler.
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command: command,
		args:    args,
		logger:  logger,
		run:     startCommand,
	}
}

// startCommand launches a program without waiting for it to exit
func startCommand(name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}

// OpenWindow launches url and returns a handle whose closure the caller signals.
// Failure to launch anything is reported as domain.ErrPopupBlocked.
func (l *Launcher) OpenWindow(url string) (*BrowserWindow, error) {
	if err := l.launch(url); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPopupBlocked, err)
	}
	return NewBrowserWindow(), nil
}

func (l *Launcher) launch(url string) error {
	// Tier 1: user configured a specific browser
	if l.command != "" {
		args := append(append([]string{}, l.args...), url)
		l.logger.Info("launching configured browser", "command", l.command)
		return l.run(l.command, args...)
	}

	// Tier 2: platform URL handlers in order
	candidates, ok := defaultOpeners[runtime.GOOS]
	if !ok {
		candidates = defaultOpeners["linux"]
	}

	var lastErr error
	for _, c := range candidates {
		args := append(append([]string{}, c[1:]...), url)
		if err := l.run(c[0], args...); err != nil {
			l.logger.Debug("url handler not available", "handler", c[0], "error", err)
			lastErr = err
			continue
		}
		l.logger.Info("opened authorization window", "handler", c[0])
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no url handler for %s", runtime.GOOS)
	}
	return fmt.Errorf("no browser could be started (tried %s): %w", handlerNames(candidates), lastErr)
}

func handlerNames(candidates [][]string) string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c[0])
	}
	return strings.Join(names, ", ")
}

// BrowserWindow stands in for the authorization window. A system browser gives
// no closure signal, so the caller closes it explicitly (operator confirmation,
// or the push handshake).
type BrowserWindow struct {
	once   sync.Once
	closed chan struct{}
}

// NewBrowserWindow returns an open window handle
func NewBrowserWindow() *BrowserWindow {
	return &BrowserWindow{closed: make(chan struct{})}
}

// Close marks the window closed. Safe to call more than once.
func (w *BrowserWindow) Close() {
	w.once.Do(func() { close(w.closed) })
}

// Closed reports whether Close has been called
func (w *BrowserWindow) Closed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}
