package querycache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Poller refetches registered queries on fixed wall-clock intervals.
type Poller struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPoller creates a poller. Jobs run in singleton mode, so a slow fetch is
// never overlapped by the next tick of the same job.
func NewPoller(logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{scheduler: s, logger: logger, ctx: ctx, cancel: cancel}
}

// Watch schedules refresh every interval. A non-positive interval disables it.
func (p *Poller) Watch(name string, interval time.Duration, refresh func(ctx context.Context) error) error {
	if interval <= 0 {
		p.logger.Info("polling disabled", "query", name)
		return nil
	}
	_, err := p.scheduler.Every(interval).WaitForSchedule().Tag(name).Do(func() {
		p.mu.Lock()
		ctx := p.ctx
		p.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := refresh(ctx); err != nil {
			p.logger.Warn("scheduled refresh failed", "query", name, "error", err)
		}
	})
	if err != nil {
		p.logger.Error("failed to schedule refresh", "query", name, "error", err)
		return err
	}
	p.logger.Debug("polling query", "query", name, "interval", interval)
	return nil
}

// Start begins polling in the background.
func (p *Poller) Start() {
	p.scheduler.StartAsync()
}

// Stop halts polling and cancels any in-flight refresh.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.scheduler.Stop()
}

// Jobs returns the number of scheduled queries.
func (p *Poller) Jobs() int {
	return len(p.scheduler.Jobs())
}
