package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Options control when an entry goes stale.
type Options struct {
	// Interval after which the entry is refetched on read. Zero means the entry
	// stays fresh until invalidated.
	Interval time.Duration

	// NeverStale entries are only refetched after explicit invalidation and are
	// persisted to the backend so they can be shown immediately on next start.
	NeverStale bool
}

// Backend persists never-stale entries across restarts.
type Backend interface {
	LoadEntry(key string) (domain.CacheEntry, bool)
	SaveEntry(entry domain.CacheEntry) error
	DeleteEntries(prefix string) error
	ClearEntries() error
}

type entry struct {
	payload   []byte
	fetchedAt time.Time
	stale     bool
	opts      Options
	seq       uint64
}

func (e *entry) isStale(now time.Time) bool {
	if e.stale {
		return true
	}
	if e.opts.NeverStale || e.opts.Interval <= 0 {
		return false
	}
	return now.Sub(e.fetchedAt) >= e.opts.Interval
}

// Cache holds query results keyed by endpoint and parameters. Concurrent
// fetches of the same key are coalesced, the most recent successful response
// wins, and invalidation guarantees the next read never sees a fetch that
// started before it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	gens    map[string]uint64
	nextSeq uint64
	subs    []func(domain.CacheEntry)

	group   singleflight.Group
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a cache. backend may be nil for a purely in-memory cache.
func New(backend Backend, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		gens:    make(map[string]uint64),
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe registers fn to receive every committed entry.
func (c *Cache) Subscribe(fn func(domain.CacheEntry)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Peek returns the current entry for key without fetching.
func (c *Cache) Peek(key Key) (domain.CacheEntry, bool) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return domain.CacheEntry{}, false
	}
	return domain.CacheEntry{Key: k, Payload: e.payload, FetchedAt: e.fetchedAt, Stale: e.isStale(c.now())}, true
}

// Invalidate marks one entry stale. In-flight fetches for it are discarded.
func (c *Cache) Invalidate(key Key) {
	k := key.String()
	c.mu.Lock()
	c.invalidateLocked(k)
	c.mu.Unlock()
}

// InvalidatePrefix marks every entry whose canonical key starts with prefix
// stale, e.g. "/nda/documents" after a delete.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	seen := make(map[string]bool)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			seen[k] = true
		}
	}
	for k := range c.gens {
		if strings.HasPrefix(k, prefix) {
			seen[k] = true
		}
	}
	for k := range seen {
		c.invalidateLocked(k)
	}
	c.mu.Unlock()
	c.logger.Debug("invalidated cache prefix", "prefix", prefix, "keys", len(seen))
}

func (c *Cache) invalidateLocked(k string) {
	c.gens[k]++
	e, ok := c.entries[k]
	if !ok {
		return
	}
	e.stale = true
	if e.opts.NeverStale && c.backend != nil {
		if err := c.backend.DeleteEntries(k); err != nil {
			c.logger.Warn("failed to drop persisted cache entry", "key", k, "error", err)
		}
	}
}

// Clear drops every entry, including persisted ones.
func (c *Cache) Clear() error {
	c.mu.Lock()
	for k := range c.entries {
		c.gens[k]++
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	if c.backend != nil {
		return c.backend.ClearEntries()
	}
	return nil
}

// Fetch returns the cached value for key, fetching it with fn when the entry
// is missing or stale.
func Fetch[T any](ctx context.Context, c *Cache, key Key, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.load(ctx, key, opts, false, encode(fn))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return out, nil
}

// Refresh refetches key regardless of freshness.
func Refresh[T any](ctx context.Context, c *Cache, key Key, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.load(ctx, key, opts, true, encode(fn))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return out, nil
}

func encode[T any](fn func(ctx context.Context) (T, error)) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
}

type flightResult struct {
	payload []byte
}

func (c *Cache) load(ctx context.Context, key Key, opts Options, force bool, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	k := key.String()

	c.mu.Lock()
	if force {
		c.invalidateLocked(k)
	}
	e, ok := c.entries[k]
	if !ok && opts.NeverStale && c.backend != nil {
		if persisted, found := c.backend.LoadEntry(k); found && !persisted.Stale {
			e = &entry{payload: persisted.Payload, fetchedAt: persisted.FetchedAt, opts: opts}
			c.entries[k] = e
			ok = true
		}
	}
	if ok && !e.isStale(c.now()) {
		payload := e.payload
		c.mu.Unlock()
		return payload, nil
	}
	gen := c.gens[k]
	c.mu.Unlock()

	flightKey := k + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		c.mu.Lock()
		c.nextSeq++
		seq := c.nextSeq
		c.mu.Unlock()

		// Shared by every joined caller, so one caller leaving must not abort it.
		payload, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			c.logger.Debug("cache fetch failed", "key", k, "error", err)
			return nil, err
		}
		c.commit(k, gen, seq, opts, payload)
		return flightResult{payload: payload}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(flightResult).payload, nil
	}
}

// commit stores a fetch result unless the key was invalidated after the fetch
// started or a newer fetch already committed.
func (c *Cache) commit(k string, gen, seq uint64, opts Options, payload []byte) {
	c.mu.Lock()
	if c.gens[k] != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding fetch superseded by invalidation", "key", k)
		return
	}
	if e, ok := c.entries[k]; ok && e.seq > seq {
		c.mu.Unlock()
		return
	}
	now := c.now()
	c.entries[k] = &entry{payload: payload, fetchedAt: now, opts: opts, seq: seq}
	subs := append([]func(domain.CacheEntry){}, c.subs...)
	c.mu.Unlock()

	snapshot := domain.CacheEntry{Key: k, Payload: payload, FetchedAt: now}
	if opts.NeverStale && c.backend != nil {
		if err := c.backend.SaveEntry(snapshot); err != nil {
			c.logger.Warn("failed to persist cache entry", "key", k, "error", err)
		}
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}
