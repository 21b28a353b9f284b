package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindo/pkg/errors"
)

// GraphStateFactory builds an unloaded GraphState for a user
type GraphStateFactory func(userID string) *GraphState

// Workspaces hands out one loaded GraphState per user and drops states that
// have been idle longer than the TTL
type Workspaces struct {
	factory GraphStateFactory
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*workspace
	stop    chan struct{}
	once    sync.Once
}

type workspace struct {
	state    *GraphState
	loading  chan struct{}
	err      error
	lastUsed time.Time
}

// NewWorkspaces creates the registry. A positive ttl starts the eviction loop.
func NewWorkspaces(factory GraphStateFactory, ttl time.Duration, logger *zap.Logger) *Workspaces {
	w := &Workspaces{
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*workspace),
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go w.evictLoop()
	}
	return w
}

// Get returns the loaded state of userID, loading it on first use. Concurrent
// callers for the same user share one load. A failed load is not cached.
func (w *Workspaces) Get(ctx context.Context, userID string) (*GraphState, error) {
	if userID == "" {
		return nil, errors.NewUnauthorizedError("no authenticated user")
	}

	w.mu.Lock()
	ws, ok := w.entries[userID]
	if !ok {
		ws = &workspace{state: w.factory(userID), loading: make(chan struct{})}
		w.entries[userID] = ws
		w.mu.Unlock()

		ws.err = ws.state.LoadGraph(ctx)
		close(ws.loading)

		w.mu.Lock()
		if ws.err != nil && w.entries[userID] == ws {
			delete(w.entries, userID)
		}
	}
	ws.lastUsed = w.now()
	w.mu.Unlock()

	select {
	case <-ws.loading:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if ws.err != nil {
		return nil, ws.err
	}
	return ws.state, nil
}

// Peek returns the state of userID only if it is already resident
func (w *Workspaces) Peek(userID string) (*GraphState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws, ok := w.entries[userID]
	if !ok {
		return nil, false
	}
	select {
	case <-ws.loading:
		return ws.state, ws.err == nil
	default:
		return nil, false
	}
}

// Evict drops the state of userID so the next Get reloads it
func (w *Workspaces) Evict(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, userID)
}

// Len returns the number of resident workspaces
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Close stops the eviction loop
func (w *Workspaces) Close() {
	w.once.Do(func() { close(w.stop) })
}

func (w *Workspaces) evictLoop() {
	interval := w.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.evictIdle()
		}
	}
}

func (w *Workspaces) evictIdle() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	evicted := 0
	for userID, ws := range w.entries {
		select {
		case <-ws.loading:
		default:
			continue
		}
		if now.Sub(ws.lastUsed) > w.ttl {
			delete(w.entries, userID)
			evicted++
		}
	}
	if evicted > 0 {
		w.logger.Debug("Evicted idle workspaces", zap.Int("count", evicted))
	}
	return evicted
}
