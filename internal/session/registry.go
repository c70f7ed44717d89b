package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/collection"
	"storefront-sync/internal/localstore"
	"storefront-sync/internal/model"
	"storefront-sync/internal/reconcile"
)

// Registry owns every live session.
type Registry struct {
	store    *localstore.Store
	gateways GatewayFactory
	engine   *reconcile.Engine
	resolver *catalog.Resolver
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
}

// Config holds registry dependencies.
type Config struct {
	Store    *localstore.Store
	Gateways GatewayFactory
	Engine   *reconcile.Engine
	Resolver *catalog.Resolver
	Logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = reconcile.New(logger)
	}
	return &Registry{
		store:    cfg.Store,
		gateways: cfg.Gateways,
		engine:   engine,
		resolver: cfg.Resolver,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
	}
}

// GetOrCreate returns the session for id, creating a guest session whose
// collections are loaded from the guest store.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeen[id] = r.now()
	if s, ok := r.sessions[id]; ok {
		return s
	}

	logger := r.logger.With(slog.String("session_id", id))
	scope := r.store.Scope(id)
	s := &Session{
		id:          id,
		scope:       scope,
		gateways:    r.gateways,
		engine:      r.engine,
		logger:      logger,
		controllers: make(map[model.CollectionKind]*collection.Controller, len(model.Kinds)),
		listing:     catalog.NewListing(r.resolver),
	}
	for _, kind := range model.Kinds {
		ctl := collection.New(kind, scope, logger)
		ctl.Load()
		s.controllers[kind] = ctl
	}
	r.sessions[id] = s
	logger.Debug("session created")
	return s
}

// Remove ends a session and deletes its guest data.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	delete(r.lastSeen, id)
	r.mu.Unlock()

	if ok {
		if err := s.flush(ctx); err != nil {
			return err
		}
	}
	return r.store.DropScope(id)
}

// EvictIdle drops sessions unused for longer than idle from memory once
// their confirmations settle, and returns how many were dropped. Guest
// collections stay in the store and are loaded again on the next request.
// An evicted customer session comes back as a guest and has to log in again.
func (r *Registry) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for id, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, r.sessions[id])
			delete(r.sessions, id)
			delete(r.lastSeen, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		if err := s.flush(ctx); err != nil {
			s.logger.Warn("evicted session had unsettled changes", slog.String("error", err.Error()))
		}
	}
	if len(stale) > 0 {
		r.logger.Info("idle sessions evicted", slog.Int("count", len(stale)), slog.Int("live", r.Len()))
	}
	return len(stale)
}

// SweepIdle calls EvictIdle periodically until ctx is done.
func (r *Registry) SweepIdle(ctx context.Context, idle time.Duration) {
	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(ctx, idle)
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close waits for every in-flight confirmation to settle.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
