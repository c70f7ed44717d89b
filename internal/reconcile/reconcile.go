// Package reconcile merges a guest's locally stored collection into the
// customer's server collection when the session signs in.
//
// The merge is best-effort per item: every guest item is offered to the
// server once, sequentially, and individual failures do not stop the run.
// Once the authoritative collection has been fetched the guest copy is
// cleared, including items the server refused. If that final fetch fails
// the guest copy stays in place and the run reports an error.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"storefront-sync/internal/gateway"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/model"
)

// LocalStore is the slice of the guest store the engine needs.
// *localstore.Scoped satisfies it.
type LocalStore interface {
	Read(key string) (model.Collection, bool)
	Clear(key string) error
}

// Request names one collection of one session to reconcile.
type Request struct {
	SessionID string
	Kind      model.CollectionKind
	Store     LocalStore
	Gateway   gateway.CollectionGateway
}

// FailedItem is a guest item the server did not accept.
type FailedItem struct {
	ID  string
	Err error
}

// Report describes one reconciliation run. A Report may be shared between
// callers that joined the same run; treat it as read-only.
type Report struct {
	Kind      model.CollectionKind
	Attempted int
	Added     int
	Failed    []FailedItem

	// Collection is the authoritative server collection after the merge.
	// Nil when Skipped.
	Collection model.Collection

	// Skipped is set when there was no guest data to merge.
	Skipped bool
}

// Engine runs reconciliations. One Engine serves every session; concurrent
// requests for the same session and kind share a single run.
type Engine struct {
	logger *slog.Logger
	group  singleflight.Group
}

// New creates an Engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Reconcile merges the guest collection named by req into the server.
// A caller arriving while a run for the same session and kind is in flight
// waits for that run and receives its Report.
func (e *Engine) Reconcile(ctx context.Context, req Request) (*Report, error) {
	if req.Store == nil || req.Gateway == nil {
		return nil, fmt.Errorf("reconcile %s: store and gateway are required", req.Kind)
	}

	key := req.SessionID + "/" + string(req.Kind)
	v, err, shared := e.group.Do(key, func() (interface{}, error) {
		return e.run(ctx, req)
	})
	if shared {
		e.logger.Debug("joined in-flight reconciliation",
			slog.String("session_id", req.SessionID),
			slog.String("kind", string(req.Kind)),
		)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (e *Engine) run(ctx context.Context, req Request) (*Report, error) {
	logger := e.logger.With(
		slog.String("session_id", req.SessionID),
		slog.String("kind", string(req.Kind)),
	)
	storageKey := req.Kind.StorageKey()
	report := &Report{Kind: req.Kind}

	local, ok := req.Store.Read(storageKey)
	if !ok || len(local) == 0 {
		if err := req.Store.Clear(storageKey); err != nil {
			logger.Warn("failed to clear empty guest collection", slog.String("error", err.Error()))
		}
		report.Skipped = true
		return report, nil
	}

	for _, item := range local {
		report.Attempted++
		if err := req.Gateway.AddItem(ctx, item); err != nil {
			logger.Warn("guest item not merged",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()),
			)
			report.Failed = append(report.Failed, FailedItem{ID: item.ID, Err: err})
			metrics.ObserveReconcileItem(string(req.Kind), false)
			continue
		}
		report.Added++
		metrics.ObserveReconcileItem(string(req.Kind), true)
	}

	server, err := req.Gateway.FetchCollection(ctx)
	if err != nil {
		logger.Error("reconciliation fetch failed, guest collection kept",
			slog.Int("attempted", report.Attempted),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("fetching %s after merge: %w", req.Kind, err)
	}
	report.Collection = server

	if err := req.Store.Clear(storageKey); err != nil {
		logger.Warn("failed to clear guest collection", slog.String("error", err.Error()))
	}
	if len(report.Failed) > 0 {
		ids := make([]string, len(report.Failed))
		for i, f := range report.Failed {
			ids[i] = f.ID
		}
		logger.Warn("guest items dropped",
			slog.Int("count", len(ids)),
			slog.Any("item_ids", ids),
		)
	}

	logger.Info("reconciled guest collection",
		slog.Int("attempted", report.Attempted),
		slog.Int("added", report.Added),
		slog.Int("server_items", len(server)),
	)
	return report, nil
}
