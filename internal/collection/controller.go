// Package collection applies wishlist and cart changes optimistically.
//
// A Controller owns the in-memory collection of one kind for one session.
// Every change is applied before the method returns. For a guest the local
// store write is final. For a signed-in customer the matching gateway call
// runs in the background and a failure reverts the change.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"storefront-sync/internal/gateway"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/model"
)

// LocalStore persists the guest copy. *localstore.Scoped satisfies it.
type LocalStore interface {
	Read(key string) (model.Collection, bool)
	Write(key string, items model.Collection) error
}

// Controller serializes all reads and writes of one collection.
type Controller struct {
	kind   model.CollectionKind
	local  LocalStore
	logger *slog.Logger

	// gate is held exclusively by Hold for the length of a mode switch.
	// Mutations take it shared, so they wait until the switch is over.
	gate sync.RWMutex

	mu    sync.Mutex
	items model.Collection
	gw    gateway.CollectionGateway // nil while the session is a guest

	// version counts applied changes; epoch counts mode switches. A
	// compensation only runs against the epoch that applied it, and only
	// while its change is still the latest one for the item.
	version uint64
	epoch   uint64
	touched map[string]uint64 // item id -> version of its latest change

	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int

	pending sync.WaitGroup
}

// New creates a guest-mode controller with an empty collection.
// Call Load to pick up a stored guest collection.
func New(kind model.CollectionKind, local LocalStore, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		kind:   kind,
		local:  local,
		logger: logger.With(slog.String("kind", string(kind))),
		items:   model.Collection{},
		touched: make(map[string]uint64),
		subs:    make(map[int]chan Event),
	}
}

// Kind returns the collection kind.
func (c *Controller) Kind() model.CollectionKind {
	return c.kind
}

// Hold blocks Add, Remove, SetQuantity and Clear until release is called.
// Mutations already applied are not affected. Load, Authenticate and
// SignOut stay available to the holder.
func (c *Controller) Hold() (release func()) {
	c.gate.Lock()
	var once sync.Once
	return func() { once.Do(c.gate.Unlock) }
}

// Load replaces the in-memory collection with the stored guest copy.
// It does nothing for a signed-in session.
func (c *Controller) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gw != nil || c.local == nil {
		return
	}
	if stored, ok := c.local.Read(c.kind.StorageKey()); ok {
		c.items = stored
	} else {
		c.items = model.Collection{}
	}
	c.version++
}

// Authenticate switches to server-backed mode. items is the authoritative
// server collection and replaces the in-memory one.
func (c *Controller) Authenticate(gw gateway.CollectionGateway, items model.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gw = gw
	c.epoch++
	clear(c.touched)
	c.setLocked(items)
}

// SignOut returns to guest mode with an empty collection. Server state is
// not written down to the local store.
func (c *Controller) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gw = nil
	c.epoch++
	clear(c.touched)
	c.setLocked(nil)
}

func (c *Controller) setLocked(items model.Collection) {
	items = items.Dedupe()
	if items == nil {
		items = model.Collection{}
	}
	c.items = items
	c.version++
}

// Items returns a copy of the current collection.
func (c *Controller) Items() model.Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Clone()
}

// Add appends item. Adding an id that is already present settles
// immediately without a change.
func (c *Controller) Add(ctx context.Context, item model.CollectionItem) (*Mutation, error) {
	if item.ID == "" {
		return nil, model.NewValidationError("id", "item id required")
	}

	c.gate.RLock()
	defer c.gate.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.items.Contains(item.ID) {
		return settled(OpAdd, item.ID), nil
	}

	snapshot := c.items.Clone()
	next := append(c.items.Clone(), item)

	compensate := func(applied uint64) {
		if c.version == applied {
			c.items = snapshot
		} else if i := c.items.IndexOf(item.ID); i >= 0 {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
		}
		c.version++
	}
	call := func(ctx context.Context, gw gateway.CollectionGateway) error {
		return gw.AddItem(ctx, item)
	}
	return c.applyLocked(ctx, OpAdd, item.ID, snapshot, next, call, compensate)
}

// Remove deletes the item with id. Removing an unknown id settles
// immediately without a change.
func (c *Controller) Remove(ctx context.Context, id string) (*Mutation, error) {
	if id == "" {
		return nil, model.NewValidationError("id", "item id required")
	}

	c.gate.RLock()
	defer c.gate.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.items.IndexOf(id)
	if idx < 0 {
		return settled(OpRemove, id), nil
	}

	snapshot := c.items.Clone()
	removed := snapshot[idx]
	next := make(model.Collection, 0, len(snapshot)-1)
	next = append(next, snapshot[:idx]...)
	next = append(next, snapshot[idx+1:]...)

	compensate := func(applied uint64) {
		switch {
		case c.version == applied:
			c.items = snapshot
		case !c.items.Contains(id):
			at := idx
			if at > len(c.items) {
				at = len(c.items)
			}
			restored := make(model.Collection, 0, len(c.items)+1)
			restored = append(restored, c.items[:at]...)
			restored = append(restored, removed)
			c.items = append(restored, c.items[at:]...)
		}
		c.version++
	}
	call := func(ctx context.Context, gw gateway.CollectionGateway) error {
		return gw.RemoveItem(ctx, id)
	}
	return c.applyLocked(ctx, OpRemove, id, snapshot, next, call, compensate)
}

// SetQuantity changes the quantity of a present item. A quantity of zero
// or less removes it.
func (c *Controller) SetQuantity(ctx context.Context, id string, quantity int) (*Mutation, error) {
	if quantity <= 0 {
		return c.Remove(ctx, id)
	}

	c.gate.RLock()
	defer c.gate.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.items.IndexOf(id)
	if idx < 0 {
		return nil, model.NewNotFoundError(fmt.Sprintf("%s item %s", c.kind, id))
	}
	previous := c.items[idx].Quantity
	if previous == quantity {
		return settled(OpSetQuantity, id), nil
	}

	snapshot := c.items.Clone()
	next := c.items.Clone()
	next[idx].Quantity = quantity
	updated := next[idx]

	compensate := func(applied uint64) {
		if c.version == applied {
			c.items = snapshot
		} else if i := c.items.IndexOf(id); i >= 0 {
			c.items = c.items.Clone()
			c.items[i].Quantity = previous
		}
		c.version++
	}
	call := func(ctx context.Context, gw gateway.CollectionGateway) error {
		return gw.AddItem(ctx, updated)
	}
	return c.applyLocked(ctx, OpSetQuantity, id, snapshot, next, call, compensate)
}

// Clear empties the collection. A failed server clear is logged and the
// collection stays empty.
func (c *Controller) Clear(ctx context.Context) *Mutation {
	c.gate.RLock()
	defer c.gate.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = model.Collection{}
	c.version++
	clear(c.touched)

	if c.gw == nil {
		if err := c.persistLocked(); err != nil {
			c.logger.Warn("failed to clear guest collection", slog.String("error", err.Error()))
		}
		m := settled(OpClear, "")
		c.settle(m, nil)
		return m
	}

	m := newMutation(OpClear, "")
	gw := c.gw
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		err := gw.ClearAll(context.WithoutCancel(ctx))
		if err != nil {
			c.logger.Warn("server clear failed, local state kept empty", slog.String("error", err.Error()))
		}
		m.finish(Confirmed, nil)
		c.settle(m, err)
	}()
	return m
}

// applyLocked installs next and either persists it (guest) or starts the
// confirming call (signed in). c.mu must be held.
func (c *Controller) applyLocked(
	ctx context.Context,
	op Op,
	id string,
	snapshot, next model.Collection,
	call func(context.Context, gateway.CollectionGateway) error,
	compensate func(applied uint64),
) (*Mutation, error) {
	c.items = next
	c.version++
	c.touched[id] = c.version

	if c.gw == nil {
		if err := c.persistLocked(); err != nil {
			c.items = snapshot
			c.version++
			return nil, model.NewInternalError(fmt.Errorf("saving guest %s: %w", c.kind, err))
		}
		m := settled(op, id)
		c.settle(m, nil)
		return m, nil
	}

	m := newMutation(op, id)
	gw, applied, epoch := c.gw, c.version, c.epoch
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		err := call(context.WithoutCancel(ctx), gw)
		if err == nil {
			m.finish(Confirmed, nil)
			c.settle(m, nil)
			return
		}

		c.mu.Lock()
		switch {
		case c.epoch != epoch:
		case c.touched[id] != applied:
			c.logger.Debug("rollback superseded by a newer change",
				slog.String("op", string(op)),
				slog.String("item_id", id),
			)
		default:
			compensate(applied)
		}
		c.mu.Unlock()

		c.logger.Warn("mutation rolled back",
			slog.String("op", string(op)),
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		rollbackErr := model.NewRolledBackError(string(op), id, err)
		m.finish(RolledBack, rollbackErr)
		c.settle(m, rollbackErr)
	}()
	return m, nil
}

func (c *Controller) persistLocked() error {
	if c.local == nil {
		return nil
	}
	return c.local.Write(c.kind.StorageKey(), c.items)
}

// settle records metrics and notifies subscribers.
func (c *Controller) settle(m *Mutation, err error) {
	state := m.State()
	metrics.ObserveMutation(string(c.kind), string(m.Op), state.String())
	c.publish(Event{Kind: string(c.kind), Op: m.Op, ItemID: m.ItemID, State: state, Err: err})
}

// Subscribe returns a channel of settled-mutation events and a function
// that cancels the subscription. Events are dropped for a subscriber whose
// buffer is full.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) publish(ev Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Debug("event dropped for slow subscriber", slog.String("op", string(ev.Op)))
		}
	}
}

// Flush waits for every in-flight confirmation to settle or ctx to end.
func (c *Controller) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
