package collection

import (
	"context"
	"sync"
)

// State is the lifecycle position of one mutation.
type State int

const (
	Idle State = iota
	Applied
	Confirmed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Applied:
		return "applied"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Op names a mutation.
type Op string

const (
	OpAdd         Op = "add"
	OpRemove      Op = "remove"
	OpClear       Op = "clear"
	OpSetQuantity Op = "set_quantity"
)

// Mutation tracks one optimistic change after it has been applied.
// Done is closed once the change is Confirmed or RolledBack.
type Mutation struct {
	Op     Op
	ItemID string

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newMutation(op Op, itemID string) *Mutation {
	return &Mutation{Op: op, ItemID: itemID, state: Applied, done: make(chan struct{})}
}

// settled returns a mutation that needed no confirmation.
func settled(op Op, itemID string) *Mutation {
	m := newMutation(op, itemID)
	m.finish(Confirmed, nil)
	return m
}

func (m *Mutation) finish(state State, err error) {
	m.mu.Lock()
	m.state = state
	m.err = err
	m.mu.Unlock()
	close(m.done)
}

// Done is closed when the mutation reaches a terminal state.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// State returns the current state.
func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the rollback cause, or nil.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Wait blocks until the mutation settles or ctx ends. It returns the
// rollback error (wrapping model.ErrRolledBack) when the change was reverted.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Event reports a settled mutation to subscribers. Err is set when the
// change was rolled back, and for a clear the server did not confirm.
type Event struct {
	Kind   string
	Op     Op
	ItemID string
	State  State
	Err    error
}
