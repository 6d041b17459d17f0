// Package history keeps bounded undo and redo stacks of whole-document
// snapshots for one editing session.
package history

import (
	"sync"
	"sync/atomic"

	"buddyboard-be/pkg/shape"
)

// DefaultLimit is the number of snapshots kept on each stack.
const DefaultLimit = 50

// Option configures a Manager.
type Option func(*Manager)

// WithLimit overrides DefaultLimit. Values below 1 are ignored.
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// Manager owns the undo and redo stacks of a session. History is linear:
// committing after an undo discards everything that could have been redone.
type Manager struct {
	mu      sync.Mutex
	limit   int
	undo    []shape.List
	redo    []shape.List
	current shape.List

	// busy is held while an undo or redo propagates its result.
	busy atomic.Bool
}

// New returns a Manager whose current snapshot is initial.
func New(initial shape.List, opts ...Option) *Manager {
	m := &Manager{
		limit:   DefaultLimit,
		current: shape.Clone(initial),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commit records prior as undoable, clears the redo stack and adopts next.
func (m *Manager) Commit(next, prior shape.List) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo = m.push(m.undo, shape.Clone(prior))
	m.redo = nil
	m.current = shape.Clone(next)
}

// Replace adopts a snapshot that did not come from a local edit, such as
// a remote update. The stacks are left alone.
func (m *Manager) Replace(current shape.List) {
	m.mu.Lock()
	m.current = shape.Clone(current)
	m.mu.Unlock()
}

// Undo restores the most recent undoable snapshot and hands it to
// propagate. It returns false when there is nothing to undo or when another
// undo or redo is still propagating.
func (m *Manager) Undo(propagate func(shape.List)) bool {
	return m.step(propagate, true)
}

// Redo is the inverse of Undo.
func (m *Manager) Redo(propagate func(shape.List)) bool {
	return m.step(propagate, false)
}

func (m *Manager) step(propagate func(shape.List), backward bool) bool {
	if !m.busy.CompareAndSwap(false, true) {
		return false
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	from, to := &m.redo, &m.undo
	if backward {
		from, to = &m.undo, &m.redo
	}
	if len(*from) == 0 {
		m.mu.Unlock()
		return false
	}
	last := len(*from) - 1
	adopted := (*from)[last]
	(*from)[last] = nil
	*from = (*from)[:last]
	*to = m.push(*to, m.current)
	m.current = adopted
	m.mu.Unlock()

	if propagate != nil {
		propagate(shape.Clone(adopted))
	}
	return true
}

// push appends s and evicts the oldest entries beyond the limit.
func (m *Manager) push(stack []shape.List, s shape.List) []shape.List {
	stack = append(stack, s)
	if over := len(stack) - m.limit; over > 0 {
		clear(stack[:over])
		stack = stack[over:]
	}
	return stack
}

// Current returns a copy of the adopted snapshot.
func (m *Manager) Current() shape.List {
	m.mu.Lock()
	defer m.mu.Unlock()
	return shape.Clone(m.current)
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Len returns the sizes of the undo and redo stacks.
func (m *Manager) Len() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}
