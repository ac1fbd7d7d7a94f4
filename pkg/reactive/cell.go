// Package reactive provides the small observable substrate the resource
// package is built on: mutable cells, memoized derived cells, deferred
// notification batches and scopes that own subscriptions.
//
// There is no ambient reactive context. Batches and scopes are values that
// are passed explicitly to whoever mutates or subscribes.
package reactive

import (
	"sort"
	"sync"
)

// Source is anything that can announce a change.
type Source interface {
	// OnChange registers fn to be called after every change.
	OnChange(fn func()) (cancel func())
}

// Readable is a read-only view of a reactive value.
type Readable[T any] interface {
	Source

	// Get returns the current value.
	Get() T

	// Subscribe registers fn to receive the value current at delivery time
	// after every change.
	Subscribe(fn func(T)) (cancel func())
}

// Option configures a Cell.
type Option[T any] func(*Cell[T])

// WithEqual suppresses notifications when the new value equals the old one.
func WithEqual[T any](equal func(a, b T) bool) Option[T] {
	return func(c *Cell[T]) {
		c.equal = equal
	}
}

// Equal is an equality function for comparable types, meant for WithEqual.
func Equal[T comparable](a, b T) bool {
	return a == b
}

// Cell is a mutable reactive value. It is safe for concurrent use.
//
// Subscribers are called without any cell lock held and must not write the
// cell they observe from inside the callback.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	equal func(a, b T) bool

	subsMu sync.Mutex
	subs   map[uint64]func()
	nextID uint64
}

// NewCell creates a Cell holding initial.
func NewCell[T any](initial T, opts ...Option[T]) *Cell[T] {
	c := &Cell[T]{
		value: initial,
		subs:  make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers immediately.
func (c *Cell[T]) Set(v T) {
	b := NewBatch()
	c.SetIn(b, v)
	b.Commit()
}

// Update replaces the value with fn(current) and notifies subscribers.
// fn runs under the cell's write lock and must not touch the cell.
func (c *Cell[T]) Update(fn func(T) T) {
	b := NewBatch()
	c.UpdateIn(b, fn)
	b.Commit()
}

// SetIn stores v immediately but defers notification until b is committed.
func (c *Cell[T]) SetIn(b *Batch, v T) {
	c.UpdateIn(b, func(T) T { return v })
}

// UpdateIn is Update with notification deferred to b.
func (c *Cell[T]) UpdateIn(b *Batch, fn func(T) T) {
	c.mu.Lock()
	old := c.value
	c.value = fn(old)
	changed := c.equal == nil || !c.equal(old, c.value)
	c.mu.Unlock()

	if changed {
		b.mark(c, c.notify)
	}
}

// OnChange registers fn to be called after every change.
func (c *Cell[T]) OnChange(fn func()) func() {
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// Subscribe registers fn to receive the current value after every change.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	return c.OnChange(func() { fn(c.Get()) })
}

// notify calls subscribers in registration order.
func (c *Cell[T]) notify() {
	c.subsMu.Lock()
	ids := make([]uint64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Batch collects change notifications so that a group of writes made under
// an external lock can be announced after that lock is released.
// A Batch is not safe for concurrent use.
type Batch struct {
	pending []func()
	seen    map[any]struct{}
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{seen: make(map[any]struct{})}
}

func (b *Batch) mark(key any, notify func()) {
	if _, ok := b.seen[key]; ok {
		return
	}
	b.seen[key] = struct{}{}
	b.pending = append(b.pending, notify)
}

// Commit delivers the pending notifications once, in write order, and
// resets the batch.
func (b *Batch) Commit() {
	pending := b.pending
	b.pending = nil
	b.seen = make(map[any]struct{})
	for _, notify := range pending {
		notify()
	}
}
