package reactive

import "sync"

// Computed is a derived cell. Its value is a pure function of other
// sources, memoized and recomputed only when one of them changes.
type Computed[T any] struct {
	cell    *Cell[T]
	compute func() T

	mu      sync.Mutex
	cancels []func()
}

// Derive creates a Computed that recomputes with compute whenever any of
// deps changes. Every change of a dependency notifies subscribers.
func Derive[T any](compute func() T, deps ...Source) *Computed[T] {
	return derive(NewCell(compute()), compute, deps)
}

// DeriveEq is Derive for comparable values; recomputations producing an
// equal value do not notify.
func DeriveEq[T comparable](compute func() T, deps ...Source) *Computed[T] {
	return derive(NewCell(compute(), WithEqual(Equal[T])), compute, deps)
}

func derive[T any](cell *Cell[T], compute func() T, deps []Source) *Computed[T] {
	c := &Computed[T]{
		cell:    cell,
		compute: compute,
	}
	for _, dep := range deps {
		c.cancels = append(c.cancels, dep.OnChange(c.recompute))
	}
	return c
}

func (c *Computed[T]) recompute() {
	b := NewBatch()

	c.mu.Lock()
	c.cell.SetIn(b, c.compute())
	c.mu.Unlock()

	b.Commit()
}

// Get returns the memoized value.
func (c *Computed[T]) Get() T {
	return c.cell.Get()
}

// OnChange registers fn to be called after every recomputation that
// produced a change.
func (c *Computed[T]) OnChange(fn func()) func() {
	return c.cell.OnChange(fn)
}

// Subscribe registers fn to receive the value after every change.
func (c *Computed[T]) Subscribe(fn func(T)) func() {
	return c.cell.Subscribe(fn)
}

// Close detaches the computed from its dependencies. The last value stays
// readable.
func (c *Computed[T]) Close() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Scope owns subscriptions and derived cells until it is closed.
type Scope struct {
	mu      sync.Mutex
	cancels []func()
	closed  bool
}

// NewScope returns an open scope.
func NewScope() *Scope {
	return &Scope{}
}

// Add registers cancel to run on Close. On a closed scope cancel runs
// immediately.
func (s *Scope) Add(cancel func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
}

// Close runs every registered cancel func in reverse order. It is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Effect runs fn once now and again after every change of deps, until s is
// closed.
func Effect(s *Scope, fn func(), deps ...Source) {
	fn()
	for _, dep := range deps {
		s.Add(dep.OnChange(fn))
	}
}
