// Package store holds the shared particle collection, its per-generation snapshot and the
// render buffers, all guarded by a single readers-writer lock.
//
// Locking discipline:
//   - membership changes (Add, Remove, Clear, Replace, Apply) and the commit pass take the
//     exclusive lock and refresh the snapshot in the same critical section;
//   - the simulate phase reads the snapshot under the shared lock;
//   - Fill takes the exclusive lock, because simulate callbacks write particle fields
//     through the same handles the render copy reads.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pthm-cable/motes/particle"
)

// ErrCapacityExceeded is returned when an operation would grow the store past its capacity.
var ErrCapacityExceeded = errors.New("particle capacity exceeded")

// ErrOutOfRange is returned for a position outside the live store.
var ErrOutOfRange = errors.New("position out of range")

// FloatsPerParticle is the stride of both render buffers.
const FloatsPerParticle = 4

// Buffers are the flat, capacity-sized arrays handed to the renderer.
// PosRadius holds x, y, radius, 0 per slot; Colors holds r, g, b, a in [0,1].
type Buffers struct {
	PosRadius []float32
	Colors    []float32
}

// NewBuffers allocates zeroed buffers for capacity particles.
func NewBuffers(capacity int) Buffers {
	return Buffers{
		PosRadius: make([]float32, capacity*FloatsPerParticle),
		Colors:    make([]float32, capacity*FloatsPerParticle),
	}
}

// Store is the engine-owned particle collection.
type Store[T particle.Particle] struct {
	mu sync.RWMutex

	live     []T
	snapshot []T
	next     int
	capacity int
	ctor     particle.Constructor[T]

	buf   Buffers
	drawn int // slots written by the previous Fill
}

// New creates an empty store. Capacity is fixed for the lifetime of the store.
func New[T particle.Particle](capacity int, ctor particle.Constructor[T]) *Store[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Store[T]{
		live:     make([]T, 0, capacity),
		capacity: capacity,
		ctor:     ctor,
		buf:      NewBuffers(capacity),
	}
}

// Capacity returns the maximum particle count.
func (s *Store[T]) Capacity() int {
	return s.capacity
}

// Len returns the live particle count.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// NextIndex returns the index the next constructed particle will receive.
func (s *Store[T]) NextIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// Add constructs a particle with the next index and appends it.
func (s *Store[T]) Add(args ...any) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.add(args)
	if err != nil {
		return p, err
	}
	s.refresh()
	return p, nil
}

// AddN constructs and appends n particles with the same arguments.
// Either all n are added or none.
func (s *Store[T]) AddN(n int, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.live)+n > s.capacity {
		return fmt.Errorf("add %d at %d/%d: %w", n, len(s.live), s.capacity, ErrCapacityExceeded)
	}
	for i := 0; i < n; i++ {
		s.live = append(s.live, s.mint(args))
	}
	s.refresh()
	return nil
}

// Make constructs a particle with the next index without storing it.
// The index is consumed even if the particle is never added.
func (s *Store[T]) Make(args ...any) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mint(args)
}

// Remove drops the last particle.
func (s *Store[T]) Remove() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	n := len(s.live)
	if n == 0 {
		return zero, false
	}
	p := s.live[n-1]
	s.live[n-1] = zero
	s.live = s.live[:n-1]
	s.refresh()
	return p, true
}

// RemoveAt drops the particle at position i, preserving the order of the rest.
func (s *Store[T]) RemoveAt(i int) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if i < 0 || i >= len(s.live) {
		return zero, fmt.Errorf("remove at %d of %d: %w", i, len(s.live), ErrOutOfRange)
	}
	p := s.removeAt(i)
	s.refresh()
	return p, nil
}

// RemoveIndex drops the particle carrying the given engine index.
func (s *Store[T]) RemoveIndex(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.live {
		if p.Index() == index {
			s.removeAt(i)
			s.refresh()
			return true
		}
	}
	return false
}

// Clear empties the store and the snapshot and zeroes the render buffers.
// The index counter is not reset.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.snapshot = nil
}

// Replace swaps in a new collection, taking ownership of ps.
func (s *Store[T]) Replace(ps []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ps) > s.capacity {
		return fmt.Errorf("replace with %d/%d: %w", len(ps), s.capacity, ErrCapacityExceeded)
	}
	s.live = ps
	s.refresh()
	return nil
}

// Apply builds a replacement collection inside the exclusive section.
// fn receives a copy of the live store and a constructor that mints particles with
// fresh indices; its result is validated against capacity and swapped in atomically.
// fn must not call other Store methods.
func (s *Store[T]) Apply(fn func(live []T, mk func(args ...any) T) []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := make([]T, len(s.live), s.capacity)
	copy(cur, s.live)
	next := fn(cur, func(args ...any) T { return s.mint(args) })
	if len(next) > s.capacity {
		return fmt.Errorf("apply produced %d/%d: %w", len(next), s.capacity, ErrCapacityExceeded)
	}
	s.live = next
	s.refresh()
	return nil
}

// Simulate runs fn over the current snapshot under the shared lock.
// It returns false without calling fn when the snapshot is empty.
func (s *Store[T]) Simulate(fn func(snapshot []T)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshot) == 0 {
		return false
	}
	fn(s.snapshot)
	return true
}

// Commit runs fn with exclusive access to the live store, then replaces the snapshot.
func (s *Store[T]) Commit(fn func(tx *Tx[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn != nil {
		fn(&Tx[T]{s: s})
	}
	s.refresh()
}

// Read runs fn under the shared lock.
func (s *Store[T]) Read(fn func(live []T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.live)
}

// Write runs fn under the exclusive lock. fn may mutate particle fields but not membership.
func (s *Store[T]) Write(fn func(live []T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.live)
}

// Particles returns a copy of the live store.
func (s *Store[T]) Particles() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.live))
	copy(out, s.live)
	return out
}

// Snapshot returns the current snapshot. It is replaced, never mutated, at each commit,
// so callers may keep reading it without the lock.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Buffers returns a copy of the canonical render buffers.
func (s *Store[T]) Buffers() Buffers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewBuffers(s.capacity)
	copy(out.PosRadius, s.buf.PosRadius)
	copy(out.Colors, s.buf.Colors)
	return out
}

// Fill rebuilds the render buffers from the live store and copies them into dst,
// allocating dst if it is undersized. Slots past the live count are zero.
// Returns the live count.
func (s *Store[T]) Fill(dst *Buffers) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.live)
	for i, p := range s.live {
		o := i * FloatsPerParticle
		x, y := p.Position()
		s.buf.PosRadius[o] = x
		s.buf.PosRadius[o+1] = y
		s.buf.PosRadius[o+2] = p.Radius()
		s.buf.PosRadius[o+3] = 0
		particle.Floats(p.Color(), s.buf.Colors[o:o+FloatsPerParticle])
	}
	if s.drawn > n {
		clear(s.buf.PosRadius[n*FloatsPerParticle : s.drawn*FloatsPerParticle])
		clear(s.buf.Colors[n*FloatsPerParticle : s.drawn*FloatsPerParticle])
	}
	s.drawn = n

	size := s.capacity * FloatsPerParticle
	if len(dst.PosRadius) != size || len(dst.Colors) != size {
		*dst = NewBuffers(s.capacity)
	}
	copy(dst.PosRadius, s.buf.PosRadius)
	copy(dst.Colors, s.buf.Colors)
	return n
}

// mint mints a particle with the next index. Caller holds the exclusive lock.
func (s *Store[T]) mint(args []any) T {
	p := s.ctor(s.next, args...)
	s.next++
	return p
}

// add mints and appends one particle. Caller holds the exclusive lock.
func (s *Store[T]) add(args []any) (T, error) {
	if len(s.live) >= s.capacity {
		var zero T
		return zero, fmt.Errorf("add at %d/%d: %w", len(s.live), s.capacity, ErrCapacityExceeded)
	}
	p := s.mint(args)
	s.live = append(s.live, p)
	return p, nil
}

// reset empties the live store and zeroes the render buffers. Caller holds the exclusive lock.
func (s *Store[T]) reset() {
	clear(s.live)
	s.live = s.live[:0]
	clear(s.buf.PosRadius)
	clear(s.buf.Colors)
	s.drawn = 0
}

// removeAt deletes position i. Caller holds the exclusive lock.
func (s *Store[T]) removeAt(i int) T {
	p := s.live[i]
	copy(s.live[i:], s.live[i+1:])
	var zero T
	s.live[len(s.live)-1] = zero
	s.live = s.live[:len(s.live)-1]
	return p
}

// refresh replaces the snapshot with a shallow copy of the live store.
// Caller holds the exclusive lock.
func (s *Store[T]) refresh() {
	snap := make([]T, len(s.live))
	copy(snap, s.live)
	s.snapshot = snap
}
