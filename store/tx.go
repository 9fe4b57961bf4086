package store

import (
	"fmt"

	"github.com/pthm-cable/motes/particle"
)

// Tx is exclusive access to the live store inside Commit. It must not be retained
// after the callback returns. Membership changes made through it are published
// to the snapshot when Commit returns.
type Tx[T particle.Particle] struct {
	s *Store[T]
}

// Particles returns the live slice. It is only valid during the callback.
func (tx *Tx[T]) Particles() []T {
	return tx.s.live
}

// Len returns the number of live particles.
func (tx *Tx[T]) Len() int {
	return len(tx.s.live)
}

// Capacity returns the store capacity.
func (tx *Tx[T]) Capacity() int {
	return tx.s.capacity
}

// Add constructs a particle with the next index and appends it.
func (tx *Tx[T]) Add(args ...any) (T, error) {
	return tx.s.add(args)
}

// RemoveAt drops the particle at position i, preserving the order of the rest.
func (tx *Tx[T]) RemoveAt(i int) (T, error) {
	if i < 0 || i >= len(tx.s.live) {
		var zero T
		return zero, fmt.Errorf("remove at %d of %d: %w", i, len(tx.s.live), ErrOutOfRange)
	}
	return tx.s.removeAt(i), nil
}

// Filter keeps the particles for which keep returns true, in order,
// and returns the number removed.
func (tx *Tx[T]) Filter(keep func(T) bool) int {
	live := tx.s.live
	n := 0
	for _, p := range live {
		if keep(p) {
			live[n] = p
			n++
		}
	}
	clear(live[n:])
	tx.s.live = live[:n]
	return len(live) - n
}

// Clear empties the store and zeroes the render buffers.
func (tx *Tx[T]) Clear() {
	tx.s.reset()
}
