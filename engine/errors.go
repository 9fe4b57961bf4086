package engine

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/motes/store"
)

var (
	// ErrCapacityExceeded is returned when an operation would grow the store past its capacity.
	ErrCapacityExceeded = store.ErrCapacityExceeded
	// ErrOutOfRange is returned for a position outside the live store.
	ErrOutOfRange = store.ErrOutOfRange

	ErrNotReady         = errors.New("engine not created")
	ErrAlreadyCreated   = errors.New("engine already created")
	ErrAlreadyRunning   = errors.New("engine already started")
	ErrUnsupportedSpace = errors.New("unsupported coordinate space")
	ErrRequestDropped   = errors.New("request queue full")
)

// WorkerPanicError is a panic recovered from a user callback.
// Worker is the scheduler worker id, or -1 for hooks run outside the pool.
type WorkerPanicError struct {
	Worker int
	Hook   string
	Value  any
	Stack  []byte
}

func (e *WorkerPanicError) Error() string {
	if e.Worker < 0 {
		return fmt.Sprintf("panic in %s: %v", e.Hook, e.Value)
	}
	return fmt.Sprintf("panic in %s on worker %d: %v", e.Hook, e.Worker, e.Value)
}

// Unwrap exposes a panicked error value to errors.Is and errors.As.
func (e *WorkerPanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
