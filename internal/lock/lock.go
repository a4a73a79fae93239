// Package lock prevents overlapping dispatcher runs.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = errors.New("dispatch run already in progress")

// Locker guards a single critical section. TryLock never blocks waiting for
// another holder; it returns ErrRunInProgress instead. The returned function
// releases the lock.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

// NewLocal returns a new in-process lock.
func NewLocal() *Local {
	return &Local{}
}

// TryLock acquires the lock if it is free.
func (l *Local) TryLock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
