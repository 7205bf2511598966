package factory

import (
	"context"
	"reflect"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ── Memoization states ────────────────────────────────────────────────────────

const (
	onceUnstarted int32 = iota
	onceInProgress
	onceDone
)

// Once memoizes a one-time computation: the factory passed to Get runs at
// most once concurrently and its result is reused by every later call.
//
// The first caller acquires the single-permit semaphore and performs the
// computation; concurrent losers park on the semaphore until it finishes.
// Once the computation succeeds, subsequent calls read the memoized value
// through a lock-free atomic fast path. If the computation fails, the slot
// resets to its unstarted state so a later call may retry, and the failure
// propagates to the caller that triggered it.
type Once[T any] struct {
	state atomic.Int32
	sem   *semaphore.Weighted
	value T
}

// NewOnce returns an empty memoization slot.
func NewOnce[T any]() *Once[T] {
	return &Once[T]{sem: semaphore.NewWeighted(1)}
}

// Get returns the memoized value, running fn to produce it if no successful
// run has happened yet. fn must not call Get on the same slot from the same
// goroutine; the engine guards that path via its resolution context.
func (o *Once[T]) Get(fn func() (T, error)) (T, error) {
	if o.state.Load() == onceDone {
		return o.value, nil
	}
	// Acquire with a background context never fails.
	_ = o.sem.Acquire(context.Background(), 1)
	defer o.sem.Release(1)

	if o.state.Load() == onceDone {
		return o.value, nil
	}
	o.state.Store(onceInProgress)
	v, err := fn()
	if err != nil {
		o.state.Store(onceUnstarted)
		var zero T
		return zero, err
	}
	o.value = v
	o.state.Store(onceDone)
	return v, nil
}

// Done reports whether a value has been memoized.
func (o *Once[T]) Done() bool { return o.state.Load() == onceDone }

// ── Resolution context ────────────────────────────────────────────────────────

// resctx tracks the memoization slots a single resolution has entered, so a
// receiver factory that transitively re-requests itself is rejected instead
// of deadlocking on its own semaphore.
type resctx struct {
	inFlight map[*Once[reflect.Value]]struct{}
}

func newResctx() *resctx {
	return &resctx{}
}

func (rc *resctx) enter(o *Once[reflect.Value]) bool {
	if rc.inFlight == nil {
		rc.inFlight = make(map[*Once[reflect.Value]]struct{})
	}
	if _, ok := rc.inFlight[o]; ok {
		return false
	}
	rc.inFlight[o] = struct{}{}
	return true
}

func (rc *resctx) leave(o *Once[reflect.Value]) {
	delete(rc.inFlight, o)
}
