// Package aloop is waitz's stand-in for the plural "async runtimes" of the
// language this package's synchronization primitives were modeled on.
// Go has exactly one green runtime (goroutines over OS threads); what the
// original spec calls an async runtime — a cooperative, single-threaded
// scheduler driving many tasks, of which a process may run several,
// independently, possibly on different threads — has no stock equivalent
// in Go, so this package provides a minimal one. A Loop groups tasks under
// one event-loop identity (waitz.Token) the way an asyncio/trio/curio loop
// would, which is what lets waitz.Waiter pick same-domain vs. cross-domain
// wake behavior and what the S1/S2 cross-domain scenarios exercise.
//
// Each task submitted to a Loop runs on its own goroutine rather than
// sharing one goroutine cooperatively — Go gives every goroutine its own
// stack and the runtime already schedules them, so literally serializing
// task execution onto one OS thread would only reintroduce the problem Go
// solved. What the Loop preserves from the original design is identity
// (every task it runs shares the Loop's Token) and lifecycle (Wait blocks
// until every task it has started has returned), which is everything
// waitz's primitives actually rely on a "loop" for.
package aloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/waitz"
)

// State mirrors the lifecycle of the loop itself, independent of any one
// task running on it.
type State uint32

const (
	// StateAwake: created, no task has run yet.
	StateAwake State = iota
	// StateRunning: at least one task has been started; the loop stays in
	// this state after its tasks return, until Close.
	StateRunning
	// StateTerminating: Close has been called; new tasks are rejected but
	// existing ones are allowed to finish.
	StateTerminating
	// StateTerminated: Close has completed; Wait has returned.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var loopSeq atomic.Uint64
var taskSeq atomic.Uint64

// Loop is a named group of async tasks sharing one event-loop identity.
type Loop struct {
	token   waitz.Token
	state   atomic.Uint32
	active  atomic.Int64
	wg      sync.WaitGroup
	closing chan struct{}
	once    sync.Once
}

// New creates a Loop with a fresh, process-unique identity.
func New() *Loop {
	l := &Loop{
		token:   waitz.Token{Runtime: "aloop", ID: loopSeq.Add(1)},
		closing: make(chan struct{}),
	}
	l.state.Store(uint32(StateAwake))
	return l
}

// Token returns this loop's identity, usable for same-domain comparisons.
func (l *Loop) Token() waitz.Token { return l.token }

// State reports the loop's current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Active returns the number of tasks currently running on this loop.
func (l *Loop) Active() int64 { return l.active.Load() }

// Go starts fn as a new task on this loop: fn's goroutine is bound to the
// loop's Token for the duration of the call, so any waitz primitive fn
// blocks on via its Async* methods sees DomainAsync and this loop's token.
// ctx is cancelled automatically if Close is called while fn is running.
// Go is a no-op (fn is never called) if the loop is terminating or
// terminated.
func (l *Loop) Go(fn func(ctx context.Context)) {
	if State(l.state.Load()) == StateTerminating || State(l.state.Load()) == StateTerminated {
		return
	}
	l.state.CompareAndSwap(uint32(StateAwake), uint32(StateRunning))
	l.active.Add(1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.active.Add(-1)

		taskID := waitz.TaskID{Runtime: "aloop.task", ID: taskSeq.Add(1)}
		restore := waitz.BindAsyncContext(l.token, taskID)
		defer restore()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-l.closing:
				cancel()
			case <-ctx.Done():
			}
		}()

		fn(ctx)
	}()
}

// Wait blocks until every task started on this loop has returned.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Close marks the loop terminating, cancels the context of every task
// still running, and waits for them to return. Close is idempotent.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.state.Store(uint32(StateTerminating))
		close(l.closing)
	})
	l.wg.Wait()
	l.state.Store(uint32(StateTerminated))
}

// Current returns the token of the loop whose task is running on the
// calling goroutine, and false if none is. It returns
// waitz.CurrentAsyncToken's result unchanged and does not return the Loop
// value itself.
func Current() (waitz.Token, bool) {
	return waitz.CurrentAsyncToken()
}
