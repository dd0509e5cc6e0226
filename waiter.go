package waitz

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

type waiterState int32

const (
	statePending waiterState = iota
	stateWoken
	stateCancelled
)

// Waiter is a one-shot, single-consumer rendezvous object: the core
// building block every other primitive in this package funnels its
// blocking operations through. It is created pending by exactly one task
// (green or async), transitions to woken or cancelled exactly once, and is
// then dead.
//
// In languages without a thread-safe channel primitive, waking a Waiter
// from the creator's own scheduling domain (direct reschedule) and waking
// it from a different domain (thread-safe wake) are different code paths.
// Go's channels are already safe to close from any goroutine, so Wake has
// a single implementation; Domain and Token are retained purely for
// introspection (tracing, and the S1 cross-domain handoff scenario) rather
// than to select a wake strategy.
type Waiter struct {
	domain Domain
	token  Token
	shield atomic.Bool
	state  atomic.Int32
	ch     chan struct{}
	clock  clockz.Clock
}

// NewWaiter creates a pending Waiter recording the calling goroutine's
// current scheduling domain. If shield is true, a local cancellation
// (timeout or context cancellation) will not transition the waiter to
// cancelled — it can only complete by being woken. Shielding guarantees a
// protocol step that must finish once started (handing off an acquired
// lock, completing a barrier batch release) does so even if the awaiting
// task is being cancelled.
//
// Timeouts are scheduled against clockz.RealClock. Primitives that accept
// WithClock (Semaphore, Queue, and anything built on them) use
// NewWaiterWithClock instead, so a fake clock in a test controls the
// timeout path the same way it controls the primitive's own deadline math.
func NewWaiter(shield bool) *Waiter {
	return NewWaiterWithClock(shield, clockz.RealClock)
}

// NewWaiterWithClock is NewWaiter, scheduling its timeout against clock
// instead of the real wall clock.
func NewWaiterWithClock(shield bool, clock clockz.Clock) *Waiter {
	w := &Waiter{ch: make(chan struct{}), clock: clock}
	w.domain = CurrentDomain()
	if w.domain == DomainAsync {
		w.token, _ = CurrentAsyncToken()
	} else {
		w.token = CurrentGreenToken()
	}
	w.shield.Store(shield)
	return w
}

// Domain reports the scheduling domain this waiter was created in.
func (w *Waiter) Domain() Domain { return w.domain }

// Token reports the identity of the thread or event loop this waiter was
// created in.
func (w *Waiter) Token() Token { return w.token }

// SetShield toggles shielding after construction. CyclicBarrier.Reset uses
// it to clear shielding on the waiters it wakes.
func (w *Waiter) SetShield(shield bool) { w.shield.Store(shield) }

// Shielded reports whether local cancellation is currently suppressed.
func (w *Waiter) Shielded() bool { return w.shield.Load() }

// Wake triggers the waiter's completion. It is safe to call from any
// goroutine, including a different scheduling domain than the one that
// created the waiter. Returns true iff this call was the one that
// transitioned the waiter from pending to woken; a later or concurrent
// call on an already-resolved waiter is a no-op that returns false, so a
// releaser knows to move on to the next waiter in its queue.
func (w *Waiter) Wake() bool {
	if w.state.CompareAndSwap(int32(statePending), int32(stateWoken)) {
		close(w.ch)
		metrics.Counter(MetricWakesTotal).Inc()
		return true
	}
	return false
}

// Cancelled reports whether the waiter transitioned to cancelled — used by
// a releaser that raced a cancellation to decide whether the token it
// tried to hand off must be returned to the pool.
func (w *Waiter) Cancelled() bool {
	return waiterState(w.state.Load()) == stateCancelled
}

// tryCancel attempts the pending->cancelled transition. It fails (returns
// false) if the waiter is shielded, or if it has already resolved (to
// woken, by a racing Wake, or to cancelled by a previous call).
func (w *Waiter) tryCancel() bool {
	if w.shield.Load() {
		return false
	}
	if w.state.CompareAndSwap(int32(statePending), int32(stateCancelled)) {
		metrics.Counter(MetricCancelsTotal).Inc()
		return true
	}
	return false
}

// Wait blocks the calling goroutine until the waiter is woken or the
// timeout expires. timeout < 0 means wait forever; timeout == 0 means
// check once without blocking; timeout > 0 bounds the wait. Returns true
// iff woken, false iff the wait timed out locally (a wake that raced with
// the timeout and reached the waiter first still reports true — the
// waiter never double-resolves).
func (w *Waiter) Wait(timeout time.Duration) bool {
	select {
	case <-w.ch:
		return true
	default:
	}

	var timeoutCh <-chan time.Time
	switch {
	case timeout == 0:
		if w.tryCancel() {
			return false
		}
		return true
	case timeout > 0:
		timeoutCh = w.clock.After(timeout)
	}

	ctx, span := tracer.StartSpan(context.Background(), SpanWaiterWait)
	span.SetTag(TagWaiterDomain, w.domain.String())
	defer span.Finish()
	_ = ctx

	select {
	case <-w.ch:
		span.SetTag(TagWaiterResult, "woken")
		return true
	case <-timeoutCh:
		if w.tryCancel() {
			span.SetTag(TagWaiterResult, "cancelled")
			return false
		}
		span.SetTag(TagWaiterResult, "woken")
		return true
	}
}

// Await suspends the calling aloop task until the waiter is woken or ctx
// is done. It is the async-side analogue of Wait: ctx carries whatever
// cancellation deadline the host loop iteration is subject to instead of a
// plain timeout value.
func (w *Waiter) Await(ctx context.Context) bool {
	select {
	case <-w.ch:
		return true
	default:
	}

	spanCtx, span := tracer.StartSpan(ctx, SpanWaiterAwait)
	span.SetTag(TagWaiterDomain, w.domain.String())
	defer span.Finish()
	_ = spanCtx

	select {
	case <-w.ch:
		span.SetTag(TagWaiterResult, "woken")
		return true
	case <-ctx.Done():
		if w.tryCancel() {
			span.SetTag(TagWaiterResult, "cancelled")
			return false
		}
		span.SetTag(TagWaiterResult, "woken")
		return true
	}
}

// waiterQueue is an ordered, thread-safe FIFO sequence of Waiters with
// constant-time append, front inspection, and removal-by-value, built on
// container/list rather than the slice-plus-sync.RWMutex shape used
// elsewhere in this stack — a queue here is contended enough on every primitive
// to warrant the dedicated container instead of slice-shift removal.
type waiterQueue struct {
	mu sync.Mutex
	l  list.List
	// byWaiter enables O(1) removal-by-value (the append-then-retry and
	// cancel paths both need to remove an arbitrary element, not just the
	// head).
	byWaiter map[*Waiter]*list.Element
}

func newWaiterQueue() *waiterQueue {
	q := &waiterQueue{byWaiter: make(map[*Waiter]*list.Element)}
	return q
}

func (q *waiterQueue) pushBack(w *Waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byWaiter[w] = q.l.PushBack(w)
	metrics.Counter(MetricWaitersTotal).Inc()
	metrics.Gauge(MetricWaitersPending).Set(float64(q.l.Len()))
}

// popFront removes and returns the head waiter, or nil if the queue is
// empty.
func (q *waiterQueue) popFront() *Waiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	w := e.Value.(*Waiter) //nolint:errcheck // queue invariant: only *Waiter values are stored
	delete(q.byWaiter, w)
	metrics.Gauge(MetricWaitersPending).Set(float64(q.l.Len()))
	return w
}

// remove removes w from the queue if present, reporting whether it was
// found. Used by the acquire-side cancellation path: if remove succeeds,
// the caller's slot was vacated cleanly; if it fails, a releaser already
// dequeued this waiter, and its Wake fails against the cancelled state, so
// the releaser passes the wakeup on to the next waiter.
func (q *waiterQueue) remove(w *Waiter) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byWaiter[w]
	if !ok {
		return false
	}
	q.l.Remove(e)
	delete(q.byWaiter, w)
	metrics.Gauge(MetricWaitersPending).Set(float64(q.l.Len()))
	return true
}

func (q *waiterQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

// peekFrontCancelled reports whether the current head waiter has already
// cancelled. No primitive in this package calls it.
func (q *waiterQueue) peekFrontCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return false
	}
	w := e.Value.(*Waiter) //nolint:errcheck // queue invariant: only *Waiter values are stored
	return w.Cancelled()
}

func (s waiterState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateWoken:
		return "woken"
	case stateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("waiterState(%d)", int32(s))
	}
}
