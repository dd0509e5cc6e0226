package waitz

import (
	"container/list"
	"context"
	"sync"

	"github.com/zoobzio/metricz"
)

// Condition observability keys.
const (
	MetricConditionNotifies = metricz.Key("waitz.condition.notifies.total")
	MetricConditionWaiting  = metricz.Key("waitz.condition.waiting")
)

// Locker is the enter/exit contract a Condition composes with: any of
// Lock, BoundedLock, OwnedLock, or RLock satisfies it already, matching
// spec §9's "duck typing -> interface abstraction" note for the source's
// "anything with acquire/release".
type Locker interface {
	GreenAcquire(timeout ...int64) bool
	AsyncAcquire(ctx context.Context) bool
	Release()
}

// savingLocker is the optional extension RLock implements so Condition can
// fully vacate a reentrant hold (regardless of recursion depth) across a
// wait and restore it exactly afterward, per spec §4.K/§4.G. A plain Lock
// has no recursion, so a bare Release/Acquire round trip is already a full
// vacate — Condition only looks for this extension, it never requires it.
type savingLocker interface {
	releaseSaveAny() any
	acquireRestoreAny(any)
	asyncAcquireRestoreAny(context.Context, any)
}

// conditionEntry pairs a waiter with the ticket it was registered under, so
// Notify can bound which waiters a given call may wake: only those
// registered no later than the notification's deadline, the way the
// source's timestamp-bounded wake sweep prevents a notify from waking a
// waiter that enqueues after it was issued (spec S5).
type conditionEntry struct {
	w      *Waiter
	ticket uint64
}

// conditionQueue is a ticketed counterpart to waiterQueue: FIFO by
// insertion (and therefore by ticket, since tickets are assigned at
// insertion time), with O(1) removal-by-value and a ticket-bounded pop.
type conditionQueue struct {
	mu       sync.Mutex
	l        list.List
	byWaiter map[*Waiter]*list.Element
}

func newConditionQueue() *conditionQueue {
	return &conditionQueue{byWaiter: make(map[*Waiter]*list.Element)}
}

func (q *conditionQueue) pushBack(w *Waiter, ticket uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byWaiter[w] = q.l.PushBack(conditionEntry{w: w, ticket: ticket})
}

func (q *conditionQueue) remove(w *Waiter) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byWaiter[w]
	if !ok {
		return false
	}
	q.l.Remove(e)
	delete(q.byWaiter, w)
	return true
}

// popFrontIf removes and returns the head entry iff its ticket is <=
// deadline. Because tickets are assigned in insertion order, the head
// always holds the smallest outstanding ticket, so a single head check
// suffices to decide whether any eligible waiter remains.
func (q *conditionQueue) popFrontIf(deadline uint64) (*Waiter, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return nil, false
	}
	entry := e.Value.(conditionEntry) //nolint:errcheck // queue invariant: only conditionEntry values are stored
	if entry.ticket > deadline {
		return nil, false
	}
	q.l.Remove(e)
	delete(q.byWaiter, entry.w)
	return entry.w, true
}

func (q *conditionQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

// Condition is a condition variable composed with an external Locker, the
// same "release, wait, reacquire" protocol a language's native condition
// variable implements, generalized here to work across the green/async
// split: a waiter fully releases its lock before suspending (using the
// save/restore protocol for reentrant locks) and reacquires it — shielded,
// so a racing cancellation cannot return control to the caller with the
// lock unheld — before returning to the caller.
type Condition struct {
	lock Locker

	mu        sync.Mutex
	ticketSeq uint64
	q         *conditionQueue

	metrics *metricz.Registry
}

// NewCondition creates a Condition composed with lock. lock must already
// exist and is never acquired by NewCondition itself — callers are
// expected to hold it (exactly as a native condition variable requires)
// before calling Wait.
func NewCondition(lock Locker) *Condition {
	c := &Condition{lock: lock, q: newConditionQueue(), metrics: metricz.New()}
	c.metrics.Counter(MetricConditionNotifies)
	c.metrics.Gauge(MetricConditionWaiting)
	return c
}

// Waiting returns the number of tasks currently waiting on this condition.
func (c *Condition) Waiting() int { return c.q.len() }

// Metrics returns the condition's metrics registry.
func (c *Condition) Metrics() *metricz.Registry { return c.metrics }

func (c *Condition) nextTicket() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticketSeq++
	return c.ticketSeq
}

// currentTicket returns the most recently issued ticket, used as the
// default deadline for Notify/NotifyAll when the caller does not supply
// one explicitly.
func (c *Condition) currentTicket() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticketSeq
}

// vacateGreen fully releases lock (regardless of recursion depth) and
// returns a closure that reacquires it to the same depth. The reacquire is
// always unconditional (timeout -1 / background context): a cancellation
// observed here must never return control to the caller with the lock
// unheld.
func (c *Condition) vacateGreen() func() {
	if s, ok := c.lock.(savingLocker); ok {
		state := s.releaseSaveAny()
		return func() { s.acquireRestoreAny(state) }
	}
	c.lock.Release()
	return func() { c.lock.GreenAcquire(-1) }
}

func (c *Condition) vacateAsync() func() {
	if s, ok := c.lock.(savingLocker); ok {
		state := s.releaseSaveAny()
		return func() { s.asyncAcquireRestoreAny(context.Background(), state) }
	}
	c.lock.Release()
	return func() { c.lock.AsyncAcquire(context.Background()) }
}

// GreenWait atomically releases lock and blocks the calling goroutine
// until notified, then reacquires lock before returning. The caller must
// hold lock when calling GreenWait and will hold it again when GreenWait
// returns, regardless of the return value. Returns false iff the wait
// timed out locally; a wake that raced with the timeout and reached the
// waiter first still reports true, matching Waiter's own race resolution.
// A notify that loses the race to a timeout fails its Wake and moves on to
// the next eligible waiter, so no separate wake-forwarding step is needed.
func (c *Condition) GreenWait(timeout ...int64) bool {
	ticket := c.nextTicket()
	w := NewWaiter(false)
	c.q.pushBack(w, ticket)
	c.metrics.Gauge(MetricConditionWaiting).Set(float64(c.q.len()))

	restore := c.vacateGreen()
	ok := w.Wait(durationFromNanos(resolveTimeout(timeout)))
	if !ok {
		c.q.remove(w)
	}
	c.metrics.Gauge(MetricConditionWaiting).Set(float64(c.q.len()))
	restore()
	return ok
}

// AsyncWait is the async analogue of GreenWait.
func (c *Condition) AsyncWait(ctx context.Context) bool {
	ticket := c.nextTicket()
	w := NewWaiter(false)
	c.q.pushBack(w, ticket)
	c.metrics.Gauge(MetricConditionWaiting).Set(float64(c.q.len()))

	restore := c.vacateAsync()
	ok := w.Await(ctx)
	if !ok {
		c.q.remove(w)
	}
	c.metrics.Gauge(MetricConditionWaiting).Set(float64(c.q.len()))
	restore()
	return ok
}

// GreenWaitFor releases lock, waits until predicate returns true or
// timeout elapses, and reacquires lock before returning. predicate is
// evaluated with lock held, exactly as the caller's own condition checks
// would be. Returns true iff predicate returned true before the deadline;
// predicate's own result is returned even when it flips true on the very
// last check, satisfying the "predicate idempotence" property (spec §8.8).
func (c *Condition) GreenWaitFor(predicate func() bool, timeout ...int64) bool {
	if predicate() {
		return true
	}
	timeoutNanos := resolveTimeout(timeout)
	if timeoutNanos == 0 {
		return false
	}
	deadline, hasDeadline := deadlineFromNanos(timeoutNanos)
	for {
		remaining := int64(-1)
		if hasDeadline {
			left := timeRemaining(deadline)
			if left <= 0 {
				return predicate()
			}
			remaining = int64(left)
		}
		if !c.GreenWait(remaining) {
			return predicate()
		}
		if predicate() {
			return true
		}
	}
}

// AsyncWaitFor is the async analogue of GreenWaitFor.
func (c *Condition) AsyncWaitFor(ctx context.Context, predicate func() bool) bool {
	if predicate() {
		return true
	}
	for {
		if !c.AsyncWait(ctx) {
			return predicate()
		}
		if predicate() {
			return true
		}
		if ctx.Err() != nil {
			return predicate()
		}
	}
}

// Notify wakes up to n waiters registered no later than deadline (default:
// the most recently issued ticket, i.e. every waiter currently
// registered), returning the number actually woken. A wake that fails
// because its target already cancelled does not count against n; the next
// eligible waiter is tried instead, the same dequeue-then-retry discipline
// Semaphore.Release uses.
func (c *Condition) Notify(n int, deadline ...uint64) int {
	if n <= 0 {
		return 0
	}
	d := c.resolveDeadline(deadline)
	woken := 0
	for woken < n {
		w, ok := c.q.popFrontIf(d)
		if !ok {
			break
		}
		if w.Wake() {
			woken++
		}
	}
	if woken > 0 {
		c.metrics.Counter(MetricConditionNotifies).Add(float64(woken))
		c.metrics.Gauge(MetricConditionWaiting).Set(float64(c.q.len()))
	}
	return woken
}

// NotifyAll wakes every waiter registered no later than deadline (default:
// every waiter currently registered), returning the number woken.
func (c *Condition) NotifyAll(deadline ...uint64) int {
	d := c.resolveDeadline(deadline)
	woken := 0
	for {
		w, ok := c.q.popFrontIf(d)
		if !ok {
			break
		}
		if w.Wake() {
			woken++
		}
	}
	if woken > 0 {
		c.metrics.Counter(MetricConditionNotifies).Add(float64(woken))
		c.metrics.Gauge(MetricConditionWaiting).Set(float64(c.q.len()))
	}
	return woken
}

func (c *Condition) resolveDeadline(deadline []uint64) uint64 {
	if len(deadline) > 0 {
		return deadline[0]
	}
	return c.currentTicket()
}
