package waitz

import (
	"context"
	"sync"

	"github.com/zoobzio/metricz"
)

// Event observability keys.
const (
	MetricEventSet = metricz.Key("waitz.event.set.total")
)

// Event is a one-shot, sticky flag: once Set, every past, present, and
// future waiter observes it set, and it cannot be unset. Built on Flag for
// the sticky state plus a waiterQueue so GreenWait/AsyncWait can suspend
// efficiently instead of polling.
type Event struct {
	set     Flag[struct{}]
	waiters *waiterQueue
	metrics *metricz.Registry
}

// NewEvent creates an unset Event.
func NewEvent() *Event {
	e := &Event{waiters: newWaiterQueue(), metrics: metricz.New()}
	e.metrics.Counter(MetricEventSet)
	return e
}

// IsSet reports whether the event has been set.
func (e *Event) IsSet() bool { _, ok := e.set.Get(); return ok }

// Set marks the event set and wakes every current waiter. Subsequent
// Set calls are no-ops. Returns true iff this call was the one that set
// the event.
func (e *Event) Set() bool {
	if !e.set.Set(struct{}{}) {
		return false
	}
	e.metrics.Counter(MetricEventSet).Inc()
	for {
		w := e.waiters.popFront()
		if w == nil {
			break
		}
		w.Wake()
	}
	return true
}

// GreenWait blocks the calling goroutine until the event is set, following
// the shared timeout convention.
func (e *Event) GreenWait(timeout ...int64) bool {
	if e.IsSet() {
		return true
	}
	w := NewWaiter(false)
	e.waiters.pushBack(w)
	if e.IsSet() {
		w.Wake()
	}
	ok := w.Wait(durationFromNanos(resolveTimeout(timeout)))
	if !ok {
		e.waiters.remove(w)
	}
	return ok
}

// AsyncWait suspends the calling aloop task until the event is set or ctx
// is done.
func (e *Event) AsyncWait(ctx context.Context) bool {
	if e.IsSet() {
		return true
	}
	w := NewWaiter(false)
	e.waiters.pushBack(w)
	if e.IsSet() {
		w.Wake()
	}
	ok := w.Await(ctx)
	if !ok {
		e.waiters.remove(w)
	}
	return ok
}

// Metrics returns the event's metrics registry.
func (e *Event) Metrics() *metricz.Registry { return e.metrics }

// REvent is the resettable counterpart to Event: a task holding the
// "controller" role may call Clear to return it to the unset state.
// Because resetting is inherently racy with concurrent waiters (a waiter
// woken at the instant of a Clear may or may not have observed the set
// state), REvent exposes a generation counter the same way the source's
// resettable event ties each wait to the generation it observed, so a
// caller can tell whether the event it waited on was reset out from under
// it.
type REvent struct {
	mu         sync.Mutex
	set        bool
	generation uint64
	waiters    *waiterQueue
	metrics    *metricz.Registry
}

// NewREvent creates an unset REvent.
func NewREvent() *REvent {
	e := &REvent{waiters: newWaiterQueue(), metrics: metricz.New()}
	e.metrics.Counter(MetricEventSet)
	return e
}

// IsSet reports whether the event is currently set.
func (e *REvent) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Generation returns the current generation counter, incremented every
// time Clear transitions the event from set to unset.
func (e *REvent) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Set marks the event set and wakes every current waiter.
func (e *REvent) Set() {
	e.mu.Lock()
	alreadySet := e.set
	e.set = true
	e.mu.Unlock()
	if alreadySet {
		return
	}
	e.metrics.Counter(MetricEventSet).Inc()
	for {
		w := e.waiters.popFront()
		if w == nil {
			break
		}
		w.Wake()
	}
}

// Clear returns the event to the unset state and advances its generation.
// Does not disturb any task already past its wait — only a subsequent
// Green/AsyncWait call observes the cleared state.
func (e *REvent) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.generation++
	}
	e.set = false
}

// GreenWait blocks until the event is set, returning the generation
// observed at the moment it returned true.
func (e *REvent) GreenWait(timeout ...int64) (generation uint64, ok bool) {
	if e.IsSet() {
		return e.Generation(), true
	}
	w := NewWaiter(false)
	e.waiters.pushBack(w)
	if e.IsSet() {
		w.Wake()
	}
	woken := w.Wait(durationFromNanos(resolveTimeout(timeout)))
	if !woken {
		e.waiters.remove(w)
		return 0, false
	}
	return e.Generation(), true
}

// AsyncWait is the async analogue of GreenWait.
func (e *REvent) AsyncWait(ctx context.Context) (generation uint64, ok bool) {
	if e.IsSet() {
		return e.Generation(), true
	}
	w := NewWaiter(false)
	e.waiters.pushBack(w)
	if e.IsSet() {
		w.Wake()
	}
	woken := w.Await(ctx)
	if !woken {
		e.waiters.remove(w)
		return 0, false
	}
	return e.Generation(), true
}

// Metrics returns the event's metrics registry.
func (e *REvent) Metrics() *metricz.Registry { return e.metrics }

// CountdownEvent tracks a count of outstanding markers the way the source
// tracks a stack of opaque marker objects rather than a bare integer: Down
// pops one and fires every current waiter once the stack empties; Up pushes
// more, which — unlike Event — can pull an already-fired countdown back
// into the unfired state for a later Down to fire again. Because of that,
// CountdownEvent needs the same generation/ticket bookkeeping REvent uses
// to stop a stale waiter (registered against a since-superseded empty
// state) from being woken by a later, unrelated Down.
type CountdownEvent struct {
	mu         sync.Mutex
	remaining  int
	generation uint64
	waiters    *waiterQueue
	metrics    *metricz.Registry
}

// NewCountdownEvent creates a CountdownEvent requiring n Down calls before
// it fires. n == 0 is legal and means the countdown starts already fired.
func NewCountdownEvent(n int) *CountdownEvent {
	if n < 0 {
		violate("NewCountdownEvent", "n must be >= 0")
	}
	c := &CountdownEvent{remaining: n, waiters: newWaiterQueue(), metrics: metricz.New()}
	c.metrics.Counter(MetricEventSet)
	return c
}

// Up adds n to the outstanding count. n must be > 0. If the countdown had
// already fired (remaining == 0), this un-fires it and advances the
// generation, so a waiter that already returned from Wait is unaffected but
// a newly registered one waits for the Down calls this Up anticipates.
func (c *CountdownEvent) Up(n int) {
	if n <= 0 {
		violate("CountdownEvent.Up", "n must be > 0")
	}
	c.mu.Lock()
	if c.remaining == 0 {
		c.generation++
	}
	c.remaining += n
	c.mu.Unlock()
}

// Down consumes one outstanding count, firing every current waiter once the
// count reaches zero. Panics with a ContractViolation if called more times
// than outstanding (remaining would go negative), mirroring the source's
// "down() called too many times" error.
func (c *CountdownEvent) Down() {
	c.mu.Lock()
	if c.remaining == 0 {
		c.mu.Unlock()
		violate("CountdownEvent.Down", "called more times than there are outstanding counts")
	}
	c.remaining--
	fired := c.remaining == 0
	c.mu.Unlock()
	if !fired {
		return
	}
	c.metrics.Counter(MetricEventSet).Inc()
	for {
		w := c.waiters.popFront()
		if w == nil {
			break
		}
		w.Wake()
	}
}

// Remaining returns the number of Down calls still needed before the
// countdown fires.
func (c *CountdownEvent) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// IsSet reports whether the countdown has reached zero.
func (c *CountdownEvent) IsSet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining == 0
}

func (c *CountdownEvent) snapshot() (generation uint64, fired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, c.remaining == 0
}

// GreenWait blocks the calling goroutine until the countdown reaches zero,
// following the shared timeout convention.
func (c *CountdownEvent) GreenWait(timeout ...int64) bool {
	gen, fired := c.snapshot()
	if fired {
		return true
	}
	w := NewWaiter(false)
	c.waiters.pushBack(w)
	if g2, fired2 := c.snapshot(); fired2 && g2 == gen {
		w.Wake()
	}
	ok := w.Wait(durationFromNanos(resolveTimeout(timeout)))
	if !ok {
		c.waiters.remove(w)
	}
	return ok
}

// AsyncWait is the async analogue of GreenWait.
func (c *CountdownEvent) AsyncWait(ctx context.Context) bool {
	gen, fired := c.snapshot()
	if fired {
		return true
	}
	w := NewWaiter(false)
	c.waiters.pushBack(w)
	if g2, fired2 := c.snapshot(); fired2 && g2 == gen {
		w.Wake()
	}
	ok := w.Await(ctx)
	if !ok {
		c.waiters.remove(w)
	}
	return ok
}

// Metrics returns the countdown's metrics registry.
func (c *CountdownEvent) Metrics() *metricz.Registry { return c.metrics }
