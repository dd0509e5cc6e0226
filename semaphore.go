package waitz

import (
	"context"
	"sync/atomic"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Semaphore observability keys.
const (
	MetricSemaphoreAcquires = metricz.Key("waitz.semaphore.acquires.total")
	MetricSemaphoreReleases = metricz.Key("waitz.semaphore.releases.total")
	MetricSemaphoreTimeouts = metricz.Key("waitz.semaphore.timeouts.total")
	MetricSemaphoreValue    = metricz.Key("waitz.semaphore.value")
	MetricSemaphoreWaiting  = metricz.Key("waitz.semaphore.waiting")

	SpanSemaphoreAcquire = tracez.Key("waitz.semaphore.acquire")

	HookSemaphoreAcquired = hookz.Key("waitz.semaphore.acquired")
	HookSemaphoreReleased = hookz.Key("waitz.semaphore.released")
)

// SemaphoreEvent is emitted through a Semaphore's Hooks on every successful
// acquire and release.
type SemaphoreEvent struct {
	Value   int
	Waiting int
}

// Semaphore is the unified counting semaphore nearly every other primitive
// in this package is built from: a token count plus a FIFO queue of
// Waiters. It is safe for concurrent use by any mix of green goroutines and
// aloop tasks.
//
// The Python original represents "tokens available" as a pop-able sequence
// and relies on PERFECT_FAIRNESS to keep a not-yet-removed head waiter from
// being skipped by a racing release; here the waiter queue is always
// mutex-guarded (waiterQueue), which removes that race entirely, so
// Config.PerfectFairness has no additional effect on this type.
type Semaphore struct {
	initial   int64
	available atomic.Int64
	waiters   *waiterQueue
	cfg       Config
	clock     clockz.Clock
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[SemaphoreEvent]
}

// Option configures a primitive at construction. Every constructor in this
// package accepts Options, following the same "explicit context object"
// shape for every primitive.
type Option func(*options)

type options struct {
	cfg   Config
	clock clockz.Clock
}

func resolveOptions(opts []Option) options {
	o := options{cfg: DefaultConfig(), clock: clockz.RealClock}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithConfig overrides the process-wide Config for one primitive instance.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithClock overrides the clock used to compute timeouts, for deterministic
// tests.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// NewSemaphore creates a Semaphore with initial tokens available.
func NewSemaphore(initial int, opts ...Option) *Semaphore {
	if initial < 0 {
		violate("NewSemaphore", "initial must be >= 0")
	}
	o := resolveOptions(opts)
	s := &Semaphore{
		initial: int64(initial),
		waiters: newWaiterQueue(),
		cfg:     o.cfg,
		clock:   o.clock,
		metrics: metricz.New(),
		tracer:  tracez.New(),
		hooks:   hookz.New[SemaphoreEvent](),
	}
	s.available.Store(int64(initial))
	s.metrics.Counter(MetricSemaphoreAcquires)
	s.metrics.Counter(MetricSemaphoreReleases)
	s.metrics.Counter(MetricSemaphoreTimeouts)
	s.metrics.Gauge(MetricSemaphoreValue)
	s.metrics.Gauge(MetricSemaphoreWaiting)
	s.metrics.Gauge(MetricSemaphoreValue).Set(float64(initial))
	return s
}

// Initial returns the number of tokens the semaphore was created with.
func (s *Semaphore) Initial() int { return int(s.initial) }

// Value returns the current number of available tokens.
func (s *Semaphore) Value() int { return int(s.available.Load()) }

// Waiting returns the number of tasks currently queued.
func (s *Semaphore) Waiting() int { return s.waiters.len() }

// Metrics returns this semaphore's metrics registry.
func (s *Semaphore) Metrics() *metricz.Registry { return s.metrics }

// Tracer returns this semaphore's tracer.
func (s *Semaphore) Tracer() *tracez.Tracer { return s.tracer }

// OnAcquire registers a handler invoked after each successful acquire.
func (s *Semaphore) OnAcquire(handler func(context.Context, SemaphoreEvent) error) error {
	_, err := s.hooks.Hook(HookSemaphoreAcquired, handler)
	return err
}

// OnRelease registers a handler invoked after each release.
func (s *Semaphore) OnRelease(handler func(context.Context, SemaphoreEvent) error) error {
	_, err := s.hooks.Hook(HookSemaphoreReleased, handler)
	return err
}

// Close releases this semaphore's observability resources.
func (s *Semaphore) Close() error {
	s.tracer.Close()
	s.hooks.Close()
	return nil
}

// tryAcquire attempts to take one token without blocking.
func (s *Semaphore) tryAcquire() bool {
	for {
		cur := s.available.Load()
		if cur <= 0 {
			return false
		}
		if s.available.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (s *Semaphore) observeAcquired(ctx context.Context) {
	s.metrics.Counter(MetricSemaphoreAcquires).Inc()
	s.metrics.Gauge(MetricSemaphoreValue).Set(float64(s.available.Load()))
	_ = s.hooks.Emit(ctx, HookSemaphoreAcquired, SemaphoreEvent{ //nolint:errcheck
		Value: int(s.available.Load()), Waiting: s.waiters.len(),
	})
}

// GreenAcquire acquires one token, blocking the calling goroutine.
// timeout < 0 waits forever, timeout == 0 tries once without blocking,
// timeout > 0 bounds the wait. Returns false iff the wait timed out.
func (s *Semaphore) GreenAcquire(timeout ...int64) bool {
	return s.greenAcquireNanos(resolveTimeout(timeout))
}

func (s *Semaphore) greenAcquireNanos(timeoutNanos int64) bool {
	if s.tryAcquire() {
		Checkpoint(s.cfg)
		s.observeAcquired(context.Background())
		return true
	}
	if timeoutNanos == 0 {
		return false
	}

	w := NewWaiterWithClock(false, s.clock)
	s.waiters.pushBack(w)

	// Close the acquire-after-release race: re-check after enqueueing, and
	// if a token is now free, claim it and self-wake so a concurrent
	// release doesn't also try to hand this waiter a token.
	if s.tryAcquire() {
		w.Wake()
	}

	ok := w.Wait(durationFromNanos(timeoutNanos))
	if !ok {
		// Either we vacated our own slot, or a releaser already dequeued us;
		// in the latter case its Wake failed against our cancelled state and
		// it moved on to the next waiter, so no token was assigned to us.
		s.waiters.remove(w)
		s.metrics.Counter(MetricSemaphoreTimeouts).Inc()
		return false
	}

	s.observeAcquired(context.Background())
	return true
}

// AsyncAcquire acquires one token, suspending the calling aloop task.
// Returns false iff ctx was done before a token became available.
func (s *Semaphore) AsyncAcquire(ctx context.Context) bool {
	if s.tryAcquire() {
		Checkpoint(s.cfg)
		s.observeAcquired(ctx)
		return true
	}
	if err := ctx.Err(); err != nil {
		return false
	}

	w := NewWaiterWithClock(false, s.clock)
	s.waiters.pushBack(w)

	if s.tryAcquire() {
		w.Wake()
	}

	ok := w.Await(ctx)
	if !ok {
		s.waiters.remove(w)
		s.metrics.Counter(MetricSemaphoreTimeouts).Inc()
		return false
	}

	s.observeAcquired(ctx)
	return true
}

// TryAcquire attempts to take one token without blocking, returning
// immediately.
func (s *Semaphore) TryAcquire() bool {
	ok := s.tryAcquire()
	if ok {
		s.observeAcquired(context.Background())
	}
	return ok
}

// Release returns n tokens to the semaphore, waking up to n waiters first.
// The dequeue-then-retry loop is the release-side half of the lost-wakeup
// protocol: if a wake fails because the waiter already cancelled, the next
// waiter is tried instead of the token being silently dropped.
func (s *Semaphore) Release(n int) {
	if n <= 0 {
		return
	}
	remaining := n
	for remaining > 0 {
		w := s.waiters.popFront()
		if w == nil {
			break
		}
		if w.Wake() {
			remaining--
		}
	}
	if remaining > 0 {
		s.available.Add(int64(remaining))
	}
	s.metrics.Counter(MetricSemaphoreReleases).Add(float64(n))
	s.metrics.Gauge(MetricSemaphoreValue).Set(float64(s.available.Load()))
	_ = s.hooks.Emit(context.Background(), HookSemaphoreReleased, SemaphoreEvent{ //nolint:errcheck
		Value: int(s.available.Load()), Waiting: s.waiters.len(),
	})
}

// BoundedSemaphore additionally refuses a Release that would push the
// available count above Initial(), surfacing the mistake as a
// ContractViolation instead of silently over-filling the token pool.
type BoundedSemaphore struct {
	*Semaphore
	locked atomic.Int64
}

// NewBoundedSemaphore creates a BoundedSemaphore with initial tokens.
func NewBoundedSemaphore(initial int, opts ...Option) *BoundedSemaphore {
	b := &BoundedSemaphore{Semaphore: NewSemaphore(initial, opts...)}
	b.locked.Store(int64(initial) - b.Semaphore.available.Load())
	return b
}

func (b *BoundedSemaphore) markAcquired() { b.locked.Add(1) }
func (b *BoundedSemaphore) markReleased(n int) {
	if b.locked.Add(-int64(n)) < 0 {
		b.locked.Add(int64(n))
		violate("BoundedSemaphore.Release", "released more tokens than were acquired")
	}
}

// GreenAcquire behaves like Semaphore.GreenAcquire, additionally tracking
// the bound.
func (b *BoundedSemaphore) GreenAcquire(timeout ...int64) bool {
	ok := b.Semaphore.GreenAcquire(timeout...)
	if ok {
		b.markAcquired()
	}
	return ok
}

// AsyncAcquire behaves like Semaphore.AsyncAcquire, additionally tracking
// the bound.
func (b *BoundedSemaphore) AsyncAcquire(ctx context.Context) bool {
	ok := b.Semaphore.AsyncAcquire(ctx)
	if ok {
		b.markAcquired()
	}
	return ok
}

// TryAcquire behaves like Semaphore.TryAcquire, additionally tracking the
// bound.
func (b *BoundedSemaphore) TryAcquire() bool {
	ok := b.Semaphore.TryAcquire()
	if ok {
		b.markAcquired()
	}
	return ok
}

// Release returns n tokens, panicking with a ContractViolation if doing so
// would exceed the number of tokens actually acquired.
func (b *BoundedSemaphore) Release(n int) {
	b.markReleased(n)
	b.Semaphore.Release(n)
}

func resolveTimeout(timeout []int64) int64 {
	if len(timeout) == 0 {
		return -1
	}
	return timeout[0]
}
