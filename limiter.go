package waitz

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
)

// Limiter observability keys.
const (
	MetricLimiterBorrowed = metricz.Key("waitz.limiter.borrowed")
	MetricLimiterSaturated = metricz.Key("waitz.limiter.saturated.total")
)

// CapacityLimiter bounds the number of concurrent holders of a resource
// without the mutual-exclusion semantics of Lock: up to Total() tasks may
// hold a borrow simultaneously. Unlike RCapacityLimiter, a task that already
// holds a token is rejected as a contract violation if it tries to borrow
// again — the non-reentrant variant of the source's limiter, which raises
// the same way when a task re-enters. It is built directly on Semaphore the
// same way RCapacityLimiter is, plus a borrowers set to detect the reentry
// case a bare semaphore cannot.
type CapacityLimiter struct {
	sem *Semaphore

	mu       sync.Mutex
	borrowed map[TaskID]struct{}
}

// NewCapacityLimiter creates a limiter allowing up to total concurrent
// borrows. total == 0 is legal and means the limiter never grants a
// borrow, mirroring the source's explicit allowance of a zero-token
// limiter as a (degenerate but valid) always-saturated gate.
func NewCapacityLimiter(total int, opts ...Option) *CapacityLimiter {
	if total < 0 {
		violate("NewCapacityLimiter", "total must be >= 0")
	}
	return &CapacityLimiter{sem: NewSemaphore(total, opts...), borrowed: make(map[TaskID]struct{})}
}

// Total returns the maximum number of concurrent borrows.
func (l *CapacityLimiter) Total() int { return l.sem.Initial() }

// Borrowed returns the number of tokens currently on loan.
func (l *CapacityLimiter) Borrowed() int { return l.sem.Initial() - l.sem.Value() }

// Available returns the number of tokens currently free to borrow.
func (l *CapacityLimiter) Available() int { return l.sem.Value() }

// IsBorrower reports whether task currently holds a token from this
// limiter.
func (l *CapacityLimiter) IsBorrower(task TaskID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.borrowed[task]
	return ok
}

func (l *CapacityLimiter) claim(task TaskID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.borrowed[task]; ok {
		violate("CapacityLimiter", "the current task is already holding one of this limiter's tokens")
	}
	l.borrowed[task] = struct{}{}
}

func (l *CapacityLimiter) vacate(task TaskID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.borrowed[task]; !ok {
		violate("CapacityLimiter.Return", "the current task is not holding any of this limiter's tokens")
	}
	delete(l.borrowed, task)
}

// GreenBorrow blocks the calling goroutine until a token is available,
// following the shared timeout convention. Panics with a ContractViolation
// if the calling task already holds a token from this limiter.
func (l *CapacityLimiter) GreenBorrow(timeout ...int64) bool {
	task := currentTaskID()
	l.checkNotBorrowing(task)
	ok := l.sem.GreenAcquire(timeout...)
	if !ok {
		l.warnSaturated(context.Background())
		return false
	}
	l.claim(task)
	return true
}

// AsyncBorrow suspends the calling aloop task until a token is available
// or ctx is done. Panics with a ContractViolation if the calling task
// already holds a token from this limiter.
func (l *CapacityLimiter) AsyncBorrow(ctx context.Context) bool {
	task := MustCurrentAsyncTaskID()
	l.checkNotBorrowing(task)
	ok := l.sem.AsyncAcquire(ctx)
	if !ok {
		l.warnSaturated(ctx)
		return false
	}
	l.claim(task)
	return true
}

// warnSaturated emits the process-wide saturated-limiter signal and bumps
// the saturation counter, mirroring guard.go's capitan.Warn-on-contention
// pattern.
func (l *CapacityLimiter) warnSaturated(ctx context.Context) {
	l.sem.metrics.Counter(MetricLimiterSaturated).Inc()
	capitan.Warn(ctx, SignalLimiterSaturated,
		FieldTotalTokens.Field(l.Total()), FieldBorrowedTokens.Field(l.Borrowed()))
}

// TryBorrow attempts to take a token without blocking.
func (l *CapacityLimiter) TryBorrow() bool {
	task := currentTaskID()
	l.checkNotBorrowing(task)
	if !l.sem.TryAcquire() {
		l.warnSaturated(context.Background())
		return false
	}
	l.claim(task)
	return true
}

func (l *CapacityLimiter) checkNotBorrowing(task TaskID) {
	if l.IsBorrower(task) {
		violate("CapacityLimiter", "the current task is already holding one of this limiter's tokens")
	}
}

// Return returns the calling task's borrowed token. Panics with a
// ContractViolation if the calling task does not currently hold one.
func (l *CapacityLimiter) Return() {
	l.vacate(currentTaskID())
	l.sem.Release(1)
}

// Metrics returns the limiter's underlying metrics registry.
func (l *CapacityLimiter) Metrics() *metricz.Registry { return l.sem.Metrics() }

// Close releases the limiter's observability resources.
func (l *CapacityLimiter) Close() error { return l.sem.Close() }

// RCapacityLimiter is the reentrant counterpart to CapacityLimiter: the
// same task may hold more than one token at once across repeated Borrow
// calls (each optionally borrowing more than one token at a time via
// count), and must return exactly as many tokens as it holds. A borrower
// map keyed by TaskID tracks how many tokens each task currently holds,
// mirroring the source's per-task borrow-count bookkeeping.
type RCapacityLimiter struct {
	sem *Semaphore

	mu       sync.Mutex
	borrowed map[TaskID]int
}

// NewRCapacityLimiter creates a reentrant limiter allowing up to total
// concurrently borrowed tokens in aggregate.
func NewRCapacityLimiter(total int, opts ...Option) *RCapacityLimiter {
	if total < 0 {
		violate("NewRCapacityLimiter", "total must be >= 0")
	}
	return &RCapacityLimiter{
		sem:      NewSemaphore(total, opts...),
		borrowed: make(map[TaskID]int),
	}
}

// Total returns the maximum aggregate number of concurrently borrowed
// tokens.
func (l *RCapacityLimiter) Total() int { return l.sem.Initial() }

// Borrowed returns the number of tokens held by the calling task.
func (l *RCapacityLimiter) Borrowed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.borrowed[currentTaskID()]
}

func (l *RCapacityLimiter) record(task TaskID, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.borrowed[task] += count
}

func (l *RCapacityLimiter) forget(task TaskID, count int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	held := l.borrowed[task]
	if count > held {
		count = held
	}
	held -= count
	if held == 0 {
		delete(l.borrowed, task)
	} else {
		l.borrowed[task] = held
	}
	return count
}

// GreenBorrow blocks until count tokens are available, crediting them all
// to the calling task.
func (l *RCapacityLimiter) GreenBorrow(count int, timeout ...int64) bool {
	if count <= 0 {
		violate("RCapacityLimiter.GreenBorrow", "count must be > 0")
	}
	task := currentTaskID()
	for acquired := 0; acquired < count; acquired++ {
		if !l.sem.GreenAcquire(timeout...) {
			l.returnN(acquired)
			l.warnSaturated(context.Background())
			return false
		}
	}
	l.record(task, count)
	return true
}

// AsyncBorrow is the async analogue of GreenBorrow.
func (l *RCapacityLimiter) AsyncBorrow(ctx context.Context, count int) bool {
	if count <= 0 {
		violate("RCapacityLimiter.AsyncBorrow", "count must be > 0")
	}
	task := MustCurrentAsyncTaskID()
	for acquired := 0; acquired < count; acquired++ {
		if !l.sem.AsyncAcquire(ctx) {
			l.returnN(acquired)
			l.warnSaturated(ctx)
			return false
		}
	}
	l.record(task, count)
	return true
}

// TryBorrow attempts to take count tokens without blocking, all or
// nothing.
func (l *RCapacityLimiter) TryBorrow(count int) bool {
	if count <= 0 {
		violate("RCapacityLimiter.TryBorrow", "count must be > 0")
	}
	acquired := 0
	for ; acquired < count; acquired++ {
		if !l.sem.TryAcquire() {
			break
		}
	}
	if acquired < count {
		l.returnN(acquired)
		l.warnSaturated(context.Background())
		return false
	}
	l.record(currentTaskID(), count)
	return true
}

// warnSaturated emits the process-wide saturated-limiter signal and bumps
// the saturation counter, aggregating borrowed tokens across every task
// rather than the calling task's own count (unlike the exported Borrowed).
func (l *RCapacityLimiter) warnSaturated(ctx context.Context) {
	l.sem.metrics.Counter(MetricLimiterSaturated).Inc()
	capitan.Warn(ctx, SignalLimiterSaturated,
		FieldTotalTokens.Field(l.Total()), FieldBorrowedTokens.Field(l.sem.Initial()-l.sem.Value()))
}

func (l *RCapacityLimiter) returnN(n int) {
	if n > 0 {
		l.sem.Release(n)
	}
}

// Return returns count tokens previously borrowed by the calling task.
// Panics with a ContractViolation if the task does not currently hold that
// many.
func (l *RCapacityLimiter) Return(count int) {
	if count <= 0 {
		violate("RCapacityLimiter.Return", "count must be > 0")
	}
	task := currentTaskID()
	returned := l.forget(task, count)
	if returned != count {
		violate("RCapacityLimiter.Return", "returned more tokens than this task currently holds")
	}
	l.sem.Release(count)
}

// Metrics returns the limiter's underlying metrics registry.
func (l *RCapacityLimiter) Metrics() *metricz.Registry { return l.sem.Metrics() }

// Close releases the limiter's observability resources.
func (l *RCapacityLimiter) Close() error { return l.sem.Close() }
