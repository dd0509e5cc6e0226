package waitz

import (
	"context"

	"github.com/zoobzio/metricz"
)

// Lock is a mutual-exclusion lock with no ownership tracking: any task may
// release it, not only the one that acquired it. It is built directly on a
// single-token Semaphore, the same way the source builds its plain lock on
// top of its semaphore primitive rather than reimplementing the waiter
// protocol.
type Lock struct {
	sem *Semaphore
}

// NewLock creates an unlocked Lock.
func NewLock(opts ...Option) *Lock {
	return &Lock{sem: NewSemaphore(1, opts...)}
}

// GreenAcquire blocks the calling goroutine until the lock is held,
// following the shared timeout convention (negative forever, zero
// non-blocking, positive bounded).
func (l *Lock) GreenAcquire(timeout ...int64) bool { return l.sem.GreenAcquire(timeout...) }

// AsyncAcquire suspends the calling aloop task until the lock is held or
// ctx is done.
func (l *Lock) AsyncAcquire(ctx context.Context) bool { return l.sem.AsyncAcquire(ctx) }

// TryAcquire attempts to take the lock without blocking.
func (l *Lock) TryAcquire() bool { return l.sem.TryAcquire() }

// Release releases the lock. Releasing an already-unlocked Lock hands a
// spare token to the next waiter, exactly mirroring Semaphore.Release(1);
// use BoundedLock if double-release should be rejected instead.
func (l *Lock) Release() { l.sem.Release(1) }

// Locked reports whether the lock is currently held by some task. This is
// inherently racy against a concurrent Release/Acquire and is intended for
// diagnostics only.
func (l *Lock) Locked() bool { return l.sem.Value() == 0 }

// Waiting returns the number of tasks queued on this lock.
func (l *Lock) Waiting() int { return l.sem.Waiting() }

// Metrics returns the lock's underlying semaphore metrics registry.
func (l *Lock) Metrics() *metricz.Registry { return l.sem.Metrics() }

// Close releases the lock's observability resources.
func (l *Lock) Close() error { return l.sem.Close() }

// BoundedLock additionally rejects a Release call when the lock is not
// currently held, surfacing the programming mistake as a ContractViolation
// instead of silently handing out an extra token.
type BoundedLock struct {
	bsem *BoundedSemaphore
}

// NewBoundedLock creates an unlocked BoundedLock.
func NewBoundedLock(opts ...Option) *BoundedLock {
	return &BoundedLock{bsem: NewBoundedSemaphore(1, opts...)}
}

// GreenAcquire behaves like Lock.GreenAcquire.
func (l *BoundedLock) GreenAcquire(timeout ...int64) bool { return l.bsem.GreenAcquire(timeout...) }

// AsyncAcquire behaves like Lock.AsyncAcquire.
func (l *BoundedLock) AsyncAcquire(ctx context.Context) bool { return l.bsem.AsyncAcquire(ctx) }

// TryAcquire behaves like Lock.TryAcquire.
func (l *BoundedLock) TryAcquire() bool { return l.bsem.TryAcquire() }

// Release releases the lock, panicking with a ContractViolation if the
// lock was not held.
func (l *BoundedLock) Release() { l.bsem.Release(1) }

// Locked reports whether the lock is currently held.
func (l *BoundedLock) Locked() bool { return l.bsem.Value() == 0 }

// OwnedLock is a mutual-exclusion lock that tracks its own holder and
// rejects a Release from any task other than the one that acquired it, the
// way the source's lock variant with ownership checks does. Ownership is
// keyed on TaskID so it spans both green and async callers uniformly.
type OwnedLock struct {
	sem   *Semaphore
	owner Flag[TaskID]
}

// NewOwnedLock creates an unlocked OwnedLock.
func NewOwnedLock(opts ...Option) *OwnedLock {
	return &OwnedLock{sem: NewSemaphore(1, opts...)}
}

func currentTaskID() TaskID {
	if id, ok := CurrentAsyncTaskID(); ok {
		return id
	}
	return CurrentGreenTaskID()
}

// GreenAcquire acquires the lock for the calling goroutine and records it
// as the owner.
func (l *OwnedLock) GreenAcquire(timeout ...int64) bool {
	if !l.sem.GreenAcquire(timeout...) {
		return false
	}
	l.owner.Set(currentTaskID())
	return true
}

// AsyncAcquire acquires the lock for the calling task and records it as
// the owner.
func (l *OwnedLock) AsyncAcquire(ctx context.Context) bool {
	if !l.sem.AsyncAcquire(ctx) {
		return false
	}
	l.owner.Set(currentTaskID())
	return true
}

// TryAcquire attempts to take the lock without blocking.
func (l *OwnedLock) TryAcquire() bool {
	if !l.sem.TryAcquire() {
		return false
	}
	l.owner.Set(currentTaskID())
	return true
}

// Owner returns the task holding the lock, if any.
func (l *OwnedLock) Owner() (TaskID, bool) { return l.owner.Get() }

// Release releases the lock. Panics with a ContractViolation if the
// calling task is not the recorded owner.
func (l *OwnedLock) Release() {
	owner, ok := l.owner.Get()
	if !ok || owner != currentTaskID() {
		violate("OwnedLock.Release", "release attempted by a task that does not own the lock")
	}
	l.owner.Clear()
	l.sem.Release(1)
}

// Locked reports whether the lock is currently held.
func (l *OwnedLock) Locked() bool { return l.sem.Value() == 0 }

// RLock is a reentrant lock: the owning task may acquire it again without
// blocking, and must release it the same number of times before another
// task can take it. Recursion depth is tracked per TaskID the same way the
// source tracks it per current-thread/current-task identity.
type RLock struct {
	sem   *Semaphore
	owner Flag[TaskID]
	depth int
}

// NewRLock creates an unlocked RLock.
func NewRLock(opts ...Option) *RLock {
	return &RLock{sem: NewSemaphore(1, opts...)}
}

// GreenAcquire acquires the lock, blocking only if it is held by a
// different task than the caller; re-entrant acquisition by the current
// owner always succeeds immediately.
func (l *RLock) GreenAcquire(timeout ...int64) bool {
	me := currentTaskID()
	if owner, ok := l.owner.Get(); ok && owner == me {
		l.depth++
		return true
	}
	if !l.sem.GreenAcquire(timeout...) {
		return false
	}
	l.owner.Set(me)
	l.depth = 1
	return true
}

// AsyncAcquire is the async analogue of GreenAcquire.
func (l *RLock) AsyncAcquire(ctx context.Context) bool {
	me := currentTaskID()
	if owner, ok := l.owner.Get(); ok && owner == me {
		l.depth++
		return true
	}
	if !l.sem.AsyncAcquire(ctx) {
		return false
	}
	l.owner.Set(me)
	l.depth = 1
	return true
}

// TryAcquire attempts to take or re-enter the lock without blocking.
func (l *RLock) TryAcquire() bool {
	me := currentTaskID()
	if owner, ok := l.owner.Get(); ok && owner == me {
		l.depth++
		return true
	}
	if !l.sem.TryAcquire() {
		return false
	}
	l.owner.Set(me)
	l.depth = 1
	return true
}

// Release releases one level of recursion, fully unlocking only once depth
// reaches zero. Panics with a ContractViolation if the caller is not the
// owner.
func (l *RLock) Release() {
	owner, ok := l.owner.Get()
	if !ok || owner != currentTaskID() {
		violate("RLock.Release", "release attempted by a task that does not own the lock")
	}
	l.depth--
	if l.depth > 0 {
		return
	}
	l.owner.Clear()
	l.sem.Release(1)
}

// Depth returns the current recursion depth held by whichever task owns
// the lock, or zero if unlocked.
func (l *RLock) Depth() int { return l.depth }

// RLockState captures the information needed to fully release and later
// restore a recursive lock's hold, for use with a Condition's wait
// protocol: the lock must be fully released (regardless of recursion
// depth) before the waiter suspends, and restored to the same depth after
// it is woken.
type RLockState struct {
	owner TaskID
	depth int
}

// ReleaseSave fully releases the lock regardless of current recursion
// depth, returning enough state to restore it later with AcquireRestore.
// Used by Condition.Wait, which must hand the lock over to some other task
// entirely while the caller is suspended.
func (l *RLock) ReleaseSave() RLockState {
	owner, ok := l.owner.Get()
	if !ok || owner != currentTaskID() {
		violate("RLock.ReleaseSave", "release attempted by a task that does not own the lock")
	}
	state := RLockState{owner: owner, depth: l.depth}
	l.depth = 0
	l.owner.Clear()
	l.sem.Release(1)
	return state
}

// AcquireRestore reacquires the lock and restores the recursion depth
// captured by a prior ReleaseSave. The reacquire waits without a timeout,
// so it cannot give up before the caller holds the lock again.
func (l *RLock) AcquireRestore(state RLockState) {
	l.sem.GreenAcquire(-1)
	l.owner.Set(state.owner)
	l.depth = state.depth
}

// AsyncAcquireRestore is the async analogue of AcquireRestore: it
// reacquires the lock on a background context so the reacquisition itself
// can never be externally cancelled, matching the shielded reacquire step
// Condition's wait protocol requires. ctx is accepted for symmetry with
// every other Async* method but is not consulted.
func (l *RLock) AsyncAcquireRestore(_ context.Context, state RLockState) {
	l.sem.AsyncAcquire(context.Background())
	l.owner.Set(state.owner)
	l.depth = state.depth
}

// releaseSaveAny, acquireRestoreAny, and asyncAcquireRestoreAny adapt
// ReleaseSave/AcquireRestore/AsyncAcquireRestore to the untyped savingLocker
// extension Condition looks for, so Condition itself never needs to know
// about RLockState.
func (l *RLock) releaseSaveAny() any { return l.ReleaseSave() }

func (l *RLock) acquireRestoreAny(state any) {
	l.AcquireRestore(state.(RLockState)) //nolint:errcheck // only Condition's vacateGreen ever round-trips this value
}

func (l *RLock) asyncAcquireRestoreAny(ctx context.Context, state any) {
	l.AsyncAcquireRestore(ctx, state.(RLockState)) //nolint:errcheck // only Condition's vacateAsync ever round-trips this value
}
