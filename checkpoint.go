package waitz

import (
	"context"
	"runtime"
	"time"
)

// deadlineFromNanos converts a package-convention timeout (see
// durationFromNanos) into an absolute deadline, used by multi-wait loops
// (Condition.GreenWaitFor) that must re-derive a shrinking remaining
// timeout across several underlying waits instead of one. ok is false for
// the "wait forever" (<0) convention, meaning there is no deadline to
// shrink toward.
func deadlineFromNanos(timeoutNanos int64) (deadline time.Time, ok bool) {
	if timeoutNanos < 0 {
		return time.Time{}, false
	}
	return time.Now().Add(time.Duration(timeoutNanos)), true
}

// timeRemaining returns how long until deadline, in nanoseconds, clamped
// to zero.
func timeRemaining(deadline time.Time) int64 {
	left := time.Until(deadline)
	if left < 0 {
		return 0
	}
	return int64(left)
}

// durationFromNanos converts the package-wide timeout convention (negative
// means forever, zero means a non-blocking check, positive is the bound
// itself, all expressed as nanoseconds so every Green* method can share one
// variadic int64 parameter) into a time.Duration for Waiter.Wait. Negative
// values are preserved as negative so Waiter.Wait, which branches on the
// sign, never schedules a timer for them.
func durationFromNanos(nanos int64) time.Duration {
	return time.Duration(nanos)
}

// Checkpoint yields the calling goroutine to the Go scheduler if cfg
// enables fairness checkpoints, so a tight acquire/release loop on a
// contended primitive cannot starve a peer goroutine that is runnable but
// not yet scheduled. A blocking acquire (Semaphore and Queue Green*/Async*
// methods) that succeeds without suspending ends with one call to
// Checkpoint; a wait that actually suspended skips it, since the
// suspension itself served the fairness purpose. Release and the Try*
// methods do not call it.
func Checkpoint(cfg Config) {
	if cfg.Checkpoints {
		runtime.Gosched()
	}
}

// ForceCheckpoint yields unconditionally, ignoring Config.Checkpoints. No
// primitive in this package calls it; it is provided for callers.
func ForceCheckpoint() {
	runtime.Gosched()
}

// CheckpointIfCancelled reports ctx's cancellation error without yielding,
// letting a caller bail out of a retry loop early without paying for a
// reschedule it doesn't need.
func CheckpointIfCancelled(ctx context.Context) error {
	return ctx.Err()
}

// CancelShieldedCheckpoint yields unconditionally and cannot itself be
// interrupted by cancellation, since it takes no context. No primitive in
// this package calls it; it is provided for callers.
func CancelShieldedCheckpoint() {
	runtime.Gosched()
}
