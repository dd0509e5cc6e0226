package waitz

import "fmt"

// ContractViolation reports a programmer error: releasing a lock you do
// not hold, reentering a non-reentrant capacity limiter, an out-of-range
// release count. These are never returned as errors — they panic, the same
// way an out-of-bounds slice index panics, because no caller-side recovery
// makes sense.
type ContractViolation struct {
	Op      string
	Message string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("waitz: %s: %s", e.Op, e.Message)
}

func violate(op, message string) {
	panic(&ContractViolation{Op: op, Message: message})
}

// BrokenBarrierError is returned by a CyclicBarrier wait when a party
// aborted the barrier's current generation before every party arrived.
type BrokenBarrierError struct {
	Reason string
}

func (e *BrokenBarrierError) Error() string {
	if e.Reason == "" {
		return "waitz: barrier is broken"
	}
	return "waitz: barrier is broken: " + e.Reason
}

// BusyResourceError is returned by ResourceGuard.Enter when the resource
// is already in use by another task.
type BusyResourceError struct {
	Action string
}

func (e *BusyResourceError) Error() string {
	return fmt.Sprintf("waitz: another task is already %s this resource", e.Action)
}

// QueueEmpty is returned by a non-blocking Get when the queue has no item
// available.
type QueueEmpty struct{}

func (*QueueEmpty) Error() string { return "waitz: queue is empty" }

// QueueFull is returned by a non-blocking Put when the queue has no spare
// capacity.
type QueueFull struct{}

func (*QueueFull) Error() string { return "waitz: queue is full" }

// AsyncLibraryNotFoundError is the panic value of MustCurrentAsyncTaskID
// when the current async identity is requested outside of any aloop task.
type AsyncLibraryNotFoundError struct{}

func (*AsyncLibraryNotFoundError) Error() string {
	return "waitz: no async task is running on this goroutine"
}
