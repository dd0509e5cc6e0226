// Package waitz provides universal synchronization primitives that
// interoperate between preemptive OS threads ("green" tasks) and
// single-threaded cooperative event loops ("async" tasks, possibly many,
// possibly on distinct goroutines) within a single process.
//
// # Overview
//
// A single primitive instance — a lock, semaphore, event, barrier,
// condition variable, or bounded queue — may be shared among arbitrarily
// many goroutines and arbitrarily many cooperative loops (see the aloop
// subpackage), with identical semantics from every waiter's perspective.
//
// The core of the package is the wait-resolution engine: Waiter (the
// one-shot rendezvous object), the mutex-guarded waiter queue built on it, and
// the release/handoff protocol every other primitive funnels through.
// Establishing fairness, cancellation-safety, correct ordering between
// concurrent acquirers/releasers, and avoiding lost-wakeup and
// double-wakeup bugs are the hard problems this package solves once so
// every primitive built on top of it does not have to solve them again.
//
// # Core Concepts
//
//   - Waiter: a one-shot notification handle that can be waited on
//     synchronously (blocks a goroutine) or asynchronously (suspends a
//     cooperative task), and woken safely from any domain.
//   - Semaphore: the unified counting semaphore almost everything else is
//     built from.
//   - Lock, RLock, CapacityLimiter, Event, REvent, CountdownEvent, Latch,
//     CyclicBarrier, Condition, Queue, SimpleQueue, ResourceGuard: the
//     public primitives, each a small state machine whose transitions
//     publish wakeups through a Semaphore or a Waiter queue directly.
//
// # Green vs. async
//
// Go has no plural of goroutine scheduler — there is one green runtime.
// The plurality of independent, cooperatively-scheduled event loops other
// ecosystems expose as distinct async runtimes is modeled here by the aloop
// subpackage: an
// aloop.Loop runs each task it is given on its own goroutine, all of them
// sharing the loop's identity, and those tasks `Await` on a Waiter. A bare
// goroutine that never touches an aloop.Loop is on the green side; a
// function running inside (*aloop.Loop).Go is on the async side. Each
// blocking operation in this package comes as both a Green* method (blocks
// the calling goroutine, accepts a timeout) and an Async* method (suspends
// the calling aloop task, accepts a context.Context for cancellation),
// built on the same underlying Waiter; non-blocking operations such as
// ResourceGuard.Enter have no such pair.
//
// # Observability
//
// Instrumentation differs by primitive:
//
//   - the Semaphore-based types and Queue take an injectable clockz.Clock
//     for deterministic timeout tests; the other primitives wait on the
//     real clock,
//   - metricz registries hold gauges and counters: package-wide waiter
//     counts, and per-instance counts on the Semaphore-based types, the
//     limiters, Queue, the Event family and Condition; barriers keep no
//     metrics,
//   - a tracez span from the package-wide tracer surrounds any Waiter wait
//     that actually suspends,
//   - hookz.Hooks subscriptions scoped to one instance exist on Semaphore
//     (OnAcquire/OnRelease) and Queue (OnPut/OnGet) only,
//   - capitan structured signals report process-wide operational events
//     from barriers, ResourceGuard, the capacity limiters and Queue.
//
// # Errors
//
// Contract violations (releasing an unheld lock, reentering a
// non-reentrant capacity limiter) panic with a ContractViolation — these
// are programmer errors, not recoverable conditions. Broken-protocol
// conditions (BrokenBarrierError, BusyResourceError, QueueEmpty,
// QueueFull) are returned as ordinary errors. Waits never return an error
// for a timeout or cancellation; they return a boolean success.
package waitz
