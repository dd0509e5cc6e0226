package waitz

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Domain distinguishes the two scheduling worlds a Waiter can be created
// from or woken across.
type Domain int

const (
	// DomainGreen identifies a bare goroutine blocking synchronously.
	DomainGreen Domain = iota
	// DomainAsync identifies a goroutine currently running a task inside
	// an aloop.Loop.
	DomainAsync
)

func (d Domain) String() string {
	if d == DomainAsync {
		return "async"
	}
	return "green"
}

// Token identifies the runtime instance (goroutine, or event loop) whose
// identity decides same-domain vs. cross-domain wakeup: waking a Waiter
// from the same token can use the cheapest path, waking one from a
// different token must use whatever thread-safe mechanism that domain
// provides.
type Token struct {
	Runtime string
	ID      uint64
}

// TaskID is a stable (runtime, opaque id) pair identifying the current
// thread or running task during its lifetime. Suitable as a map key (for
// capacity limiter borrower maps and condition-variable bookkeeping).
type TaskID struct {
	Runtime string
	ID      uint64
}

// goroutineID extracts the numeric id Go's runtime assigns the calling
// goroutine. It is not a public Go API; parsing the debug stack header is
// the standard portable way to recover it, and the only place in this
// package that resorts to string parsing.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

// CurrentGreenToken returns the identity of the calling goroutine, used as
// the green-side "thread" token. Green detection always succeeds: a bare
// goroutine with no registered async context counts as the green runtime.
func CurrentGreenToken() Token {
	return Token{Runtime: "goroutine", ID: goroutineID()}
}

// CurrentGreenTaskID returns the stable task identity of the calling
// goroutine on the green side.
func CurrentGreenTaskID() TaskID {
	return TaskID{Runtime: "goroutine", ID: goroutineID()}
}

type asyncContext struct {
	token  Token
	taskID TaskID
}

// asyncContexts maps a goroutine id to the aloop task currently running on
// it. aloop.Loop is the only writer, via BindAsyncContext, bracketing each
// task it runs; there is no thread-local storage in Go, so a process-
// wide map keyed by goroutine id stands in for it. An aloop never migrates
// a task across goroutines mid-run, so the key is stable for the duration
// of one binding.
var asyncContexts sync.Map // uint64 -> asyncContext

// BindAsyncContext marks the calling goroutine as currently executing an
// async task identified by taskID under the event loop identified by
// token. It is called by aloop.Loop once around each task it runs; ordinary
// callers never need it. The returned restore function must be called
// before the goroutine resumes doing anything other than that task (most
// often via defer), or identity queries will keep reporting the async
// context after the task has actually finished.
func BindAsyncContext(token Token, taskID TaskID) (restore func()) {
	gid := goroutineID()
	prev, had := asyncContexts.Load(gid)
	asyncContexts.Store(gid, asyncContext{token: token, taskID: taskID})
	return func() {
		if had {
			asyncContexts.Store(gid, prev)
		} else {
			asyncContexts.Delete(gid)
		}
	}
}

// CurrentDomain reports whether the calling goroutine is currently running
// inside an aloop task (DomainAsync) or not (DomainGreen).
func CurrentDomain() Domain {
	if _, ok := asyncContexts.Load(goroutineID()); ok {
		return DomainAsync
	}
	return DomainGreen
}

// CurrentAsyncToken returns the event-loop token of the aloop currently
// running on this goroutine, and false if none is running.
func CurrentAsyncToken() (Token, bool) {
	v, ok := asyncContexts.Load(goroutineID())
	if !ok {
		return Token{}, false
	}
	return v.(asyncContext).token, true //nolint:errcheck // map invariant: only this file stores asyncContext
}

// CurrentAsyncTaskID returns the task identity of the aloop task currently
// running on this goroutine, and false if none is running.
func CurrentAsyncTaskID() (TaskID, bool) {
	v, ok := asyncContexts.Load(goroutineID())
	if !ok {
		return TaskID{}, false
	}
	return v.(asyncContext).taskID, true //nolint:errcheck // map invariant: only this file stores asyncContext
}

// MustCurrentAsyncTaskID returns the current async task identity or raises
// AsyncLibraryNotFoundError if called outside any aloop task. Used by the
// async borrow paths of CapacityLimiter and RCapacityLimiter, which
// require task identity.
func MustCurrentAsyncTaskID() TaskID {
	id, ok := CurrentAsyncTaskID()
	if !ok {
		panic(&AsyncLibraryNotFoundError{})
	}
	return id
}
