package waitz

import (
	"context"
	"sync/atomic"

	"github.com/zoobzio/capitan"
)

// ResourceGuard is a single-enter sentinel asserting "one task at a time"
// over a resource that is not itself thread-safe — a trivial one-token
// cell, sync-only (there is nothing to suspend on: Enter either claims the
// token immediately or fails immediately). action labels the activity in
// BusyResourceError's message ("reading", "writing"), ported from
// original_source's locks/guard.go rather than a generic "in use" string
// (see DESIGN.md).
type ResourceGuard struct {
	action string
	held   atomic.Bool
}

// NewResourceGuard creates an unused ResourceGuard. action names the
// activity a caller performs while holding it, used only for error
// messages.
func NewResourceGuard(action string) *ResourceGuard {
	return &ResourceGuard{action: action}
}

// Enter claims the guard, returning BusyResourceError if it is already
// held by another task.
func (g *ResourceGuard) Enter() error {
	if !g.held.CompareAndSwap(false, true) {
		capitan.Warn(context.Background(), SignalGuardBusy, FieldAction.Field(g.action))
		return &BusyResourceError{Action: g.action}
	}
	return nil
}

// Exit releases the guard. Calling Exit without a matching successful
// Enter silently frees a guard nobody held; callers are expected to pair
// Enter/Exit the way a defer would.
func (g *ResourceGuard) Exit() {
	g.held.Store(false)
}

// InUse reports whether the guard is currently held.
func (g *ResourceGuard) InUse() bool { return g.held.Load() }
