package waitz

import "github.com/zoobzio/capitan"

// Signal constants for waitz process-wide events, following the
// <component>.<event> naming convention used across this stack.
const (
	// CyclicBarrier signals.
	SignalBarrierBroken  capitan.Signal = "barrier.broken"
	SignalBarrierOpened  capitan.Signal = "barrier.opened"
	SignalBarrierReset   capitan.Signal = "barrier.reset"

	// ResourceGuard signals.
	SignalGuardBusy capitan.Signal = "guard.busy"

	// CapacityLimiter signals.
	SignalLimiterSaturated capitan.Signal = "limiter.saturated"

	// Queue signals.
	SignalQueueFull  capitan.Signal = "queue.full"
	SignalQueueEmpty capitan.Signal = "queue.empty"
)

// Common field keys, all primitive-typed per capitan convention.
var (
	FieldName      = capitan.NewStringKey("name")
	FieldTimestamp = capitan.NewFloat64Key("timestamp")

	// Barrier fields.
	FieldParties    = capitan.NewIntKey("parties")
	FieldGeneration = capitan.NewIntKey("generation")
	FieldReason     = capitan.NewStringKey("reason")

	// Guard fields.
	FieldAction = capitan.NewStringKey("action")

	// Limiter fields.
	FieldTotalTokens    = capitan.NewIntKey("total_tokens")
	FieldBorrowedTokens = capitan.NewIntKey("borrowed_tokens")

	// Queue fields.
	FieldMaxSize = capitan.NewIntKey("max_size")
	FieldQSize   = capitan.NewIntKey("qsize")
)
