package waitz

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// Latch is a single-use barrier: parties arriving call Arrive and block
// until every expected party has arrived exactly once, after which the
// latch opens permanently and every past and future Arrive call returns
// immediately.
type Latch struct {
	parties int
	mu      sync.Mutex
	arrived int
	opened  *Event
}

// NewLatch creates a Latch expecting parties arrivals.
func NewLatch(parties int) *Latch {
	if parties <= 0 {
		violate("NewLatch", "parties must be > 0")
	}
	return &Latch{parties: parties, opened: NewEvent()}
}

// Parties returns the number of arrivals the latch is waiting for.
func (b *Latch) Parties() int { return b.parties }

// Arrived returns the number of arrivals observed so far.
func (b *Latch) Arrived() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}

// IsOpen reports whether every party has arrived.
func (b *Latch) IsOpen() bool { return b.opened.IsSet() }

// GreenArrive blocks the calling goroutine until every party has arrived,
// following the shared timeout convention.
func (b *Latch) GreenArrive(timeout ...int64) bool {
	b.mu.Lock()
	b.arrived++
	opened := b.arrived >= b.parties
	b.mu.Unlock()
	if opened {
		b.opened.Set()
		capitan.Info(context.Background(), SignalBarrierOpened,
			FieldParties.Field(b.parties),
		)
	}
	return b.opened.GreenWait(timeout...)
}

// AsyncArrive is the async analogue of GreenArrive.
func (b *Latch) AsyncArrive(ctx context.Context) bool {
	b.mu.Lock()
	b.arrived++
	opened := b.arrived >= b.parties
	b.mu.Unlock()
	if opened {
		b.opened.Set()
		capitan.Info(ctx, SignalBarrierOpened,
			FieldParties.Field(b.parties),
		)
	}
	return b.opened.AsyncWait(ctx)
}

// barrierToken is the mutable per-waiter tuple the data model describes as
// "(event, cancel-flag, index, batch, broken)", narrowed to what waitz
// actually needs: the waiter itself (event + implicit cancel-flag via
// Waiter.Cancelled), the arrival index assigned when the party
// registered for the current batch, and whether Reset woke it.
type barrierToken struct {
	w     *Waiter
	index int
	reset bool
}

// CyclicBarrier is a reusable barrier: once every party has arrived, all
// waiters are released together and the barrier resets for another round
// (its generation advances). If any party aborts its wait early (timeout,
// cancellation) the barrier "breaks": every other waiter in that
// generation wakes with a BrokenBarrierError, matching the source's
// broken-barrier propagation instead of silently deadlocking the
// remaining parties.
type CyclicBarrier struct {
	parties  int
	action   func()
	mu       sync.Mutex
	waiting  int
	gen      []*barrierToken
	broken   bool
	brokenBy string
}

// NewCyclicBarrier creates a CyclicBarrier for parties tasks. action, if
// non-nil, runs exactly once per generation, by whichever party happens to
// be the one that completes it, after every party has arrived and before
// any of them are released — the same barrier-action hook the source
// exposes.
func NewCyclicBarrier(parties int, action func()) *CyclicBarrier {
	if parties <= 0 {
		violate("NewCyclicBarrier", "parties must be > 0")
	}
	return &CyclicBarrier{parties: parties, action: action}
}

// Parties returns the number of parties required per generation.
func (b *CyclicBarrier) Parties() int { return b.parties }

// Waiting returns the number of parties that have arrived in the current
// generation but not yet been released.
func (b *CyclicBarrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}

// IsBroken reports whether the current generation is broken.
func (b *CyclicBarrier) IsBroken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broken
}

// Reset breaks the current generation (waking every waiter with a
// BrokenBarrierError) and starts a fresh one.
func (b *CyclicBarrier) Reset() {
	b.mu.Lock()
	b.broken = false
	b.waiting = 0
	toWake := b.gen
	b.gen = nil
	b.mu.Unlock()
	for _, tok := range toWake {
		tok.reset = true
		tok.w.SetShield(false)
		tok.w.Wake()
	}
	capitan.Info(context.Background(), SignalBarrierReset, FieldParties.Field(b.parties))
}

func (b *CyclicBarrier) breakGeneration(reason string) {
	b.mu.Lock()
	if b.broken {
		b.mu.Unlock()
		return
	}
	b.broken = true
	b.brokenBy = reason
	toWake := b.gen
	b.mu.Unlock()
	for _, tok := range toWake {
		tok.w.Wake()
	}
	capitan.Error(context.Background(), SignalBarrierBroken, FieldReason.Field(reason))
}

// GreenAwait blocks the calling goroutine until every party has arrived at
// the current generation, running the barrier action once per generation
// and advancing to the next generation afterward. Returns the calling
// party's arrival index for this batch — parties-1 for the first party to
// arrive, down to 0 for the party whose arrival completes the batch,
// mirroring java.util.concurrent.CyclicBarrier's index convention (spec
// §3's "index-within-batch" field is left open on the exact assignment;
// this is the judgment call, recorded in DESIGN.md). Returns
// BrokenBarrierError if the generation breaks before release, or if it was
// already broken on entry.
func (b *CyclicBarrier) GreenAwait(timeout ...int64) (int, error) {
	b.mu.Lock()
	if b.broken {
		reason := b.brokenBy
		b.mu.Unlock()
		return -1, &BrokenBarrierError{Reason: reason}
	}
	// The arriving party that completes the batch never enqueues a token and
	// so never counts toward waiting: waiting tracks how many parties are
	// actually blocked, which peaks at parties-1, not parties.
	last := len(b.gen)+1 == b.parties
	index := b.parties - len(b.gen) - 1
	var tok *barrierToken
	if !last {
		tok = &barrierToken{w: NewWaiter(false), index: index}
		b.gen = append(b.gen, tok)
		b.waiting = len(b.gen)
	}
	b.mu.Unlock()

	if last {
		if b.action != nil {
			b.action()
		}
		b.mu.Lock()
		b.waiting = 0
		toWake := b.gen
		b.gen = nil
		b.mu.Unlock()
		for _, t := range toWake {
			t.w.Wake()
		}
		return index, nil
	}

	ok := tok.w.Wait(durationFromNanos(resolveTimeout(timeout)))
	if !ok {
		b.breakGeneration("a party timed out waiting for the others")
		return -1, &BrokenBarrierError{Reason: "a party timed out waiting for the others"}
	}
	if tok.reset {
		return -1, &BrokenBarrierError{Reason: "the barrier was reset"}
	}
	if b.IsBroken() {
		return -1, &BrokenBarrierError{Reason: b.brokenBy}
	}
	return tok.index, nil
}

// AsyncAwait is the async analogue of GreenAwait.
func (b *CyclicBarrier) AsyncAwait(ctx context.Context) (int, error) {
	b.mu.Lock()
	if b.broken {
		reason := b.brokenBy
		b.mu.Unlock()
		return -1, &BrokenBarrierError{Reason: reason}
	}
	last := len(b.gen)+1 == b.parties
	index := b.parties - len(b.gen) - 1
	var tok *barrierToken
	if !last {
		tok = &barrierToken{w: NewWaiter(false), index: index}
		b.gen = append(b.gen, tok)
		b.waiting = len(b.gen)
	}
	b.mu.Unlock()

	if last {
		if b.action != nil {
			b.action()
		}
		b.mu.Lock()
		b.waiting = 0
		toWake := b.gen
		b.gen = nil
		b.mu.Unlock()
		for _, t := range toWake {
			t.w.Wake()
		}
		return index, nil
	}

	ok := tok.w.Await(ctx)
	if !ok {
		b.breakGeneration("a party's context was cancelled waiting for the others")
		return -1, &BrokenBarrierError{Reason: "a party's context was cancelled waiting for the others"}
	}
	if tok.reset {
		return -1, &BrokenBarrierError{Reason: "the barrier was reset"}
	}
	if b.IsBroken() {
		return -1, &BrokenBarrierError{Reason: b.brokenBy}
	}
	return tok.index, nil
}
