package waitz

import (
	"container/list"
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Queue observability keys.
const (
	MetricQueueDepth     = metricz.Key("waitz.queue.depth")
	MetricQueuePuts      = metricz.Key("waitz.queue.puts.total")
	MetricQueueGets      = metricz.Key("waitz.queue.gets.total")
	MetricQueueFullTotal = metricz.Key("waitz.queue.full.total")

	HookQueuePut = hookz.Key("waitz.queue.put")
	HookQueueGet = hookz.Key("waitz.queue.get")
)

// QueueEvent is emitted through a Queue's Hooks on every successful put
// and get.
type QueueEvent struct {
	Size    int
	MaxSize int
}

// queueContainer is the polymorphic items store spec §3's Queue state
// calls out ("deque / list / heap"), generalized here to a small interface
// so one Queue[T] implementation serves all three container variants
// (spec §9: "one struct, a container variant") instead of three
// subclasses.
type queueContainer[T any] interface {
	push(v T)
	pop() T
	len() int
}

// fifoContainer backs the default Queue ordering.
type fifoContainer[T any] struct {
	l list.List
}

func (c *fifoContainer[T]) push(v T) { c.l.PushBack(v) }
func (c *fifoContainer[T]) pop() T {
	e := c.l.Front()
	c.l.Remove(e)
	return e.Value.(T) //nolint:errcheck // container invariant: only T values are stored
}
func (c *fifoContainer[T]) len() int { return c.l.Len() }

// lifoContainer backs LifoQueue.
type lifoContainer[T any] struct {
	s []T
}

func (c *lifoContainer[T]) push(v T) { c.s = append(c.s, v) }
func (c *lifoContainer[T]) pop() T {
	n := len(c.s) - 1
	v := c.s[n]
	c.s = c.s[:n]
	return v
}
func (c *lifoContainer[T]) len() int { return len(c.s) }

// priorityContainer backs PriorityQueue with a small binary heap ordered
// by less. container/heap's Push/Pop take interface{} and don't compose
// cleanly with a generic element type, so the heap is implemented directly
// here rather than through that package — still the textbook binary-heap
// algorithm the data model calls for.
type priorityContainer[T any] struct {
	s    []T
	less func(a, b T) bool
}

func (c *priorityContainer[T]) push(v T) {
	c.s = append(c.s, v)
	i := len(c.s) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !c.less(c.s[i], c.s[parent]) {
			break
		}
		c.s[i], c.s[parent] = c.s[parent], c.s[i]
		i = parent
	}
}

func (c *priorityContainer[T]) pop() T {
	top := c.s[0]
	last := len(c.s) - 1
	c.s[0] = c.s[last]
	c.s = c.s[:last]
	i := 0
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < len(c.s) && c.less(c.s[left], c.s[smallest]) {
			smallest = left
		}
		if right < len(c.s) && c.less(c.s[right], c.s[smallest]) {
			smallest = right
		}
		if smallest == i {
			break
		}
		c.s[i], c.s[smallest] = c.s[smallest], c.s[i]
		i = smallest
	}
	return top
}

func (c *priorityContainer[T]) len() int { return len(c.s) }

// Queue is a bounded FIFO queue (LifoQueue/PriorityQueue are the same
// struct configured with a different queueContainer, per spec §9's
// "composition + tagged variants" note). maxsize == 0 means unbounded: a
// producer on an unbounded Queue never blocks (spec §9 Open Question 2,
// resolved and covered by TestQueue_UnboundedNeverBlocksProducers).
//
// Mutual exclusion over the container uses a plain sync.Mutex rather than
// the source's lock-free "unlocked" single-token cell: spec §9's "busy-wait
// concerns" design note calls out Queue by name as one of the hottest
// primitives that should use a proper mutex on a non-GIL target, which Go
// always is.
type Queue[T any] struct {
	mu        sync.Mutex
	items     queueContainer[T]
	maxsize   int
	producers *waiterQueue
	consumers *waiterQueue
	cfg       Config
	clock     clockz.Clock
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[QueueEvent]
	name      string
}

func newQueue[T any](name string, container queueContainer[T], maxsize int, opts ...Option) *Queue[T] {
	if maxsize < 0 {
		violate("NewQueue", "maxsize must be >= 0")
	}
	o := resolveOptions(opts)
	q := &Queue[T]{
		items:     container,
		maxsize:   maxsize,
		producers: newWaiterQueue(),
		consumers: newWaiterQueue(),
		cfg:       o.cfg,
		clock:     o.clock,
		metrics:   metricz.New(),
		tracer:    tracez.New(),
		hooks:     hookz.New[QueueEvent](),
		name:      name,
	}
	q.metrics.Counter(MetricQueuePuts)
	q.metrics.Counter(MetricQueueGets)
	q.metrics.Counter(MetricQueueFullTotal)
	q.metrics.Gauge(MetricQueueDepth)
	return q
}

// NewQueue creates a bounded FIFO Queue. maxsize == 0 means unbounded.
func NewQueue[T any](maxsize int, opts ...Option) *Queue[T] {
	return newQueue[T]("fifo", &fifoContainer[T]{}, maxsize, opts...)
}

// NewLifoQueue creates a bounded LIFO (stack-ordered) Queue.
func NewLifoQueue[T any](maxsize int, opts ...Option) *Queue[T] {
	return newQueue[T]("lifo", &lifoContainer[T]{}, maxsize, opts...)
}

// NewPriorityQueue creates a bounded Queue that always Gets the item for
// which less reports true against every other queued item (a min-heap by
// less, mirroring Python's queue.PriorityQueue over heapq).
func NewPriorityQueue[T any](maxsize int, less func(a, b T) bool, opts ...Option) *Queue[T] {
	return newQueue[T]("priority", &priorityContainer[T]{less: less}, maxsize, opts...)
}

// QSize returns the number of items currently queued.
func (q *Queue[T]) QSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.len()
}

// MaxSize returns the configured capacity, or 0 for unbounded.
func (q *Queue[T]) MaxSize() int { return q.maxsize }

// Empty reports whether the queue currently holds no items.
func (q *Queue[T]) Empty() bool { return q.QSize() == 0 }

// Full reports whether the queue is at capacity. Always false when
// unbounded.
func (q *Queue[T]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.full()
}

func (q *Queue[T]) full() bool {
	return q.maxsize > 0 && q.items.len() >= q.maxsize
}

// Waiting returns the number of producers and consumers currently queued.
func (q *Queue[T]) Waiting() (producers, consumers int) {
	return q.producers.len(), q.consumers.len()
}

// Metrics returns the queue's metrics registry.
func (q *Queue[T]) Metrics() *metricz.Registry { return q.metrics }

// Tracer returns the queue's tracer.
func (q *Queue[T]) Tracer() *tracez.Tracer { return q.tracer }

// OnPut registers a handler invoked after each successful put.
func (q *Queue[T]) OnPut(handler func(context.Context, QueueEvent) error) error {
	_, err := q.hooks.Hook(HookQueuePut, handler)
	return err
}

// OnGet registers a handler invoked after each successful get.
func (q *Queue[T]) OnGet(handler func(context.Context, QueueEvent) error) error {
	_, err := q.hooks.Hook(HookQueueGet, handler)
	return err
}

// Close releases the queue's observability resources.
func (q *Queue[T]) Close() error {
	q.tracer.Close()
	q.hooks.Close()
	return nil
}

func (q *Queue[T]) tryEnqueue(item T) bool {
	q.mu.Lock()
	if q.full() {
		q.mu.Unlock()
		return false
	}
	q.items.push(item)
	size := q.items.len()
	q.mu.Unlock()
	q.metrics.Counter(MetricQueuePuts).Inc()
	q.metrics.Gauge(MetricQueueDepth).Set(float64(size))
	_ = q.hooks.Emit(context.Background(), HookQueuePut, QueueEvent{Size: size, MaxSize: q.maxsize}) //nolint:errcheck
	// A put always makes room for exactly one more get to succeed; wake at
	// most one consumer, without a combined "all" queue — a woken waiter
	// only ever rechecks its own condition. A consumer that already
	// cancelled cannot be woken, so the next one is tried instead and the
	// wakeup is not lost. tryDequeue does the same for producers.
	for w := q.consumers.popFront(); w != nil; w = q.consumers.popFront() {
		if w.Wake() {
			break
		}
	}
	return true
}

func (q *Queue[T]) tryDequeue() (item T, ok bool) {
	q.mu.Lock()
	if q.items.len() == 0 {
		q.mu.Unlock()
		return item, false
	}
	item = q.items.pop()
	size := q.items.len()
	q.mu.Unlock()
	q.metrics.Counter(MetricQueueGets).Inc()
	q.metrics.Gauge(MetricQueueDepth).Set(float64(size))
	_ = q.hooks.Emit(context.Background(), HookQueueGet, QueueEvent{Size: size, MaxSize: q.maxsize}) //nolint:errcheck
	for w := q.producers.popFront(); w != nil; w = q.producers.popFront() {
		if w.Wake() {
			break
		}
	}
	return item, true
}

// TryPut attempts to enqueue item without blocking, returning QueueFull if
// the queue is at capacity.
func (q *Queue[T]) TryPut(item T) error {
	if !q.tryEnqueue(item) {
		q.metrics.Counter(MetricQueueFullTotal).Inc()
		capitan.Warn(context.Background(), SignalQueueFull, FieldMaxSize.Field(q.maxsize))
		return &QueueFull{}
	}
	return nil
}

// TryGet attempts to dequeue an item without blocking, returning
// QueueEmpty if none is available.
func (q *Queue[T]) TryGet() (T, error) {
	item, ok := q.tryDequeue()
	if !ok {
		capitan.Warn(context.Background(), SignalQueueEmpty, FieldMaxSize.Field(q.maxsize))
		return item, &QueueEmpty{}
	}
	return item, nil
}

// GreenPut blocks the calling goroutine until item can be enqueued,
// following the shared timeout convention. Every wait loop rechecks
// capacity itself after waking (the waiter only signals "room might exist
// now", not a claimed slot), since a Queue's capacity is not a discrete
// token the way Semaphore's is.
func (q *Queue[T]) GreenPut(item T, timeout ...int64) bool {
	return q.greenPut(item, resolveTimeout(timeout))
}

func (q *Queue[T]) greenPut(item T, timeoutNanos int64) bool {
	if q.tryEnqueue(item) {
		Checkpoint(q.cfg)
		return true
	}
	if timeoutNanos == 0 {
		return false
	}
	deadline, hasDeadline := deadlineFromNanos(timeoutNanos)
	for {
		w := NewWaiterWithClock(false, q.clock)
		q.producers.pushBack(w)
		if q.tryEnqueue(item) {
			q.producers.remove(w)
			Checkpoint(q.cfg)
			return true
		}
		remaining := timeoutNanos
		if hasDeadline {
			remaining = timeRemaining(deadline)
			if remaining <= 0 {
				q.producers.remove(w)
				return false
			}
		}
		ok := w.Wait(durationFromNanos(remaining))
		q.producers.remove(w)
		if !ok {
			return false
		}
		if q.tryEnqueue(item) {
			Checkpoint(q.cfg)
			return true
		}
		if hasDeadline && timeRemaining(deadline) <= 0 {
			return false
		}
	}
}

// AsyncPut is the async analogue of GreenPut.
func (q *Queue[T]) AsyncPut(ctx context.Context, item T) bool {
	if q.tryEnqueue(item) {
		Checkpoint(q.cfg)
		return true
	}
	for {
		if ctx.Err() != nil {
			return false
		}
		w := NewWaiterWithClock(false, q.clock)
		q.producers.pushBack(w)
		if q.tryEnqueue(item) {
			q.producers.remove(w)
			Checkpoint(q.cfg)
			return true
		}
		ok := w.Await(ctx)
		q.producers.remove(w)
		if !ok {
			return false
		}
		if q.tryEnqueue(item) {
			Checkpoint(q.cfg)
			return true
		}
	}
}

// GreenGet blocks the calling goroutine until an item can be dequeued,
// following the shared timeout convention.
func (q *Queue[T]) GreenGet(timeout ...int64) (T, bool) {
	return q.greenGet(resolveTimeout(timeout))
}

func (q *Queue[T]) greenGet(timeoutNanos int64) (item T, ok bool) {
	if item, ok = q.tryDequeue(); ok {
		Checkpoint(q.cfg)
		return item, true
	}
	if timeoutNanos == 0 {
		return item, false
	}
	deadline, hasDeadline := deadlineFromNanos(timeoutNanos)
	for {
		w := NewWaiterWithClock(false, q.clock)
		q.consumers.pushBack(w)
		if item, ok = q.tryDequeue(); ok {
			q.consumers.remove(w)
			Checkpoint(q.cfg)
			return item, true
		}
		remaining := timeoutNanos
		if hasDeadline {
			remaining = timeRemaining(deadline)
			if remaining <= 0 {
				q.consumers.remove(w)
				return item, false
			}
		}
		woken := w.Wait(durationFromNanos(remaining))
		q.consumers.remove(w)
		if !woken {
			return item, false
		}
		if item, ok = q.tryDequeue(); ok {
			Checkpoint(q.cfg)
			return item, true
		}
		if hasDeadline && timeRemaining(deadline) <= 0 {
			return item, false
		}
	}
}

// AsyncGet is the async analogue of GreenGet.
func (q *Queue[T]) AsyncGet(ctx context.Context) (item T, ok bool) {
	if item, ok = q.tryDequeue(); ok {
		Checkpoint(q.cfg)
		return item, true
	}
	for {
		if ctx.Err() != nil {
			return item, false
		}
		w := NewWaiterWithClock(false, q.clock)
		q.consumers.pushBack(w)
		if item, ok = q.tryDequeue(); ok {
			q.consumers.remove(w)
			Checkpoint(q.cfg)
			return item, true
		}
		woken := w.Await(ctx)
		q.consumers.remove(w)
		if !woken {
			return item, false
		}
		if item, ok = q.tryDequeue(); ok {
			Checkpoint(q.cfg)
			return item, true
		}
	}
}

// SimpleQueue is an unbounded FIFO queue with no producer/consumer
// distinction and no capacity check: a Semaphore counts items available
// and a plain list holds them, the simpler and strictly faster primitive
// the source keeps alongside the general bounded Queue (spec §4.L
// mentions it by name; supplemented from original_source/_queue.py — see
// DESIGN.md).
type SimpleQueue[T any] struct {
	mu    sync.Mutex
	items list.List
	sem   *Semaphore
}

// NewSimpleQueue creates an empty, unbounded SimpleQueue.
func NewSimpleQueue[T any](opts ...Option) *SimpleQueue[T] {
	return &SimpleQueue[T]{sem: NewSemaphore(0, opts...)}
}

// Put appends item and wakes one waiting Get, never blocking.
func (q *SimpleQueue[T]) Put(item T) {
	q.mu.Lock()
	q.items.PushBack(item)
	q.mu.Unlock()
	q.sem.Release(1)
}

// Len returns the number of items currently queued.
func (q *SimpleQueue[T]) Len() int { return q.sem.Value() }

func (q *SimpleQueue[T]) popFront() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.items.Front()
	if e == nil {
		return item, false
	}
	q.items.Remove(e)
	return e.Value.(T), true //nolint:errcheck // container invariant: only T values are stored
}

// GreenGet blocks the calling goroutine until an item is available,
// following the shared timeout convention.
func (q *SimpleQueue[T]) GreenGet(timeout ...int64) (item T, ok bool) {
	if !q.sem.GreenAcquire(timeout...) {
		return item, false
	}
	item, _ = q.popFront()
	return item, true
}

// AsyncGet is the async analogue of GreenGet.
func (q *SimpleQueue[T]) AsyncGet(ctx context.Context) (item T, ok bool) {
	if !q.sem.AsyncAcquire(ctx) {
		return item, false
	}
	item, _ = q.popFront()
	return item, true
}

// TryGet attempts to dequeue without blocking.
func (q *SimpleQueue[T]) TryGet() (T, error) {
	if !q.sem.TryAcquire() {
		var zero T
		return zero, &QueueEmpty{}
	}
	item, _ := q.popFront()
	return item, nil
}

// Metrics returns the queue's underlying semaphore metrics registry.
func (q *SimpleQueue[T]) Metrics() *metricz.Registry { return q.sem.Metrics() }

// Close releases the queue's observability resources.
func (q *SimpleQueue[T]) Close() error { return q.sem.Close() }
