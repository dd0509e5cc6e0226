package waitz

import (
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability keys shared by every primitive built on Waiter. Per-
// primitive keys (barrier, limiter, queue, ...) live beside their owning
// file and are registered on metrics/tracer the same way.
const (
	MetricWaitersTotal   = metricz.Key("waitz.waiters.total")
	MetricWakesTotal     = metricz.Key("waitz.wakes.total")
	MetricCancelsTotal   = metricz.Key("waitz.cancels.total")
	MetricWaitersPending = metricz.Key("waitz.waiters.pending")

	SpanWaiterWait  = tracez.Key("waitz.waiter.wait")
	SpanWaiterAwait = tracez.Key("waitz.waiter.await")

	TagWaiterDomain = tracez.Tag("waitz.waiter.domain")
	TagWaiterResult = tracez.Tag("waitz.waiter.result")
)

// metrics is the package-wide registry every primitive reports into: one
// metricz.Registry per connector elsewhere in this stack, but scoped to the
// whole package here since Waiter (the thing being measured) is shared
// infrastructure, not a user-constructed connector.
var metrics = newMetrics()

func newMetrics() *metricz.Registry {
	r := metricz.New()
	r.Counter(MetricWaitersTotal)
	r.Counter(MetricWakesTotal)
	r.Counter(MetricCancelsTotal)
	r.Gauge(MetricWaitersPending)
	return r
}

// Metrics returns the package-wide metrics registry.
func Metrics() *metricz.Registry { return metrics }

// tracer is the package-wide tracer for Waiter suspension spans.
var tracer = tracez.New()

// Tracer returns the package-wide tracer.
func Tracer() *tracez.Tracer { return tracer }
