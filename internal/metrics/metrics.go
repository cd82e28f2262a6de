// Package metrics exposes the VM's internal counters as Prometheus
// collectors. Everything here is registered against a private registry
// built by New — never the package-global DefaultRegisterer — so an
// embedding process can run more than one VM, or none at all, without
// metric name collisions or unwanted global state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vo-lang/vort/internal/fiber"
	"github.com/vo-lang/vort/internal/gc"
	"github.com/vo-lang/vort/internal/scheduler"
)

// Collectors is the full set of gauges and counters a VM instance
// reports. Fields are exported so a caller embedding the VM in a larger
// process can register additional labels or re-export them under a
// different namespace.
type Collectors struct {
	registry *prometheus.Registry

	GcCycles      prometheus.Counter
	GcLiveObjects prometheus.Gauge
	GcLiveBytes   prometheus.Gauge
	GcFreedTotal  prometheus.Counter

	FibersRunnable prometheus.Gauge
	FibersParked   prometheus.Gauge
	FibersDead     prometheus.Gauge

	ExternCalls *prometheus.CounterVec
}

// New builds a Collectors set and registers every metric against a
// fresh, private registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		GcCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vo",
			Subsystem: "gc",
			Name:      "cycles_total",
			Help:      "Number of completed garbage collection cycles.",
		}),
		GcLiveObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vo",
			Subsystem: "gc",
			Name:      "live_objects",
			Help:      "Live heap objects as of the last collection.",
		}),
		GcLiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vo",
			Subsystem: "gc",
			Name:      "live_bytes",
			Help:      "Live heap bytes as of the last collection.",
		}),
		GcFreedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vo",
			Subsystem: "gc",
			Name:      "freed_objects_total",
			Help:      "Cumulative objects reclaimed across all collections.",
		}),
		FibersRunnable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vo",
			Subsystem: "fibers",
			Name:      "runnable",
			Help:      "Fibers currently queued to run.",
		}),
		FibersParked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vo",
			Subsystem: "fibers",
			Name:      "parked",
			Help:      "Fibers blocked on a channel send or receive.",
		}),
		FibersDead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vo",
			Subsystem: "fibers",
			Name:      "dead",
			Help:      "Fibers that have returned, panicked, or been reclaimed.",
		}),
		ExternCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vo",
			Subsystem: "extern",
			Name:      "calls_total",
			Help:      "Extern function invocations, by extern name.",
		}, []string{"extern"}),
	}

	reg.MustRegister(
		c.GcCycles, c.GcLiveObjects, c.GcLiveBytes, c.GcFreedTotal,
		c.FibersRunnable, c.FibersParked, c.FibersDead,
		c.ExternCalls,
	)
	return c
}

// ObserveCollection folds one gc.Stats result into the GC counters and
// gauges. Call this once per completed Collect.
func (c *Collectors) ObserveCollection(stats gc.Stats) {
	c.GcCycles.Inc()
	c.GcLiveObjects.Set(float64(stats.LiveObjects))
	c.GcLiveBytes.Set(float64(stats.LiveBytes))
	c.GcFreedTotal.Add(float64(stats.Freed))
}

// ObserveExternCall increments the per-extern call counter.
func (c *Collectors) ObserveExternCall(name string) {
	c.ExternCalls.WithLabelValues(name).Inc()
}

// ObserveScheduler resets the fiber gauges from a scheduler's current
// fiber table. Runnable counts fibers the scheduler would hand out next;
// the rest are bucketed dead vs. parked by status, since a cooperative
// scheduler has no separate "currently executing" pool to report.
func (c *Collectors) ObserveScheduler(s *scheduler.Scheduler) {
	runnable := s.RunnableCount()
	var dead, parked int
	for _, f := range s.Fibers() {
		switch f.Status {
		case fiber.Dead:
			dead++
		default:
			parked++
		}
	}
	// Fibers sitting in the runnable ring still report Suspended/Running
	// status, so back them out of the parked bucket to avoid double
	// counting against FibersRunnable.
	parked -= runnable
	if parked < 0 {
		parked = 0
	}
	c.FibersRunnable.Set(float64(runnable))
	c.FibersParked.Set(float64(parked))
	c.FibersDead.Set(float64(dead))
}

// Registry returns the private registry every collector above is
// registered against.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler returns an http.Handler serving this Collectors set in the
// Prometheus text exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
