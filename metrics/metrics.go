// Package metrics exposes Prometheus collectors over the allocator, the
// mmap manager, and the fault resolver — the backing implementation
// spec.md's D_STAT debug device never had. github.com/prometheus/client_golang
// is grounded in the wider example pack's talyz-systemd_exporter, whose
// go.mod requires it for its own collectors; this package gives that
// dependency a role in this subsystem instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/afiqket/vmcore/mem"
	"github.com/afiqket/vmcore/mmapmgr"
)

// Allocator registers gauges tracking a mem.Allocator's total frame
// count, free-list length, and in-use count, the Prometheus analogue of
// spec.md §4.1's frees_count debug observable. It exports no
// incref/decref or poison-event counters.
type Allocator struct {
	alloc *mem.Allocator

	framesTotal prometheus.Gauge
	framesFree  prometheus.GaugeFunc
	framesInUse prometheus.GaugeFunc
}

// NewAllocator builds and registers an Allocator collector against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across parallel test packages.
func NewAllocator(reg prometheus.Registerer, alloc *mem.Allocator) (*Allocator, error) {
	a := &Allocator{alloc: alloc}

	a.framesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vmcore",
		Subsystem: "pfa",
		Name:      "frames_total",
		Help:      "Total physical frames under management by the page-frame allocator.",
	})
	a.framesTotal.Set(float64(alloc.NFrames()))

	a.framesFree = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vmcore",
		Subsystem: "pfa",
		Name:      "frames_free",
		Help:      "Frames currently on the free list.",
	}, func() float64 { return float64(alloc.FreesCount()) })

	a.framesInUse = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vmcore",
		Subsystem: "pfa",
		Name:      "frames_in_use",
		Help:      "Frames with a non-zero reference count.",
	}, func() float64 { return float64(alloc.InUse()) })

	for _, c := range []prometheus.Collector{a.framesTotal, a.framesFree, a.framesInUse} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Mmap registers a gauge tracking the mmap manager's system-wide region
// count against the MAX_MMAPS_SYS budget named in spec.md §3.
type Mmap struct {
	regionsInUse prometheus.GaugeFunc
}

// NewMmap builds and registers a Mmap collector against reg.
func NewMmap(reg prometheus.Registerer, m *mmapmgr.Manager) (*Mmap, error) {
	mm := &Mmap{
		regionsInUse: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vmcore",
			Subsystem: "mmap",
			Name:      "regions_in_use",
			Help:      "System-wide count of live mmap regions.",
		}, func() float64 { return float64(m.SysCount()) }),
	}
	if err := reg.Register(mm.regionsInUse); err != nil {
		return nil, err
	}
	return mm, nil
}

// FaultCounters tracks resolver outcomes by kind, incremented by callers
// of fault.Resolve (this package does not import fault itself; callers
// pass the outcome label directly).
type FaultCounters struct {
	vec *prometheus.CounterVec
}

// NewFaultCounters builds and registers a FaultCounters collector.
func NewFaultCounters(reg prometheus.Registerer) (*FaultCounters, error) {
	fc := &FaultCounters{
		vec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmcore",
			Subsystem: "fault",
			Name:      "resolutions_total",
			Help:      "Page faults resolved, partitioned by outcome.",
		}, []string{"outcome"}),
	}
	if err := reg.Register(fc.vec); err != nil {
		return nil, err
	}
	return fc, nil
}

// Observe records one fault resolution of the given outcome label
// ("cow_copied", "cow_claimed", "mmap_first_touch", "fatal").
func (fc *FaultCounters) Observe(outcome string) {
	fc.vec.WithLabelValues(outcome).Inc()
}
