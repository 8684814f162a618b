package status

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Registry holds process metrics for the feedback engines and the session machine
// Components fetch their pointers once at construction and update atomics directly
type Registry struct {
	counters *metricMap[atomic.Int64]
	gauges   *metricMap[Gauge]
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		counters: newMetricMap[atomic.Int64](),
		gauges:   newMetricMap[Gauge](),
	}
}

// Counter returns the named counter, creating it on first use
// A nil Registry hands out detached counters so components work without metrics
func (r *Registry) Counter(name string) *atomic.Int64 {
	if r == nil {
		return new(atomic.Int64)
	}
	return r.counters.get(name)
}

// Gauge returns the named gauge, creating it on first use
func (r *Registry) Gauge(name string) *Gauge {
	if r == nil {
		return new(Gauge)
	}
	return r.gauges.get(name)
}

// Snapshot copies every metric value keyed by name
func (r *Registry) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	if r == nil {
		return out
	}
	r.counters.each(func(k string, c *atomic.Int64) { out[k] = float64(c.Load()) })
	r.gauges.each(func(k string, g *Gauge) { out[k] = g.Get() })
	return out
}

// Line renders counters then gauges as a single "key=value" line
func (r *Registry) Line() string {
	if r == nil {
		return ""
	}
	var parts []string
	r.counters.each(func(k string, c *atomic.Int64) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, c.Load()))
	})
	r.gauges.each(func(k string, g *Gauge) {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, g.Get()))
	})
	return strings.Join(parts, " ")
}
