// Package health implements the dependency health aggregator (§4.10): a
// fixed set of probes run in parallel, worst-status-wins, behind
// /health_check and /health_check/metrics.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trydirect/stacker/internal/telemetry"
)

// Status is a single probe or aggregate verdict, ranked best-to-worst so
// the aggregate can take the max.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

var statusRank = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

const (
	probeTimeout  = 5 * time.Second
	slowThreshold = 1000 * time.Millisecond
)

// Probe checks one dependency and reports its status and, for a degraded or
// unhealthy result, a human-readable reason.
type Probe func(ctx context.Context) (Status, string)

// Component names and wraps a Probe. Optional marks dependencies whose
// failure must downgrade the aggregate to degraded, never unhealthy
// (§4.10: "optional-service probe failures produce degraded, never
// unhealthy").
type Component struct {
	Name     string
	Optional bool
	Probe    Probe
}

// ComponentReport is one component's probe outcome, latency included for the
// /health_check/metrics endpoint.
type ComponentReport struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Reason    string  `json:"reason,omitempty"`
}

// Report is the aggregated health verdict returned by Check.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentReport `json:"components"`
}

// Aggregator fires all registered component probes in parallel on every
// check, with no caching between requests: a health check always reflects
// live state.
type Aggregator struct {
	components []Component
}

// NewAggregator builds an Aggregator over the given components.
func NewAggregator(components ...Component) *Aggregator {
	return &Aggregator{components: components}
}

// Check runs every component probe concurrently, each bounded by its own
// 5s timeout, and returns the worst-of aggregate (§4.10).
func (a *Aggregator) Check(ctx context.Context) Report {
	reports := make([]ComponentReport, len(a.components))

	g, gctx := errgroup.WithContext(ctx)
	for i, comp := range a.components {
		i, comp := i, comp
		g.Go(func() error {
			reports[i] = a.runProbe(gctx, comp)
			return nil
		})
	}
	_ = g.Wait() // probes never return an error themselves; nothing to propagate

	aggregate := StatusHealthy
	for _, r := range reports {
		if statusRank[r.Status] > statusRank[aggregate] {
			aggregate = r.Status
		}
	}

	return Report{Status: aggregate, Components: reports}
}

func (a *Aggregator) runProbe(ctx context.Context, comp Component) ComponentReport {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	status, reason := comp.Probe(probeCtx)
	latency := time.Since(start)

	if status == StatusHealthy && latency > slowThreshold {
		status = StatusDegraded
		reason = "response exceeded 1000ms"
	}
	if comp.Optional && status == StatusUnhealthy {
		status = StatusDegraded
	}

	telemetry.HealthProbeDuration.WithLabelValues(comp.Name, string(status)).Observe(latency.Seconds())

	return ComponentReport{
		Name:      comp.Name,
		Status:    status,
		LatencyMS: float64(latency.Microseconds()) / 1000,
		Reason:    reason,
	}
}

// Latest keeps the most recent Report in memory so /health_check/metrics can
// expose the last probe's per-component latencies without re-probing.
type Latest struct {
	mu     sync.RWMutex
	report Report
}

func (l *Latest) Set(r Report) {
	l.mu.Lock()
	l.report = r
	l.mu.Unlock()
}

func (l *Latest) Get() Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report
}
