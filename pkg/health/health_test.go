package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func healthyProbe(ctx context.Context) (Status, string) { return StatusHealthy, "" }

func unhealthyProbe(ctx context.Context) (Status, string) { return StatusUnhealthy, "boom" }

func slowProbe(ctx context.Context) (Status, string) {
	time.Sleep(slowThreshold + 10*time.Millisecond)
	return StatusHealthy, ""
}

func TestCheck_AllHealthy(t *testing.T) {
	agg := NewAggregator(
		Component{Name: "a", Probe: healthyProbe},
		Component{Name: "b", Probe: healthyProbe},
	)
	report := agg.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("status = %v, want healthy", report.Status)
	}
}

func TestCheck_RequiredFailureIsUnhealthy(t *testing.T) {
	agg := NewAggregator(
		Component{Name: "a", Probe: healthyProbe},
		Component{Name: "store", Optional: false, Probe: unhealthyProbe},
	)
	report := agg.Check(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("status = %v, want unhealthy", report.Status)
	}
}

func TestCheck_OptionalFailureDowngradesToDegraded(t *testing.T) {
	agg := NewAggregator(
		Component{Name: "a", Probe: healthyProbe},
		Component{Name: "registry", Optional: true, Probe: unhealthyProbe},
	)
	report := agg.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %v, want degraded", report.Status)
	}
}

func TestCheck_SlowHealthyProbeDowngradesToDegraded(t *testing.T) {
	agg := NewAggregator(Component{Name: "slow", Probe: slowProbe})
	report := agg.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %v, want degraded", report.Status)
	}
	if report.Components[0].Reason == "" {
		t.Error("expected a reason for the slow-downgrade")
	}
}

func TestProbeFor_WrapsPingError(t *testing.T) {
	p := probeFor(fakePinger{err: errors.New("down")})
	status, reason := p(context.Background())
	if status != StatusUnhealthy || reason != "down" {
		t.Errorf("got (%v, %q), want (unhealthy, %q)", status, reason, "down")
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }
