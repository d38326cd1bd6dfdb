package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across every mounted route.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "stacker",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// CommandsEnqueuedTotal counts commands accepted onto the queue, by command kind.
var CommandsEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "commands",
		Name:      "enqueued_total",
		Help:      "Total number of commands enqueued, by kind.",
	},
	[]string{"kind"},
)

// CommandsDequeuedTotal counts commands claimed by an agent via long-poll.
var CommandsDequeuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "commands",
		Name:      "dequeued_total",
		Help:      "Total number of commands dequeued by an agent, by kind.",
	},
	[]string{"kind"},
)

// CommandsTimedOutTotal counts commands the reaper moved to timed_out.
var CommandsTimedOutTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "commands",
		Name:      "timed_out_total",
		Help:      "Total number of commands moved to timed_out by the reaper.",
	},
)

// QueueDepth reports the number of pending commands per queue at the moment
// of the last dispatcher probe.
var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "stacker",
		Subsystem: "commands",
		Name:      "queue_depth",
		Help:      "Number of pending commands currently queued, by priority.",
	},
	[]string{"priority"},
)

// DispatchWaitDuration tracks how long a long-poll wait held its connection
// open before returning a command or timing out empty.
var DispatchWaitDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "stacker",
		Subsystem: "dispatch",
		Name:      "wait_duration_seconds",
		Help:      "Duration of a long-poll dispatch wait, by outcome.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 45},
	},
	[]string{"outcome"}, // "command" or "empty"
)

// DispatchOutstandingWaiters tracks how many long-poll requests are
// currently blocked waiting for a command.
var DispatchOutstandingWaiters = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "stacker",
		Subsystem: "dispatch",
		Name:      "outstanding_waiters",
		Help:      "Number of long-poll dispatch requests currently blocked.",
	},
)

// AgentHeartbeatsTotal counts agent heartbeat/register calls.
var AgentHeartbeatsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "agents",
		Name:      "heartbeats_total",
		Help:      "Total number of agent heartbeat calls, by outcome.",
	},
	[]string{"outcome"},
)

// AgentsOfflineTotal counts agents the sweeper marked offline for missed heartbeats.
var AgentsOfflineTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "agents",
		Name:      "marked_offline_total",
		Help:      "Total number of agents marked offline by the liveness sweeper.",
	},
)

// HealthProbeDuration tracks dependency health probe latency.
var HealthProbeDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "stacker",
		Subsystem: "health",
		Name:      "probe_duration_seconds",
		Help:      "Duration of a dependency health probe, by dependency and outcome.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"dependency", "outcome"},
)

// DeploymentTransitionsTotal counts deployment state machine transitions.
var DeploymentTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "deployments",
		Name:      "transitions_total",
		Help:      "Total number of deployment state transitions, by from/to state.",
	},
	[]string{"from", "to"},
)

// BusReconnectsTotal counts AMQP reconnect attempts by the message bus client.
var BusReconnectsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stacker",
		Subsystem: "bus",
		Name:      "reconnects_total",
		Help:      "Total number of AMQP reconnect attempts.",
	},
)

// All returns every service-specific metric collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		CommandsEnqueuedTotal,
		CommandsDequeuedTotal,
		CommandsTimedOutTotal,
		QueueDepth,
		DispatchWaitDuration,
		DispatchOutstandingWaiters,
		AgentHeartbeatsTotal,
		AgentsOfflineTotal,
		HealthProbeDuration,
		DeploymentTransitionsTotal,
		BusReconnectsTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTP request histogram, and all service-specific collectors.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
