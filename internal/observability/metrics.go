// Package observability holds the process's Prometheus metrics: one
// package-level var block of promauto constructors, registered against
// the default registry on import.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks the number of pending tasks in the delayed task
	// queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intervention_queue_depth",
		Help: "Current number of pending tasks in the scheduling queue",
	})

	// QueueOldestTaskAge tracks the age of the oldest task waiting in the
	// queue, an early signal of worker starvation.
	QueueOldestTaskAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intervention_queue_oldest_task_age_seconds",
		Help: "Age of the oldest pending task in the queue, in seconds",
	})

	// DispatchTotal counts dispatch attempts by outcome.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervention_dispatch_total",
		Help: "Total dispatch attempts from the task queue worker",
	}, []string{"outcome"}) // delivered, failed, requeued_circuit_open, requeued_rate_limited

	// DispatchLatencySeconds tracks delivery round-trip time against the
	// Trigger Sink's downstream endpoint.
	DispatchLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervention_dispatch_latency_seconds",
		Help:    "Latency of a single trigger delivery to the front end",
		Buckets: prometheus.DefBuckets,
	})

	// DispatchCircuitState tracks the worker's circuit breaker state.
	DispatchCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "intervention_dispatch_circuit_state",
		Help: "Dispatch circuit breaker state (0=closed, 1=half_open, 2=open)",
	}, []string{"state"})

	// PhaseTransitionsTotal tracks FSM phase-state transitions.
	PhaseTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervention_phase_transitions_total",
		Help: "Total controller phase-state transitions",
	}, []string{"from", "to"})

	// EventIngressTotal tracks inbound webhook events by type and outcome.
	EventIngressTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervention_event_ingress_total",
		Help: "Total inbound events accepted by the ingress funnel",
	}, []string{"event_type", "outcome"}) // outcome: accepted, rejected, idempotent_replay

	// NewDayBroadcastFailures tracks per-user failures during the daily
	// new-day broadcast.
	NewDayBroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intervention_new_day_broadcast_failures_total",
		Help: "Users for which the daily new-day tick failed to apply",
	})

	// LeadershipEpoch tracks the current fencing epoch for the leader.
	LeadershipEpoch = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "intervention_leader_epoch",
		Help: "Current fencing epoch of the leader",
	}, []string{"node_id"})

	// LeadershipTransitions tracks leadership acquisition and loss events.
	LeadershipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervention_leader_transitions_total",
		Help: "Total number of leadership transitions",
	}, []string{"node_id", "event"})

	// LeadershipTransitionDuration tracks time taken for leadership
	// transitions (step-down to become-leader).
	LeadershipTransitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervention_leader_transition_duration_seconds",
		Help:    "Time taken for a leadership transition",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// LeaderStatus tracks current leader status for this process.
	LeaderStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intervention_leader_status",
		Help: "Current leader status (1 = leader, 0 = follower)",
	})

	// RedisLatency tracks Redis operation roundtrip latency, the
	// coordination spine's health signal.
	RedisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervention_redis_roundtrip_latency_seconds",
		Help:    "Redis operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	// IdempotencyLockAcquired tracks idempotency locks acquired during
	// event dedup.
	IdempotencyLockAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intervention_idempotency_lock_acquired_total",
		Help: "Total number of idempotency locks acquired",
	})

	// IdempotencyLockExpired tracks locks that expired before a result was
	// stored (execute panicked or the process died mid-flight).
	IdempotencyLockExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intervention_idempotency_lock_expired_total",
		Help: "Total number of idempotency locks that expired without a result",
	})

	// EnrolledUsers tracks the number of users the registry currently
	// holds a live controller for.
	EnrolledUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intervention_enrolled_users",
		Help: "Current number of users with a live controller in the registry",
	})
)
