// Package observability exposes the control box's Prometheus metrics,
// directly grounded on the teacher's observability/metrics.go: package-level
// promauto vars, registered once at import time.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PhaseTransitions counts completed phase transitions by the index the
	// scheduler just entered.
	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlbox_phase_transitions_total",
		Help: "Total number of completed phase transitions",
	}, []string{"phase_index"})

	// CurrentPhase tracks the scheduler's active phase index.
	CurrentPhase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "controlbox_current_phase",
		Help: "Index of the currently active phase",
	})

	// QueueDepth tracks the mediator queue's pending event count.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "controlbox_queue_depth",
		Help: "Current number of pending events in the mediator queue",
	})

	// CloudCircuitState mirrors the cloud client's circuit breaker state
	// (0=closed, 1=half_open, 2=open), the control-box analog of the
	// teacher's SchedulerCircuitState.
	CloudCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "controlbox_cloud_circuit_state",
		Help: "Cloud client circuit breaker state (0=closed, 1=half_open, 2=open)",
	})

	// EmergencyPreemptions counts honored emergency pre-emptions.
	EmergencyPreemptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controlbox_emergency_preemptions_total",
		Help: "Total number of honored emergency vehicle pre-emptions",
	})

	// PedestrianButtonExtensions counts granted pedestrian-button green
	// extensions.
	PedestrianButtonExtensions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controlbox_pedestrian_button_extensions_total",
		Help: "Total number of granted pedestrian button green extensions",
	})

	// RFIDShortenings counts applied RFID green-time extensions for transit
	// priority.
	RFIDShortenings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "controlbox_rfid_extensions_total",
		Help: "Total number of applied RFID-triggered green time extensions",
	})

	// HardwareWriteErrors counts logged GPIO/PWM write failures.
	HardwareWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlbox_hardware_write_errors_total",
		Help: "Total number of hardware line write failures",
	}, []string{"outcome"}) // only "escalated" is recorded

	// CloudCallFailures counts cloud HTTP calls that ultimately failed after
	// exhausting retries, by endpoint key.
	CloudCallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlbox_cloud_call_failures_total",
		Help: "Total number of cloud calls that exhausted their retry budget",
	}, []string{"endpoint"})
)
