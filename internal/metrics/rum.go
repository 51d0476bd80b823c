// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the SDK's self-observability counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LifecycleNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumkit_lifecycle_notifications_total",
		Help: "Total number of lifecycle bus notifications by kind",
	}, []string{"kind"})

	InternalFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumkit_internal_faults_total",
		Help: "Total number of recovered internal SDK faults by component",
	}, []string{"component"})

	MonitorReportsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rumkit_monitor_reports_dropped_total",
		Help: "Internal fault reports suppressed by the report budget",
	})

	RawEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumkit_raw_events_total",
		Help: "Total number of output events collected by type",
	}, []string{"type"})

	RequestsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumkit_requests_finalized_total",
		Help: "Instrumented requests finalized by outcome",
	}, []string{"outcome"}) // outcome=success|aborted|failed

	ViewUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rumkit_view_updates_total",
		Help: "Total number of view document versions emitted",
	})

	SinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumkit_sink_errors_total",
		Help: "Output events the sink failed to accept",
	}, []string{"sink"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rumkit_breaker_state",
		Help: "Circuit breaker state (1 for the current state)",
	}, []string{"name", "state"})

	BreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rumkit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"name", "reason"})
)

var breakerStates = []string{"closed", "open", "half-open"}

// IncLifecycleNotification records one notify call for kind.
func IncLifecycleNotification(kind string) {
	LifecycleNotificationsTotal.WithLabelValues(orUnknown(kind)).Inc()
}

// IncInternalFault records a recovered fault in component.
func IncInternalFault(component string) {
	InternalFaultsTotal.WithLabelValues(orUnknown(component)).Inc()
}

// IncMonitorReportDropped records a fault report suppressed by the budget.
func IncMonitorReportDropped() {
	MonitorReportsDroppedTotal.Inc()
}

// IncRawEvent records one collected output event of the given type.
func IncRawEvent(eventType string) {
	RawEventsTotal.WithLabelValues(orUnknown(eventType)).Inc()
}

// IncRequestFinalized records a finalized request outcome.
func IncRequestFinalized(outcome string) {
	RequestsFinalizedTotal.WithLabelValues(orUnknown(outcome)).Inc()
}

// IncViewUpdate records one emitted view document version.
func IncViewUpdate() {
	ViewUpdatesTotal.Inc()
}

// IncSinkError records a sink failure.
func IncSinkError(sink string) {
	SinkErrorsTotal.WithLabelValues(orUnknown(sink)).Inc()
}

// SetBreakerState marks state as the current state of breaker name.
func SetBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		BreakerState.WithLabelValues(name, s).Set(v)
	}
}

// IncBreakerTrip records a breaker opening.
func IncBreakerTrip(name, reason string) {
	BreakerTripsTotal.WithLabelValues(name, orUnknown(reason)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
