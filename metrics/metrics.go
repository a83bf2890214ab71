// Package metrics provides Prometheus metrics for the meeting pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// cyclesTotal counts run cycles.
	// Labels:
	//   - status: "ok" or "aborted"
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendawatch_cycles_total",
			Help: "Total number of run cycles",
		},
		[]string{"status"},
	)

	// meetingsDiscoveredTotal counts meetings created in the store.
	meetingsDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agendawatch_meetings_discovered_total",
			Help: "Total number of newly discovered meetings",
		},
	)

	// meetingOutcomesTotal counts how each processed meeting's summary was produced.
	// Labels:
	//   - outcome: "summarized", "agenda_unavailable", "download_failed",
	//     "extraction_failed", "summarizer_failed", "store_failed"
	meetingOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendawatch_meeting_outcomes_total",
			Help: "Processed meetings by outcome",
		},
		[]string{"outcome"},
	)

	// notificationsTotal counts notification dispatch attempts.
	// Labels:
	//   - status: "sent" or "failed"
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendawatch_notifications_total",
			Help: "Notification dispatch attempts by result",
		},
		[]string{"status"},
	)

	// summariesTotal counts summaries by the backend that produced them.
	// Labels:
	//   - backend: "capable" or "fallback"
	summariesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendawatch_summaries_total",
			Help: "Summaries produced by backend",
		},
		[]string{"backend"},
	)

	// stageDuration records the duration of each pipeline stage.
	// Buckets: 0.1s, 0.5s, 1s, 5s, 15s, 30s, 60s, 120s
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agendawatch_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(meetingsDiscoveredTotal)
	prometheus.MustRegister(meetingOutcomesTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(summariesTotal)
	prometheus.MustRegister(stageDuration)
}

// RecordCycle records a finished run cycle.
func RecordCycle(status string) {
	cyclesTotal.WithLabelValues(status).Inc()
}

// RecordDiscovered records one newly created meeting.
func RecordDiscovered() {
	meetingsDiscoveredTotal.Inc()
}

// RecordOutcome records the outcome of one processed meeting.
func RecordOutcome(outcome string) {
	meetingOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification records a notification attempt.
func RecordNotification(sent bool) {
	status := "sent"
	if !sent {
		status = "failed"
	}
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordSummary records which summarizer backend produced a summary.
func RecordSummary(backend string) {
	summariesTotal.WithLabelValues(backend).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, seconds float64) {
	stageDuration.WithLabelValues(stage).Observe(seconds)
}
