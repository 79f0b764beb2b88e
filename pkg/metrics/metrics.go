package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the tracking and notification pipeline
var (
	TrackingPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_polls_total",
			Help: "Position feed polls by result (ok, error, empty)",
		},
		[]string{"result"},
	)

	TrackingActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_active_sessions",
			Help: "Number of orders currently being tracked",
		},
	)

	TrackingPositionsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_positions_emitted_total",
			Help: "Display positions produced by the smoother (snapped, interpolated)",
		},
		[]string{"kind"},
	)

	MilestonesFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_milestones_fired_total",
			Help: "Milestone transitions that won the check-and-set and were sent",
		},
		[]string{"milestone"},
	)

	PushMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_total",
			Help: "Push submissions by per-item receipt status (delivered, failed)",
		},
		[]string{"status"},
	)

	PushTokensPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_tokens_pruned_total",
			Help: "Device tokens cleared after the provider reported them unregistered",
		},
	)

	PushBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_batch_duration_seconds",
			Help:    "Duration of one provider batch submission",
			Buckets: prometheus.DefBuckets,
		},
	)

	LocationIngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_location_ingest_total",
			Help: "Driver position samples received by result (stored, stale, invalid)",
		},
		[]string{"result"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(
		TrackingPollsTotal,
		TrackingActiveSessions,
		TrackingPositionsEmittedTotal,
		MilestonesFiredTotal,
		PushMessagesTotal,
		PushTokensPrunedTotal,
		PushBatchDuration,
		LocationIngestTotal,
	)
}
