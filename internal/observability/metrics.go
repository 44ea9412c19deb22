// Package observability exposes Prometheus instrumentation for the
// moderation pipeline. Collectors are package-level, registered in init,
// and safe for concurrent use. Label cardinality is deliberately tiny:
// nothing here is labeled by guild or user.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// MessagesChecked counts inbound messages that reached the duplicate
	// check (bots and DMs excluded).
	MessagesChecked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stunlock_messages_checked_total",
		Help: "Total number of messages run through duplicate detection.",
	})

	// DuplicatesDetected counts messages whose fingerprint was already in
	// the registry.
	DuplicatesDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stunlock_duplicates_detected_total",
		Help: "Total number of duplicate-content detections.",
	})

	// Escalations counts mute escalations, split by trigger.
	Escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stunlock_escalations_total",
		Help: "Total number of mute escalations.",
	}, []string{"trigger"}) // "auto" | "manual"

	// Unmutes counts expired mutes cleared by the sweeper.
	Unmutes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stunlock_unmutes_total",
		Help: "Total number of mutes cleared after expiry.",
	})

	// StreakDecays counts streak-decay transitions applied by the sweeper.
	StreakDecays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stunlock_streak_decays_total",
		Help: "Total number of streak-decay transitions.",
	})

	// SweepErrors counts per-entry failures during sweeps. One entry's
	// failure never aborts the rest of the sweep.
	SweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stunlock_sweep_errors_total",
		Help: "Total number of per-entry sweep failures.",
	})

	// SweepDuration records how long a full sweep pass takes.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stunlock_sweep_duration_seconds",
		Help:    "Duration of decay-sweeper passes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		MessagesChecked,
		DuplicatesDetected,
		Escalations,
		Unmutes,
		StreakDecays,
		SweepErrors,
		SweepDuration,
	)
}
