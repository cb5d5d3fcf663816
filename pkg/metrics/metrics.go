package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PartitionRole reports the controller-visible role of a partition actor:
	// 0 = inactive, 1 = follower, 2 = leader. Gauge rather than a label per
	// role so a single scrape reflects the current state without needing a
	// rate() query across a vec.
	PartitionRole = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_partition_role",
			Help: "Current controller-visible role of the partition (0=inactive, 1=follower, 2=leader)",
		},
		[]string{"node_id", "partition_id"},
	)

	PartitionTerm = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_partition_term",
			Help: "Current Raft term observed by the partition actor",
		},
		[]string{"node_id", "partition_id"},
	)

	PartitionHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_partition_healthy",
			Help: "Whether the partition's aggregate health supervisor reports healthy (1) or unhealthy (0)",
		},
		[]string{"node_id", "partition_id"},
	)

	ServicesInstalled = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_services_installed",
			Help: "Whether the current role's services are fully installed (1) or not (0)",
		},
		[]string{"node_id", "partition_id"},
	)

	ProcessingPaused = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_processing_paused",
			Help: "Whether stream processing is currently paused (1) or running (0)",
		},
		[]string{"node_id", "partition_id"},
	)

	DiskSpaceAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_disk_space_available",
			Help: "Whether the disk-space watcher last observed free space above its threshold (1) or not (0)",
		},
		[]string{"node_id", "partition_id"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitiond_transitions_total",
			Help: "Total role transitions executed by the transition engine, by target role and outcome",
		},
		[]string{"role", "outcome"},
	)

	TransitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partitiond_transition_duration_seconds",
			Help:    "Time to execute a full role transition (teardown + install)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	InstallFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_install_failures_total",
			Help: "Total number of install failures surfaced by the transition engine",
		},
	)

	StepDownsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_step_downs_total",
			Help: "Total number of times the actor called stepDown() on the Raft handle",
		},
	)

	StaleCompletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_stale_completions_total",
			Help: "Total number of transition completions dropped because the term had already advanced",
		},
	)

	SnapshotsTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_snapshots_triggered_total",
			Help: "Total number of snapshots forced via triggerSnapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PartitionRole,
		PartitionTerm,
		PartitionHealthy,
		ServicesInstalled,
		ProcessingPaused,
		DiskSpaceAvailable,
		TransitionsTotal,
		TransitionDuration,
		InstallFailuresTotal,
		StepDownsTotal,
		StaleCompletionsTotal,
		SnapshotsTriggeredTotal,
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
