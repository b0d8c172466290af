package mirror

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// lastSyncTimestamp is a Gauge that captures the timestamp of the last
	// successful sync
	lastSyncTimestamp *prometheus.GaugeVec
	// syncCount is a Counter vector of sync runs
	syncCount *prometheus.CounterVec
	// syncLatency is a Histogram vector that keeps track of sync run durations
	syncLatency *prometheus.HistogramVec
	// pruneFailures counts branches which could not be pruned
	pruneFailures *prometheus.CounterVec
	// skippedEvents counts events which did not pass the mirror policy
	skippedEvents *prometheus.CounterVec
)

// EnableMetrics will enable metrics collection for sync runs.
// Available metrics are...
//   - last_sync_timestamp - (tags: repo)
//     A Gauge that captures the Timestamp of the last successful sync per target.
//   - sync_count - (tags: repo,success)
//     A Counter for each sync run, tagged with the result (success=true|false)
//   - sync_latency_seconds - (tags: repo)
//     A Histogram that keeps track of the sync latency per target.
//   - prune_failures_total - (tags: repo)
//     A Counter of remote branches that could not be pruned.
//   - skipped_events_total - (tags: repo,reason)
//     A Counter of events which did not cause a sync.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	lastSyncTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_sync_timestamp",
		Help:      "Timestamp of the last successful sync",
	},
		[]string{
			// target project path
			"repo",
		},
	)

	syncCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sync_count",
		Help:      "Count of sync runs",
	},
		[]string{
			"repo",
			// Whether the run was successful or not
			"success",
		},
	)

	syncLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "sync_latency_seconds",
		Help:      "Latency for sync run",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	},
		[]string{"repo"},
	)

	pruneFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "prune_failures_total",
		Help:      "Count of remote branches which could not be pruned",
	},
		[]string{"repo"},
	)

	skippedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "skipped_events_total",
		Help:      "Count of events skipped by mirror policy",
	},
		[]string{"repo", "reason"},
	)

	registerer.MustRegister(
		lastSyncTimestamp,
		syncCount,
		syncLatency,
		pruneFailures,
		skippedEvents,
	)
}

// recordSync records a sync attempt by updating all the relevant metrics
func recordSync(repo string, success bool, start time.Time) {
	// if metrics not enabled return
	if lastSyncTimestamp == nil || syncCount == nil || syncLatency == nil {
		return
	}
	if success {
		lastSyncTimestamp.With(prometheus.Labels{
			"repo": repo,
		}).Set(float64(time.Now().Unix()))
	}
	syncCount.With(prometheus.Labels{
		"repo":    repo,
		"success": strconv.FormatBool(success),
	}).Inc()
	syncLatency.WithLabelValues(repo).Observe(time.Since(start).Seconds())
}

func recordPruneFailures(repo string, count int) {
	if pruneFailures == nil || count == 0 {
		return
	}
	pruneFailures.WithLabelValues(repo).Add(float64(count))
}

func recordSkip(repo, reason string) {
	if skippedEvents == nil {
		return
	}
	skippedEvents.WithLabelValues(repo, reason).Inc()
}
