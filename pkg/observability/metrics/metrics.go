package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
)

var (
	jobsPending        atomic.Int64
	jobsRunning        atomic.Int64
	jobsCompleted      atomic.Int64
	jobsFailed         atomic.Int64
	nodesActive        atomic.Int64
	nodesOffline       atomic.Int64
	checkpointsWritten atomic.Int64
	alertsRaised       atomic.Int64
	remediationsRun    atomic.Int64
	cacheHitRateMilli  atomic.Int64
)

func Init() {}

func ObserveJobCounts(pending, running, completed, failed int) {
	jobsPending.Store(int64(pending))
	jobsRunning.Store(int64(running))
	jobsCompleted.Store(int64(completed))
	jobsFailed.Store(int64(failed))
}

func ObserveNodeCounts(active, offline int) {
	nodesActive.Store(int64(active))
	nodesOffline.Store(int64(offline))
}

func IncCheckpointsWritten() {
	checkpointsWritten.Add(1)
}

func IncAlertsRaised() {
	alertsRaised.Add(1)
}

func IncRemediationsRun() {
	remediationsRun.Add(1)
}

// ObserveCacheHitRate stores the Merkle cache hit rate scaled to millis so it
// survives the atomic integer representation.
func ObserveCacheHitRate(rate float64) {
	if math.IsNaN(rate) {
		rate = 0
	}
	cacheHitRateMilli.Store(int64(rate * 1000))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP arbitragex_training_jobs_pending Number of training jobs awaiting assignment.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_training_jobs_pending gauge\n")
	fmt.Fprintf(w, "arbitragex_training_jobs_pending %d\n", jobsPending.Load())

	fmt.Fprintf(w, "# HELP arbitragex_training_jobs_running Number of training jobs currently assigned to a node.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_training_jobs_running gauge\n")
	fmt.Fprintf(w, "arbitragex_training_jobs_running %d\n", jobsRunning.Load())

	fmt.Fprintf(w, "# HELP arbitragex_training_jobs_completed_total Number of training jobs completed since start.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_training_jobs_completed_total gauge\n")
	fmt.Fprintf(w, "arbitragex_training_jobs_completed_total %d\n", jobsCompleted.Load())

	fmt.Fprintf(w, "# HELP arbitragex_training_jobs_failed_total Number of training jobs failed since start.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_training_jobs_failed_total gauge\n")
	fmt.Fprintf(w, "arbitragex_training_jobs_failed_total %d\n", jobsFailed.Load())

	fmt.Fprintf(w, "# HELP arbitragex_training_nodes_active Number of nodes that passed the latest health cycle.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_training_nodes_active gauge\n")
	fmt.Fprintf(w, "arbitragex_training_nodes_active %d\n", nodesActive.Load())

	fmt.Fprintf(w, "# HELP arbitragex_training_nodes_offline Number of nodes marked offline.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_training_nodes_offline gauge\n")
	fmt.Fprintf(w, "arbitragex_training_nodes_offline %d\n", nodesOffline.Load())

	fmt.Fprintf(w, "# HELP arbitragex_model_checkpoints_written_total Number of signed model checkpoints written.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_model_checkpoints_written_total counter\n")
	fmt.Fprintf(w, "arbitragex_model_checkpoints_written_total %d\n", checkpointsWritten.Load())

	fmt.Fprintf(w, "# HELP arbitragex_integrity_alerts_raised_total Number of performance alerts raised by the integrity validator.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_integrity_alerts_raised_total counter\n")
	fmt.Fprintf(w, "arbitragex_integrity_alerts_raised_total %d\n", alertsRaised.Load())

	fmt.Fprintf(w, "# HELP arbitragex_integrity_remediations_total Number of automated remediations applied.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_integrity_remediations_total counter\n")
	fmt.Fprintf(w, "arbitragex_integrity_remediations_total %d\n", remediationsRun.Load())

	fmt.Fprintf(w, "# HELP arbitragex_merkle_cache_hit_rate_milli Merkle cache hit rate scaled by 1000.\n")
	fmt.Fprintf(w, "# TYPE arbitragex_merkle_cache_hit_rate_milli gauge\n")
	fmt.Fprintf(w, "arbitragex_merkle_cache_hit_rate_milli %d\n", cacheHitRateMilli.Load())
}

func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WritePrometheus(w)
	}
}
