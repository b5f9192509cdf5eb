package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

// Router exposes the node's network surface consumed by the orchestrator.
func (n *Node) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/train", n.handleTrain).Methods("POST")
	router.HandleFunc("/health", n.handleHealth).Methods("GET")
	router.HandleFunc("/model/sync", n.handleModelSync).Methods("POST")
	router.HandleFunc("/metrics", metrics.Handler()).Methods("GET")
	return router
}

func (n *Node) handleTrain(w http.ResponseWriter, r *http.Request) {
	var job models.TrainingJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		http.Error(w, "invalid job descriptor", http.StatusBadRequest)
		return
	}
	if job.ID == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}

	if n.Training() {
		http.Error(w, ErrAlreadyTraining.Error(), http.StatusConflict)
		return
	}

	go func() {
		if err := n.HandleTrainingJob(context.Background(), job); err != nil && !errors.Is(err, ErrAlreadyTraining) {
			logger.Log.WithError(err).WithField("job_id", job.ID).Error("Training job failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID, "status": "accepted"})
}

func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := models.NodeStatusActive
	if n.Training() {
		status = models.NodeStatusTraining
	}

	report := models.HealthReport{
		Load:   n.CurrentLoad(),
		Memory: float64(memStats.Alloc) / (1024 * 1024),
		Status: status,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (n *Node) handleModelSync(w http.ResponseWriter, r *http.Request) {
	var req models.ModelSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid sync request", http.StatusBadRequest)
		return
	}
	n.SyncModel(req)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "synced", "version": req.Version})
}
