package orchestrator

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/observability/metrics"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/store"
	"github.com/gorilla/mux"
)

type submitJobRequest struct {
	Scenarios []models.SimulationScenario `json:"scenarios"`
}

type clusterStatusResponse struct {
	Nodes   []models.NodeDescriptor `json:"nodes"`
	Primary string                  `json:"primary"`
}

// Router exposes the orchestrator's management API.
func (o *Orchestrator) Router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/jobs", o.handleSubmitJob).Methods("POST")
	api.HandleFunc("/jobs/{id}", o.handleGetJob).Methods("GET")
	api.HandleFunc("/cluster/status", o.handleClusterStatus).Methods("GET")

	router.HandleFunc("/health", o.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", metrics.Handler()).Methods("GET")
	return router
}

func (o *Orchestrator) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid job request", http.StatusBadRequest)
		return
	}

	jobID, err := o.SubmitTrainingJob(r.Context(), req.Scenarios)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (o *Orchestrator) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := o.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (o *Orchestrator) handleClusterStatus(w http.ResponseWriter, r *http.Request) {
	nodes, primary, err := o.ClusterStatus(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clusterStatusResponse{Nodes: nodes, Primary: primary})
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
