package analyzer

import (
	"encoding/json"
	"net/http"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

type observeRequest struct {
	ChainID     int64                      `json:"chain_id"`
	Transaction models.ObservedTransaction `json:"transaction"`
}

type observeResponse struct {
	Plans []models.MitigationPlan `json:"plans"`
}

// ObserveHandler accepts one observed transaction and returns any
// mitigation plans derived from it.
func (a *Analyzer) ObserveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req observeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid observation", http.StatusBadRequest)
			return
		}
		if req.Transaction.Hash == "" {
			http.Error(w, "transaction hash required", http.StatusBadRequest)
			return
		}

		plans, err := a.Observe(r.Context(), req.Transaction, req.ChainID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(observeResponse{Plans: plans})
	}
}
