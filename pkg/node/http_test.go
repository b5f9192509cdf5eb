package node

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

func TestTrainEndpointRejectsBusyNode(t *testing.T) {
	n, _, _ := newTestNode(t, Options{}, 0.8)
	server := httptest.NewServer(n.Router())
	defer server.Close()

	n.mu.Lock()
	n.training = true
	n.mu.Unlock()

	resp, err := http.Post(server.URL+"/train", "application/json",
		strings.NewReader(`{"id":"job-http-1","scenarios":[{"gas_price_spike":0.5}]}`))
	if err != nil {
		t.Fatalf("POST /train: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestTrainEndpointRequiresJobID(t *testing.T) {
	n, _, _ := newTestNode(t, Options{}, 0.8)
	server := httptest.NewServer(n.Router())
	defer server.Close()

	resp, err := http.Post(server.URL+"/train", "application/json", strings.NewReader(`{"scenarios":[]}`))
	if err != nil {
		t.Fatalf("POST /train: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHealthEndpointReportsLoad(t *testing.T) {
	n, _, _ := newTestNode(t, Options{}, 0.8)
	server := httptest.NewServer(n.Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report models.HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode health report: %v", err)
	}
	if report.Load != 0.05 {
		t.Errorf("idle load = %.2f, want 0.05", report.Load)
	}
	if report.Status != models.NodeStatusActive {
		t.Errorf("status = %s, want %s", report.Status, models.NodeStatusActive)
	}
}

func TestModelSyncEndpoint(t *testing.T) {
	n, _, _ := newTestNode(t, Options{}, 0.8)
	server := httptest.NewServer(n.Router())
	defer server.Close()

	resp, err := http.Post(server.URL+"/model/sync", "application/json",
		strings.NewReader(`{"version":"v12"}`))
	if err != nil {
		t.Fatalf("POST /model/sync: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := n.ModelVersion(); got != "v12" {
		t.Errorf("model version = %s, want v12", got)
	}
}
