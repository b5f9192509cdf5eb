package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/httpclient"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

// NodeClient abstracts the node network endpoints so tests can stand in
// fakes without a listener.
type NodeClient interface {
	Train(ctx context.Context, endpoint string, job models.TrainingJob) error
	Health(ctx context.Context, endpoint string) (models.HealthReport, error)
	SyncModel(ctx context.Context, endpoint string, req models.ModelSyncRequest) error
}

const (
	healthAttempts   = 2
	healthRetryDelay = 250 * time.Millisecond
)

type httpNodeClient struct {
	client *http.Client
}

// NewNodeClient builds the HTTP client used for all node calls. Every call
// carries the given timeout; a node that neither answers nor times out
// within it counts as failed for that cycle.
func NewNodeClient(timeout time.Duration) NodeClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpNodeClient{client: httpclient.New(timeout)}
}

func (c *httpNodeClient) Train(ctx context.Context, endpoint string, job models.TrainingJob) error {
	return c.post(ctx, endpoint+"/train", job)
}

func (c *httpNodeClient) Health(ctx context.Context, endpoint string) (models.HealthReport, error) {
	var report models.HealthReport
	err := httpclient.Retry(ctx, healthAttempts, healthRetryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if httpclient.IsRetriable(err) {
				return err
			}
			return fmt.Errorf("health check failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("health check returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return fmt.Errorf("malformed health response: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.HealthReport{}, err
	}
	return report, nil
}

func (c *httpNodeClient) SyncModel(ctx context.Context, endpoint string, syncReq models.ModelSyncRequest) error {
	return c.post(ctx, endpoint+"/model/sync", syncReq)
}

func (c *httpNodeClient) post(ctx context.Context, url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}
