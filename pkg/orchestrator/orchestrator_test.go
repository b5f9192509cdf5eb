package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/config"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/store"
)

type fakeNodeClient struct {
	mu sync.Mutex

	loads      map[string]float64 // endpoint -> reported load
	unhealthy  map[string]bool    // endpoint -> health error
	trainFails map[string]bool    // endpoint -> handoff error
	trained    map[string][]string
	synced     map[string][]string
	syncHook   func(endpoint string)
}

func newFakeNodeClient() *fakeNodeClient {
	return &fakeNodeClient{
		loads:      make(map[string]float64),
		unhealthy:  make(map[string]bool),
		trainFails: make(map[string]bool),
		trained:    make(map[string][]string),
		synced:     make(map[string][]string),
	}
}

func (c *fakeNodeClient) Train(ctx context.Context, endpoint string, job models.TrainingJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trainFails[endpoint] {
		return errors.New("connection refused")
	}
	c.trained[endpoint] = append(c.trained[endpoint], job.ID)
	return nil
}

func (c *fakeNodeClient) Health(ctx context.Context, endpoint string) (models.HealthReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unhealthy[endpoint] {
		return models.HealthReport{}, errors.New("connection refused")
	}
	return models.HealthReport{Load: c.loads[endpoint], Status: models.NodeStatusActive}, nil
}

func (c *fakeNodeClient) SyncModel(ctx context.Context, endpoint string, req models.ModelSyncRequest) error {
	c.mu.Lock()
	c.synced[endpoint] = append(c.synced[endpoint], req.Version)
	hook := c.syncHook
	c.mu.Unlock()
	if hook != nil {
		hook(endpoint)
	}
	return nil
}

func (c *fakeNodeClient) trainedJobs(endpoint string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.trained[endpoint]...)
}

func testRegions() []config.RegionConfig {
	return []config.RegionConfig{
		{ID: "us-east-1", Name: "US East", Endpoint: "http://us-east", Priority: 1},
		{ID: "eu-west-1", Name: "EU West", Endpoint: "http://eu-west", Priority: 2},
		{ID: "ap-southeast-1", Name: "AP Southeast", Endpoint: "http://ap-southeast", Priority: 3},
	}
}

func newTestOrchestrator(t *testing.T, client NodeClient) (*Orchestrator, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	o, err := New(context.Background(), memStore, client, nil, testRegions(), Options{
		HealthCheckInterval: time.Hour,
		ModelSyncInterval:   time.Hour,
		RequestTimeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, memStore
}

func TestNewRegistersRegionsOffline(t *testing.T) {
	_, memStore := newTestOrchestrator(t, newFakeNodeClient())

	nodes, err := memStore.ListNodes(context.Background())
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("registered nodes = %d, want 3", len(nodes))
	}
	for _, node := range nodes {
		if node.Status != models.NodeStatusOffline {
			t.Errorf("node %s status = %s, want %s before first sweep", node.ID, node.Status, models.NodeStatusOffline)
		}
	}
}

func TestNewRejectsEmptyRegionList(t *testing.T) {
	_, err := New(context.Background(), store.NewMemoryStore(), newFakeNodeClient(), nil, nil, Options{})
	if err == nil {
		t.Fatal("expected error for empty region list")
	}
}

func TestStartElectsLowestPriorityActive(t *testing.T) {
	client := newFakeNodeClient()
	o, memStore := newTestOrchestrator(t, client)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop()

	primary, err := memStore.GetPrimaryNode(context.Background())
	if err != nil {
		t.Fatalf("GetPrimaryNode: %v", err)
	}
	if primary != "us-east-1" {
		t.Errorf("primary = %s, want us-east-1 (lowest priority)", primary)
	}
}

func TestStartFailsWithNoReachableNodes(t *testing.T) {
	client := newFakeNodeClient()
	for _, region := range testRegions() {
		client.unhealthy[region.Endpoint] = true
	}
	o, _ := newTestOrchestrator(t, client)

	if err := o.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with every node unreachable")
	}
}

func TestSubmitAssignsLeastLoadedNode(t *testing.T) {
	client := newFakeNodeClient()
	client.loads["http://us-east"] = 0.7
	client.loads["http://eu-west"] = 0.1
	client.loads["http://ap-southeast"] = 0.4
	o, memStore := newTestOrchestrator(t, client)

	ctx := context.Background()
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		t.Fatalf("electPrimary: %v", err)
	}

	scenarios := []models.SimulationScenario{{GasPriceSpike: 0.9}}
	jobID, err := o.SubmitTrainingJob(ctx, scenarios)
	if err != nil {
		t.Fatalf("SubmitTrainingJob: %v", err)
	}

	if got := client.trainedJobs("http://eu-west"); len(got) != 1 || got[0] != jobID {
		t.Errorf("eu-west trained %v, want [%s]", got, jobID)
	}
	if got := client.trainedJobs("http://us-east"); len(got) != 0 {
		t.Errorf("us-east trained %v, want none", got)
	}

	job, err := memStore.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != models.JobStatusRunning || job.AssignedNode != "eu-west-1" {
		t.Errorf("job = %s on %s, want running on eu-west-1", job.Status, job.AssignedNode)
	}
	if job.TargetModelVersion == "" {
		t.Error("job missing target model version")
	}
}

func TestSubmitRejectsEmptyScenarios(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeNodeClient())
	if _, err := o.SubmitTrainingJob(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty scenario list")
	}
}

func TestSubmitParksJobWhenClusterSaturated(t *testing.T) {
	client := newFakeNodeClient()
	for _, region := range testRegions() {
		client.loads[region.Endpoint] = 0.95
	}
	o, memStore := newTestOrchestrator(t, client)

	ctx := context.Background()
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		t.Fatalf("electPrimary: %v", err)
	}

	jobID, err := o.SubmitTrainingJob(ctx, []models.SimulationScenario{{MarketVolatility: 0.3}})
	if err != nil {
		t.Fatalf("SubmitTrainingJob: %v", err)
	}

	job, _ := memStore.GetJob(ctx, jobID)
	if job.Status != models.JobStatusPending {
		t.Fatalf("job status = %s, want pending on saturated cluster", job.Status)
	}

	// a node frees up: the next health cycle picks the parked job back up
	client.mu.Lock()
	client.loads["http://ap-southeast"] = 0.2
	client.mu.Unlock()
	o.runHealthChecks(ctx)

	job, _ = memStore.GetJob(ctx, jobID)
	if job.Status != models.JobStatusRunning || job.AssignedNode != "ap-southeast-1" {
		t.Errorf("job = %s on %q, want running on ap-southeast-1", job.Status, job.AssignedNode)
	}
}

func TestNodeFailureRequeuesAndReassigns(t *testing.T) {
	client := newFakeNodeClient()
	client.loads["http://us-east"] = 0.1
	client.loads["http://eu-west"] = 0.3
	client.loads["http://ap-southeast"] = 0.5
	o, memStore := newTestOrchestrator(t, client)

	ctx := context.Background()
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		t.Fatalf("electPrimary: %v", err)
	}

	jobID, err := o.SubmitTrainingJob(ctx, []models.SimulationScenario{{LiquidityShock: 0.6}})
	if err != nil {
		t.Fatalf("SubmitTrainingJob: %v", err)
	}
	if got := client.trainedJobs("http://us-east"); len(got) != 1 {
		t.Fatalf("us-east trained %v, want the submitted job", got)
	}

	// us-east (also the primary) dies
	client.mu.Lock()
	client.unhealthy["http://us-east"] = true
	client.mu.Unlock()
	o.runHealthChecks(ctx)

	node, _ := memStore.GetNode(ctx, "us-east-1")
	if node.Status != models.NodeStatusOffline {
		t.Errorf("failed node status = %s, want %s", node.Status, models.NodeStatusOffline)
	}

	job, _ := memStore.GetJob(ctx, jobID)
	if job.Status != models.JobStatusRunning || job.AssignedNode != "eu-west-1" {
		t.Errorf("job = %s on %q, want reassigned to eu-west-1", job.Status, job.AssignedNode)
	}

	primary, _ := memStore.GetPrimaryNode(ctx)
	if primary != "eu-west-1" {
		t.Errorf("primary = %s after failover, want eu-west-1", primary)
	}
}

func TestModelSyncFansOutToActiveNodes(t *testing.T) {
	client := newFakeNodeClient()
	client.unhealthy["http://ap-southeast"] = true
	o, memStore := newTestOrchestrator(t, client)

	ctx := context.Background()
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		t.Fatalf("electPrimary: %v", err)
	}
	if err := memStore.SetModelVersion(ctx, "v42"); err != nil {
		t.Fatalf("SetModelVersion: %v", err)
	}

	o.runModelSync(ctx)

	client.mu.Lock()
	defer client.mu.Unlock()
	if got := client.synced["http://us-east"]; len(got) != 1 || got[0] != "v42" {
		t.Errorf("us-east synced %v, want [v42]", got)
	}
	if got := client.synced["http://eu-west"]; len(got) != 1 {
		t.Errorf("eu-west synced %v, want one push", got)
	}
	if got := client.synced["http://ap-southeast"]; len(got) != 0 {
		t.Errorf("offline node received sync pushes: %v", got)
	}
}

func TestModelSyncMarksIdleNodesSyncing(t *testing.T) {
	client := newFakeNodeClient()
	o, memStore := newTestOrchestrator(t, client)

	ctx := context.Background()
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		t.Fatalf("electPrimary: %v", err)
	}
	if err := memStore.SetModelVersion(ctx, "v7"); err != nil {
		t.Fatalf("SetModelVersion: %v", err)
	}

	statuses := make(map[string]string)
	client.syncHook = func(endpoint string) {
		nodes, err := memStore.ListNodes(ctx)
		if err != nil {
			t.Errorf("ListNodes during sync: %v", err)
			return
		}
		for _, node := range nodes {
			if node.Endpoint == endpoint {
				statuses[endpoint] = node.Status
			}
		}
	}

	o.runModelSync(ctx)

	for endpoint, status := range statuses {
		if status != models.NodeStatusSyncing {
			t.Errorf("node %s status during push = %s, want %s", endpoint, status, models.NodeStatusSyncing)
		}
	}
	if len(statuses) != 3 {
		t.Errorf("observed %d pushes, want 3", len(statuses))
	}

	nodes, err := memStore.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	for _, node := range nodes {
		if node.Status != models.NodeStatusActive {
			t.Errorf("node %s status after sync = %s, want %s", node.ID, node.Status, models.NodeStatusActive)
		}
	}
}

func TestClusterStatusSortedByPriority(t *testing.T) {
	client := newFakeNodeClient()
	o, _ := newTestOrchestrator(t, client)

	ctx := context.Background()
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		t.Fatalf("electPrimary: %v", err)
	}

	nodes, primary, err := o.ClusterStatus(ctx)
	if err != nil {
		t.Fatalf("ClusterStatus: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].Priority > nodes[i].Priority {
			t.Errorf("nodes not sorted by priority: %v before %v", nodes[i-1].Priority, nodes[i].Priority)
		}
	}
	if primary != "us-east-1" {
		t.Errorf("primary = %s, want us-east-1", primary)
	}
}
