// Package orchestrator coordinates the regional training nodes: job
// distribution, health checking, leader election and model-version
// synchronization. All cross-actor state lives in the shared store; the
// orchestrator itself keeps only configuration and the cached primary id.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/config"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/kafka"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/observability/metrics"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/store"
	"github.com/google/uuid"
)

var ErrNoActiveNodes = errors.New("no active nodes available")

type Options struct {
	HealthCheckInterval time.Duration
	ModelSyncInterval   time.Duration
	RequestTimeout      time.Duration
	LoadCeiling         float64
}

type Orchestrator struct {
	mu sync.Mutex

	jobStore store.Store
	client   NodeClient
	producer *kafka.Producer

	healthInterval time.Duration
	syncInterval   time.Duration
	requestTimeout time.Duration
	loadCeiling    float64

	primaryID string
	stop      chan struct{}
	done      sync.WaitGroup
}

// New builds the orchestrator and registers one node descriptor per
// configured region, all initially offline until the first health sweep.
func New(ctx context.Context, jobStore store.Store, client NodeClient, producer *kafka.Producer, regions []config.RegionConfig, opts Options) (*Orchestrator, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("no regions configured")
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 30 * time.Second
	}
	if opts.ModelSyncInterval <= 0 {
		opts.ModelSyncInterval = 60 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.LoadCeiling <= 0 {
		opts.LoadCeiling = 0.8
	}

	o := &Orchestrator{
		jobStore:       jobStore,
		client:         client,
		producer:       producer,
		healthInterval: opts.HealthCheckInterval,
		syncInterval:   opts.ModelSyncInterval,
		requestTimeout: opts.RequestTimeout,
		loadCeiling:    opts.LoadCeiling,
		stop:           make(chan struct{}),
	}

	for _, region := range regions {
		descriptor := models.NodeDescriptor{
			ID:       region.ID,
			Name:     region.Name,
			Endpoint: region.Endpoint,
			Status:   models.NodeStatusOffline,
			Priority: region.Priority,
			Capacity: models.NodeCapacity{
				MaxBatchSize: region.MaxBatchSize,
				MemoryGB:     region.MemoryGB,
			},
		}
		if err := jobStore.SaveNode(ctx, descriptor); err != nil {
			return nil, fmt.Errorf("register node %s: %w", region.ID, err)
		}
	}
	return o, nil
}

// Start runs the initial health sweep, elects the first primary and launches
// the periodic loops. An empty active set at boot is fatal: an orchestrator
// with no reachable nodes cannot do anything useful.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runHealthChecks(ctx)
	if err := o.electPrimary(ctx); err != nil {
		return fmt.Errorf("initial leader election: %w", err)
	}

	o.done.Add(2)
	go o.healthLoop()
	go o.syncLoop()
	return nil
}

// Stop terminates the periodic loops. In-flight training on the nodes is
// unaffected; jobs have no mid-epoch cancellation contract.
func (o *Orchestrator) Stop() {
	close(o.stop)
	o.done.Wait()
}

// SubmitTrainingJob creates a pending job from the given scenarios and
// attempts immediate assignment. The job id is returned even when no node
// can take the job right now; the next health cycle retries.
func (o *Orchestrator) SubmitTrainingJob(ctx context.Context, scenarios []models.SimulationScenario) (string, error) {
	if len(scenarios) == 0 {
		return "", fmt.Errorf("a training job needs at least one scenario")
	}

	version, err := o.jobStore.GetModelVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("read model version: %w", err)
	}
	if version == "" {
		version = "v1"
	}

	job := models.TrainingJob{
		ID:                 uuid.New().String(),
		Scenarios:          scenarios,
		TargetModelVersion: version,
		Status:             models.JobStatusPending,
		CreatedAt:          time.Now(),
	}
	if err := o.jobStore.SaveJob(ctx, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}

	o.publishEvent(ctx, "job_submitted", map[string]interface{}{
		"job_id":    job.ID,
		"scenarios": len(scenarios),
	})

	if err := o.assignJob(ctx, job); err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID).Warn("Job left pending, no node available")
	}
	return job.ID, nil
}

// GetJob reads one job back from the shared store.
func (o *Orchestrator) GetJob(ctx context.Context, id string) (models.TrainingJob, error) {
	return o.jobStore.GetJob(ctx, id)
}

// ClusterStatus reports every known node plus the current primary.
func (o *Orchestrator) ClusterStatus(ctx context.Context) ([]models.NodeDescriptor, string, error) {
	nodes, err := o.jobStore.ListNodes(ctx)
	if err != nil {
		return nil, "", err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Priority < nodes[j].Priority })
	primary, err := o.jobStore.GetPrimaryNode(ctx)
	if err != nil {
		return nil, "", err
	}
	return nodes, primary, nil
}

// assignJob picks the least-loaded active node under the load ceiling and
// hands the job off. A handoff failure triggers node-failure handling, which
// requeues the job.
func (o *Orchestrator) assignJob(ctx context.Context, job models.TrainingJob) error {
	nodes, err := o.jobStore.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	var target *models.NodeDescriptor
	for i := range nodes {
		candidate := &nodes[i]
		if candidate.Status != models.NodeStatusActive {
			continue
		}
		if candidate.Capacity.CurrentLoad >= o.loadCeiling {
			continue
		}
		if target == nil || candidate.Capacity.CurrentLoad < target.Capacity.CurrentLoad {
			target = candidate
		}
	}
	if target == nil {
		return ErrNoActiveNodes
	}

	started := time.Now()
	job.Status = models.JobStatusRunning
	job.AssignedNode = target.ID
	job.StartedAt = &started
	if err := o.jobStore.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("persist assignment: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()
	if err := o.client.Train(callCtx, target.Endpoint, job); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"job_id":  job.ID,
			"node_id": target.ID,
		}).Error("Job handoff failed")
		o.handleNodeFailure(ctx, target.ID)
		return err
	}

	target.Status = models.NodeStatusTraining
	if err := o.jobStore.SaveNode(ctx, *target); err != nil {
		logger.Log.WithError(err).WithField("node_id", target.ID).Error("Failed to persist node status")
	}

	logger.Log.WithFields(map[string]interface{}{
		"job_id":  job.ID,
		"node_id": target.ID,
		"load":    target.Capacity.CurrentLoad,
	}).Info("Job assigned")

	o.publishEvent(ctx, "job_assigned", map[string]interface{}{
		"job_id":  job.ID,
		"node_id": target.ID,
	})
	return nil
}

// handleNodeFailure marks the node offline, requeues whatever it was
// running, attempts reassignment and re-elects if the primary fell over.
func (o *Orchestrator) handleNodeFailure(ctx context.Context, nodeID string) {
	node, err := o.jobStore.GetNode(ctx, nodeID)
	if err != nil {
		logger.Log.WithError(err).WithField("node_id", nodeID).Error("Failed to load failing node")
		return
	}
	node.Status = models.NodeStatusOffline
	if err := o.jobStore.SaveNode(ctx, node); err != nil {
		logger.Log.WithError(err).WithField("node_id", nodeID).Error("Failed to persist node failure")
	}

	logger.Log.WithField("node_id", nodeID).Warn("Node marked offline")

	jobs, err := o.jobStore.ListJobs(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list jobs during node failure")
		jobs = nil
	}
	for _, job := range jobs {
		if job.Status != models.JobStatusRunning || job.AssignedNode != nodeID {
			continue
		}
		job.Status = models.JobStatusPending
		job.AssignedNode = ""
		job.StartedAt = nil
		if err := o.jobStore.SaveJob(ctx, job); err != nil {
			logger.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to requeue job")
			continue
		}
		if err := o.assignJob(ctx, job); err != nil {
			logger.Log.WithError(err).WithField("job_id", job.ID).Warn("Requeued job left pending")
		}
	}

	o.mu.Lock()
	wasPrimary := o.primaryID == nodeID
	o.mu.Unlock()
	if wasPrimary {
		if err := o.electPrimary(ctx); err != nil {
			logger.Log.WithError(err).Error("Leader re-election failed, no active nodes")
		}
	}
}

// runHealthChecks probes every known node once and retries assignment for
// anything still pending.
func (o *Orchestrator) runHealthChecks(ctx context.Context) {
	nodes, err := o.jobStore.ListNodes(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list nodes for health check")
		return
	}

	var active, offline int
	for _, node := range nodes {
		callCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
		report, err := o.client.Health(callCtx, node.Endpoint)
		cancel()
		if err != nil {
			logger.Log.WithError(err).WithField("node_id", node.ID).Warn("Health check failed")
			o.handleNodeFailure(ctx, node.ID)
			offline++
			continue
		}

		node.Status = models.NodeStatusActive
		node.LastHeartbeat = time.Now()
		node.Capacity.CurrentLoad = report.Load
		if err := o.jobStore.SaveNode(ctx, node); err != nil {
			logger.Log.WithError(err).WithField("node_id", node.ID).Error("Failed to persist health update")
		}
		active++
	}
	metrics.ObserveNodeCounts(active, offline)

	o.reassignPending(ctx)
	o.observeJobGauges(ctx)
}

// reassignPending retries assignment for jobs parked by earlier cycles.
func (o *Orchestrator) reassignPending(ctx context.Context) {
	jobs, err := o.jobStore.ListJobs(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list jobs for reassignment")
		return
	}
	for _, job := range jobs {
		if job.Status != models.JobStatusPending {
			continue
		}
		if err := o.assignJob(ctx, job); err != nil {
			logger.Log.WithError(err).WithField("job_id", job.ID).Debug("Pending job still unassignable")
		}
	}
}

func (o *Orchestrator) observeJobGauges(ctx context.Context) {
	jobs, err := o.jobStore.ListJobs(ctx)
	if err != nil {
		return
	}
	var pending, running, completed, failed int
	for _, job := range jobs {
		switch job.Status {
		case models.JobStatusPending:
			pending++
		case models.JobStatusRunning:
			running++
		case models.JobStatusCompleted:
			completed++
		case models.JobStatusFailed:
			failed++
		}
	}
	metrics.ObserveJobCounts(pending, running, completed, failed)
}

// electPrimary picks the active node with the lowest configured priority.
// This is a deterministic tie-break, not a consensus protocol: a single
// orchestrator deployment is assumed and concurrent elections are out of
// scope.
func (o *Orchestrator) electPrimary(ctx context.Context) error {
	nodes, err := o.jobStore.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	var candidates []models.NodeDescriptor
	for _, node := range nodes {
		if node.Status == models.NodeStatusActive || node.Status == models.NodeStatusTraining {
			candidates = append(candidates, node)
		}
	}
	if len(candidates) == 0 {
		return ErrNoActiveNodes
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Priority < candidates[j].Priority })
	primary := candidates[0]

	if err := o.jobStore.SetPrimaryNode(ctx, primary.ID); err != nil {
		return fmt.Errorf("persist primary: %w", err)
	}
	o.mu.Lock()
	o.primaryID = primary.ID
	o.mu.Unlock()

	logger.Log.WithField("node_id", primary.ID).Info("Primary node elected")
	return nil
}

// runModelSync pushes the current model version to every active node. A
// per-node failure is logged and does not abort the rest of the fan-out.
func (o *Orchestrator) runModelSync(ctx context.Context) {
	o.mu.Lock()
	primary := o.primaryID
	o.mu.Unlock()
	if primary == "" {
		return
	}

	version, err := o.jobStore.GetModelVersion(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to read model version for sync")
		return
	}
	if version == "" {
		return
	}

	nodes, err := o.jobStore.ListNodes(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list nodes for model sync")
		return
	}

	req := models.ModelSyncRequest{Version: version, Timestamp: time.Now()}
	for _, node := range nodes {
		if node.Status != models.NodeStatusActive && node.Status != models.NodeStatusTraining {
			continue
		}

		// Idle nodes surface as syncing while the push is in flight.
		// Training nodes keep their status so job accounting stays intact.
		wasIdle := node.Status == models.NodeStatusActive
		if wasIdle {
			node.Status = models.NodeStatusSyncing
			if err := o.jobStore.SaveNode(ctx, node); err != nil {
				logger.Log.WithError(err).WithField("node_id", node.ID).Warn("Failed to mark node syncing")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
		err := o.client.SyncModel(callCtx, node.Endpoint, req)
		cancel()
		if err != nil {
			logger.Log.WithError(err).WithField("node_id", node.ID).Warn("Model sync push failed")
		}

		if wasIdle {
			node.Status = models.NodeStatusActive
			if err := o.jobStore.SaveNode(ctx, node); err != nil {
				logger.Log.WithError(err).WithField("node_id", node.ID).Warn("Failed to restore node status after sync")
			}
		}
	}
}

func (o *Orchestrator) healthLoop() {
	defer o.done.Done()
	ticker := time.NewTicker(o.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.runHealthChecks(context.Background())
		}
	}
}

func (o *Orchestrator) syncLoop() {
	defer o.done.Done()
	ticker := time.NewTicker(o.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.runModelSync(context.Background())
		}
	}
}

func (o *Orchestrator) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if o.producer == nil {
		return
	}
	if err := o.producer.PublishEvent(ctx, eventType, "orchestrator", data); err != nil {
		logger.Log.WithError(err).Warn("Failed to publish orchestrator event")
	}
}
