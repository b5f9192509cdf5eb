// Package node runs the local training loop for one region: batch training,
// validation, safety gating and signed checkpointing.
package node

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/adversarial"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/kafka"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/observability/metrics"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/store"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/validator"
)

var ErrAlreadyTraining = errors.New("node is already training a job")

// CheckpointAuditor records checkpoint metadata outside the in-memory ring,
// for postmortems and future training runs.
type CheckpointAuditor interface {
	RecordCheckpoint(ctx context.Context, nodeID string, checkpoint models.ModelCheckpoint) error
}

type Options struct {
	ID                 string
	Epochs             int
	BatchSize          int
	ValidationSplit    float64
	CheckpointInterval int
	CheckpointRetain   int
	MaxGradientNorm    float64
}

type Node struct {
	mu sync.Mutex

	id        string
	generator *adversarial.Generator
	validator *validator.Validator
	jobStore  store.Store
	producer  *kafka.Producer
	auditor   CheckpointAuditor

	epochs             int
	batchSize          int
	validationSplit    float64
	checkpointInterval int
	checkpointRetain   int
	maxGradientNorm    float64

	training     bool
	modelVersion string
	checkpoints  []models.ModelCheckpoint
}

// New builds a training node. Producer and auditor are optional; the store
// is not: per-epoch status reports are part of the node's contract.
func New(g *adversarial.Generator, v *validator.Validator, jobStore store.Store, producer *kafka.Producer, auditor CheckpointAuditor, opts Options) *Node {
	if opts.Epochs <= 0 {
		opts.Epochs = 50
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.ValidationSplit <= 0 || opts.ValidationSplit >= 1 {
		opts.ValidationSplit = 0.2
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = 10
	}
	if opts.CheckpointRetain <= 0 {
		opts.CheckpointRetain = 5
	}
	if opts.MaxGradientNorm <= 0 {
		opts.MaxGradientNorm = 10.0
	}
	return &Node{
		id:                 opts.ID,
		generator:          g,
		validator:          v,
		jobStore:           jobStore,
		producer:           producer,
		auditor:            auditor,
		epochs:             opts.Epochs,
		batchSize:          opts.BatchSize,
		validationSplit:    opts.ValidationSplit,
		checkpointInterval: opts.CheckpointInterval,
		checkpointRetain:   opts.CheckpointRetain,
		maxGradientNorm:    opts.MaxGradientNorm,
	}
}

func (n *Node) ID() string { return n.id }

// Training reports whether a job is currently running.
func (n *Node) Training() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.training
}

// Checkpoints returns a copy of the retained checkpoint ring, newest last.
func (n *Node) Checkpoints() []models.ModelCheckpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.ModelCheckpoint(nil), n.checkpoints...)
}

// HandleTrainingJob runs the full epoch loop for one job. A node trains one
// job at a time: a second submission is rejected without state change. The
// per-epoch safety check can cut a job short as a soft-stop, which is a
// completion, not a failure. Real errors mark the job failed, reset node
// state and propagate to the caller.
func (n *Node) HandleTrainingJob(ctx context.Context, job models.TrainingJob) (err error) {
	n.mu.Lock()
	if n.training {
		n.mu.Unlock()
		return ErrAlreadyTraining
	}
	n.training = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.training = false
		n.mu.Unlock()

		if err != nil && !errors.Is(err, ErrAlreadyTraining) {
			job.Status = models.JobStatusFailed
			job.ErrorMessage = err.Error()
			now := time.Now()
			job.CompletedAt = &now
			n.persistJob(ctx, job)
			metrics.ObserveJobCounts(0, 0, 0, 1)
		}
	}()

	started := time.Now()
	job.Status = models.JobStatusRunning
	job.AssignedNode = n.id
	job.StartedAt = &started
	n.persistJob(ctx, job)

	trainSet, valSet := splitScenarios(job.Scenarios, n.validationSplit)
	if len(trainSet) == 0 {
		return fmt.Errorf("job %s has no training scenarios", job.ID)
	}

	logger.Log.WithFields(map[string]interface{}{
		"job_id":     job.ID,
		"node_id":    n.id,
		"train_size": len(trainSet),
		"val_size":   len(valSet),
	}).Info("Training job started")

	for epoch := 1; epoch <= n.epochs; epoch++ {
		epochMetrics, trainErr := n.trainEpoch(trainSet, valSet)
		if trainErr != nil {
			return fmt.Errorf("epoch %d: %w", epoch, trainErr)
		}
		epochMetrics.EpochsCompleted = epoch

		safe := n.ValidateQuantumSafety(&epochMetrics)

		job.Metrics = &epochMetrics
		n.persistJob(ctx, job)

		if !safe {
			logger.Log.WithFields(map[string]interface{}{
				"job_id":       job.ID,
				"epoch":        epoch,
				"safety_score": epochMetrics.QuantumSafetyScore,
			}).Warn("Quantum safety below threshold, halting training early")
			break
		}
		if epochMetrics.GradientNorm > n.maxGradientNorm {
			logger.Log.WithFields(map[string]interface{}{
				"job_id":        job.ID,
				"epoch":         epoch,
				"gradient_norm": epochMetrics.GradientNorm,
			}).Warn("Gradient norm above ceiling, halting training early")
			break
		}

		if epoch%n.checkpointInterval == 0 {
			if cpErr := n.writeCheckpoint(ctx, job, epochMetrics); cpErr != nil {
				logger.Log.WithError(cpErr).WithField("job_id", job.ID).Error("Checkpoint write failed")
			}
		}
	}

	completed := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &completed
	n.persistJob(ctx, job)

	n.publishEvent(ctx, "job_completed", map[string]interface{}{
		"job_id":  job.ID,
		"node_id": n.id,
		"epochs":  job.Metrics.EpochsCompleted,
	})
	return nil
}

func (n *Node) trainEpoch(trainSet, valSet []models.SimulationScenario) (models.TrainingMetrics, error) {
	epochMetrics, err := n.generator.TrainOn(trainSet, 1, n.batchSize)
	if err != nil {
		return models.TrainingMetrics{}, err
	}

	if len(valSet) > 0 {
		valLoss, _, err := n.generator.Validate(valSet)
		if err != nil {
			return models.TrainingMetrics{}, err
		}
		epochMetrics.ValidationLoss = valLoss
	}

	epochMetrics.GradientNorm = l2Norm(n.generator.Gradients())
	return epochMetrics, nil
}

// ValidateQuantumSafety scores the current model state and stamps the score
// into the metrics. The soft-stop decision belongs to the caller.
func (n *Node) ValidateQuantumSafety(m *models.TrainingMetrics) bool {
	weights, err := n.generator.Weights()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to serialize model weights for safety check")
		m.QuantumSafetyScore = 0
		return false
	}
	result := n.validator.ValidateModelState(weights)
	m.QuantumSafetyScore = result.SafetyScore
	return result.IsValid
}

func (n *Node) writeCheckpoint(ctx context.Context, job models.TrainingJob, m models.TrainingMetrics) error {
	weights, err := n.generator.Weights()
	if err != nil {
		return fmt.Errorf("serialize weights: %w", err)
	}

	checkpoint := models.ModelCheckpoint{
		Version:   fmt.Sprintf("%s-epoch-%d", job.TargetModelVersion, m.EpochsCompleted),
		Timestamp: time.Now(),
		Weights:   weights,
		Metrics:   m,
		Signature: n.validator.SignModelState(weights),
	}

	n.mu.Lock()
	n.checkpoints = append(n.checkpoints, checkpoint)
	if len(n.checkpoints) > n.checkpointRetain {
		n.checkpoints = n.checkpoints[len(n.checkpoints)-n.checkpointRetain:]
	}
	n.mu.Unlock()

	if n.auditor != nil {
		if err := n.auditor.RecordCheckpoint(ctx, n.id, checkpoint); err != nil {
			logger.Log.WithError(err).WithField("version", checkpoint.Version).Warn("Checkpoint audit record failed")
		}
	}
	metrics.IncCheckpointsWritten()
	n.publishEvent(ctx, "checkpoint_created", map[string]interface{}{
		"job_id":  job.ID,
		"node_id": n.id,
		"version": checkpoint.Version,
	})
	return nil
}

// SyncModel accepts a model-version push from the orchestrator's primary.
func (n *Node) SyncModel(req models.ModelSyncRequest) {
	n.mu.Lock()
	n.modelVersion = req.Version
	n.mu.Unlock()

	logger.Log.WithFields(map[string]interface{}{
		"node_id": n.id,
		"version": req.Version,
	}).Info("Model version synchronized")
}

func (n *Node) ModelVersion() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.modelVersion
}

// CurrentLoad is the node's own self-reported load fraction. The
// orchestrator never invents this value.
func (n *Node) CurrentLoad() float64 {
	if n.Training() {
		return 0.9
	}
	return 0.05
}

func (n *Node) persistJob(ctx context.Context, job models.TrainingJob) {
	if err := n.jobStore.SaveJob(ctx, job); err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID).Error("Failed to persist job state")
	}
}

func (n *Node) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if n.producer == nil {
		return
	}
	if err := n.producer.PublishEvent(ctx, eventType, "training-node/"+n.id, data); err != nil {
		logger.Log.WithError(err).Warn("Failed to publish training event")
	}
}

// splitScenarios carves off the trailing fraction as the validation set.
func splitScenarios(scenarios []models.SimulationScenario, validationSplit float64) (trainSet, valSet []models.SimulationScenario) {
	cut := len(scenarios) - int(float64(len(scenarios))*validationSplit)
	if cut <= 0 {
		cut = len(scenarios)
	}
	return scenarios[:cut], scenarios[cut:]
}

func l2Norm(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	return math.Sqrt(sum)
}
