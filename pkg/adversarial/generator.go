// Package adversarial wraps a generator/discriminator pair that learns a
// distribution over market-stress scenarios. The numerical backend is opaque;
// only the adversarial training protocol lives here.
package adversarial

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

const (
	scenarioDim = 4
	noiseDim    = 4

	// PredictRealism returns this when the discriminator cannot be consulted.
	realismSafeDefault = 15.0
)

// Generator is shared between the training loop and the observation
// handlers, so every exported method takes mu before touching the
// models or the rng.
type Generator struct {
	mu            sync.Mutex
	heads         [scenarioDim]TrainableModel
	discriminator TrainableModel
	artifactDir   string
	rng           *rand.Rand
}

// NewGenerator builds the pair with fresh models. Saved models are written
// under artifactDir keyed by the caller-supplied path key.
func NewGenerator(artifactDir string) *Generator {
	g := &Generator{
		discriminator: newLogisticModel(scenarioDim, 0.1),
		artifactDir:   artifactDir,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i := range g.heads {
		g.heads[i] = newLogisticModel(noiseDim, 0.1)
	}
	return g
}

// TrainOn runs standard adversarial training: per epoch the discriminator
// sees one real and one synthetic batch, then the generator heads are
// trained while the discriminator stays frozen.
func (g *Generator) TrainOn(scenarios []models.SimulationScenario, epochs, batchSize int) (models.TrainingMetrics, error) {
	if len(scenarios) == 0 {
		return models.TrainingMetrics{}, fmt.Errorf("no scenarios to train on")
	}
	if epochs <= 0 {
		epochs = 1
	}
	if batchSize <= 0 || batchSize > len(scenarios) {
		batchSize = len(scenarios)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var metrics models.TrainingMetrics
	for epoch := 0; epoch < epochs; epoch++ {
		real := g.sampleBatch(scenarios, batchSize)
		noise := g.noiseBatch(batchSize)
		synthetic := g.synthesize(noise)

		realLoss, realAcc, err := g.discriminator.TrainOnBatch(vectors(real), constant(batchSize, 1))
		if err != nil {
			return metrics, fmt.Errorf("discriminator real batch: %w", err)
		}
		fakeLoss, fakeAcc, err := g.discriminator.TrainOnBatch(vectors(synthetic), constant(batchSize, 0))
		if err != nil {
			return metrics, fmt.Errorf("discriminator synthetic batch: %w", err)
		}

		// Generator step with the discriminator frozen: each head is pulled
		// toward the real scenarios the discriminator currently rates as
		// most authentic.
		genLoss, err := g.trainHeads(noise, real)
		if err != nil {
			return metrics, fmt.Errorf("generator step: %w", err)
		}

		metrics = models.TrainingMetrics{
			Loss:            (realLoss + fakeLoss) / 2,
			Accuracy:        (realAcc + fakeAcc) / 2,
			EpochsCompleted: epoch + 1,
		}

		logger.Log.WithFields(map[string]interface{}{
			"epoch":              epoch + 1,
			"discriminator_loss": metrics.Loss,
			"discriminator_acc":  metrics.Accuracy,
			"generator_loss":     genLoss,
		}).Debug("Adversarial epoch complete")
	}
	return metrics, nil
}

func (g *Generator) trainHeads(noise [][]float64, real []models.SimulationScenario) (float64, error) {
	best, err := g.mostRealistic(real)
	if err != nil {
		return 0, err
	}
	target := best.Vector()

	var total float64
	for i, head := range g.heads {
		loss, _, err := head.TrainOnBatch(noise, constant(len(noise), target[i]))
		if err != nil {
			return 0, err
		}
		total += loss
	}
	return total / scenarioDim, nil
}

func (g *Generator) mostRealistic(scenarios []models.SimulationScenario) (models.SimulationScenario, error) {
	best := scenarios[0]
	bestScore := -1.0
	for _, scenario := range scenarios {
		score, err := g.discriminator.Predict(scenario.Vector())
		if err != nil {
			return best, err
		}
		if score > bestScore {
			bestScore = score
			best = scenario
		}
	}
	return best, nil
}

// Sample draws count fresh scenarios from the generator heads.
func (g *Generator) Sample(count int) []models.SimulationScenario {
	if count <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.synthesize(g.noiseBatch(count))
}

// Validate runs the discriminator over held-out real scenarios.
func (g *Generator) Validate(scenarios []models.SimulationScenario) (loss, accuracy float64, err error) {
	if len(scenarios) == 0 {
		return 0, 0, fmt.Errorf("no validation scenarios")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.discriminator.Validate(vectors(scenarios), constant(len(scenarios), 1))
}

// PredictRealism scores a candidate scenario with the discriminator alone,
// as a percentage. Internal failures yield the safe default instead of
// propagating: this sits on the admission hot path.
func (g *Generator) PredictRealism(candidate models.SimulationScenario) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("panic", r).Error("Realism prediction panicked, returning safe default")
			score = realismSafeDefault
		}
	}()

	g.mu.Lock()
	defer g.mu.Unlock()

	prediction, err := g.discriminator.Predict(candidate.Vector())
	if err != nil {
		logger.Log.WithError(err).Warn("Realism prediction failed, returning safe default")
		return realismSafeDefault
	}
	return prediction * 100
}

// Gradients concatenates the latest gradients of both sub-models.
func (g *Generator) Gradients() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	grads := append([]float64(nil), g.discriminator.GetGradients()...)
	for _, head := range g.heads {
		grads = append(grads, head.GetGradients()...)
	}
	return grads
}

type modelArtifact struct {
	Discriminator json.RawMessage   `json:"discriminator"`
	Heads         []json.RawMessage `json:"heads"`
	SavedAt       time.Time         `json:"saved_at"`
}

// Weights serializes both sub-models into one opaque blob for checkpointing.
func (g *Generator) Weights() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	disc, err := g.discriminator.GetWeights()
	if err != nil {
		return nil, err
	}
	artifact := modelArtifact{Discriminator: disc, SavedAt: time.Now().UTC()}
	for _, head := range g.heads {
		w, err := head.GetWeights()
		if err != nil {
			return nil, err
		}
		artifact.Heads = append(artifact.Heads, w)
	}
	return json.Marshal(artifact)
}

// SetWeights restores both sub-models from a checkpoint blob.
func (g *Generator) SetWeights(blob []byte) error {
	var artifact modelArtifact
	if err := json.Unmarshal(blob, &artifact); err != nil {
		return fmt.Errorf("decode model artifact: %w", err)
	}
	if len(artifact.Heads) != scenarioDim {
		return fmt.Errorf("expected %d generator heads, got %d", scenarioDim, len(artifact.Heads))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.discriminator.SetWeights(artifact.Discriminator); err != nil {
		return err
	}
	for i, head := range g.heads {
		if err := head.SetWeights(artifact.Heads[i]); err != nil {
			return err
		}
	}
	return nil
}

// SaveModel persists both sub-models under the given path key.
func (g *Generator) SaveModel(pathKey string) error {
	blob, err := g.Weights()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(g.artifactDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(g.artifactDir, pathKey+".json")
	return os.WriteFile(path, blob, 0o644)
}

// LoadModel restores both sub-models from the given path key.
func (g *Generator) LoadModel(pathKey string) error {
	path := filepath.Join(g.artifactDir, pathKey+".json")
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return g.SetWeights(blob)
}

func (g *Generator) synthesize(noise [][]float64) []models.SimulationScenario {
	scenarios := make([]models.SimulationScenario, len(noise))
	for i, sample := range noise {
		var out [scenarioDim]float64
		for j, head := range g.heads {
			v, err := head.Predict(sample)
			if err != nil {
				v = 0
			}
			out[j] = clamp01(v)
		}
		scenarios[i] = models.SimulationScenario{
			LiquidityShock:     out[0],
			GasPriceSpike:      out[1],
			CompetitorActivity: out[2],
			MarketVolatility:   out[3],
		}
	}
	return scenarios
}

func (g *Generator) noiseBatch(count int) [][]float64 {
	batch := make([][]float64, count)
	for i := range batch {
		sample := make([]float64, noiseDim)
		for j := range sample {
			sample[j] = g.rng.NormFloat64()
		}
		batch[i] = sample
	}
	return batch
}

func (g *Generator) sampleBatch(scenarios []models.SimulationScenario, size int) []models.SimulationScenario {
	batch := make([]models.SimulationScenario, size)
	for i := range batch {
		batch[i] = scenarios[g.rng.Intn(len(scenarios))]
	}
	return batch
}

func vectors(scenarios []models.SimulationScenario) [][]float64 {
	out := make([][]float64, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Vector()
	}
	return out
}

func constant(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
