package adversarial

import (
	"encoding/json"
	"fmt"
	"math"
)

// TrainableModel is the narrow interface this package needs from a numerical
// backend. Any implementation can be substituted; only the training protocol
// is constrained by the generator.
type TrainableModel interface {
	TrainOnBatch(inputs [][]float64, targets []float64) (loss, accuracy float64, err error)
	Validate(inputs [][]float64, targets []float64) (loss, accuracy float64, err error)
	Predict(input []float64) (float64, error)
	GetWeights() ([]byte, error)
	SetWeights(blob []byte) error
	GetGradients() []float64
}

// logisticModel is a single sigmoid unit trained by gradient descent. It is
// deliberately small: the pipeline treats the model as an opaque trainable
// unit and never depends on its internals.
type logisticModel struct {
	weights       []float64
	bias          float64
	learningRate  float64
	lastGradients []float64
}

type logisticWeights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

func newLogisticModel(featureCount int, learningRate float64) *logisticModel {
	return &logisticModel{
		weights:      make([]float64, featureCount),
		learningRate: learningRate,
	}
}

func (m *logisticModel) TrainOnBatch(inputs [][]float64, targets []float64) (float64, float64, error) {
	if len(inputs) == 0 || len(inputs) != len(targets) {
		return 0, 0, fmt.Errorf("batch size mismatch: %d inputs, %d targets", len(inputs), len(targets))
	}

	n := float64(len(inputs))
	grad := make([]float64, len(m.weights))
	var biasGrad float64
	for i, input := range inputs {
		prediction := sigmoid(dot(m.weights, input) + m.bias)
		diff := prediction - targets[i]
		for j := range m.weights {
			grad[j] += diff * input[j]
		}
		biasGrad += diff
	}
	for j := range m.weights {
		m.weights[j] -= m.learningRate * grad[j] / n
	}
	m.bias -= m.learningRate * biasGrad / n
	m.lastGradients = append(append([]float64(nil), grad...), biasGrad)

	loss, accuracy, err := m.Validate(inputs, targets)
	return loss, accuracy, err
}

func (m *logisticModel) Validate(inputs [][]float64, targets []float64) (float64, float64, error) {
	if len(inputs) == 0 || len(inputs) != len(targets) {
		return 0, 0, fmt.Errorf("batch size mismatch: %d inputs, %d targets", len(inputs), len(targets))
	}

	var loss float64
	var correct int
	for i, input := range inputs {
		prediction := sigmoid(dot(m.weights, input) + m.bias)
		loss += -targets[i]*math.Log(prediction+1e-9) - (1-targets[i])*math.Log(1-prediction+1e-9)
		if (prediction >= 0.5) == (targets[i] >= 0.5) {
			correct++
		}
	}
	loss /= float64(len(inputs))
	accuracy := float64(correct) / float64(len(inputs))
	return loss, accuracy, nil
}

func (m *logisticModel) Predict(input []float64) (float64, error) {
	if len(input) != len(m.weights) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.weights), len(input))
	}
	return sigmoid(dot(m.weights, input) + m.bias), nil
}

func (m *logisticModel) GetWeights() ([]byte, error) {
	return json.Marshal(logisticWeights{Bias: m.bias, Coefficients: m.weights})
}

func (m *logisticModel) SetWeights(blob []byte) error {
	var w logisticWeights
	if err := json.Unmarshal(blob, &w); err != nil {
		return fmt.Errorf("decode weights: %w", err)
	}
	m.bias = w.Bias
	m.weights = w.Coefficients
	return nil
}

func (m *logisticModel) GetGradients() []float64 {
	return m.lastGradients
}

func dot(weights, input []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(input); i++ {
		sum += weights[i] * input[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
