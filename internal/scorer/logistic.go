package scorer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Scorer is the trained-model contract: a fixed-order feature vector in,
// a probability in [0,1] out.
type Scorer interface {
	Score(features []float64) (float64, error)
}

// TrainConfig holds logistic regression training parameters.
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainConfig is used when config values are missing.
var DefaultTrainConfig = TrainConfig{Epochs: 500, LearningRate: 0.1, L2: 0.001}

// LogisticModel is a standardized logistic regression classifier. It stands
// in for an externally trained model; the runtime only depends on Scorer.
type LogisticModel struct {
	FeatureNames []string  `json:"feature_names,omitempty"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Score returns the probability of an up day for a feature vector.
func (m *LogisticModel) Score(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("scorer: got %d features, model expects %d", len(features), len(m.Weights))
	}
	z := m.Bias
	for i, v := range features {
		z += m.Weights[i] * m.standardize(i, v)
	}
	return sigmoid(z), nil
}

func (m *LogisticModel) standardize(i int, v float64) float64 {
	if m.Std[i] == 0 {
		return 0
	}
	return (v - m.Mean[i]) / m.Std[i]
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// Train fits a logistic regression on the feature table with full-batch
// gradient descent. Columns are standardized to zero mean / unit variance
// using training statistics that the model keeps for scoring.
func Train(X [][]float64, y []float64, cfg TrainConfig) (*LogisticModel, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("scorer: bad training table: %d rows, %d labels", len(X), len(y))
	}
	if cfg.Epochs <= 0 {
		cfg = DefaultTrainConfig
	}

	dim := len(X[0])
	n := float64(len(X))

	mean := make([]float64, dim)
	std := make([]float64, dim)
	for j := 0; j < dim; j++ {
		for _, row := range X {
			mean[j] += row[j]
		}
		mean[j] /= n
		for _, row := range X {
			d := row[j] - mean[j]
			std[j] += d * d
		}
		std[j] = math.Sqrt(std[j] / n)
	}

	m := &LogisticModel{
		Weights: make([]float64, dim),
		Mean:    mean,
		Std:     std,
	}

	grad := make([]float64, dim)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i, row := range X {
			z := m.Bias
			for j, v := range row {
				z += m.Weights[j] * m.standardize(j, v)
			}
			err := sigmoid(z) - y[i]
			for j, v := range row {
				grad[j] += err * m.standardize(j, v)
			}
			gradBias += err
		}
		for j := range m.Weights {
			m.Weights[j] -= cfg.LearningRate * (grad[j]/n + cfg.L2*m.Weights[j])
		}
		m.Bias -= cfg.LearningRate * gradBias / n
	}

	m.TrainedAt = time.Now()
	return m, nil
}

// Load reads a trained model from a JSON file.
func Load(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(m.Weights) == 0 || len(m.Weights) != len(m.Mean) || len(m.Weights) != len(m.Std) {
		return nil, fmt.Errorf("model %s: inconsistent dimensions", path)
	}
	return &m, nil
}

// Save writes the model to a JSON file.
func (m *LogisticModel) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Trainer adapts training to the backtest's model-factory contract: each
// fold trains a fresh model with the same configuration.
type Trainer struct {
	Config TrainConfig
	model  *LogisticModel
}

// Train fits a new model on the given fold.
func (t *Trainer) Train(X [][]float64, y []float64) error {
	m, err := Train(X, y, t.Config)
	if err != nil {
		return err
	}
	t.model = m
	return nil
}

// Score proxies to the most recently trained model.
func (t *Trainer) Score(features []float64) (float64, error) {
	if t.model == nil {
		return 0, fmt.Errorf("scorer: trainer has no fitted model")
	}
	return t.model.Score(features)
}
