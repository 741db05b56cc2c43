package backtest

import (
	"fmt"
	"sort"
)

// Trainer is the model contract for the walk-forward sweep: train on a
// prefix of history, score individual rows from the following window.
type Trainer interface {
	Train(X [][]float64, y []float64) error
	Score(features []float64) (float64, error)
}

// Factory produces a fresh Trainer per configuration so that every grid
// point retrains from scratch.
type Factory func() Trainer

// DefaultStart and DefaultStep match the walk-forward schedule: first train
// on 2500 rows, then advance the test window 250 rows at a time.
const (
	DefaultStart = 2500
	DefaultStep  = 250
)

// DefaultThresholds spans 0.0 to 0.7 in steps of 0.025.
func DefaultThresholds() []float64 {
	ts := make([]float64, 29)
	for i := range ts {
		ts[i] = float64(i) * 0.025
	}
	return ts
}

// Result holds the stitched out-of-sample predictions of one walk-forward
// run: one binary prediction column per threshold, plus realized targets.
type Result struct {
	Thresholds  []float64
	Predictions [][]int
	Actuals     []int
}

// Run performs a walk-forward backtest: for each window starting at `start`
// and advancing by `step`, train on all prior rows only, then score the
// window and threshold the probabilities. Rows never see a model trained on
// their own or later data.
func Run(X [][]float64, y []float64, factory Factory, thresholds []float64, start, step int) (*Result, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("backtest: %d rows vs %d labels", len(X), len(y))
	}
	if start <= 0 || step <= 0 {
		return nil, fmt.Errorf("backtest: start and step must be positive")
	}
	if len(X) <= start {
		return nil, fmt.Errorf("backtest: need more than %d rows, have %d", start, len(X))
	}

	res := &Result{
		Thresholds:  thresholds,
		Predictions: make([][]int, len(thresholds)),
	}

	for i := start; i < len(X); i += step {
		end := i + step
		if end > len(X) {
			end = len(X)
		}

		tr := factory()
		if err := tr.Train(X[:i], y[:i]); err != nil {
			return nil, fmt.Errorf("backtest: train at row %d: %w", i, err)
		}

		for j := i; j < end; j++ {
			prob, err := tr.Score(X[j])
			if err != nil {
				return nil, fmt.Errorf("backtest: score row %d: %w", j, err)
			}
			for k, th := range thresholds {
				pred := 0
				if prob >= th {
					pred = 1
				}
				res.Predictions[k] = append(res.Predictions[k], pred)
			}
			res.Actuals = append(res.Actuals, int(y[j]))
		}
	}

	return res, nil
}

// Precision returns the fraction of positive predictions that were correct,
// 0 when nothing was predicted positive.
func Precision(preds, actuals []int) float64 {
	var flagged, correct int
	for i, p := range preds {
		if p != 1 {
			continue
		}
		flagged++
		if actuals[i] == 1 {
			correct++
		}
	}
	if flagged == 0 {
		return 0
	}
	return float64(correct) / float64(flagged)
}

// PercentFlagged returns the fraction of rows predicted positive.
func PercentFlagged(preds []int) float64 {
	if len(preds) == 0 {
		return 0
	}
	var flagged int
	for _, p := range preds {
		if p == 1 {
			flagged++
		}
	}
	return float64(flagged) / float64(len(preds))
}

// GridCell is one grid-search entry: a named model configuration with its
// per-threshold precision and buy-rate columns.
type GridCell struct {
	Name       string
	Precision  []float64
	PctFlagged []float64
}

// Grid runs the walk-forward backtest for each named factory and collects
// precision / percent-flagged scores per threshold, for model selection.
func Grid(X [][]float64, y []float64, factories map[string]Factory, thresholds []float64, start, step int) ([]GridCell, error) {
	cells := make([]GridCell, 0, len(factories))
	for name, factory := range factories {
		res, err := Run(X, y, factory, thresholds, start, step)
		if err != nil {
			return nil, fmt.Errorf("grid %s: %w", name, err)
		}
		cell := GridCell{
			Name:       name,
			Precision:  make([]float64, len(thresholds)),
			PctFlagged: make([]float64, len(thresholds)),
		}
		for k := range thresholds {
			cell.Precision[k] = Precision(res.Predictions[k], res.Actuals)
			cell.PctFlagged[k] = PercentFlagged(res.Predictions[k])
		}
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Name < cells[j].Name })
	return cells, nil
}
