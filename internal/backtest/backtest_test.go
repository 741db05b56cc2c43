package backtest

import (
	"testing"
)

// recordingTrainer predicts a constant and records the size of each
// training fold.
type recordingTrainer struct {
	prob       float64
	trainSizes *[]int
}

func (r *recordingTrainer) Train(X [][]float64, y []float64) error {
	*r.trainSizes = append(*r.trainSizes, len(X))
	return nil
}

func (r *recordingTrainer) Score([]float64) (float64, error) {
	return r.prob, nil
}

func table(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = float64(i % 2)
	}
	return X, y
}

func TestRunWalkForwardFolds(t *testing.T) {
	X, y := table(9)
	var sizes []int
	factory := func() Trainer { return &recordingTrainer{prob: 1, trainSizes: &sizes} }

	res, err := Run(X, y, factory, []float64{0.5}, 4, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Folds train on 4, 6, and 8 rows; each test row is strictly after its
	// model's training window.
	want := []int{4, 6, 8}
	if len(sizes) != len(want) {
		t.Fatalf("train sizes %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("train sizes %v, want %v", sizes, want)
		}
	}

	if len(res.Actuals) != 5 {
		t.Errorf("got %d out-of-sample rows, want 5", len(res.Actuals))
	}
	if len(res.Predictions[0]) != len(res.Actuals) {
		t.Errorf("predictions and actuals differ in length")
	}
}

func TestRunThresholding(t *testing.T) {
	X, y := table(6)
	factory := func() Trainer {
		var sink []int
		return &recordingTrainer{prob: 0.6, trainSizes: &sink}
	}

	res, err := Run(X, y, factory, []float64{0.5, 0.7}, 4, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, p := range res.Predictions[0] {
		if p != 1 {
			t.Errorf("prob 0.6 at threshold 0.5 should predict 1")
		}
	}
	for _, p := range res.Predictions[1] {
		if p != 0 {
			t.Errorf("prob 0.6 at threshold 0.7 should predict 0")
		}
	}
}

func TestRunRejectsShortTable(t *testing.T) {
	X, y := table(4)
	factory := func() Trainer {
		var sink []int
		return &recordingTrainer{trainSizes: &sink}
	}
	if _, err := Run(X, y, factory, []float64{0.5}, 10, 2); err == nil {
		t.Error("expected error when table is shorter than start")
	}
}

func TestPrecision(t *testing.T) {
	preds := []int{1, 1, 0, 1, 0}
	actuals := []int{1, 0, 1, 1, 0}
	if got := Precision(preds, actuals); got != 2.0/3.0 {
		t.Errorf("precision = %v, want 2/3", got)
	}

	// No positive predictions: 0 by policy, not a division error.
	if got := Precision([]int{0, 0}, []int{1, 1}); got != 0 {
		t.Errorf("precision with no flags = %v, want 0", got)
	}
}

func TestPercentFlagged(t *testing.T) {
	if got := PercentFlagged([]int{1, 0, 0, 1}); got != 0.5 {
		t.Errorf("percent flagged = %v, want 0.5", got)
	}
	if got := PercentFlagged(nil); got != 0 {
		t.Errorf("percent flagged of empty = %v, want 0", got)
	}
}

func TestGridSorted(t *testing.T) {
	X, y := table(8)
	mk := func(prob float64) Factory {
		return func() Trainer {
			var sink []int
			return &recordingTrainer{prob: prob, trainSizes: &sink}
		}
	}
	cells, err := Grid(X, y, map[string]Factory{"b": mk(0.9), "a": mk(0.1)},
		[]float64{0.5}, 4, 2)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(cells) != 2 || cells[0].Name != "a" || cells[1].Name != "b" {
		t.Fatalf("cells not sorted by name: %+v", cells)
	}
	if cells[1].PctFlagged[0] != 1 {
		t.Errorf("always-buy model should flag everything, got %v", cells[1].PctFlagged[0])
	}
}
