package feature

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/series"
)

// buildSeries creates a labeled series from a slice of closes, one bar per
// weekday starting 2024-01-01 (a Monday).
func buildSeries(t *testing.T, closes []float64) *series.Series {
	t.Helper()
	rows := make([]model.Row, len(closes))
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		rows[i] = model.NewRow(model.Bar{Date: day, Open: c, High: c * 1.01, Low: c * 0.99, Close: c})
		day = day.AddDate(0, 0, 1)
	}
	s, err := series.New(rows)
	if err != nil {
		t.Fatalf("build series: %v", err)
	}
	LabelBatch(s)
	return s
}

func rampCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		// Up two days, down one, so targets are a mix of 0s and 1s.
		closes[i] = 100 + float64(i%3) + float64(i)*0.1
	}
	return closes
}

func TestCloseRatioInclusiveMean(t *testing.T) {
	s := buildSeries(t, []float64{10, 20, 30})
	e := NewEngine([]int{2})
	e.ComputeBatch(s)

	// Row 2, h=2: mean of closes {20, 30} includes the current row.
	got := s.At(2).CloseRatio[2]
	want := 30.0 / 25.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("close_ratio_2[2] = %v, want %v", got, want)
	}

	// Row 0 has no 2-row window, must be undefined rather than clamped.
	if model.Defined(s.At(0).CloseRatio[2]) {
		t.Errorf("close_ratio_2[0] should be undefined, got %v", s.At(0).CloseRatio[2])
	}
}

func TestTrendExcludesOwnTarget(t *testing.T) {
	s := buildSeries(t, rampCloses(12))
	e := NewEngine([]int{5})
	e.ComputeBatch(s)

	i := 8
	before := s.At(i).Trend[5]
	if !model.Defined(before) {
		t.Fatalf("trend_5[%d] should be defined", i)
	}

	// Flipping the row's own target must not change its trend value.
	s.At(i).Target = 1 - s.At(i).Target
	e.ComputeRow(s, i)
	if after := s.At(i).Trend[5]; after != before {
		t.Errorf("trend_5[%d] changed from %v to %v after flipping own target", i, before, after)
	}
}

func TestTrendHandComputed(t *testing.T) {
	// Closes 1,2,1,2,1,2...: targets alternate 1,0,1,0,...
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = float64(1 + i%2)
	}
	s := buildSeries(t, closes)
	e := NewEngine([]int{4})
	e.ComputeBatch(s)

	// Row 6, h=4: targets of rows 2..5 are 1,0,1,0 -> sum 2.
	if got := s.At(6).Trend[4]; got != 2 {
		t.Errorf("trend_4[6] = %v, want 2", got)
	}

	// Row 3 needs 4 prior targets but only has 3.
	if model.Defined(s.At(3).Trend[4]) {
		t.Errorf("trend_4[3] should be undefined")
	}
	if !model.Defined(s.At(4).Trend[4]) {
		t.Errorf("trend_4[4] should be defined")
	}
}

func TestBatchIncrementalEquivalence(t *testing.T) {
	closes := rampCloses(40)
	full := buildSeries(t, closes)
	e := NewEngine([]int{2, 5, 20})
	e.ComputeBatch(full)

	for i := 1; i < len(closes); i++ {
		// Truncate at row i: rows 0..i-1 labeled, row i still open, exactly
		// the state the daily update sees right after appending.
		trunc := buildSeries(t, closes[:i+1])
		if err := e.ComputeIncremental(trunc); err != nil {
			t.Fatalf("incremental at %d: %v", i, err)
		}

		for _, h := range e.Horizons() {
			batchCR, incCR := full.At(i).CloseRatio[h], trunc.At(i).CloseRatio[h]
			if model.Defined(batchCR) != model.Defined(incCR) || (model.Defined(batchCR) && batchCR != incCR) {
				t.Errorf("row %d close_ratio_%d: batch %v, incremental %v", i, h, batchCR, incCR)
			}
			batchTr, incTr := full.At(i).Trend[h], trunc.At(i).Trend[h]
			if model.Defined(batchTr) != model.Defined(incTr) || (model.Defined(batchTr) && batchTr != incTr) {
				t.Errorf("row %d trend_%d: batch %v, incremental %v", i, h, batchTr, incTr)
			}
		}
	}
}

func TestShortSeriesLongHorizonUndefined(t *testing.T) {
	s := buildSeries(t, rampCloses(100))
	e := NewEngine(nil) // default horizons include 250
	e.ComputeBatch(s)

	for i := 0; i < s.Len(); i++ {
		if model.Defined(s.At(i).CloseRatio[250]) {
			t.Fatalf("close_ratio_250[%d] defined on a 100-row series", i)
		}
		if model.Defined(s.At(i).Trend[250]) {
			t.Fatalf("trend_250[%d] defined on a 100-row series", i)
		}
	}

	_, err := e.FeatureVector(*s.Last())
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestFeatureVectorOrder(t *testing.T) {
	s := buildSeries(t, rampCloses(30))
	e := NewEngine([]int{5, 2}) // out of order on purpose
	e.ComputeBatch(s)

	names := e.FeatureNames()
	want := []string{"close_ratio_2", "trend_2", "close_ratio_5", "trend_5"}
	if len(names) != len(want) {
		t.Fatalf("feature names %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("feature names %v, want %v", names, want)
		}
	}

	i := 20
	vec, err := e.FeatureVector(*s.At(i))
	if err != nil {
		t.Fatalf("feature vector: %v", err)
	}
	if vec[0] != s.At(i).CloseRatio[2] || vec[1] != s.At(i).Trend[2] ||
		vec[2] != s.At(i).CloseRatio[5] || vec[3] != s.At(i).Trend[5] {
		t.Errorf("vector %v out of order for row %d", vec, i)
	}
}

func TestTrainingTableDropsUndefined(t *testing.T) {
	s := buildSeries(t, rampCloses(30))
	e := NewEngine([]int{2, 5})
	e.ComputeBatch(s)

	X, y := e.TrainingTable(s)
	// Rows 0..4 lack trend_5; the last row has no target.
	want := 30 - 5 - 1
	if len(X) != want || len(y) != want {
		t.Fatalf("table has %d rows, want %d", len(X), want)
	}
	for _, label := range y {
		if label != 0 && label != 1 {
			t.Errorf("non-binary label %v in training table", label)
		}
	}
	for _, row := range X {
		for _, v := range row {
			if math.IsNaN(v) {
				t.Fatal("NaN leaked into training table")
			}
		}
	}
}
