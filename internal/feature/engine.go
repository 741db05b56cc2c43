package feature

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/series"
)

// DefaultHorizons is the lookback window set used for trend/ratio features.
var DefaultHorizons = []int{2, 5, 20, 60, 250}

// ErrInsufficientHistory is returned when a feature vector cannot be built
// because the series is too short for one or more horizon windows.
var ErrInsufficientHistory = errors.New("insufficient history for feature computation")

// ErrEmptySeries is returned when an operation needs at least one row.
var ErrEmptySeries = errors.New("series is empty")

// Engine computes close-ratio and trend features over a fixed horizon set.
// The same per-row windowing is used for full-history batch computation and
// for the single newest row of an extended series, so the two paths cannot
// drift apart numerically.
type Engine struct {
	horizons []int
}

// NewEngine creates an Engine for the given horizons (DefaultHorizons when
// empty). The set is copied and kept in ascending order.
func NewEngine(horizons []int) *Engine {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	hs := make([]int, len(horizons))
	copy(hs, horizons)
	sort.Ints(hs)
	return &Engine{horizons: hs}
}

// Horizons returns the horizon set in ascending order.
func (e *Engine) Horizons() []int {
	hs := make([]int, len(e.horizons))
	copy(hs, e.horizons)
	return hs
}

// closeRatio returns close[i] divided by the trailing h-row mean close,
// inclusive of row i. NaN when fewer than h rows end at i.
func closeRatio(s *series.Series, i, h int) float64 {
	start := i - h + 1
	if start < 0 {
		return math.NaN()
	}
	sum := 0.0
	for j := start; j <= i; j++ {
		sum += s.At(j).Close
	}
	return s.At(i).Close / (sum / float64(h))
}

// trendSum returns the sum of the h targets strictly before row i. NaN when
// the window reaches before row 0 or any target in it is still undefined.
// Row i's own target is never part of its trend window.
func trendSum(s *series.Series, i, h int) float64 {
	start := i - h
	if start < 0 {
		return math.NaN()
	}
	sum := 0.0
	for j := start; j < i; j++ {
		t := s.At(j).Target
		if !model.Defined(t) {
			return math.NaN()
		}
		sum += t
	}
	return sum
}

// ComputeRow fills the feature columns of row i from rows 0..i.
func (e *Engine) ComputeRow(s *series.Series, i int) {
	row := s.At(i)
	for _, h := range e.horizons {
		row.CloseRatio[h] = closeRatio(s, i, h)
		row.Trend[h] = trendSum(s, i, h)
	}
}

// ComputeBatch fills the feature columns of every row. Targets must already
// be labeled (the last row's target may still be undefined; features that
// depend on it in later rows do not exist yet).
func (e *Engine) ComputeBatch(s *series.Series) {
	for i := 0; i < s.Len(); i++ {
		e.ComputeRow(s, i)
	}
}

// ComputeIncremental fills the feature columns of the newest row only,
// using the already-materialized prior closes and targets. The result is
// identical to what ComputeBatch would produce for that row.
func (e *Engine) ComputeIncremental(s *series.Series) error {
	if s.Len() == 0 {
		return ErrEmptySeries
	}
	e.ComputeRow(s, s.Len()-1)
	return nil
}

// FeatureNames returns the scorer input column names in fixed order:
// close_ratio_h then trend_h for each horizon ascending.
func (e *Engine) FeatureNames() []string {
	names := make([]string, 0, 2*len(e.horizons))
	for _, h := range e.horizons {
		names = append(names, fmt.Sprintf("close_ratio_%d", h))
		names = append(names, fmt.Sprintf("trend_%d", h))
	}
	return names
}

// FeatureVector extracts the fixed-order scorer input from a row. Returns
// ErrInsufficientHistory if any component is undefined; a partial or
// zero-filled vector is never produced.
func (e *Engine) FeatureVector(r model.Row) ([]float64, error) {
	vec := make([]float64, 0, 2*len(e.horizons))
	for _, h := range e.horizons {
		cr, ok := r.CloseRatio[h]
		if !ok || !model.Defined(cr) {
			return nil, fmt.Errorf("close_ratio_%d at %s: %w", h, r.DateKey(), ErrInsufficientHistory)
		}
		tr, ok := r.Trend[h]
		if !ok || !model.Defined(tr) {
			return nil, fmt.Errorf("trend_%d at %s: %w", h, r.DateKey(), ErrInsufficientHistory)
		}
		vec = append(vec, cr, tr)
	}
	return vec, nil
}

// TrainingTable extracts the feature matrix and label vector from all rows
// with every column defined, dropping warmup rows and the still-unlabeled
// newest row.
func (e *Engine) TrainingTable(s *series.Series) (X [][]float64, y []float64) {
	for i := 0; i < s.Len(); i++ {
		row := s.At(i)
		if !model.Defined(row.Target) {
			continue
		}
		vec, err := e.FeatureVector(*row)
		if err != nil {
			continue
		}
		X = append(X, vec)
		y = append(y, row.Target)
	}
	return X, y
}
