package feature

import (
	"errors"
	"fmt"

	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/series"
)

// ErrInconsistentLabel is returned when a backfill would overwrite an
// already-set target with a different value.
var ErrInconsistentLabel = errors.New("target already set to a different value")

// BackfillPreviousTarget fills in the last row's tomorrow-close and target
// now that the next day's close is known. Returns the realized target.
// Re-applying the same close is a no-op; conflicting values trip the
// double-write guard.
func BackfillPreviousTarget(s *series.Series, newClose float64) (float64, error) {
	last := s.Last()
	if last == nil {
		return 0, fmt.Errorf("backfill target: %w", ErrEmptySeries)
	}

	target := 0.0
	if newClose > last.Close {
		target = 1.0
	}

	if model.Defined(last.Target) && last.Target != target {
		return 0, fmt.Errorf("backfill target at %s: have %v, computed %v: %w",
			last.DateKey(), last.Target, target, ErrInconsistentLabel)
	}

	last.TomorrowClose = newClose
	last.Target = target
	return target, nil
}

// LabelBatch fills tomorrow-close and target for every row from its
// successor. The newest row keeps undefined values until the next bar
// arrives.
func LabelBatch(s *series.Series) {
	for i := 0; i+1 < s.Len(); i++ {
		row, next := s.At(i), s.At(i+1)
		row.TomorrowClose = next.Close
		if next.Close > row.Close {
			row.Target = 1.0
		} else {
			row.Target = 0.0
		}
	}
}
