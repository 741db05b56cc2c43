package series

import (
	"fmt"

	"github.com/DevZro/StockBot/internal/model"
)

// Series is an ordered-by-date sequence of Rows. Dates are strictly
// increasing with no duplicates; gaps (non-trading days) are permitted.
type Series struct {
	rows []model.Row
}

// New builds a Series from rows already ordered by date. Returns an error
// if any date is not strictly after the previous one.
func New(rows []model.Row) (*Series, error) {
	for i := 1; i < len(rows); i++ {
		if !rows[i].Date.After(rows[i-1].Date) {
			return nil, fmt.Errorf("series: row %d date %s not after %s",
				i, rows[i].DateKey(), rows[i-1].DateKey())
		}
	}
	return &Series{rows: rows}, nil
}

// Empty returns a Series with no rows.
func Empty() *Series {
	return &Series{}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	return len(s.rows)
}

// At returns a pointer to row i for in-place labeling and feature filling.
func (s *Series) At(i int) *model.Row {
	return &s.rows[i]
}

// Last returns the most recent row, or nil if the series is empty.
func (s *Series) Last() *model.Row {
	if len(s.rows) == 0 {
		return nil
	}
	return &s.rows[len(s.rows)-1]
}

// HasDate reports whether a row with the given date key already exists.
// The series is ordered, so only the tail needs scanning for the daily
// update path, but a full scan keeps the guard unconditional.
func (s *Series) HasDate(key string) bool {
	for i := len(s.rows) - 1; i >= 0; i-- {
		k := s.rows[i].DateKey()
		if k == key {
			return true
		}
		if k < key {
			return false
		}
	}
	return false
}

// Append adds one new bar with all derived columns undefined. The bar's
// date must be strictly after the current last row's date.
func (s *Series) Append(b model.Bar) error {
	if last := s.Last(); last != nil && !b.Date.After(last.Date) {
		return fmt.Errorf("series: bar date %s not after last date %s",
			b.DateKey(), last.DateKey())
	}
	s.rows = append(s.rows, model.NewRow(b))
	return nil
}

// Tail returns copies of the most recent n rows (fewer if the series is
// shorter). The copies share no mutable state with the series.
func (s *Series) Tail(n int) []model.Row {
	if n > len(s.rows) {
		n = len(s.rows)
	}
	out := make([]model.Row, n)
	for i, r := range s.rows[len(s.rows)-n:] {
		out[i] = copyRow(r)
	}
	return out
}

func copyRow(r model.Row) model.Row {
	c := r
	c.CloseRatio = make(map[int]float64, len(r.CloseRatio))
	for h, v := range r.CloseRatio {
		c.CloseRatio[h] = v
	}
	c.Trend = make(map[int]float64, len(r.Trend))
	for h, v := range r.Trend {
		c.Trend[h] = v
	}
	return c
}
