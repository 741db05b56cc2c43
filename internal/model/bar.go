package model

import (
	"math"
	"time"
)

// DateFormat is the canonical key format for trading days.
const DateFormat = "2006-01-02"

// Bar represents one trading day's OHLC record.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// DateKey returns the bar's date as a YYYY-MM-DD key.
func (b Bar) DateKey() string {
	return b.Date.Format(DateFormat)
}

// Row is a Bar extended with derived columns. Derived float columns use NaN
// to mean "undefined": TomorrowClose and Target stay NaN until the next bar
// arrives, and feature columns stay NaN when the horizon window reaches
// before the start of the series.
type Row struct {
	Bar
	TomorrowClose float64
	Target        float64
	CloseRatio    map[int]float64
	Trend         map[int]float64
}

// NewRow wraps a Bar into a Row with all derived columns undefined.
func NewRow(b Bar) Row {
	return Row{
		Bar:           b,
		TomorrowClose: math.NaN(),
		Target:        math.NaN(),
		CloseRatio:    make(map[int]float64),
		Trend:         make(map[int]float64),
	}
}

// Defined reports whether a derived column value has been computed.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}
