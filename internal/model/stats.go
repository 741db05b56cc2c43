package model

// PredictionStats holds the running signal bookkeeping counters. LastSignal
// is the decision issued on the most recent cycle; it can only be credited
// on the next cycle, once the ground truth for its day becomes known.
type PredictionStats struct {
	TotalSignalsIssued int `json:"total_signals_issued"`
	SignalsCorrect     int `json:"signals_correct"`
	LastSignal         int `json:"last_signal"`
}

// WinRate returns the fraction of issued buy signals that proved correct.
// Returns 0 when no signals have been issued yet.
func (s PredictionStats) WinRate() float64 {
	if s.TotalSignalsIssued == 0 {
		return 0
	}
	return float64(s.SignalsCorrect) / float64(s.TotalSignalsIssued)
}
