package stats

import (
	"sync"

	"github.com/DevZro/StockBot/internal/model"
)

// Tracker owns the running prediction counters for the duration of one
// update cycle. The updater resolves the previous cycle's signal first
// (ground truth lags a signal by one day), then records the new signal.
type Tracker struct {
	mu sync.Mutex
	s  model.PredictionStats
}

// NewTracker wraps a loaded stats record.
func NewTracker(s model.PredictionStats) *Tracker {
	return &Tracker{s: s}
}

// Resolve credits the previous cycle's signal against the target that just
// became known. A buy signal counts as issued; it counts as correct only if
// the realized target is 1.
func (t *Tracker) Resolve(realizedTarget float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.s.LastSignal != 1 {
		return
	}
	t.s.TotalSignalsIssued++
	if realizedTarget == 1 {
		t.s.SignalsCorrect++
	}
}

// Record stores the signal issued this cycle, to be resolved next cycle.
func (t *Tracker) Record(signal int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.LastSignal = signal
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() model.PredictionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

// WinRate returns signals_correct / total_signals_issued, 0 when nothing
// has been issued.
func (t *Tracker) WinRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s.WinRate()
}
