package updater

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevZro/StockBot/internal/collector"
	"github.com/DevZro/StockBot/internal/feature"
	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/store"
)

type fixedScorer struct {
	prob float64
	err  error
}

func (f *fixedScorer) Score([]float64) (float64, error) { return f.prob, f.err }

var cycleHorizons = []int{2, 5}

// makeBars builds one bar per weekday starting Mon 2020-01-06, closing at
// the given prices.
func makeBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, 0, len(closes))
	day := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	for _, c := range closes {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		bars = append(bars, model.Bar{Date: day, Open: c - 0.5, High: c + 1, Low: c - 1, Close: c})
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

func rampCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i%3) + 0.1*float64(i)
	}
	return closes
}

func newTestUpdater(t *testing.T, fetcher collector.Fetcher, sc *fixedScorer) (*Updater, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), cycleHorizons)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := Config{Symbol: "TEST", Threshold: 0.5}
	engine := feature.NewEngine(cycleHorizons)
	if sc == nil {
		return New(cfg, fetcher, engine, nil, st, zerolog.Nop()), st
	}
	return New(cfg, fetcher, engine, sc, st, zerolog.Nop()), st
}

func seedBars(t *testing.T, u *Updater, bars []model.Bar) {
	t.Helper()
	n, err := u.Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(bars) {
		t.Fatalf("seeded %d rows, want %d", n, len(bars))
	}
}

func TestRunCycleAppendsAndBackfills(t *testing.T) {
	history := makeBars(rampCloses(20))
	fetcher := &collector.MockFetcher{Bars: history}
	u, st := newTestUpdater(t, fetcher, &fixedScorer{prob: 0.9})
	seedBars(t, u, history)

	// Next trading day closes above the last seeded close: the backfilled
	// target for the previous row must be 1.
	last := history[len(history)-1]
	fetcher.Bars = append(history, model.Bar{
		Date: last.Date.AddDate(0, 0, 1), Open: last.Close, High: last.Close + 2,
		Low: last.Close - 1, Close: last.Close + 1.5,
	})

	out := u.RunCycle()
	if out.Status != StatusUpdated {
		t.Fatalf("status = %s (%s), want %s", out.Status, out.Message, StatusUpdated)
	}
	if out.Probability == nil || *out.Probability != 0.9 {
		t.Errorf("probability = %v, want 0.9", out.Probability)
	}
	if out.Signal != 1 {
		t.Errorf("signal = %d, want 1 at prob 0.9 threshold 0.5", out.Signal)
	}

	ser, err := st.LoadSeries()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ser.Len() != len(history)+1 {
		t.Fatalf("series has %d rows, want %d", ser.Len(), len(history)+1)
	}
	prev := ser.At(ser.Len() - 2)
	if prev.Target != 1 || prev.TomorrowClose != last.Close+1.5 {
		t.Errorf("backfill: target=%v tomorrow=%v", prev.Target, prev.TomorrowClose)
	}
	if model.Defined(ser.Last().Target) {
		t.Error("appended row must not carry a target yet")
	}
	for _, h := range cycleHorizons {
		if !model.Defined(ser.Last().CloseRatio[h]) || !model.Defined(ser.Last().Trend[h]) {
			t.Errorf("horizon %d features undefined on appended row", h)
		}
	}
}

func TestRunCycleAlreadyUpToDate(t *testing.T) {
	history := makeBars(rampCloses(20))
	fetcher := &collector.MockFetcher{Bars: history}
	u, st := newTestUpdater(t, fetcher, &fixedScorer{prob: 0.9})
	seedBars(t, u, history)

	out := u.RunCycle()
	if out.Status != StatusAlreadyUpToDate {
		t.Fatalf("status = %s, want %s", out.Status, StatusAlreadyUpToDate)
	}
	ser, _ := st.LoadSeries()
	if ser.Len() != len(history) {
		t.Errorf("no-op cycle changed series length to %d", ser.Len())
	}
}

func TestRunCycleInsufficientHistory(t *testing.T) {
	// Four seeded rows: the appended fifth row cannot satisfy trend_5,
	// so scoring is skipped but the row is still persisted.
	history := makeBars([]float64{100, 101, 102, 103})
	fetcher := &collector.MockFetcher{Bars: history}
	u, st := newTestUpdater(t, fetcher, &fixedScorer{prob: 0.9})
	seedBars(t, u, history)

	fetcher.Bars = append(history, model.Bar{
		Date: history[3].Date.AddDate(0, 0, 1), Open: 103, High: 105, Low: 102, Close: 104,
	})

	out := u.RunCycle()
	if out.Status != StatusInsufficientHistory {
		t.Fatalf("status = %s (%s), want %s", out.Status, out.Message, StatusInsufficientHistory)
	}
	if out.Signal != 0 || out.Probability != nil {
		t.Errorf("warmup cycle issued signal=%d prob=%v", out.Signal, out.Probability)
	}
	ser, _ := st.LoadSeries()
	if ser.Len() != 5 {
		t.Errorf("warmup row not persisted: %d rows", ser.Len())
	}
}

func TestRunCycleNilScorerSkipsScoring(t *testing.T) {
	history := makeBars(rampCloses(20))
	fetcher := &collector.MockFetcher{Bars: history}
	u, _ := newTestUpdater(t, fetcher, nil)
	seedBars(t, u, history)

	fetcher.Bars = append(history, model.Bar{
		Date: history[len(history)-1].Date.AddDate(0, 0, 1), Close: 200, Open: 199, High: 201, Low: 198,
	})

	out := u.RunCycle()
	if out.Status != StatusInsufficientHistory {
		t.Fatalf("status = %s, want %s without a model", out.Status, StatusInsufficientHistory)
	}
}

func TestRunCycleStatsResolveLag(t *testing.T) {
	history := makeBars(rampCloses(20))
	fetcher := &collector.MockFetcher{Bars: history}
	u, _ := newTestUpdater(t, fetcher, &fixedScorer{prob: 0.9})
	seedBars(t, u, history)

	last := history[len(history)-1]
	day1 := model.Bar{Date: last.Date.AddDate(0, 0, 1), Open: last.Close, High: last.Close + 2, Low: last.Close - 1, Close: last.Close + 1}
	fetcher.Bars = append(history, day1)

	if out := u.RunCycle(); out.Status != StatusUpdated {
		t.Fatalf("cycle 1: %s (%s)", out.Status, out.Message)
	}
	st1, _ := u.Stats()
	if st1.TotalSignalsIssued != 0 || st1.LastSignal != 1 {
		t.Fatalf("after cycle 1: %+v; signal must not be credited until resolved", st1)
	}

	// Day 2 closes above day 1: yesterday's buy resolves as a win.
	day2 := model.Bar{Date: day1.Date.AddDate(0, 0, 1), Open: day1.Close, High: day1.Close + 2, Low: day1.Close - 1, Close: day1.Close + 1}
	fetcher.Bars = append(fetcher.Bars, day2)

	if out := u.RunCycle(); out.Status != StatusUpdated {
		t.Fatalf("cycle 2: %s (%s)", out.Status, out.Message)
	}
	st2, _ := u.Stats()
	if st2.TotalSignalsIssued != 1 || st2.SignalsCorrect != 1 {
		t.Errorf("after cycle 2: %+v, want 1 issued 1 correct", st2)
	}
	if got := st2.WinRate(); got != 1 {
		t.Errorf("win rate = %v, want 1", got)
	}
}

func TestRunCycleFetchFailureLeavesStoreUntouched(t *testing.T) {
	history := makeBars(rampCloses(20))
	fetcher := &collector.MockFetcher{Bars: history}
	u, st := newTestUpdater(t, fetcher, &fixedScorer{prob: 0.9})
	seedBars(t, u, history)

	fetcher.Err = fmt.Errorf("connection refused")
	out := u.RunCycle()
	if out.Status != StatusFailed || out.Stage != StageFetch {
		t.Fatalf("outcome = %s/%s, want %s/%s", out.Status, out.Stage, StatusFailed, StageFetch)
	}
	if out.RunID == "" {
		t.Error("failed outcome missing run id")
	}

	ser, _ := st.LoadSeries()
	if ser.Len() != len(history) {
		t.Errorf("failed cycle changed series length to %d", ser.Len())
	}
}

func TestRunCycleScoreFailureLeavesStoreUntouched(t *testing.T) {
	history := makeBars(rampCloses(20))
	fetcher := &collector.MockFetcher{Bars: history}
	sc := &fixedScorer{err: errors.New("model corrupt")}
	u, st := newTestUpdater(t, fetcher, sc)
	seedBars(t, u, history)

	last := history[len(history)-1]
	fetcher.Bars = append(history, model.Bar{
		Date: last.Date.AddDate(0, 0, 1), Open: last.Close, High: last.Close + 1, Low: last.Close - 1, Close: last.Close + 0.5,
	})

	out := u.RunCycle()
	if out.Status != StatusFailed || out.Stage != StageScore {
		t.Fatalf("outcome = %s/%s, want %s/%s", out.Status, out.Stage, StatusFailed, StageScore)
	}
	ser, _ := st.LoadSeries()
	if ser.Len() != len(history) {
		t.Errorf("failed cycle persisted rows: %d", ser.Len())
	}
	if model.Defined(ser.Last().Target) {
		t.Error("failed cycle persisted a backfilled label")
	}
}

func TestSeedLabelsAllButNewest(t *testing.T) {
	history := makeBars(rampCloses(30))
	u, st := newTestUpdater(t, &collector.MockFetcher{Bars: history}, nil)
	seedBars(t, u, history)

	ser, err := st.LoadSeries()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < ser.Len()-1; i++ {
		if !model.Defined(ser.At(i).Target) {
			t.Fatalf("row %d target undefined after seed", i)
		}
	}
	if model.Defined(ser.Last().Target) {
		t.Error("newest row target must stay open after seed")
	}
	stats, _ := st.LoadStats()
	if stats != (model.PredictionStats{}) {
		t.Errorf("seed stats = %+v, want zero", stats)
	}
}
