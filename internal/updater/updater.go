package updater

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DevZro/StockBot/internal/collector"
	"github.com/DevZro/StockBot/internal/feature"
	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/scorer"
	"github.com/DevZro/StockBot/internal/stats"
	"github.com/DevZro/StockBot/internal/store"
)

// ErrSourceUnavailable wraps market-data fetch failures; the cycle aborts
// and nothing is persisted.
var ErrSourceUnavailable = errors.New("market data source unavailable")

// Config holds the explicit updater parameters. No process-wide defaults:
// the threshold and symbol are injected at construction.
type Config struct {
	Symbol    string
	Threshold float64
}

// Updater runs the daily incremental cycle: fetch one new bar, backfill the
// previous day's label, append, compute the new row's features, score,
// update the running stats, and persist everything atomically. Cycles are
// serialized; persistence happens only as the final step of a fully
// successful cycle, so a failed cycle leaves storage untouched and a re-run
// is safe (the date guard turns it into a no-op).
type Updater struct {
	mu      sync.Mutex
	cfg     Config
	fetcher collector.Fetcher
	engine  *feature.Engine
	scorer  scorer.Scorer
	store   *store.Store
	log     zerolog.Logger
}

// New creates an Updater. The scorer may be nil while no model has been
// trained yet; cycles then run unscored, like the insufficient-history path.
func New(cfg Config, f collector.Fetcher, e *feature.Engine, sc scorer.Scorer, st *store.Store, log zerolog.Logger) *Updater {
	return &Updater{
		cfg:     cfg,
		fetcher: f,
		engine:  e,
		scorer:  sc,
		store:   st,
		log:     log.With().Str("component", "updater").Logger(),
	}
}

// Stats returns the persisted prediction counters.
func (u *Updater) Stats() (model.PredictionStats, error) {
	return u.store.LoadStats()
}

func fail(runID string, stage Stage, err error) Outcome {
	return Outcome{RunID: runID, Status: StatusFailed, Stage: stage, Message: err.Error()}
}

// RunCycle executes one full update cycle and reports a structured outcome.
// Errors are caught at the cycle boundary; nothing is persisted unless
// every stage succeeded.
func (u *Updater) RunCycle() Outcome {
	u.mu.Lock()
	defer u.mu.Unlock()

	runID := uuid.NewString()
	log := u.log.With().Str("run_id", runID).Logger()

	// Scoped acquire: the persisted state is the source of truth, reloaded
	// for each cycle and written back only at the end.
	ser, err := u.store.LoadSeries()
	if err != nil {
		return fail(runID, StageLoad, err)
	}
	loadedStats, err := u.store.LoadStats()
	if err != nil {
		return fail(runID, StageLoad, err)
	}

	bars, err := u.fetcher.FetchDailyBars(u.cfg.Symbol, false)
	if err != nil {
		return fail(runID, StageFetch, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}
	bar, err := collector.Latest(bars)
	if err != nil {
		return fail(runID, StageFetch, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}

	if ser.HasDate(bar.DateKey()) {
		log.Info().Str("date", bar.DateKey()).Msg("bar already present, skipping cycle")
		return Outcome{
			RunID:   runID,
			Status:  StatusAlreadyUpToDate,
			Date:    bar.DateKey(),
			Signal:  loadedStats.LastSignal,
			Message: fmt.Sprintf("bar for %s already in series", bar.DateKey()),
		}
	}

	realized, err := feature.BackfillPreviousTarget(ser, bar.Close)
	if err != nil {
		return fail(runID, StageLabel, err)
	}
	prev := *ser.Last()

	if err := ser.Append(bar); err != nil {
		return fail(runID, StageAppend, err)
	}

	if err := u.engine.ComputeIncremental(ser); err != nil {
		return fail(runID, StageFeatures, err)
	}
	newRow := *ser.Last()

	status := StatusUpdated
	signal := 0
	var prob *float64
	vec, err := u.engine.FeatureVector(newRow)
	switch {
	case errors.Is(err, feature.ErrInsufficientHistory):
		status = StatusInsufficientHistory
		log.Warn().Str("date", bar.DateKey()).Msg("insufficient history, scoring skipped")
	case err != nil:
		return fail(runID, StageScore, err)
	case u.scorer == nil:
		status = StatusInsufficientHistory
		log.Warn().Msg("no model loaded, scoring skipped")
	default:
		p, err := u.scorer.Score(vec)
		if err != nil {
			return fail(runID, StageScore, err)
		}
		prob = &p
		if p >= u.cfg.Threshold {
			signal = 1
		}
	}

	tracker := stats.NewTracker(loadedStats)
	tracker.Resolve(realized)
	tracker.Record(signal)

	if err := u.store.SaveCycle(prev, newRow, tracker.Snapshot()); err != nil {
		return fail(runID, StagePersist, err)
	}

	evt := log.Info().
		Str("date", bar.DateKey()).
		Float64("close", bar.Close).
		Float64("realized_target", realized).
		Int("signal", signal).
		Str("status", string(status))
	if prob != nil {
		evt = evt.Float64("probability", *prob)
	}
	evt.Msg("cycle persisted")

	return Outcome{
		RunID:       runID,
		Status:      status,
		Date:        bar.DateKey(),
		Probability: prob,
		Signal:      signal,
	}
}
