package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/DevZro/StockBot/internal/metrics"
	"github.com/DevZro/StockBot/internal/notifier"
	"github.com/DevZro/StockBot/internal/updater"
)

// Scheduler runs the daily update cycle on a cron schedule. Cycles never
// overlap: the cron entry is the only trigger besides the manual API, and
// the updater serializes both.
type Scheduler struct {
	cron     *cron.Cron
	updater  *updater.Updater
	notifier notifier.Notifier
	symbol   string
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New creates a Scheduler.
func New(u *updater.Updater, n notifier.Notifier, symbol string, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		updater:  u,
		notifier: n,
		symbol:   symbol,
		metrics:  m,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Register registers the daily task with the given cron spec.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.cron.AddFunc(dailyCron, s.runDaily); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes the daily task immediately (manual trigger).
func (s *Scheduler) RunNow() {
	s.runDaily()
}

func (s *Scheduler) runDaily() {
	// The cron spec already excludes weekends; this guards manual runs.
	if wd := time.Now().UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
		s.log.Info().Str("weekday", wd.String()).Msg("market closed, skipping cycle")
		return
	}

	start := time.Now()
	out := s.updater.RunCycle()
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveCycle(string(out.Status), elapsed.Seconds())
		if out.Probability != nil {
			s.metrics.SetLastProbability(*out.Probability)
		}
	}

	evt := s.log.Info()
	if out.Status == updater.StatusFailed {
		evt = s.log.Error()
	}
	evt.Str("run_id", out.RunID).
		Str("status", string(out.Status)).
		Str("date", out.Date).
		Dur("elapsed", elapsed).
		Msg("daily cycle finished")

	st, err := s.updater.Stats()
	if err != nil {
		s.log.Warn().Err(err).Msg("load stats for report failed")
		return
	}
	if err := s.notifier.Send(notifier.FormatDailyReport(s.symbol, out, st)); err != nil {
		s.log.Warn().Err(err).Msg("send daily report failed")
	}
}
