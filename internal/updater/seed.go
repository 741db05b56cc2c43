package updater

import (
	"fmt"

	"github.com/DevZro/StockBot/internal/feature"
	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/series"
)

// Seed rebuilds the persisted series from a full-history fetch: label every
// row from its successor, compute all features, and replace the stored
// series together with fresh stats in one transaction. Returns the number
// of rows written.
func (u *Updater) Seed() (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	bars, err := u.fetcher.FetchDailyBars(u.cfg.Symbol, true)
	if err != nil {
		return 0, fmt.Errorf("seed fetch: %w: %v", ErrSourceUnavailable, err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("seed fetch: %w: empty history", ErrSourceUnavailable)
	}

	ser, err := BuildSeries(bars, u.engine)
	if err != nil {
		return 0, err
	}

	if err := u.store.ReplaceSeries(ser, model.PredictionStats{}); err != nil {
		return 0, fmt.Errorf("seed persist: %w", err)
	}

	u.log.Info().Int("rows", ser.Len()).Str("symbol", u.cfg.Symbol).Msg("series seeded")
	return ser.Len(), nil
}

// BuildSeries constructs a fully labeled and featured series from raw
// oldest-first bars.
func BuildSeries(bars []model.Bar, engine *feature.Engine) (*series.Series, error) {
	rows := make([]model.Row, len(bars))
	for i, b := range bars {
		rows[i] = model.NewRow(b)
	}
	ser, err := series.New(rows)
	if err != nil {
		return nil, fmt.Errorf("seed series: %w", err)
	}
	feature.LabelBatch(ser)
	engine.ComputeBatch(ser)
	return ser, nil
}
