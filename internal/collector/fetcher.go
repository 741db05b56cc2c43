package collector

import (
	"sort"

	"github.com/DevZro/StockBot/internal/model"
)

// Fetcher defines the interface for fetching daily market data. Bars are
// returned oldest-first regardless of the provider's native ordering; the
// full flag requests complete history instead of the recent window.
type Fetcher interface {
	FetchDailyBars(symbol string, full bool) ([]model.Bar, error)
	Name() string
}

// sortBars orders bars oldest-first in place.
func sortBars(bars []model.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}
