package collector

import (
	"fmt"
	"time"

	"github.com/DevZro/StockBot/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Bars []model.Bar
	Err  error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ string, full bool) ([]model.Bar, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		bars := make([]model.Bar, len(m.Bars))
		copy(bars, m.Bars)
		sortBars(bars)
		return bars, nil
	}
	n := 100
	if full {
		n = 300
	}
	return GenerateBars(5000, n), nil
}

// GenerateBars produces count synthetic daily bars ending yesterday, with a
// mild drift around basePrice. Weekends are skipped so dates look like
// trading days.
func GenerateBars(basePrice float64, count int) []model.Bar {
	bars := make([]model.Bar, 0, count)
	day := time.Now().UTC().AddDate(0, 0, -1)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	dates := make([]time.Time, 0, count)
	for len(dates) < count {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, -1)
	}

	for i := count - 1; i >= 0; i-- {
		p := basePrice * (1 + float64(count-1-i-count/2)*0.001)
		bars = append(bars, model.Bar{
			Date:  dates[i],
			Open:  p * 0.999,
			High:  p * 1.005,
			Low:   p * 0.995,
			Close: p,
		})
	}
	return bars
}

// Latest returns the newest bar from an oldest-first slice.
func Latest(bars []model.Bar) (model.Bar, error) {
	if len(bars) == 0 {
		return model.Bar{}, fmt.Errorf("collector: no bars returned")
	}
	return bars[len(bars)-1], nil
}
