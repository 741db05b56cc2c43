package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DevZro/StockBot/internal/model"
)

// AlphaVantageFetcher implements Fetcher using the Alpha Vantage
// TIME_SERIES_DAILY endpoint.
type AlphaVantageFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAlphaVantageFetcher creates a new fetcher with optional proxy support.
func NewAlphaVantageFetcher(apiKey, proxyURL string) *AlphaVantageFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &AlphaVantageFetcher{
		BaseURL: "https://www.alphavantage.co",
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

// avDaily is the TIME_SERIES_DAILY response. Bars arrive keyed by date,
// newest first; volume is ignored.
type avDaily struct {
	Series map[string]struct {
		Open  string `json:"1. open"`
		High  string `json:"2. high"`
		Low   string `json:"3. low"`
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

// FetchDailyBars fetches daily OHLC bars, normalized oldest-first.
func (f *AlphaVantageFetcher) FetchDailyBars(symbol string, full bool) ([]model.Bar, error) {
	outputSize := "compact"
	if full {
		outputSize = "full"
	}
	u := fmt.Sprintf("%s/query?function=TIME_SERIES_DAILY&symbol=%s&outputsize=%s&apikey=%s",
		f.BaseURL, url.QueryEscape(symbol), outputSize, url.QueryEscape(f.APIKey))

	resp, err := f.Client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("alphavantage fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage: status %d, body: %s", resp.StatusCode, string(body))
	}

	var payload avDaily
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("alphavantage decode: %w", err)
	}
	if payload.ErrorMessage != "" {
		return nil, fmt.Errorf("alphavantage api error: %s", payload.ErrorMessage)
	}
	if payload.Note != "" {
		return nil, fmt.Errorf("alphavantage rate limited: %s", payload.Note)
	}
	if len(payload.Series) == 0 {
		return nil, fmt.Errorf("alphavantage: no data returned for %s", symbol)
	}

	bars := make([]model.Bar, 0, len(payload.Series))
	for date, q := range payload.Series {
		d, err := time.Parse(model.DateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("alphavantage: bad date %q: %w", date, err)
		}
		bar := model.Bar{Date: d}
		for _, fld := range []struct {
			raw string
			dst *float64
		}{
			{q.Open, &bar.Open},
			{q.High, &bar.High},
			{q.Low, &bar.Low},
			{q.Close, &bar.Close},
		} {
			v, err := strconv.ParseFloat(fld.raw, 64)
			if err != nil {
				return nil, fmt.Errorf("alphavantage: bad price %q at %s: %w", fld.raw, date, err)
			}
			*fld.dst = v
		}
		bars = append(bars, bar)
	}

	sortBars(bars)
	return bars, nil
}
