package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DevZro/StockBot/internal/feature"
	"github.com/DevZro/StockBot/internal/model"
	"github.com/DevZro/StockBot/internal/updater"
)

type latestResponse struct {
	TotalBuys      int       `json:"total_buys"`
	CorrectBuys    int       `json:"correct_buys"`
	WinPercent     float64   `json:"win_percent"`
	NextDate       string    `json:"next_date"`
	BuySignal      bool      `json:"buy_signal"`
	Probability    *float64  `json:"prediction_probability,omitempty"`
	LastMonthDates []string  `json:"last_month_dates"`
	LastMonthClose []float64 `json:"last_month_close"`
}

type predictResponse struct {
	Probability float64 `json:"prediction_probability"`
	Signal      string  `json:"signal"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "API is running"})
}

// nextBusinessDay returns the next weekday after d.
func nextBusinessDay(d time.Time) time.Time {
	next := d.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Server) latest(c echo.Context) error {
	ser, err := s.store.LoadSeries()
	if err != nil {
		s.log.Error().Err(err).Msg("load series failed")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	}
	if ser.Len() == 0 {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "series is empty, seed it first"})
	}
	st, err := s.store.LoadStats()
	if err != nil {
		s.log.Error().Err(err).Msg("load stats failed")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	}

	tail := ser.Tail(30)
	resp := latestResponse{
		TotalBuys:      st.TotalSignalsIssued,
		CorrectBuys:    st.SignalsCorrect,
		WinPercent:     st.WinRate() * 100,
		LastMonthDates: make([]string, len(tail)),
		LastMonthClose: make([]float64, len(tail)),
	}
	for i, r := range tail {
		resp.LastMonthDates[i] = r.DateKey()
		resp.LastMonthClose[i] = r.Close
	}

	latest := ser.Last()
	resp.NextDate = nextBusinessDay(latest.Date).Format(model.DateFormat)

	if prob, err := s.scoreRow(*latest); err == nil {
		resp.Probability = &prob
		resp.BuySignal = prob >= s.cfg.Threshold
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) predict(c echo.Context) error {
	ser, err := s.store.LoadSeries()
	if err != nil {
		s.log.Error().Err(err).Msg("load series failed")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	}
	latest := ser.Last()
	if latest == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "series is empty, seed it first"})
	}

	prob, err := s.scoreRow(*latest)
	if err != nil {
		if errors.Is(err, feature.ErrInsufficientHistory) {
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		}
		s.log.Error().Err(err).Msg("score failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	signal := "NO BUY"
	if prob >= s.cfg.Threshold {
		signal = "BUY"
	}
	return c.JSON(http.StatusOK, predictResponse{Probability: prob, Signal: signal})
}

func (s *Server) scoreRow(r model.Row) (float64, error) {
	if s.scorer == nil {
		return 0, errors.New("no model loaded")
	}
	vec, err := s.engine.FeatureVector(r)
	if err != nil {
		return 0, err
	}
	return s.scorer.Score(vec)
}

func (s *Server) update(c echo.Context) error {
	start := time.Now()
	out := s.updater.RunCycle()
	if s.metrics != nil {
		s.metrics.ObserveCycle(string(out.Status), time.Since(start).Seconds())
		if out.Probability != nil {
			s.metrics.SetLastProbability(*out.Probability)
		}
	}
	if out.Status == updater.StatusFailed {
		return c.JSON(http.StatusInternalServerError, out)
	}
	return c.JSON(http.StatusOK, out)
}
