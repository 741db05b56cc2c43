package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DevZro/StockBot/internal/feature"
	"github.com/DevZro/StockBot/internal/metrics"
	"github.com/DevZro/StockBot/internal/scorer"
	"github.com/DevZro/StockBot/internal/store"
	"github.com/DevZro/StockBot/internal/updater"
)

// Config holds HTTP server settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Threshold       float64
}

// Server exposes the query surface over the persisted series and stats.
// Handlers only read fully-committed state from the store; the one write
// path (the update trigger) goes through the serialized updater.
type Server struct {
	echo    *echo.Echo
	cfg     Config
	store   *store.Store
	engine  *feature.Engine
	scorer  scorer.Scorer
	updater *updater.Updater
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates the server and registers routes and middleware.
func New(cfg Config, st *store.Store, e *feature.Engine, sc scorer.Scorer, u *updater.Updater, m *metrics.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		engine:  e,
		scorer:  sc,
		updater: u,
		metrics: m,
		log:     log.With().Str("component", "server").Logger(),
	}

	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true
	ec.Server.ReadTimeout = cfg.ReadTimeout
	ec.Server.WriteTimeout = cfg.WriteTimeout

	ec.Use(middleware.Recover())
	ec.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{"*"}}))
	ec.Use(s.requestLog)

	ec.GET("/", s.health)
	ec.GET("/api/latest", s.latest)
	ec.GET("/api/predict", s.predict)
	ec.POST("/api/update", s.update)
	ec.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = ec
	return s
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		code := c.Response().Status
		if s.metrics != nil {
			s.metrics.RecordRequest(c.Path(), code)
		}
		s.log.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("code", code).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		return err
	}
}

// Start runs the server in the background.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server error")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
