package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/DevZro/StockBot/internal/backtest"
	"github.com/DevZro/StockBot/internal/collector"
	"github.com/DevZro/StockBot/internal/config"
	"github.com/DevZro/StockBot/internal/feature"
	"github.com/DevZro/StockBot/internal/metrics"
	"github.com/DevZro/StockBot/internal/notifier"
	"github.com/DevZro/StockBot/internal/scheduler"
	"github.com/DevZro/StockBot/internal/scorer"
	"github.com/DevZro/StockBot/internal/server"
	"github.com/DevZro/StockBot/internal/store"
	"github.com/DevZro/StockBot/internal/updater"
)

func newLogger(level, format string) zerolog.Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil {
		lv = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(lv).With().Timestamp().Logger()
	if format == "console" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	mode := flag.String("mode", "run", "run | seed | train | grid")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("mode", *mode).Str("symbol", cfg.Symbol).Msg("StockBot starting")

	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0755); err != nil {
		log.Fatal().Err(err).Msg("create data dir")
	}

	st, err := store.Open(cfg.Database.SQLitePath, cfg.Horizons)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	engine := feature.NewEngine(cfg.Horizons)

	var fetcher collector.Fetcher
	if cfg.DataSource.Provider == "alphavantage" {
		fetcher = collector.NewAlphaVantageFetcher(cfg.DataSource.APIKey, cfg.Proxy)
	} else {
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source ready")

	switch *mode {
	case "seed":
		runSeed(cfg, fetcher, engine, st, log)
	case "train":
		runTrain(cfg, engine, st, log)
	case "grid":
		runGrid(cfg, engine, st, log)
	case "run":
		runService(cfg, fetcher, engine, st, log)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func runSeed(cfg *config.Config, fetcher collector.Fetcher, engine *feature.Engine, st *store.Store, log zerolog.Logger) {
	u := updater.New(updater.Config{Symbol: cfg.Symbol, Threshold: cfg.Threshold},
		fetcher, engine, nil, st, log)
	n, err := u.Seed()
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Int("rows", n).Msg("seed complete")
}

func runTrain(cfg *config.Config, engine *feature.Engine, st *store.Store, log zerolog.Logger) {
	ser, err := st.LoadSeries()
	if err != nil {
		log.Fatal().Err(err).Msg("load series")
	}
	X, y := engine.TrainingTable(ser)
	log.Info().Int("rows", len(X)).Msg("training table built")

	m, err := scorer.Train(X, y, scorer.TrainConfig{
		Epochs:       cfg.Model.Epochs,
		LearningRate: cfg.Model.LearningRate,
		L2:           cfg.Model.L2,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("train failed")
	}
	m.FeatureNames = engine.FeatureNames()

	if err := m.Save(cfg.Model.Path); err != nil {
		log.Fatal().Err(err).Msg("save model")
	}
	log.Info().Str("path", cfg.Model.Path).Msg("model saved")
}

func runGrid(cfg *config.Config, engine *feature.Engine, st *store.Store, log zerolog.Logger) {
	ser, err := st.LoadSeries()
	if err != nil {
		log.Fatal().Err(err).Msg("load series")
	}
	X, y := engine.TrainingTable(ser)

	factories := map[string]backtest.Factory{}
	for _, epochs := range []int{200, 500, 1000} {
		for _, l2 := range []float64{0.0001, 0.001, 0.01} {
			tc := scorer.TrainConfig{Epochs: epochs, LearningRate: cfg.Model.LearningRate, L2: l2}
			name := fmt.Sprintf("%d_%g", epochs, l2)
			factories[name] = func() backtest.Trainer { return &scorer.Trainer{Config: tc} }
		}
	}

	thresholds := backtest.DefaultThresholds()
	cells, err := backtest.Grid(X, y, factories, thresholds, backtest.DefaultStart, backtest.DefaultStep)
	if err != nil {
		log.Fatal().Err(err).Msg("grid search failed")
	}

	for _, cell := range cells {
		fmt.Printf("model %s\n", cell.Name)
		for k, th := range thresholds {
			fmt.Printf("  threshold %.3f  precision %.4f  flagged %.4f\n",
				th, cell.Precision[k], cell.PctFlagged[k])
		}
	}
}

func runService(cfg *config.Config, fetcher collector.Fetcher, engine *feature.Engine, st *store.Store, log zerolog.Logger) {
	model, err := scorer.Load(cfg.Model.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Model.Path).Msg("load model (run seed + train first)")
	}

	u := updater.New(updater.Config{Symbol: cfg.Symbol, Threshold: cfg.Threshold},
		fetcher, engine, model, st, log)

	var n notifier.Notifier = notifier.NoopNotifier{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		n = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		log.Info().Msg("telegram notifier enabled")
	}

	m := metrics.New()
	if ser, err := st.LoadSeries(); err == nil {
		m.SetSeriesRows(ser.Len())
	}

	sched := scheduler.New(u, n, cfg.Symbol, m, log)
	if err := sched.Register(cfg.Schedule.DailyCron); err != nil {
		log.Fatal().Err(err).Msg("register cron task")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Threshold:       cfg.Threshold,
	}, st, engine, model, u, m, log)
	srv.Start()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing daily cycle now")
		go sched.RunNow()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("StockBot stopped")
}
