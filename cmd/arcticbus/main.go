package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"arcticbus/internal/advisory"
	"arcticbus/internal/config"
	"arcticbus/internal/fetch"
	"arcticbus/internal/handler"
	"arcticbus/internal/metrics"
	"arcticbus/internal/publisher"
	"arcticbus/internal/realtime"
	"arcticbus/internal/route"
	"arcticbus/internal/server"
	"arcticbus/internal/storage"
)

func main() {
	cfg := config.Load()

	// CLI flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.RoutePath, "route", cfg.RoutePath, "YAML route file (default: built-in Iqaluit loop)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database holding the route")
	flag.BoolVar(&cfg.ImportRoute, "import-route", false, "Store the -route file in -db, then exit")
	flag.Parse()

	logger := cfg.Logger(os.Stderr)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var db *storage.DB
	if cfg.DBPath != "" {
		var err error
		db, err = storage.Open(cfg.DBPath, logger)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
	}

	if cfg.ImportRoute {
		top, err := route.LoadFile(cfg.RoutePath)
		if err != nil {
			return err
		}
		if err := db.ReplaceRoute(ctx, top); err != nil {
			return err
		}
		logger.Info("route imported", "name", top.Name(), "stops", top.Count(), "db", cfg.DBPath)
		return nil
	}

	top, err := loadTopology(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	if !top.Valid(cfg.UserStop) {
		return fmt.Errorf("user stop %d out of range for %d stops", cfg.UserStop, top.Count())
	}

	met := metrics.NewCollector()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	relays, err := fetch.SelectRelays(cfg.Relays)
	if err != nil {
		return err
	}
	fetcher := fetch.New(fetch.BuildStrategies(httpClient, relays), met, logger)

	store := realtime.NewStore(cfg.UserStop)
	poller := realtime.NewPoller(cfg.FeedURL, cfg.PollInterval, fetcher, top, store, met, logger)

	var backend advisory.Backend
	if cfg.GeminiAPIKey != "" {
		gb, err := advisory.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, httpClient)
		if err != nil {
			return err
		}
		backend = gb
	} else {
		logger.Warn("no GEMINI_API_KEY set, advisories use the local rule only")
	}
	svc := advisory.NewService(backend, cfg.AdvisoryTimeout, logger)
	dispatcher := advisory.NewDispatcher(
		advisory.NewThrottle(cfg.AdvisorySpacing, cfg.AdvisoryHibernate),
		svc, top, cfg.ManualCooldown, met, logger,
	)

	poller.OnUpdate(func(ctx context.Context, snap realtime.Snapshot, _ bool) {
		go dispatcher.Auto(ctx, snap.Route.BusStopIndex, snap.Route.UserStopIndex)
	})

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
		fwd := publisher.NewForwarder(pub, top, met, logger)
		poller.OnUpdate(fwd.Position)
		dispatcher.OnAdvice(fwd.Advisory)
	}

	go poller.Start(ctx)

	h := handler.New(top, store, poller, dispatcher, cfg.VehicleID, cfg.SSEInterval, logger)
	srv := server.New(cfg.Port, server.Router(h, met.Handler(), logger), logger)
	logger.Info("tracking",
		"route", top.Name(),
		"stops", top.Count(),
		"feed", cfg.FeedURL,
		"strategies", fetcher.Strategies(),
		"interval", cfg.PollInterval,
	)
	return srv.Run(ctx)
}

// loadTopology prefers an explicit route file, then a route stored in the
// database, then the built-in route.
func loadTopology(ctx context.Context, cfg *config.Config, db *storage.DB, logger *slog.Logger) (*route.Topology, error) {
	if cfg.RoutePath != "" {
		logger.Info("loading route file", "path", cfg.RoutePath)
		return route.LoadFile(cfg.RoutePath)
	}
	if db != nil && db.HasRoute(ctx) {
		logger.Info("loading route from database", "path", cfg.DBPath)
		return db.LoadRoute(ctx)
	}
	return route.Default(), nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (publisher.Publisher, error) {
	switch {
	case cfg.NATSURL != "":
		logger.Info("publishing events to nats", "url", cfg.NATSURL)
		return publisher.NewNATSPublisher(cfg.NATSURL, logger)
	case cfg.AMQPURL != "":
		logger.Info("publishing events to amqp", "exchange", publisher.Exchange)
		return publisher.NewAMQPPublisher(cfg.AMQPURL)
	}
	return nil, nil
}
