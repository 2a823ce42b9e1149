// Command venues opens both connection profiles, optionally provisions the schema and seeds
// sample data through the facade, and releases every connection on exit.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AntonStoeckl/venuestore-go/config"
	"github.com/AntonStoeckl/venuestore-go/sampledata"
	"github.com/AntonStoeckl/venuestore-go/venuestore"
	"github.com/AntonStoeckl/venuestore-go/venuestore/postgresengine"
	"github.com/AntonStoeckl/venuestore-go/venuestore/promadapters"
)

const (
	adapterPGX  = "pgx"
	adapterSQL  = "sql"
	adapterSQLX = "sqlx"

	metricsShutdownTimeout = 5 * time.Second
)

type flags struct {
	envFile         string
	adapter         string
	logLevel        string
	drop            bool
	provision       bool
	seed            bool
	singers         int
	albumsPerSinger int
	tracksPerAlbum  int
	venues          int
	concerts        int
	concurrency     int
	metricsAddr     string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "venues: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.envFile, "env-file", "", "env file to load, ./.env if empty")
	flag.StringVar(&f.adapter, "adapter", adapterPGX, "database adapter: pgx, sql or sqlx")
	flag.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flag.BoolVar(&f.drop, "drop", false, "drop all tables before provisioning")
	flag.BoolVar(&f.provision, "provision", false, "create tables and indexes if they do not exist")
	flag.BoolVar(&f.seed, "seed", false, "seed sample data")
	flag.IntVar(&f.singers, "singers", 10, "singers to seed")
	flag.IntVar(&f.albumsPerSinger, "albums-per-singer", 2, "albums to seed per singer")
	flag.IntVar(&f.tracksPerAlbum, "tracks-per-album", 5, "tracks to seed per album")
	flag.IntVar(&f.venues, "venues", 3, "venues to seed")
	flag.IntVar(&f.concerts, "concerts", 10, "concerts to seed")
	flag.IntVar(&f.concurrency, "concurrency", 4, "concurrent writes while seeding")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")

	flag.Parse()

	return f
}

func run() error {
	f := parseFlags()

	logger, err := newLogger(f.logLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var envFiles []string
	if f.envFile != "" {
		envFiles = append(envFiles, f.envFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	engineOptions := append(cfg.EngineOptions(), postgresengine.WithLogger(logger))

	engine, release, err := openEngine(ctx, cfg, f.adapter, engineOptions)
	if err != nil {
		return err
	}
	defer release()

	registry := prometheus.NewRegistry()
	if f.metricsAddr != "" {
		shutdown := serveMetrics(f.metricsAddr, registry, logger)
		defer shutdown()
	}

	facadeOptions := append(cfg.FacadeOptions(),
		venuestore.WithLogger(logger),
		venuestore.WithMetrics(promadapters.NewMetricsCollector(registry)),
	)

	facade, err := venuestore.NewFacade(engine, facadeOptions...)
	if err != nil {
		return err
	}

	if err := prepareSchema(ctx, engine, f, logger); err != nil {
		return err
	}

	if f.seed {
		return seed(ctx, facade, f, logger)
	}

	return nil
}

// openEngine opens both profiles with the chosen adapter. release closes them on every path.
func openEngine(
	ctx context.Context,
	cfg config.Config,
	adapter string,
	options []postgresengine.Option,
) (*postgresengine.Engine, func(), error) {

	switch adapter {
	case adapterPGX:
		strong, stale, err := cfg.OpenPGXPools(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("opening pgx pools: %w", err)
		}

		release := func() {
			strong.Close()
			if stale != nil {
				stale.Close()
			}
		}

		engine, err := postgresengine.NewEngineFromPGXPools(strong, stale, options...)
		if err != nil {
			release()
			return nil, nil, err
		}

		return engine, release, nil

	case adapterSQL, adapterSQLX:
		strong, stale, err := cfg.OpenSQLX(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database handles: %w", err)
		}

		release := func() {
			_ = strong.Close()
			if stale != nil {
				_ = stale.Close()
			}
		}

		var engine *postgresengine.Engine
		if adapter == adapterSQLX {
			engine, err = postgresengine.NewEngineFromSQLX(strong, stale, options...)
		} else {
			engine, err = postgresengine.NewEngineFromSQLDBs(strong.DB, sqlDB(stale), options...)
		}

		if err != nil {
			release()
			return nil, nil, err
		}

		return engine, release, nil

	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", adapter)
	}
}

func sqlDB(db *sqlx.DB) *sql.DB {
	if db == nil {
		return nil
	}

	return db.DB
}

func prepareSchema(ctx context.Context, engine *postgresengine.Engine, f flags, logger *slog.Logger) error {
	if f.drop {
		if err := engine.DropSchema(ctx); err != nil {
			return fmt.Errorf("dropping schema: %w", err)
		}

		logger.Info("schema dropped")
	}

	if f.provision {
		if err := engine.ProvisionSchema(ctx); err != nil {
			return fmt.Errorf("provisioning schema: %w", err)
		}

		logger.Info("schema provisioned")
	}

	return nil
}

func seed(ctx context.Context, facade *venuestore.Facade, f flags, logger *slog.Logger) error {
	start := time.Now()

	d, err := sampledata.Seed(ctx, facade,
		sampledata.WithCounts(f.singers, f.albumsPerSinger, f.tracksPerAlbum, f.venues, f.concerts),
		sampledata.WithConcurrency(f.concurrency),
		sampledata.WithSeed(uint64(start.UnixNano())),
	)

	logger.Info("seeded sample data",
		"singers", len(d.Singers),
		"albums", len(d.Albums),
		"tracks", len(d.Tracks),
		"venues", len(d.Venues),
		"concerts", len(d.Concerts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err.Error())
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(ctx)
	}
}
