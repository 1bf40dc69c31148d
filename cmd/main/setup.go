package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-metrics/src/config"
	"market-metrics/src/events"
	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/pipeline"
	"market-metrics/src/query"
	"market-metrics/src/server"
	"market-metrics/src/storage"
	"market-metrics/src/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// application holds the wired components shared by every mode.
type application struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       interfaces.IDatabase
	Runner   *pipeline.Runner
	Query    *query.Service
	Server   *server.QueryServer
	Registry *prometheus.Registry

	closers []func() error
	closed  bool
}

// -----------------------------------------------------------------------------

func setup(ctx context.Context, cfg *config.Config, withServer bool, log *logger.Logger) (*application, error) {
	app := &application{Config: cfg, Logger: log, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 1. Store
	db, err := storage.NewDatabase(cfg.MConfig, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)

	timeout := time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
	app.Query = query.NewService(db, timeout, log.Named("query"))
	app.Query.PreferredSource = cfg.Ingest.Source

	// 2. Symbol locks
	locker, err := newLocker(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	// 3. Report sinks
	sinks := events.MultiSink{&events.LogSink{Logger: log.Named("reports")}}
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafka := events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		sinks = append(sinks, kafka)
		app.closers = append(app.closers, kafka.Close)
		log.Info("Publishing run reports to kafka topic %s", cfg.Events.KafkaTopic)
	}
	if withServer {
		app.Server = server.NewQueryServer(cfg.MConfig, app.Query, db, app.Registry, log.Named("server"))
		sinks = append(sinks, app.Server)
	}

	// 4. Pipeline
	metrics := pipeline.NewMetrics(app.Registry)
	app.Runner = pipeline.NewRunner(cfg.MConfig, db, locker, sinks, metrics, log.Named("pipeline"))

	return app, nil
}

// -----------------------------------------------------------------------------

func newLocker(ctx context.Context, app *application) (interfaces.ISymbolLocker, error) {
	p := app.Config.Pipeline
	if p.LockBackend != "redis" {
		return utils.NewMemorySymbolLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.RedisAddr,
		Password: p.RedisPassword,
		DB:       p.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", p.RedisAddr, err)
	}
	app.closers = append(app.closers, client.Close)

	ttl := time.Duration(p.LockTTLSeconds) * time.Second
	return utils.NewRedisSymbolLocker(client, ttl, app.Logger.Named("locks")), nil
}

// -----------------------------------------------------------------------------

// Close releases resources in reverse order of acquisition.
func (a *application) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------

func logSummary(log *logger.Logger, stage string, reports []models.MRunReport) {
	var ok, noData, failed, written, dropped int
	for i := range reports {
		r := &reports[i]
		written += r.RecordsWritten
		dropped += r.RowsDropped
		switch {
		case r.Failed():
			failed++
			log.Error("%s %s failed (%s): %s", stage, r.Symbol, r.ErrorClass, r.Error)
		case r.NoData:
			noData++
		default:
			ok++
		}
	}
	log.Info("%s finished: %d ok, %d no data, %d failed, %d records written, %d rows dropped",
		stage, ok, noData, failed, written, dropped)
}
