package main

import (
	"context"
	"errors"

	"market-metrics/src/grpc_control"
	"market-metrics/src/pipeline"

	"golang.org/x/sync/errgroup"
)

// serve runs the query server, the gRPC health service and the scheduler
// until ctx is cancelled or one of them fails.
func serve(ctx context.Context, app *application) error {
	cfg := app.Config
	g, ctx := errgroup.WithContext(ctx)

	// HTTP query server
	g.Go(func() error {
		return app.Server.Start()
	})

	// gRPC health
	var health *grpc_control.HealthService
	if cfg.GrpcPort > 0 {
		health = grpc_control.NewHealthService(cfg.MConfig, app.DB, app.Logger.Named("grpc"))
		g.Go(health.Start)
		go health.Watch(ctx)
	}

	// Scheduled runs; stop serving when they keep failing.
	tripCtx, trip := context.WithCancel(ctx)
	sched := pipeline.NewScheduler(tripCtx, cfg.MConfig, app.Runner, app.Logger.Named("scheduler"), trip)
	if err := sched.RegisterAll(); err != nil {
		trip()
		app.Server.Stop()
		if health != nil {
			health.Stop()
		}
		return err
	}
	sched.Start()

	g.Go(func() error {
		<-tripCtx.Done()
		app.Logger.Info("Shutting down...")
		sched.Stop()
		if health != nil {
			health.Stop()
		}
		if err := app.Server.Stop(); err != nil {
			return err
		}
		if ctx.Err() == nil {
			return errors.New("scheduled runs kept failing")
		}
		return nil
	})

	return g.Wait()
}
