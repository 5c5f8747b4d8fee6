package main

import (
	"context"
	"flag"
	"time"

	"tradepipe/internal/app"
	"tradepipe/internal/execution"
	"tradepipe/internal/ops"
	"tradepipe/pkg/conn"
	"tradepipe/pkg/transport"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		app.Exit("executor", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := app.SignalContext(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	metrics, stopObs, err := app.StartObservability(gctx, g, "executor", cfg.Obs)
	if err != nil {
		return err
	}
	defer stopObs()

	// The journal outlives the signal: orders drained after it are still recorded.
	journal, err := openJournal(context.WithoutCancel(ctx), cfg.Execution.Journal)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logs.Errorf("close journal, err: %+v", err)
		}
	}()

	sim := execution.NewSimulator(cfg.Execution.MaxSlippage, app.RandomFactory(cfg.Random).R("execution"))
	service := execution.NewService(sim, journal,
		execution.WithMetrics(metrics),
		execution.WithQueueSize(cfg.Execution.QueueSize),
	)

	endpoint := cfg.Execution.Endpoint
	srv, err := transport.NewServer(endpoint.Network, endpoint.Address)
	if err != nil {
		return errors.Wrap(err, "new server").With("network", endpoint.Network).With("address", endpoint.Address)
	}
	lastStats := time.Now()
	srv.OnIdle = func() {
		if time.Since(lastStats) >= cfg.StatsInterval {
			service.LogStats()
			lastStats = time.Now()
		}
	}
	if err := srv.Listen(); err != nil {
		return errors.Wrap(err, "listen").With("address", endpoint.Address)
	}
	defer srv.Close()

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		service.Run(context.WithoutCancel(ctx))
	}()

	logs.Infof("executor listening on %s %s", srv.Network(), srv.Addr())
	g.Go(func() error {
		return srv.Serve(gctx, service.HandleConn)
	})

	err = g.Wait()
	service.Close()
	select {
	case <-consumed:
	case <-time.After(cfg.ShutdownTimeout):
		logs.Errorf("order queue not drained within %s", cfg.ShutdownTimeout)
	}

	logs.Info("final statistics")
	service.LogStats()
	return err
}

func openJournal(ctx context.Context, cfg ops.JournalConfig) (execution.Journal, error) {
	var journal execution.MultiJournal

	if cfg.Path != "" {
		fj, err := execution.OpenFileJournal(ctx, cfg.Path)
		if err != nil {
			return nil, errors.Wrap(err, "open trade log").With("path", cfg.Path)
		}
		journal = append(journal, fj)
		logs.Infof("trade log: %s", fj.Path())
	}

	if cfg.Postgres != "" {
		pg, err := conn.NewPG(ctx, conn.PGOption{DSN: cfg.Postgres})
		if err != nil {
			_ = journal.Close()
			return nil, errors.Wrap(err, "connect postgres")
		}
		pj, err := execution.NewPGJournal(ctx, pg.DB(), pg.Close)
		if err != nil {
			_ = pg.Close()
			_ = journal.Close()
			return nil, errors.Wrap(err, "migrate executions table")
		}
		journal = append(journal, pj)
		logs.Info("execution journal: postgres")
	}

	if k := cfg.Kafka; len(k.Brokers) > 0 {
		journal = append(journal, execution.NewKafkaJournal(conn.NewKafkaWriter(conn.KafkaOption{
			Brokers: k.Brokers,
			Topic:   k.Topic,
		})))
		logs.Infof("execution journal: kafka %v topic %s", k.Brokers, k.Topic)
	}

	return journal, nil
}
