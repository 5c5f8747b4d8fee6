package main

import (
	"context"
	"flag"

	"tradepipe/internal/app"
	"tradepipe/internal/protocol"
	"tradepipe/internal/shm"
	"tradepipe/internal/strategy"
	"tradepipe/pkg/retry"
	"tradepipe/pkg/transport"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		app.Exit("strategy", err)
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

	metrics, stopObs, err := app.StartObservability(gctx, g, "strategy", cfg.Obs)
	if err != nil {
		return err
	}
	defer stopObs()

	opts := []strategy.Option{strategy.WithMetrics(metrics)}
	if cfg.Strategy.AttachStore {
		store, err := shm.Attach(cfg.Store.Name, shm.Options{Dir: cfg.Store.Dir})
		if err != nil {
			logs.Infof("shared book unavailable, continuing without it, err: %+v", err)
		} else {
			defer store.Close()
			opts = append(opts, strategy.WithBook(store))
		}
	}

	policy := app.RetryPolicy(cfg.Retry)
	orders, err := dial(gctx, cfg.Execution.Endpoint.Network, cfg.Execution.Endpoint.Address, policy)
	if err != nil {
		return errors.Wrap(err, "dial execution").With("address", cfg.Execution.Endpoint.Address)
	}
	defer orders.Close()

	feed, err := dial(gctx, cfg.Gateway.Endpoint.Network, cfg.Gateway.Endpoint.Address, policy)
	if err != nil {
		return errors.Wrap(err, "dial gateway").With("address", cfg.Gateway.Endpoint.Address)
	}
	defer feed.Close()
	stopClose := transport.CloseOnDone(gctx, feed)
	defer stopClose()

	engine := strategy.NewEngine(strategy.Config{
		Alpha:              cfg.Strategy.Alpha,
		PriceThreshold:     cfg.Strategy.PriceThreshold,
		SentimentThreshold: cfg.Strategy.SentimentThreshold,
		MinQuantity:        cfg.Strategy.MinQuantity,
		MaxQuantity:        cfg.Strategy.MaxQuantity,
		StatsInterval:      cfg.StatsInterval,
	}, orders, app.RandomFactory(cfg.Random).R("strategy"), opts...)

	logs.Infof("strategy running, feed %s, orders %s", cfg.Gateway.Endpoint.Address, cfg.Execution.Endpoint.Address)
	g.Go(func() error {
		defer stop()
		return app.PeerGone(engine.Run(gctx, feed))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := orders.Send(protocol.Shutdown{Reason: "strategy stopped"}); err != nil {
		logs.Errorf("notify execution, err: %+v", err)
	}
	st := engine.Stats()
	logs.Infof("strategy stopped, signals %d, orders %d, send failures %d", st.Signals, st.Orders, st.SendFailures)
	return nil
}

func dial(ctx context.Context, network, address string, policy retry.Policy) (*protocol.Conn, error) {
	client, err := transport.NewClient(network, address, policy)
	if err != nil {
		return nil, err
	}
	raw, err := client.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.NewConn(raw), nil
}
