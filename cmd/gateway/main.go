package main

import (
	"context"
	"flag"

	"tradepipe/internal/app"
	"tradepipe/internal/gateway"
	"tradepipe/pkg/transport"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		app.Exit("gateway", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	maxClients := flag.Int("max-clients", 0, "Concurrent client limit (0=unlimited)")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := app.SignalContext(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	metrics, stopObs, err := app.StartObservability(gctx, g, "gateway", cfg.Obs)
	if err != nil {
		return err
	}
	defer stopObs()

	gw, err := gateway.New(gateway.Config{
		Symbols:            cfg.Symbols,
		MarketDataInterval: cfg.Gateway.MarketDataInterval,
		NewsInterval:       cfg.Gateway.NewsInterval,
		PollInterval:       cfg.Gateway.PollInterval,
		HeartbeatInterval:  cfg.StatsInterval,
		Depth:              cfg.Gateway.Depth,
		ShutdownGrace:      cfg.ShutdownTimeout,
	}, app.RandomFactory(cfg.Random), gateway.WithMetrics(metrics))
	if err != nil {
		return err
	}

	endpoint := cfg.Gateway.Endpoint
	srv, err := transport.NewServer(endpoint.Network, endpoint.Address)
	if err != nil {
		return errors.Wrap(err, "new server").With("network", endpoint.Network).With("address", endpoint.Address)
	}
	srv.Limit = *maxClients
	if err := srv.Listen(); err != nil {
		return errors.Wrap(err, "listen").With("address", endpoint.Address)
	}
	defer srv.Close()

	logs.Infof("gateway listening on %s %s, symbols %v", srv.Network(), srv.Addr(), cfg.Symbols)
	g.Go(func() error {
		return srv.Serve(gctx, gw.HandleConn)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	snap := metrics.Snapshot()
	logs.Infof("gateway stopped, sent %v, send failures %d", snap.Sent, snap.SendFailures)
	return nil
}
