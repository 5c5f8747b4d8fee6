package main

import (
	"context"
	"flag"

	"tradepipe/internal/app"
	"tradepipe/internal/book"
	"tradepipe/internal/protocol"
	"tradepipe/internal/shm"
	"tradepipe/pkg/conn"
	"tradepipe/pkg/transport"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		app.Exit("book", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	unlink := flag.Bool("unlink", true, "Remove the shared segment on exit")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := app.SignalContext(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	metrics, stopObs, err := app.StartObservability(gctx, g, "book", cfg.Obs)
	if err != nil {
		return err
	}
	defer stopObs()

	store, err := shm.Create(cfg.Store.Name, shm.Options{Dir: cfg.Store.Dir, Capacity: cfg.Store.Capacity})
	if err != nil {
		return errors.Wrap(err, "create store").With("name", cfg.Store.Name).With("dir", cfg.Store.Dir)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logs.Errorf("close store, err: %+v", err)
		}
		if *unlink {
			if err := store.Unlink(); err != nil {
				logs.Errorf("unlink store, err: %+v", err)
			}
		}
	}()
	logs.Infof("store %s created, capacity %d", store.Path(), store.Capacity())

	opts := []book.Option{book.WithMetrics(metrics)}
	if mc := cfg.Book.Mirror; mc.Address != "" {
		rdb, err := conn.NewRedis(ctx, conn.RedisOption{Address: mc.Address, Password: mc.Password, DB: mc.DB})
		if err != nil {
			return errors.Wrap(err, "connect redis").With("address", mc.Address)
		}
		defer rdb.Close()
		opts = append(opts, book.WithMirror(book.NewRedisMirror(rdb, mc.Key, mc.TTL)))
		logs.Infof("mirroring %s to redis %s", cfg.Book.PrimarySymbol, mc.Address)
	}

	agg := book.New(book.Config{
		PrimarySymbol: cfg.Book.PrimarySymbol,
		StatsInterval: cfg.StatsInterval,
	}, store, opts...)

	endpoint := cfg.Gateway.Endpoint
	client, err := transport.NewClient(endpoint.Network, endpoint.Address, app.RetryPolicy(cfg.Retry))
	if err != nil {
		return err
	}
	raw, err := client.Dial(gctx)
	if err != nil {
		return errors.Wrap(err, "dial gateway").With("address", endpoint.Address)
	}
	feed := protocol.NewConn(raw)
	defer feed.Close()
	stopClose := transport.CloseOnDone(gctx, feed)
	defer stopClose()

	logs.Infof("book aggregating from %s, primary symbol %s", endpoint.Address, cfg.Book.PrimarySymbol)
	g.Go(func() error {
		defer stop()
		return app.PeerGone(agg.Run(gctx, feed))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	st := agg.Stats()
	logs.Infof("book stopped, updates %d, published %d, rejected %d, symbols %d", st.Updates, st.Published, st.Rejected, st.Symbols)
	return nil
}
