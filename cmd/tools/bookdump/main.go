package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"tradepipe/internal/app"
	"tradepipe/internal/protocol"
	"tradepipe/internal/shm"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		app.Exit("bookdump", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	interval := flag.Duration("interval", time.Second, "Poll interval")
	count := flag.Int("count", 0, "Number of samples (0=until interrupted)")
	levels := flag.Bool("levels", false, "Print every level, not only the top of book")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *interval <= 0 {
		return errors.New("interval must be > 0")
	}

	store, err := shm.Attach(cfg.Store.Name, shm.Options{Dir: cfg.Store.Dir})
	if err != nil {
		return errors.Wrap(err, "attach store").With("name", cfg.Store.Name).With("dir", cfg.Store.Dir)
	}
	defer store.Close()

	ctx, stop := app.SignalContext(context.Background())
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logs.Infof("reading %s every %s", store.Path(), *interval)
	for n := 0; *count == 0 || n < *count; n++ {
		dump(store, *levels)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func dump(store *shm.Store, levels bool) {
	snap, ok := store.Read()
	if !ok {
		fmt.Println("no book published")
		return
	}

	age := time.Since(protocol.Time(snap.Timestamp)).Round(time.Millisecond)
	if bid, ask, ok := store.BestBidAsk(); ok {
		fmt.Printf("%s bid %.2f ask %.2f spread %.4f age %s\n",
			protocol.Time(snap.Timestamp).Format(time.RFC3339Nano), bid, ask, ask-bid, age)
	} else {
		fmt.Printf("%s one-sided book (%d bids, %d asks) age %s\n",
			protocol.Time(snap.Timestamp).Format(time.RFC3339Nano), len(snap.Bids), len(snap.Asks), age)
	}
	if !levels {
		return
	}
	for i := range max(len(snap.Bids), len(snap.Asks)) {
		fmt.Printf("  %2d  %s  |  %s\n", i, level(snap.Bids, i), level(snap.Asks, i))
	}
}

func level(side []protocol.Level, i int) string {
	if i >= len(side) {
		return fmt.Sprintf("%21s", "")
	}
	return fmt.Sprintf("%10.2f x %8.2f", side[i].Price(), side[i].Size())
}
