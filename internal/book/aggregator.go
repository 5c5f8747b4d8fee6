package book

import (
	"context"
	"errors"
	"time"

	"tradepipe/internal/obs"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/exception"

	"github.com/yanun0323/logs"
)

// Publisher receives the book of the primary symbol. *shm.Store satisfies it.
type Publisher interface {
	Write(bids, asks []protocol.Level) error
}

// Mirror copies a published book to a remote cache.
type Mirror interface {
	Mirror(ctx context.Context, b Book) error
}

// Source yields decoded frames. *protocol.Conn satisfies it.
type Source interface {
	Read() (protocol.Message, error)
}

// Book is the latest market data snapshot of one symbol.
type Book struct {
	Symbol    string           `json:"symbol"`
	Timestamp float64          `json:"timestamp"`
	Bids      []protocol.Level `json:"bids"`
	Asks      []protocol.Level `json:"asks"`
	LastPrice float64          `json:"last_price"`
	Volume    int64            `json:"volume"`
}

type Config struct {
	// PrimarySymbol is the only symbol published to the store.
	PrimarySymbol string
	StatsInterval time.Duration
}

// Stats counts updates since start.
type Stats struct {
	Updates   uint64
	Published uint64
	Rejected  uint64
	Symbols   int
}

// Aggregator keeps the latest book per symbol and republishes the primary
// symbol. All state is owned by the goroutine calling Run or Handle.
type Aggregator struct {
	cfg     Config
	pub     Publisher
	mirror  Mirror
	metrics *obs.Metrics
	now     func() time.Time

	books map[string]Book
	stats Stats

	windowUpdates uint64
	lastStats     time.Time
}

type Option func(*Aggregator)

func WithMirror(m Mirror) Option {
	return func(a *Aggregator) { a.mirror = m }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(cfg Config, pub Publisher, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:   cfg,
		pub:   pub,
		now:   time.Now,
		books: make(map[string]Book),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.lastStats = a.now()
	return a
}

// Run consumes src until a Shutdown message, a broken connection or ctx is
// done. Messages that fail to decode are logged and skipped.
func (a *Aggregator) Run(ctx context.Context, src Source) error {
	for {
		msg, err := src.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, exception.ErrDecode) {
				a.metrics.IncDecodeError()
				logs.Errorf("decode feed message, err: %+v", err)
				continue
			}
			if errors.Is(err, exception.ErrConnectionBroken) {
				logs.Info("feed disconnected")
			}
			return err
		}

		if stop := a.Handle(ctx, msg); stop {
			logs.Info("received shutdown message")
			return nil
		}
	}
}

// Handle applies one message and reports whether the feed asked to stop.
func (a *Aggregator) Handle(ctx context.Context, msg protocol.Message) (stop bool) {
	start := a.now()
	defer func() { a.metrics.ObserveHandle(a.now().Sub(start)) }()

	switch p := msg.Payload.(type) {
	case protocol.MarketData:
		a.metrics.ObserveMessage(msg.Kind, p.Timestamp, start)
		a.apply(ctx, p)
		a.maybeLogStats()
	case protocol.Heartbeat:
		a.metrics.ObserveMessage(msg.Kind, p.Timestamp, start)
		a.maybeLogStats()
	case protocol.Shutdown:
		a.metrics.ObserveMessage(msg.Kind, 0, start)
		return true
	default:
		a.metrics.ObserveMessage(msg.Kind, 0, start)
	}
	return false
}

func (a *Aggregator) apply(ctx context.Context, md protocol.MarketData) {
	b := Book{
		Symbol:    md.Symbol,
		Timestamp: md.Timestamp,
		Bids:      md.Bids,
		Asks:      md.Asks,
		LastPrice: md.LastPrice,
		Volume:    md.Volume,
	}
	a.books[md.Symbol] = b
	a.stats.Updates++
	a.windowUpdates++

	if md.Symbol != a.cfg.PrimarySymbol || a.pub == nil {
		return
	}

	if err := a.pub.Write(md.Bids, md.Asks); err != nil {
		a.stats.Rejected++
		if errors.Is(err, exception.ErrCapacityExceeded) {
			logs.Errorf("book of %s does not fit the store, bids %d, asks %d", md.Symbol, len(md.Bids), len(md.Asks))
		} else {
			logs.Errorf("publish book %s, err: %+v", md.Symbol, err)
		}
		return
	}
	a.stats.Published++

	if a.mirror != nil {
		if err := a.mirror.Mirror(ctx, b); err != nil {
			logs.Errorf("mirror book %s, err: %+v", md.Symbol, err)
		}
	}
}

func (a *Aggregator) maybeLogStats() {
	if a.cfg.StatsInterval <= 0 {
		return
	}
	now := a.now()
	elapsed := now.Sub(a.lastStats)
	if elapsed < a.cfg.StatsInterval {
		return
	}
	rate := float64(a.windowUpdates) / elapsed.Seconds()
	logs.Infof("update rate: %.2f updates/sec, total updates: %d, published: %d", rate, a.stats.Updates, a.stats.Published)
	a.windowUpdates = 0
	a.lastStats = now
}

// Book returns the latest snapshot of symbol.
func (a *Aggregator) Book(symbol string) (Book, bool) {
	b, ok := a.books[symbol]
	return b, ok
}

func (a *Aggregator) Stats() Stats {
	s := a.stats
	s.Symbols = len(a.books)
	return s
}
