package strategy

import (
	"context"
	"errors"
	"time"

	"tradepipe/internal/ids"
	"tradepipe/internal/obs"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/exception"
	"tradepipe/pkg/rng"

	"github.com/yanun0323/logs"
)

// OrderSender delivers orders to the execution simulator. *protocol.Conn satisfies it.
type OrderSender interface {
	Send(p protocol.Payload) error
}

// BookReader is the optional read-only view of the shared book. *shm.Store satisfies it.
type BookReader interface {
	BestBidAsk() (bid, ask float64, ok bool)
}

// Source yields decoded frames. *protocol.Conn satisfies it.
type Source interface {
	Read() (protocol.Message, error)
}

type Config struct {
	// Alpha weights a new sentiment score against the running average.
	Alpha              float64
	PriceThreshold     float64
	SentimentThreshold float64
	MinQuantity        int
	MaxQuantity        int
	StatsInterval      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Alpha:              0.3,
		PriceThreshold:     0.005,
		SentimentThreshold: 0.3,
		MinQuantity:        10,
		MaxQuantity:        100,
		StatsInterval:      10 * time.Second,
	}
}

type Stats struct {
	Signals      uint64
	Orders       uint64
	SendFailures uint64
	Symbols      int
}

// Engine turns market data and news into gated orders. It is an actor: all
// state is owned by the goroutine calling Run or Handle.
type Engine struct {
	cfg     Config
	sender  OrderSender
	rnd     rng.Source
	book    BookReader
	metrics *obs.Metrics
	now     func() time.Time

	lastPrices map[string]float64
	sentiment  map[string]float64

	stats     Stats
	lastStats time.Time
}

type Option func(*Engine)

// WithBook attaches the shared book for stats reporting.
func WithBook(b BookReader) Option {
	return func(e *Engine) { e.book = b }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cfg Config, sender OrderSender, rnd rng.Source, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		sender:     sender,
		rnd:        rnd,
		now:        time.Now,
		lastPrices: make(map[string]float64),
		sentiment:  make(map[string]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lastStats = e.now()
	return e
}

// Run consumes src until a Shutdown message, a broken connection or ctx is
// done. Undecodable messages are logged and skipped.
func (e *Engine) Run(ctx context.Context, src Source) error {
	for {
		msg, err := src.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, exception.ErrDecode) {
				e.metrics.IncDecodeError()
				logs.Errorf("decode feed message, err: %+v", err)
				continue
			}
			return err
		}

		if stop := e.Handle(msg); stop {
			logs.Info("received shutdown message")
			return nil
		}
	}
}

// Handle applies one message and reports whether the feed asked to stop.
func (e *Engine) Handle(msg protocol.Message) (stop bool) {
	now := e.now()
	switch p := msg.Payload.(type) {
	case protocol.MarketData:
		e.metrics.ObserveMessage(msg.Kind, p.Timestamp, now)
		e.onMarketData(p)
	case protocol.NewsSentiment:
		e.metrics.ObserveMessage(msg.Kind, p.Timestamp, now)
		e.onNews(p)
	case protocol.Shutdown:
		e.metrics.ObserveMessage(msg.Kind, 0, now)
		return true
	default:
		e.metrics.ObserveMessage(msg.Kind, 0, now)
	}
	e.maybeLogStats(now)
	return false
}

func (e *Engine) onNews(n protocol.NewsSentiment) {
	a := e.cfg.Alpha
	e.sentiment[n.Symbol] = a*n.Score + (1-a)*e.sentiment[n.Symbol]
}

func (e *Engine) onMarketData(md protocol.MarketData) {
	price := md.LastPrice
	if !(price > 0) {
		return
	}

	sig, ok := e.evaluate(md.Symbol, price)
	e.lastPrices[md.Symbol] = price
	if !ok {
		return
	}

	e.stats.Signals++
	logs.Infof("signal generated: %s %s @ %.2f, change %.4f, sentiment %.3f", sig.Action, sig.Symbol, sig.Price, sig.PriceChange, sig.Sentiment)

	order := e.buildOrder(sig)
	if err := e.sender.Send(order); err != nil {
		e.stats.SendFailures++
		e.metrics.IncSendFailure()
		logs.Errorf("send order %s, err: %+v", order.OrderID, err)
		return
	}
	e.stats.Orders++
	e.metrics.IncSent(protocol.KindOrder)
	logs.Infof("order sent: %s", order.OrderID)
}

// evaluate gates a price against the previous one and the current sentiment.
// The first price of a symbol never fires.
func (e *Engine) evaluate(symbol string, price float64) (protocol.TradingSignal, bool) {
	prev, ok := e.lastPrices[symbol]
	if !ok || prev == 0 {
		return protocol.TradingSignal{}, false
	}

	change := (price - prev) / prev
	s := e.sentiment[symbol]

	var action protocol.Side
	switch {
	case change > e.cfg.PriceThreshold && s > e.cfg.SentimentThreshold:
		action = protocol.SideBuy
	case change < -e.cfg.PriceThreshold && s < -e.cfg.SentimentThreshold:
		action = protocol.SideSell
	default:
		return protocol.TradingSignal{}, false
	}

	return protocol.TradingSignal{
		Symbol:      symbol,
		Action:      action,
		Price:       price,
		PriceChange: change,
		Sentiment:   s,
		Timestamp:   protocol.Timestamp(e.now()),
	}, true
}

func (e *Engine) buildOrder(sig protocol.TradingSignal) protocol.Order {
	return protocol.Order{
		OrderID:   ids.NewOrderID(),
		Symbol:    sig.Symbol,
		Side:      sig.Action,
		Price:     sig.Price,
		Quantity:  int64(rng.IntBetween(e.rnd, e.cfg.MinQuantity, e.cfg.MaxQuantity)),
		Timestamp: protocol.Timestamp(e.now()),
		SignalData: protocol.SignalData{
			PriceChange: sig.PriceChange,
			Sentiment:   sig.Sentiment,
		},
	}
}

func (e *Engine) maybeLogStats(now time.Time) {
	if e.cfg.StatsInterval <= 0 || now.Sub(e.lastStats) < e.cfg.StatsInterval {
		return
	}
	e.lastStats = now

	if e.book != nil {
		if bid, ask, ok := e.book.BestBidAsk(); ok {
			logs.Infof("signals: %d, orders: %d, send failures: %d, shared book %.2f / %.2f", e.stats.Signals, e.stats.Orders, e.stats.SendFailures, bid, ask)
			return
		}
	}
	logs.Infof("signals: %d, orders: %d, send failures: %d", e.stats.Signals, e.stats.Orders, e.stats.SendFailures)
}

func (e *Engine) Stats() Stats {
	s := e.stats
	s.Symbols = len(e.lastPrices)
	return s
}
