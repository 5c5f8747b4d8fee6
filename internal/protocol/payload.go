package protocol

import (
	"fmt"
	"math"
	"time"
)

// Payload is the structured value carried by a Message. The concrete type is
// determined by its Kind.
type Payload interface {
	Kind() Kind
	Validate() error
}

var (
	_ Payload = MarketData{}
	_ Payload = NewsSentiment{}
	_ Payload = TradingSignal{}
	_ Payload = Order{}
	_ Payload = Execution{}
	_ Payload = OrderBookUpdate{}
	_ Payload = Heartbeat{}
	_ Payload = Shutdown{}
)

// Level is one book level encoded as [price, size].
type Level [2]float64

func NewLevel(price, size float64) Level {
	return Level{price, size}
}

func (l Level) Price() float64 { return l[0] }

func (l Level) Size() float64 { return l[1] }

// MarketData is a book snapshot plus last trade for one symbol.
// Bids and asks are sorted best first.
type MarketData struct {
	Symbol    string  `json:"symbol"`
	Timestamp float64 `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	LastPrice float64 `json:"last_price"`
	Volume    int64   `json:"volume"`
}

func (MarketData) Kind() Kind { return KindMarketData }

func (m MarketData) Validate() error {
	if m.Symbol == "" {
		return fmt.Errorf("market data: empty symbol")
	}
	if len(m.Bids) == 0 || len(m.Asks) == 0 {
		return fmt.Errorf("market data: empty book side")
	}
	if err := validateLevels(m.Bids); err != nil {
		return fmt.Errorf("market data bids: %w", err)
	}
	if err := validateLevels(m.Asks); err != nil {
		return fmt.Errorf("market data asks: %w", err)
	}
	return nil
}

// NewsSentiment carries a sentiment score in [-1, 1]. Label is informational.
type NewsSentiment struct {
	Symbol    string  `json:"symbol"`
	Timestamp float64 `json:"timestamp"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
	Headline  string  `json:"headline,omitempty"`
}

func (NewsSentiment) Kind() Kind { return KindNewsSentiment }

func (n NewsSentiment) Validate() error {
	if n.Symbol == "" {
		return fmt.Errorf("news sentiment: empty symbol")
	}
	if math.IsNaN(n.Score) || n.Score < -1 || n.Score > 1 {
		return fmt.Errorf("news sentiment: score %v out of range", n.Score)
	}
	return nil
}

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SentimentLabel derives the categorical label from a score.
func SentimentLabel(score float64) string {
	switch {
	case score >= 0.3:
		return SentimentPositive
	case score <= -0.3:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// TradingSignal is a gated BUY/SELL decision of the signal engine.
type TradingSignal struct {
	Symbol      string  `json:"symbol"`
	Action      Side    `json:"action"`
	Price       float64 `json:"price"`
	PriceChange float64 `json:"price_change"`
	Sentiment   float64 `json:"sentiment"`
	Timestamp   float64 `json:"timestamp"`
}

func (TradingSignal) Kind() Kind { return KindTradingSignal }

func (s TradingSignal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("trading signal: empty symbol")
	}
	if !s.Action.Valid() {
		return fmt.Errorf("trading signal: invalid action %q", s.Action)
	}
	return nil
}

// SignalData is the provenance of an order.
type SignalData struct {
	PriceChange float64 `json:"price_change"`
	Sentiment   float64 `json:"sentiment"`
}

type Order struct {
	OrderID    string     `json:"order_id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	Price      float64    `json:"price"`
	Quantity   int64      `json:"quantity"`
	Timestamp  float64    `json:"timestamp"`
	SignalData SignalData `json:"signal_data"`
}

func (Order) Kind() Kind { return KindOrder }

func (o Order) Validate() error {
	if o.OrderID == "" {
		return fmt.Errorf("order: empty order id")
	}
	if o.Symbol == "" {
		return fmt.Errorf("order: empty symbol")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("order: invalid side %q", o.Side)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order: quantity must be > 0")
	}
	if !(o.Price > 0) || math.IsInf(o.Price, 0) {
		return fmt.Errorf("order: price must be > 0")
	}
	return nil
}

type Execution struct {
	ExecutionID    string          `json:"execution_id"`
	OrderID        string          `json:"order_id"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       int64           `json:"quantity"`
	OrderPrice     float64         `json:"order_price"`
	ExecutionPrice float64         `json:"execution_price"`
	Timestamp      float64         `json:"timestamp"`
	Status         ExecutionStatus `json:"status"`
}

func (Execution) Kind() Kind { return KindTradeExecution }

func (e Execution) Validate() error {
	if e.ExecutionID == "" || e.OrderID == "" {
		return fmt.Errorf("execution: empty identifier")
	}
	if !e.Side.Valid() {
		return fmt.Errorf("execution: invalid side %q", e.Side)
	}
	if e.Status != StatusFilled {
		return fmt.Errorf("execution: unsupported status %q", e.Status)
	}
	return nil
}

// OrderBookUpdate republishes a book over a stream.
type OrderBookUpdate struct {
	Symbol    string  `json:"symbol"`
	Timestamp float64 `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
}

func (OrderBookUpdate) Kind() Kind { return KindOrderBookUpdate }

func (u OrderBookUpdate) Validate() error {
	if u.Symbol == "" {
		return fmt.Errorf("orderbook update: empty symbol")
	}
	if err := validateLevels(u.Bids); err != nil {
		return err
	}
	return validateLevels(u.Asks)
}

type Heartbeat struct {
	Seq       uint64  `json:"seq"`
	Timestamp float64 `json:"timestamp"`
}

func (Heartbeat) Kind() Kind { return KindHeartbeat }

func (Heartbeat) Validate() error { return nil }

type Shutdown struct {
	Reason string `json:"reason,omitempty"`
}

func (Shutdown) Kind() Kind { return KindShutdown }

func (Shutdown) Validate() error { return nil }

func validateLevels(levels []Level) error {
	for i, l := range levels {
		for _, v := range l {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("level %d is not finite", i)
			}
		}
	}
	return nil
}

// Timestamp converts t to the float seconds used on the wire.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Time converts wire seconds back to a time.Time.
func Time(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}
