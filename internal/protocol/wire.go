package protocol

import "fmt"

// Decoding goes through the shadow types below so an absent or null key is
// told apart from a zero value. Every key they list is required.

type shadow interface {
	payload() (Payload, error)
}

func decodeShadow[S any, PS interface {
	*S
	shadow
}](data []byte) (Payload, error) {
	var s S
	if err := strict.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	p, err := PS(&s).payload()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

type field struct {
	name string
	set  bool
}

func has[T any](name string, v *T) field { return field{name: name, set: v != nil} }

func requireFields(k Kind, fields ...field) error {
	for _, f := range fields {
		if !f.set {
			return fmt.Errorf("%s: missing %s", k, f.name)
		}
	}
	return nil
}

type marketDataWire struct {
	Symbol    *string  `json:"symbol"`
	Timestamp *float64 `json:"timestamp"`
	Bids      *[]Level `json:"bids"`
	Asks      *[]Level `json:"asks"`
	LastPrice *float64 `json:"last_price"`
	Volume    *int64   `json:"volume"`
}

func (w *marketDataWire) payload() (Payload, error) {
	err := requireFields(KindMarketData,
		has("symbol", w.Symbol),
		has("timestamp", w.Timestamp),
		has("bids", w.Bids),
		has("asks", w.Asks),
		has("last_price", w.LastPrice),
		has("volume", w.Volume),
	)
	if err != nil {
		return nil, err
	}
	return MarketData{
		Symbol:    *w.Symbol,
		Timestamp: *w.Timestamp,
		Bids:      *w.Bids,
		Asks:      *w.Asks,
		LastPrice: *w.LastPrice,
		Volume:    *w.Volume,
	}, nil
}

type newsSentimentWire struct {
	Symbol    *string  `json:"symbol"`
	Timestamp *float64 `json:"timestamp"`
	Sentiment *string  `json:"sentiment"`
	Score     *float64 `json:"score"`
	Headline  string   `json:"headline"`
}

func (w *newsSentimentWire) payload() (Payload, error) {
	err := requireFields(KindNewsSentiment,
		has("symbol", w.Symbol),
		has("timestamp", w.Timestamp),
		has("sentiment", w.Sentiment),
		has("score", w.Score),
	)
	if err != nil {
		return nil, err
	}
	return NewsSentiment{
		Symbol:    *w.Symbol,
		Timestamp: *w.Timestamp,
		Sentiment: *w.Sentiment,
		Score:     *w.Score,
		Headline:  w.Headline,
	}, nil
}

type tradingSignalWire struct {
	Symbol      *string  `json:"symbol"`
	Action      *Side    `json:"action"`
	Price       *float64 `json:"price"`
	PriceChange *float64 `json:"price_change"`
	Sentiment   *float64 `json:"sentiment"`
	Timestamp   *float64 `json:"timestamp"`
}

func (w *tradingSignalWire) payload() (Payload, error) {
	err := requireFields(KindTradingSignal,
		has("symbol", w.Symbol),
		has("action", w.Action),
		has("price", w.Price),
		has("price_change", w.PriceChange),
		has("sentiment", w.Sentiment),
		has("timestamp", w.Timestamp),
	)
	if err != nil {
		return nil, err
	}
	return TradingSignal{
		Symbol:      *w.Symbol,
		Action:      *w.Action,
		Price:       *w.Price,
		PriceChange: *w.PriceChange,
		Sentiment:   *w.Sentiment,
		Timestamp:   *w.Timestamp,
	}, nil
}

type signalDataWire struct {
	PriceChange *float64 `json:"price_change"`
	Sentiment   *float64 `json:"sentiment"`
}

type orderWire struct {
	OrderID    *string         `json:"order_id"`
	Symbol     *string         `json:"symbol"`
	Side       *Side           `json:"side"`
	Price      *float64        `json:"price"`
	Quantity   *int64          `json:"quantity"`
	Timestamp  *float64        `json:"timestamp"`
	SignalData *signalDataWire `json:"signal_data"`
}

func (w *orderWire) payload() (Payload, error) {
	err := requireFields(KindOrder,
		has("order_id", w.OrderID),
		has("symbol", w.Symbol),
		has("side", w.Side),
		has("price", w.Price),
		has("quantity", w.Quantity),
		has("timestamp", w.Timestamp),
		has("signal_data", w.SignalData),
	)
	if err != nil {
		return nil, err
	}
	err = requireFields(KindOrder,
		has("signal_data.price_change", w.SignalData.PriceChange),
		has("signal_data.sentiment", w.SignalData.Sentiment),
	)
	if err != nil {
		return nil, err
	}
	return Order{
		OrderID:   *w.OrderID,
		Symbol:    *w.Symbol,
		Side:      *w.Side,
		Price:     *w.Price,
		Quantity:  *w.Quantity,
		Timestamp: *w.Timestamp,
		SignalData: SignalData{
			PriceChange: *w.SignalData.PriceChange,
			Sentiment:   *w.SignalData.Sentiment,
		},
	}, nil
}

type executionWire struct {
	ExecutionID    *string          `json:"execution_id"`
	OrderID        *string          `json:"order_id"`
	Symbol         *string          `json:"symbol"`
	Side           *Side            `json:"side"`
	Quantity       *int64           `json:"quantity"`
	OrderPrice     *float64         `json:"order_price"`
	ExecutionPrice *float64         `json:"execution_price"`
	Timestamp      *float64         `json:"timestamp"`
	Status         *ExecutionStatus `json:"status"`
}

func (w *executionWire) payload() (Payload, error) {
	err := requireFields(KindTradeExecution,
		has("execution_id", w.ExecutionID),
		has("order_id", w.OrderID),
		has("symbol", w.Symbol),
		has("side", w.Side),
		has("quantity", w.Quantity),
		has("order_price", w.OrderPrice),
		has("execution_price", w.ExecutionPrice),
		has("timestamp", w.Timestamp),
		has("status", w.Status),
	)
	if err != nil {
		return nil, err
	}
	return Execution{
		ExecutionID:    *w.ExecutionID,
		OrderID:        *w.OrderID,
		Symbol:         *w.Symbol,
		Side:           *w.Side,
		Quantity:       *w.Quantity,
		OrderPrice:     *w.OrderPrice,
		ExecutionPrice: *w.ExecutionPrice,
		Timestamp:      *w.Timestamp,
		Status:         *w.Status,
	}, nil
}

type orderBookUpdateWire struct {
	Symbol    *string  `json:"symbol"`
	Timestamp *float64 `json:"timestamp"`
	Bids      *[]Level `json:"bids"`
	Asks      *[]Level `json:"asks"`
}

func (w *orderBookUpdateWire) payload() (Payload, error) {
	err := requireFields(KindOrderBookUpdate,
		has("symbol", w.Symbol),
		has("timestamp", w.Timestamp),
		has("bids", w.Bids),
		has("asks", w.Asks),
	)
	if err != nil {
		return nil, err
	}
	return OrderBookUpdate{
		Symbol:    *w.Symbol,
		Timestamp: *w.Timestamp,
		Bids:      *w.Bids,
		Asks:      *w.Asks,
	}, nil
}

type heartbeatWire struct {
	Seq       *uint64  `json:"seq"`
	Timestamp *float64 `json:"timestamp"`
}

func (w *heartbeatWire) payload() (Payload, error) {
	if err := requireFields(KindHeartbeat, has("seq", w.Seq), has("timestamp", w.Timestamp)); err != nil {
		return nil, err
	}
	return Heartbeat{Seq: *w.Seq, Timestamp: *w.Timestamp}, nil
}
