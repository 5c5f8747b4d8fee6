package protocol

import "strconv"

// Kind is the integer tag carried in the "type" field of every frame body.
type Kind int

const (
	KindUnknown Kind = iota
	KindMarketData
	KindNewsSentiment
	KindTradingSignal
	KindOrder
	KindTradeExecution
	KindOrderBookUpdate
	KindHeartbeat
	KindShutdown
)

const kindCount = int(KindShutdown) + 1

// Valid reports whether k is one of the wire tags 1..8.
func (k Kind) Valid() bool {
	return k >= KindMarketData && k <= KindShutdown
}

func (k Kind) String() string {
	switch k {
	case KindMarketData:
		return "MARKET_DATA"
	case KindNewsSentiment:
		return "NEWS_SENTIMENT"
	case KindTradingSignal:
		return "TRADING_SIGNAL"
	case KindOrder:
		return "ORDER"
	case KindTradeExecution:
		return "TRADE_EXECUTION"
	case KindOrderBookUpdate:
		return "ORDERBOOK_UPDATE"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindShutdown:
		return "SHUTDOWN"
	default:
		return "KIND(" + strconv.Itoa(int(k)) + ")"
	}
}

// Kinds lists every valid kind in tag order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindMarketData; k <= KindShutdown; k++ {
		out = append(out, k)
	}
	return out
}

// Side is the direction of a signal, order or execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ExecutionStatus is always FILLED in this design.
type ExecutionStatus string

const (
	StatusFilled ExecutionStatus = "FILLED"
)
