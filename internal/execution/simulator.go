package execution

import (
	"time"

	"tradepipe/internal/ids"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/rng"

	"github.com/shopspring/decimal"
)

const DefaultMaxSlippage = 0.001

// Simulator fills every order in full at the order price plus a uniformly
// drawn slippage.
type Simulator struct {
	maxSlippage float64
	rnd         rng.Source
	now         func() time.Time
}

func NewSimulator(maxSlippage float64, rnd rng.Source) *Simulator {
	if maxSlippage < 0 {
		maxSlippage = 0
	}
	return &Simulator{
		maxSlippage: maxSlippage,
		rnd:         rnd,
		now:         time.Now,
	}
}

// Execute produces a FILLED execution for o. The price is rounded to cents and
// kept within maxSlippage of the order price.
func (s *Simulator) Execute(o protocol.Order) protocol.Execution {
	slip := rng.Uniform(s.rnd, -s.maxSlippage, s.maxSlippage)
	return protocol.Execution{
		ExecutionID:    ids.NewExecutionID(),
		OrderID:        o.OrderID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		Quantity:       o.Quantity,
		OrderPrice:     o.Price,
		ExecutionPrice: s.price(o.Price, slip),
		Timestamp:      protocol.Timestamp(s.now()),
		Status:         protocol.StatusFilled,
	}
}

func (s *Simulator) price(orderPrice, slip float64) float64 {
	p := decimal.NewFromFloat(orderPrice).
		Mul(decimal.NewFromFloat(1 + slip)).
		Round(2).
		InexactFloat64()

	lo := orderPrice * (1 - s.maxSlippage)
	hi := orderPrice * (1 + s.maxSlippage)
	switch {
	case p < lo:
		return lo
	case p > hi:
		return hi
	default:
		return p
	}
}
