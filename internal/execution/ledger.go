package execution

import (
	"maps"
	"sync"

	"tradepipe/internal/protocol"

	"github.com/shopspring/decimal"
)

// Stats is a point-in-time copy of the simulator totals.
type Stats struct {
	Orders    uint64
	Executed  uint64
	Notional  decimal.Decimal
	Positions map[string]int64
}

// Ledger accumulates totals and per-symbol net positions from fills.
// It is written by the single order consumer and read by stats reporting.
type Ledger struct {
	mu        sync.Mutex
	orders    uint64
	executed  uint64
	notional  decimal.Decimal
	positions map[string]int64
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]int64)}
}

// RecordOrder counts an accepted order.
func (l *Ledger) RecordOrder() {
	l.mu.Lock()
	l.orders++
	l.mu.Unlock()
}

// ApplyFill updates totals and returns the new position of the symbol.
func (l *Ledger) ApplyFill(e protocol.Execution) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.executed++
	l.notional = l.notional.Add(
		decimal.NewFromInt(e.Quantity).Mul(decimal.NewFromFloat(e.ExecutionPrice)),
	)

	current := l.positions[e.Symbol]
	switch e.Side {
	case protocol.SideBuy:
		current += e.Quantity
	case protocol.SideSell:
		current -= e.Quantity
	}
	l.positions[e.Symbol] = current
	return current
}

// Position returns the net position of a symbol.
func (l *Ledger) Position(symbol string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positions[symbol]
}

func (l *Ledger) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Orders:    l.orders,
		Executed:  l.executed,
		Notional:  l.notional,
		Positions: maps.Clone(l.positions),
	}
}
