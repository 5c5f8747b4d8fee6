package gateway

import (
	"fmt"
	"strings"
	"time"

	"tradepipe/internal/protocol"
	"tradepipe/pkg/rng"

	"github.com/shopspring/decimal"
)

const (
	DefaultDepth = 5

	minBasePrice = 100.0
	maxBasePrice = 500.0
	spreadRatio  = 0.001
	levelStep    = 0.1
	minLevelSize = 100.0
	maxLevelSize = 1000.0
	minVolume    = 1000
	maxVolume    = 100000
)

// Generator creates synthetic market data and news. It is not safe for
// concurrent use; give each connection its own.
type Generator struct {
	rnd   rng.Source
	depth int
	now   func() time.Time
}

func NewGenerator(rnd rng.Source, depth int) *Generator {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Generator{rnd: rnd, depth: depth, now: time.Now}
}

// MarketData draws an independent book around a base price in [100, 500).
// Both sides share the per-level size.
func (g *Generator) MarketData(symbol string) protocol.MarketData {
	base := rng.Uniform(g.rnd, minBasePrice, maxBasePrice)
	spread := base * spreadRatio

	bids := make([]protocol.Level, 0, g.depth)
	asks := make([]protocol.Level, 0, g.depth)
	for i := range g.depth {
		step := float64(i) * levelStep
		size := round(rng.Uniform(g.rnd, minLevelSize, maxLevelSize), 2)
		bids = append(bids, protocol.NewLevel(round(base-spread-step, 2), size))
		asks = append(asks, protocol.NewLevel(round(base+spread+step, 2), size))
	}

	return protocol.MarketData{
		Symbol:    symbol,
		Timestamp: protocol.Timestamp(g.now()),
		Bids:      bids,
		Asks:      asks,
		LastPrice: round(base, 2),
		Volume:    int64(rng.IntBetween(g.rnd, minVolume, maxVolume)),
	}
}

var sentimentLabels = [...]string{
	protocol.SentimentPositive,
	protocol.SentimentNegative,
	protocol.SentimentNeutral,
}

// News picks a label first and draws the score from the label's range.
func (g *Generator) News(symbol string) protocol.NewsSentiment {
	label := sentimentLabels[g.rnd.Intn(len(sentimentLabels))]

	var score float64
	switch label {
	case protocol.SentimentPositive:
		score = rng.Uniform(g.rnd, 0.3, 1.0)
	case protocol.SentimentNegative:
		score = rng.Uniform(g.rnd, -1.0, -0.3)
	default:
		score = rng.Uniform(g.rnd, -0.2, 0.2)
	}

	return protocol.NewsSentiment{
		Symbol:    symbol,
		Timestamp: protocol.Timestamp(g.now()),
		Sentiment: label,
		Score:     round(score, 3),
		Headline:  fmt.Sprintf("%s news for %s", titleCase(label), symbol),
	}
}

// Pick returns a uniformly chosen symbol.
func (g *Generator) Pick(symbols []string) string {
	return symbols[g.rnd.Intn(len(symbols))]
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
