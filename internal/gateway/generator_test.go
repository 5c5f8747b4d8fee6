package gateway

import (
	"testing"
	"time"

	"tradepipe/internal/protocol"
	"tradepipe/pkg/rng"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(seed int64) *Generator {
	g := NewGenerator(rng.New(rng.Deterministic, seed).R("gateway"), DefaultDepth)
	g.now = func() time.Time { return time.Unix(1700000000, 0) }
	return g
}

func TestMarketDataShape(t *testing.T) {
	g := newTestGenerator(1)

	for range 200 {
		md := g.MarketData("AAPL")
		require.NoError(t, md.Validate())
		assert.Equal(t, "AAPL", md.Symbol)
		assert.Equal(t, 1700000000.0, md.Timestamp)

		require.Len(t, md.Bids, DefaultDepth)
		require.Len(t, md.Asks, DefaultDepth)
		assert.GreaterOrEqual(t, md.LastPrice, minBasePrice)
		assert.LessOrEqual(t, md.LastPrice, maxBasePrice)
		assert.GreaterOrEqual(t, md.Volume, int64(minVolume))
		assert.LessOrEqual(t, md.Volume, int64(maxVolume))

		assert.Less(t, md.Bids[0].Price(), md.LastPrice)
		assert.Greater(t, md.Asks[0].Price(), md.LastPrice)
		for i := range DefaultDepth {
			assert.Equal(t, md.Bids[i].Size(), md.Asks[i].Size())
			assert.GreaterOrEqual(t, md.Bids[i].Size(), minLevelSize)
			assert.LessOrEqual(t, md.Bids[i].Size(), maxLevelSize)
			if i > 0 {
				assert.Greater(t, md.Bids[i-1].Price(), md.Bids[i].Price())
				assert.Less(t, md.Asks[i-1].Price(), md.Asks[i].Price())
			}
		}
	}
}

func TestMarketDataDeterministic(t *testing.T) {
	a, b := newTestGenerator(42), newTestGenerator(42)
	for range 10 {
		assert.Equal(t, a.MarketData("TSLA"), b.MarketData("TSLA"))
		assert.Equal(t, a.News("TSLA"), b.News("TSLA"))
	}
}

func TestNewsLabelMatchesScore(t *testing.T) {
	g := newTestGenerator(3)
	seen := make(map[string]bool)

	for range 300 {
		n := g.News("MSFT")
		require.NoError(t, n.Validate())
		assert.Equal(t, protocol.SentimentLabel(n.Score), n.Sentiment, "score %v", n.Score)
		assert.Equal(t, titleCase(n.Sentiment)+" news for MSFT", n.Headline)
		seen[n.Sentiment] = true
	}
	assert.Len(t, seen, 3)
}

func TestPick(t *testing.T) {
	g := newTestGenerator(5)
	symbols := []string{"AAPL", "GOOGL", "MSFT"}
	for range 50 {
		assert.Contains(t, symbols, g.Pick(symbols))
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 123.46, round(123.456, 2))
	assert.Equal(t, -0.301, round(-0.3005, 3))
	assert.Equal(t, "", titleCase(""))
}

func BenchmarkMarketData(b *testing.B) {
	g := newTestGenerator(1)
	for b.Loop() {
		_ = g.MarketData("AAPL")
	}
}
