package book

import (
	"context"
	"io"
	"testing"
	"time"

	"tradepipe/internal/errors"
	"tradepipe/internal/obs"
	"tradepipe/internal/protocol"
	"tradepipe/internal/shm"
	"tradepipe/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	writes [][2][]protocol.Level
	err    error
}

func (p *recordingPublisher) Write(bids, asks []protocol.Level) error {
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, [2][]protocol.Level{bids, asks})
	return nil
}

type recordingMirror struct {
	books []Book
}

func (m *recordingMirror) Mirror(_ context.Context, b Book) error {
	m.books = append(m.books, b)
	return nil
}

type sliceSource struct {
	items []sourceItem
}

type sourceItem struct {
	msg protocol.Message
	err error
}

func (s *sliceSource) Read() (protocol.Message, error) {
	if len(s.items) == 0 {
		return protocol.Message{}, errors.Mark(io.EOF, exception.ErrConnectionBroken)
	}
	it := s.items[0]
	s.items = s.items[1:]
	return it.msg, it.err
}

func md(symbol string, bid, ask float64) protocol.MarketData {
	return protocol.MarketData{
		Symbol:    symbol,
		Timestamp: 1700000000,
		Bids:      []protocol.Level{{bid, 100}},
		Asks:      []protocol.Level{{ask, 100}},
		LastPrice: (bid + ask) / 2,
		Volume:    1000,
	}
}

func TestHandlePublishesPrimaryOnly(t *testing.T) {
	pub := &recordingPublisher{}
	mirror := &recordingMirror{}
	a := New(Config{PrimarySymbol: "AAPL"}, pub, WithMirror(mirror))

	assert.False(t, a.Handle(t.Context(), protocol.New(md("AAPL", 100, 100.1))))
	assert.False(t, a.Handle(t.Context(), protocol.New(md("TSLA", 200, 200.2))))
	assert.False(t, a.Handle(t.Context(), protocol.New(md("AAPL", 101, 101.1))))

	require.Len(t, pub.writes, 2)
	assert.Equal(t, 101.0, pub.writes[1][0][0].Price())
	require.Len(t, mirror.books, 2)
	assert.Equal(t, "AAPL", mirror.books[0].Symbol)

	b, ok := a.Book("TSLA")
	require.True(t, ok)
	assert.Equal(t, 200.0, b.Bids[0].Price())

	b, ok = a.Book("AAPL")
	require.True(t, ok)
	assert.Equal(t, 101.0, b.Bids[0].Price())

	s := a.Stats()
	assert.Equal(t, uint64(3), s.Updates)
	assert.Equal(t, uint64(2), s.Published)
	assert.Equal(t, 2, s.Symbols)
}

func TestHandleIgnoresOtherKinds(t *testing.T) {
	pub := &recordingPublisher{}
	a := New(Config{PrimarySymbol: "AAPL"}, pub)

	assert.False(t, a.Handle(t.Context(), protocol.New(protocol.NewsSentiment{Symbol: "AAPL", Score: 0.9})))
	assert.False(t, a.Handle(t.Context(), protocol.New(protocol.Heartbeat{Seq: 1})))
	assert.True(t, a.Handle(t.Context(), protocol.New(protocol.Shutdown{})))

	assert.Empty(t, pub.writes)
	assert.Equal(t, uint64(0), a.Stats().Updates)
}

func TestHandleCapacityRejectedKeepsRunning(t *testing.T) {
	pub := &recordingPublisher{err: exception.ErrCapacityExceeded}
	a := New(Config{PrimarySymbol: "AAPL"}, pub)

	assert.False(t, a.Handle(t.Context(), protocol.New(md("AAPL", 100, 100.1))))
	s := a.Stats()
	assert.Equal(t, uint64(1), s.Rejected)
	assert.Equal(t, uint64(0), s.Published)

	_, ok := a.Book("AAPL")
	assert.True(t, ok)
}

func TestRunStopsOnShutdown(t *testing.T) {
	metrics := obs.NewMetrics("book")
	src := &sliceSource{items: []sourceItem{
		{msg: protocol.New(md("AAPL", 100, 100.1))},
		{err: errors.Mark(errors.New("bad json"), exception.ErrDecode)},
		{msg: protocol.New(md("AAPL", 100.5, 100.6))},
		{msg: protocol.New(protocol.Shutdown{Reason: "done"})},
		{msg: protocol.New(md("AAPL", 1, 2))},
	}}
	pub := &recordingPublisher{}
	a := New(Config{PrimarySymbol: "AAPL"}, pub, WithMetrics(metrics))

	require.NoError(t, a.Run(t.Context(), src))
	assert.Len(t, pub.writes, 2)
	assert.Len(t, src.items, 1)
	assert.Equal(t, uint64(1), metrics.Snapshot().DecodeErrors)
}

func TestRunReturnsOnBrokenConnection(t *testing.T) {
	a := New(Config{PrimarySymbol: "AAPL"}, &recordingPublisher{})
	err := a.Run(t.Context(), &sliceSource{})
	assert.ErrorIs(t, err, exception.ErrConnectionBroken)
}

func TestRunCancelledIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	a := New(Config{PrimarySymbol: "AAPL"}, &recordingPublisher{})
	assert.NoError(t, a.Run(ctx, &sliceSource{}))
}

func TestStatsWindowResets(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := New(Config{PrimarySymbol: "AAPL", StatsInterval: time.Second}, nil, WithClock(func() time.Time { return now }))

	a.Handle(t.Context(), protocol.New(md("AAPL", 100, 100.1)))
	assert.Equal(t, uint64(1), a.windowUpdates)

	now = now.Add(2 * time.Second)
	a.Handle(t.Context(), protocol.New(md("AAPL", 100, 100.1)))
	assert.Equal(t, uint64(0), a.windowUpdates)
	assert.Equal(t, now, a.lastStats)
	assert.Equal(t, uint64(2), a.Stats().Updates)
}

func TestAggregatorWithStore(t *testing.T) {
	opts := shm.Options{Dir: t.TempDir()}
	store, err := shm.Create("book_agg", opts)
	require.NoError(t, err)
	defer store.Close()

	reader, err := shm.Attach("book_agg", opts)
	require.NoError(t, err)
	defer reader.Close()

	a := New(Config{PrimarySymbol: "AAPL"}, store)
	a.Handle(t.Context(), protocol.New(md("AAPL", 150, 150.2)))
	a.Handle(t.Context(), protocol.New(md("MSFT", 300, 300.3)))

	bid, ask, ok := reader.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 150.0, bid)
	assert.Equal(t, 150.2, ask)
}
