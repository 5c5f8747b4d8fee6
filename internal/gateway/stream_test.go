package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"tradepipe/internal/obs"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/rng"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, m *obs.Metrics) *Gateway {
	t.Helper()
	cfg := DefaultConfig([]string{"AAPL", "TSLA"})
	cfg.MarketDataInterval = 20 * time.Millisecond
	cfg.NewsInterval = time.Hour
	cfg.PollInterval = time.Millisecond
	cfg.HeartbeatInterval = time.Hour

	g, err := New(cfg, rng.New(rng.Deterministic, 1), WithMetrics(m))
	require.NoError(t, err)
	return g
}

func TestNewRejectsConfig(t *testing.T) {
	_, err := New(DefaultConfig(nil), rng.New(rng.Deterministic, 1))
	assert.Error(t, err)

	cfg := DefaultConfig([]string{"AAPL"})
	cfg.PollInterval = 0
	_, err = New(cfg, rng.New(rng.Deterministic, 1))
	assert.Error(t, err)
}

func TestHandleConnStreamsAndShutsDown(t *testing.T) {
	m := obs.NewMetrics("gateway")
	g := newTestGateway(t, m)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	server, client := net.Pipe()
	handled := make(chan error, 1)
	go func() { handled <- g.HandleConn(ctx, server) }()

	conn := protocol.NewConn(client)
	defer conn.Close()

	// First pass: one book per symbol, then news and a heartbeat.
	var kinds []protocol.Kind
	var symbols []string
	for range 4 {
		msg, err := conn.Read()
		require.NoError(t, err)
		kinds = append(kinds, msg.Kind)
		if md, ok := protocol.As[protocol.MarketData](msg); ok {
			symbols = append(symbols, md.Symbol)
		}
	}
	assert.Equal(t, []protocol.Kind{protocol.KindMarketData, protocol.KindMarketData, protocol.KindNewsSentiment, protocol.KindHeartbeat}, kinds)
	assert.Equal(t, []string{"AAPL", "TSLA"}, symbols)

	msg, err := conn.Read()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindMarketData, msg.Kind)
	assert.Equal(t, int64(1), g.Clients())

	cancel()
	for {
		msg, err := conn.Read()
		require.NoError(t, err)
		if msg.Kind == protocol.KindShutdown {
			break
		}
	}

	select {
	case err := <-handled:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return")
	}
	assert.Zero(t, g.Clients())
	assert.GreaterOrEqual(t, m.Snapshot().Sent[protocol.KindMarketData], uint64(3))
	assert.Equal(t, uint64(1), m.Snapshot().Sent[protocol.KindShutdown])
}

func TestHandleConnClientGone(t *testing.T) {
	m := obs.NewMetrics("gateway")
	g := newTestGateway(t, m)

	server, client := net.Pipe()
	handled := make(chan error, 1)
	go func() { handled <- g.HandleConn(t.Context(), server) }()

	require.NoError(t, client.Close())
	select {
	case err := <-handled:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return")
	}
	assert.Equal(t, uint64(1), m.Snapshot().SendFailures)
}

func TestHandleConnStalledClient(t *testing.T) {
	g := newTestGateway(t, nil)
	g.cfg.ShutdownGrace = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	server, client := net.Pipe()
	defer client.Close()

	handled := make(chan error, 1)
	go func() { handled <- g.HandleConn(ctx, server) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-handled:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handler blocked on a client that never reads")
	}
}
