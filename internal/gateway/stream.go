package gateway

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"tradepipe/internal/obs"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/rng"
	"tradepipe/pkg/transport"

	"github.com/yanun0323/logs"
)

// DefaultShutdownGrace bounds the final Shutdown write to a slow client.
const DefaultShutdownGrace = time.Second

type Config struct {
	Symbols            []string
	MarketDataInterval time.Duration
	NewsInterval       time.Duration
	// PollInterval paces the send loop.
	PollInterval time.Duration
	// HeartbeatInterval of 0 disables heartbeats.
	HeartbeatInterval time.Duration
	Depth             int
	ShutdownGrace     time.Duration
}

func DefaultConfig(symbols []string) Config {
	return Config{
		Symbols:            symbols,
		MarketDataInterval: 100 * time.Millisecond,
		NewsInterval:       2 * time.Second,
		PollInterval:       10 * time.Millisecond,
		HeartbeatInterval:  10 * time.Second,
		Depth:              DefaultDepth,
		ShutdownGrace:      DefaultShutdownGrace,
	}
}

// Gateway streams synthetic feed messages to every connected client.
type Gateway struct {
	cfg     Config
	rngs    *rng.Factory
	metrics *obs.Metrics
	seq     obs.Sequence

	connID  atomic.Uint64
	clients atomic.Int64
}

type Option func(*Gateway)

func WithMetrics(m *obs.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func New(cfg Config, rngs *rng.Factory, opts ...Option) (*Gateway, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("gateway: no symbols")
	}
	if cfg.MarketDataInterval <= 0 || cfg.NewsInterval <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("gateway: intervals must be > 0")
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	g := &Gateway{cfg: cfg, rngs: rngs}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Clients is the number of connected clients.
func (g *Gateway) Clients() int64 { return g.clients.Load() }

// HandleConn streams to one client until it disconnects or ctx is done, in
// which case a Shutdown message is sent before closing. It is a transport.Handler.
func (g *Gateway) HandleConn(ctx context.Context, raw net.Conn) error {
	conn := protocol.NewConn(raw)
	defer conn.Close()

	peer := transport.PeerName(raw)
	g.clients.Add(1)
	defer g.clients.Add(-1)
	logs.Infof("client connected: %s", peer)

	// A stalled client must not hold the shutdown past the grace period.
	stopDeadline := context.AfterFunc(ctx, func() {
		_ = raw.SetWriteDeadline(time.Now().Add(g.cfg.ShutdownGrace))
	})
	defer stopDeadline()

	gen := NewGenerator(g.rngs.Fresh(fmt.Sprintf("gateway.conn.%d", g.connID.Add(1))), g.cfg.Depth)

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	var lastMarket, lastNews, lastBeat time.Time
	for {
		now := time.Now()
		if now.Sub(lastMarket) >= g.cfg.MarketDataInterval {
			for _, symbol := range g.cfg.Symbols {
				if !g.send(conn, peer, gen.MarketData(symbol)) {
					return nil
				}
			}
			lastMarket = now
		}
		if now.Sub(lastNews) >= g.cfg.NewsInterval {
			if !g.send(conn, peer, gen.News(gen.Pick(g.cfg.Symbols))) {
				return nil
			}
			lastNews = now
		}
		if g.cfg.HeartbeatInterval > 0 && now.Sub(lastBeat) >= g.cfg.HeartbeatInterval {
			beat := protocol.Heartbeat{Seq: g.seq.Next(), Timestamp: protocol.Timestamp(now)}
			if !g.send(conn, peer, beat) {
				return nil
			}
			lastBeat = now
		}

		select {
		case <-ctx.Done():
			g.send(conn, peer, protocol.Shutdown{Reason: "gateway shutting down"})
			logs.Infof("client %s released on shutdown", peer)
			return nil
		case <-ticker.C:
		}
	}
}

func (g *Gateway) send(conn *protocol.Conn, peer string, p protocol.Payload) bool {
	if err := conn.Send(p); err != nil {
		g.metrics.IncSendFailure()
		logs.Infof("client %s disconnected, err: %+v", peer, err)
		return false
	}
	g.metrics.IncSent(p.Kind())
	return true
}
