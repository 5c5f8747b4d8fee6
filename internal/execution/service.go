package execution

import (
	"context"
	"errors"
	"net"
	"time"

	"tradepipe/internal/bus"
	"tradepipe/internal/obs"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/exception"
	"tradepipe/pkg/transport"

	"github.com/yanun0323/logs"
)

const DefaultQueueSize = 1024

// Service accepts orders from any number of connections and executes them on
// a single consumer goroutine.
type Service struct {
	sim     *Simulator
	journal Journal
	queue   *bus.Queue
	ledger  *Ledger
	metrics *obs.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *obs.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithQueueSize(n int) Option {
	return func(s *Service) { s.queue = bus.NewQueue(n) }
}

func NewService(sim *Simulator, journal Journal, opts ...Option) *Service {
	s := &Service{
		sim:     sim,
		journal: journal,
		ledger:  NewLedger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = bus.NewQueue(DefaultQueueSize)
	}
	if s.journal == nil {
		s.journal = MultiJournal{}
	}
	return s
}

// HandleConn reads orders from one connection into the queue until the peer
// disconnects, sends Shutdown, or ctx is done. It is a transport.Handler.
func (s *Service) HandleConn(ctx context.Context, raw net.Conn) error {
	conn := protocol.NewConn(raw)
	defer conn.Close()
	stop := transport.CloseOnDone(ctx, conn)
	defer stop()

	peer := transport.PeerName(raw)
	logs.Infof("order client connected: %s", peer)
	defer logs.Infof("order client disconnected: %s", peer)

	for {
		msg, err := conn.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, exception.ErrDecode) {
				s.metrics.IncDecodeError()
				logs.Errorf("decode order from %s, err: %+v", peer, err)
				continue
			}
			if errors.Is(err, exception.ErrConnectionBroken) {
				return nil
			}
			return err
		}

		switch p := msg.Payload.(type) {
		case protocol.Order:
			s.metrics.ObserveMessage(msg.Kind, p.Timestamp, s.now())
			if err := s.queue.Publish(ctx, bus.Event{Message: msg, Source: peer, Recv: s.now()}); err != nil {
				if errors.Is(err, exception.ErrQueueClosed) {
					s.metrics.IncQueueClosed()
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		case protocol.Shutdown:
			logs.Infof("shutdown from %s, reason: %s", peer, p.Reason)
			return nil
		}
	}
}

// Run consumes queued orders until ctx is done or the queue is closed and drained.
func (s *Service) Run(ctx context.Context) {
	s.queue.Run(ctx, func(e bus.Event) {
		order, ok := protocol.As[protocol.Order](e.Message)
		if !ok {
			return
		}
		s.Process(ctx, order)
		s.metrics.ObserveHandle(s.now().Sub(e.Recv))
	})
}

// Close stops accepting orders. Queued orders are still processed by Run.
func (s *Service) Close() {
	s.queue.Close()
}

// Process executes one order, journals it and updates the totals.
// A journal failure is logged and does not undo the fill.
func (s *Service) Process(ctx context.Context, order protocol.Order) protocol.Execution {
	s.ledger.RecordOrder()
	exec := s.sim.Execute(order)

	if err := s.journal.Append(ctx, exec); err != nil {
		logs.Errorf("journal execution %s, err: %+v", exec.ExecutionID, err)
	}

	position := s.ledger.ApplyFill(exec)
	s.metrics.IncSent(protocol.KindTradeExecution)
	logs.Infof("executed %s %s %d %s @ %.2f (order %.2f), position %d",
		exec.ExecutionID, exec.Side, exec.Quantity, exec.Symbol,
		exec.ExecutionPrice, exec.OrderPrice, position)
	return exec
}

func (s *Service) Stats() Stats {
	return s.ledger.Snapshot()
}

// LogStats writes the running totals. It is safe to call from any goroutine.
func (s *Service) LogStats() {
	st := s.Stats()
	logs.Infof("execution stats: orders %d, executed %d, notional %s, queued %d, positions %v",
		st.Orders, st.Executed, st.Notional.StringFixed(2), s.queue.Len(), st.Positions)
}
