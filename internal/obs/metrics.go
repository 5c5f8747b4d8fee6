package obs

import (
	"sync/atomic"
	"time"

	"tradepipe/internal/protocol"
)

const maxKind = int(protocol.KindShutdown)

// Metrics collects lightweight counters and latency stats for one role.
type Metrics struct {
	role string

	messageCounts [maxKind + 1]uint64
	sentCounts    [maxKind + 1]uint64
	decodeErrors  uint64
	sendFailures  uint64
	queueDrops    uint64
	queueClosed   uint64

	messageLatency LatencyStats
	handleLatency  LatencyStats

	prom *promSet
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Received       map[protocol.Kind]uint64
	Sent           map[protocol.Kind]uint64
	DecodeErrors   uint64
	SendFailures   uint64
	QueueDrops     uint64
	QueueClosed    uint64
	MessageLatency LatencySnapshot
	HandleLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container labelled with the role name.
func NewMetrics(role string) *Metrics {
	return &Metrics{role: role}
}

func (m *Metrics) Role() string {
	if m == nil {
		return ""
	}
	return m.role
}

// ObserveMessage counts a received message and, when ts is set, the latency
// between the wire timestamp and now.
func (m *Metrics) ObserveMessage(kind protocol.Kind, ts float64, now time.Time) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.messageCounts) {
		atomic.AddUint64(&m.messageCounts[idx], 1)
	}
	if ts > 0 {
		if delta := now.Sub(protocol.Time(ts)); delta >= 0 {
			m.messageLatency.Observe(delta)
			m.prom.observeLatency(m.role, delta)
		}
	}
	m.prom.incReceived(m.role, kind)
}

// IncSent counts a message successfully written to a peer.
func (m *Metrics) IncSent(kind protocol.Kind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.sentCounts) {
		atomic.AddUint64(&m.sentCounts[idx], 1)
	}
	m.prom.incSent(m.role, kind)
}

func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors, 1)
	m.prom.incError(m.role, "decode")
}

func (m *Metrics) IncSendFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sendFailures, 1)
	m.prom.incError(m.role, "send")
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
	m.prom.incError(m.role, "queue_full")
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
	m.prom.incError(m.role, "queue_closed")
}

// ObserveHandle measures how long one message took to process.
func (m *Metrics) ObserveHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.handleLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Received:       loadCounts(m.messageCounts[:]),
		Sent:           loadCounts(m.sentCounts[:]),
		DecodeErrors:   atomic.LoadUint64(&m.decodeErrors),
		SendFailures:   atomic.LoadUint64(&m.sendFailures),
		QueueDrops:     atomic.LoadUint64(&m.queueDrops),
		QueueClosed:    atomic.LoadUint64(&m.queueClosed),
		MessageLatency: m.messageLatency.Snapshot(),
		HandleLatency:  m.handleLatency.Snapshot(),
	}
}

func loadCounts(src []uint64) map[protocol.Kind]uint64 {
	out := make(map[protocol.Kind]uint64)
	for i := range src {
		if v := atomic.LoadUint64(&src[i]); v > 0 {
			out[protocol.Kind(i)] = v
		}
	}
	return out
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
