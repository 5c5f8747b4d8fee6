package obs

import (
	"testing"
	"time"

	"tradepipe/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics("book")
	now := time.Unix(1700000001, 0)

	m.ObserveMessage(protocol.KindMarketData, 1700000000.5, now)
	m.ObserveMessage(protocol.KindMarketData, 0, now)
	m.ObserveMessage(protocol.KindHeartbeat, 0, now)
	m.IncSent(protocol.KindOrder)
	m.IncDecodeError()
	m.IncSendFailure()
	m.IncQueueDrop()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Received[protocol.KindMarketData])
	assert.Equal(t, uint64(1), snap.Received[protocol.KindHeartbeat])
	assert.Equal(t, uint64(1), snap.Sent[protocol.KindOrder])
	assert.Equal(t, uint64(1), snap.DecodeErrors)
	assert.Equal(t, uint64(1), snap.SendFailures)
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(1), snap.MessageLatency.Count)
	assert.Equal(t, 500*time.Millisecond, snap.MessageLatency.Max)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMessage(protocol.KindOrder, 1, time.Now())
	m.IncDecodeError()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("exec")
	require.NoError(t, m.Register(reg))

	m.ObserveMessage(protocol.KindOrder, 0, time.Now())
	m.ObserveMessage(protocol.KindOrder, 0, time.Now())
	m.IncSendFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.prom.received.WithLabelValues("exec", "ORDER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prom.errors.WithLabelValues("exec", "send")))

	assert.Error(t, NewMetrics("exec").Register(reg))
}

func TestLatencyStats(t *testing.T) {
	var l LatencyStats
	l.Observe(3 * time.Millisecond)
	l.Observe(time.Millisecond)
	l.Observe(-time.Second)

	s := l.Snapshot()
	assert.Equal(t, uint64(2), s.Count)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 3*time.Millisecond, s.Max)
	assert.Equal(t, 2*time.Millisecond, s.Avg)
}

func TestSequence(t *testing.T) {
	var s Sequence
	assert.Equal(t, uint64(1), s.Next())
	assert.Equal(t, uint64(2), s.Next())
	assert.Equal(t, uint64(2), s.Last())
}
