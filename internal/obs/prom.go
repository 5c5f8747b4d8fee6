package obs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradepipe/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

type promSet struct {
	received *prometheus.CounterVec
	sent     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// Register mirrors the counters of m into reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	p := &promSet{
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tradepipe_messages_received_total", Help: "Messages received by kind"},
			[]string{"role", "kind"},
		),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tradepipe_messages_sent_total", Help: "Messages sent by kind"},
			[]string{"role", "kind"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tradepipe_errors_total", Help: "Non fatal errors by reason"},
			[]string{"role", "reason"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepipe_message_latency_seconds",
				Help:    "Delay between a message timestamp and its receipt",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"role"},
		),
	}
	for _, c := range []prometheus.Collector{p.received, p.sent, p.errors, p.latency} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	m.prom = p
	return nil
}

func (p *promSet) incReceived(role string, kind protocol.Kind) {
	if p == nil {
		return
	}
	p.received.WithLabelValues(role, kind.String()).Inc()
}

func (p *promSet) incSent(role string, kind protocol.Kind) {
	if p == nil {
		return
	}
	p.sent.WithLabelValues(role, kind.String()).Inc()
}

func (p *promSet) incError(role, reason string) {
	if p == nil {
		return
	}
	p.errors.WithLabelValues(role, reason).Inc()
}

func (p *promSet) observeLatency(role string, d time.Duration) {
	if p == nil {
		return
	}
	p.latency.WithLabelValues(role).Observe(d.Seconds())
}

// ServeMetrics exposes gatherer on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logs.Infof("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
