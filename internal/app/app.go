package app

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"tradepipe/internal/obs"
	"tradepipe/internal/ops"
	"tradepipe/pkg/exception"
	"tradepipe/pkg/retry"
	"tradepipe/pkg/rng"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"
)

// SignalContext is cancelled on SIGINT, SIGTERM or the process-wide shutdown
// notification, whichever comes first.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()
	return ctx, stop
}

// PeerGone maps a broken peer connection to a clean stop and logs it.
func PeerGone(err error) error {
	if stderrors.Is(err, exception.ErrConnectionBroken) {
		logs.Infof("peer connection closed, err: %+v", err)
		return nil
	}
	return err
}

// Exit logs err and terminates the process with a non-zero status.
func Exit(role string, err error) {
	logs.Errorf("%s: %+v", role, err)
	os.Exit(1)
}

// LoadConfig resolves the configuration and logs where it came from.
func LoadConfig(path string) (ops.Loaded, error) {
	cfg, err := ops.Load(path)
	if err != nil {
		return ops.Loaded{}, errors.Wrap(err, "load config").With("path", path)
	}
	if path == "" {
		logs.Info("config: defaults and environment")
	} else {
		logs.Infof("config: %s", path)
	}
	return cfg, nil
}

func RandomFactory(cfg ops.RandomConfig) *rng.Factory {
	if cfg.Deterministic {
		return rng.New(rng.Deterministic, cfg.Seed)
	}
	return rng.New(rng.Real, 0)
}

func RetryPolicy(cfg ops.RetryConfig) retry.Policy {
	return retry.Fixed(cfg.Attempts, cfg.Delay)
}

// StartObservability registers the role metrics, serves them when an address
// is configured and starts the profiler. The returned stop flushes the profiler.
func StartObservability(ctx context.Context, g *errgroup.Group, role string, cfg ops.ObsConfig) (*obs.Metrics, func(), error) {
	metrics := obs.NewMetrics(role)

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, nil, errors.Wrap(err, "register metrics").With("role", role)
	}
	if cfg.MetricsAddress != "" {
		g.Go(func() error {
			return obs.ServeMetrics(ctx, cfg.MetricsAddress, reg)
		})
	}

	stopProfiler, err := obs.StartProfiler("tradepipe."+role, cfg.PyroscopeAddress, map[string]string{"role": role})
	if err != nil {
		return nil, nil, errors.Wrap(err, "start profiler").With("address", cfg.PyroscopeAddress)
	}
	return metrics, func() {
		if err := stopProfiler(); err != nil {
			logs.Errorf("stop profiler, err: %+v", err)
		}
	}, nil
}
