package transport

import (
	"context"
	"io"
	"net"
	"time"

	"tradepipe/internal/errors"
	"tradepipe/pkg/exception"
	"tradepipe/pkg/retry"

	"github.com/yanun0323/logs"
)

// DefaultDialPolicy is 5 attempts, one second apart.
func DefaultDialPolicy() retry.Policy {
	return retry.Fixed(5, time.Second)
}

// Client dials a peer role with a bounded retry policy.
type Client struct {
	network string
	address string
	policy  retry.Policy
	dialer  net.Dialer
}

func NewClient(network, address string, policy retry.Policy) (*Client, error) {
	if address == "" {
		return nil, exception.ErrEmptyAddress
	}
	if network != NetworkTCP && network != NetworkUnix {
		return nil, exception.ErrUnsupportedNet
	}
	return &Client{
		network: network,
		address: address,
		policy:  policy,
		dialer:  net.Dialer{Timeout: 3 * time.Second},
	}, nil
}

func (c *Client) Address() string {
	if c == nil {
		return ""
	}
	return c.address
}

// Dial connects to the peer. When every attempt fails the last dial error is
// returned marked with exception.ErrPeerNotFound.
func (c *Client) Dial(ctx context.Context) (net.Conn, error) {
	if c == nil {
		return nil, exception.ErrNilInstance
	}

	p := c.policy
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, wait time.Duration, err error) {
			logs.Infof("dial %s attempt %d failed, retry in %s, err: %+v", c.address, attempt, wait, err)
		}
	}

	var conn net.Conn
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		var err error
		conn, err = c.dialer.DialContext(ctx, c.network, c.address)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(err, exception.ErrPeerNotFound)
	}
	return conn, nil
}

// CloseOnDone closes c once ctx is done, unblocking any pending read.
// The returned stop function releases the watcher without closing c.
func CloseOnDone(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	var stopped bool
	return func() {
		if !stopped {
			stopped = true
			close(done)
		}
	}
}
