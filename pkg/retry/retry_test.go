package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial refused")

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var waits []time.Duration

	p := Fixed(5, time.Millisecond)
	p.OnRetry = func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) }

	err := Do(t.Context(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errDial
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, waits)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	err := Do(t.Context(), Fixed(5, 0), func(context.Context) error {
		calls++
		return errDial
	})
	assert.ErrorIs(t, err, errDial)
	assert.Equal(t, 5, calls)
}

func TestDoFatalStops(t *testing.T) {
	calls := 0
	p := Fixed(5, 0)
	p.Classify = func(error) Class { return Fatal }

	err := Do(t.Context(), p, func(context.Context) error {
		calls++
		return errDial
	})
	assert.ErrorIs(t, err, errDial)
	assert.Equal(t, 1, calls)
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	calls := 0
	err := Do(ctx, Fixed(5, time.Hour), func(context.Context) error {
		calls++
		cancel()
		return errDial
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWaitGrowth(t *testing.T) {
	p := Policy{Delay: 100 * time.Millisecond, Factor: 2, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Wait(1))
	assert.Equal(t, 200*time.Millisecond, p.Wait(2))
	assert.Equal(t, 300*time.Millisecond, p.Wait(3))

	assert.Equal(t, time.Second, Fixed(5, time.Second).Wait(4))
}
