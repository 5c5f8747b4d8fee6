package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradepipe/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.log")

	w, err := NewWriter(DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))

	execs := []protocol.Execution{
		{ExecutionID: "EXEC-1", OrderID: "ORD-1", Symbol: "AAPL", Side: protocol.SideBuy, Quantity: 10, OrderPrice: 100, ExecutionPrice: 100.05, Timestamp: 1, Status: protocol.StatusFilled},
		{ExecutionID: "EXEC-2", OrderID: "ORD-2", Symbol: "TSLA", Side: protocol.SideSell, Quantity: 20, OrderPrice: 200, ExecutionPrice: 199.9, Timestamp: 2, Status: protocol.StatusFilled},
	}
	for _, e := range execs {
		require.NoError(t, w.TryAppend(e))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(2), w.Written())
	assert.ErrorIs(t, w.TryAppend(execs[0]), ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := NewReader(f, ReaderOptions{})
	for _, want := range execs {
		var got protocol.Execution
		require.NoError(t, r.Next(&got))
		assert.Equal(t, want, got)
	}
	assert.ErrorIs(t, r.Next(&protocol.Execution{}), io.EOF)
}

func TestWriterReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.log")

	for i := range 2 {
		w, err := NewWriter(DefaultConfig(path))
		require.NoError(t, err)
		require.NoError(t, w.Start(t.Context()))
		require.NoError(t, w.TryAppend(map[string]int{"run": i}))
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestWriterRefusesAfterContextDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.log")
	ctx, cancel := context.WithCancel(t.Context())

	w, err := NewWriter(DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.TryAppend(map[string]int{"seq": 1}))

	cancel()
	require.Eventually(t, func() bool {
		return w.TryAppend(map[string]int{"seq": 2}) != nil
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, w.TryAppend(map[string]int{"seq": 3}), ErrClosed)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(strings.Count(string(data), "\n")), w.Written())
	assert.Contains(t, string(data), `"seq":1`)
}

func TestWriterNotStarted(t *testing.T) {
	w, err := NewWriter(DefaultConfig(filepath.Join(t.TempDir(), "trades.log")))
	require.NoError(t, err)
	assert.ErrorIs(t, w.TryAppend(1), ErrNotStarted)
	require.NoError(t, w.Close())
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.withDefaults().Validate())
	assert.Error(t, Config{Path: "x", FlushInterval: -1}.withDefaults().Validate())
	assert.NoError(t, DefaultConfig("x").Validate())
}

func TestReaderLineTooLong(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("a", 64)+"\n"), ReaderOptions{MaxLineSize: 16})
	var v any
	assert.ErrorIs(t, r.Next(&v), ErrLineTooLong)
}
