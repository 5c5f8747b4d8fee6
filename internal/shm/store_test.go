package shm

import (
	"os"
	"testing"
	"time"

	"tradepipe/internal/protocol"
	"tradepipe/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, capacity int) (*Store, Options) {
	t.Helper()
	opts := Options{Dir: t.TempDir(), Capacity: capacity}
	s, err := Create("book_test", opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = s.Unlink()
	})
	return s, opts
}

func TestReadEmpty(t *testing.T) {
	s, _ := newStore(t, 0)

	_, ok := s.Read()
	assert.False(t, ok)

	_, _, ok = s.BestBidAsk()
	assert.False(t, ok)
	assert.Equal(t, DefaultCapacity, s.Capacity())
}

func TestWriteRead(t *testing.T) {
	s, _ := newStore(t, 0)

	bids := []protocol.Level{{100.0, 5}, {99.9, 10}}
	asks := []protocol.Level{{100.1, 3}, {100.2, 7}, {100.3, 1}}
	require.NoError(t, s.Write(bids, asks))

	snap, ok := s.Read()
	require.True(t, ok)
	assert.Greater(t, snap.Timestamp, 0.0)
	assert.Equal(t, bids, snap.Bids)
	assert.Equal(t, asks, snap.Asks)

	bid, ask, ok := s.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid)
	assert.Equal(t, 100.1, ask)
}

func TestWriteIdempotent(t *testing.T) {
	s, _ := newStore(t, 0)

	bids := []protocol.Level{{10, 1}}
	asks := []protocol.Level{{11, 1}}
	require.NoError(t, s.Write(bids, asks))
	first, ok := s.Read()
	require.True(t, ok)

	require.NoError(t, s.Write(bids, asks))
	second, ok := s.Read()
	require.True(t, ok)

	assert.Equal(t, first.Bids, second.Bids)
	assert.Equal(t, first.Asks, second.Asks)
	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
}

func TestBestBidAskOneSided(t *testing.T) {
	s, _ := newStore(t, 0)

	require.NoError(t, s.Write([]protocol.Level{{100, 1}}, nil))

	snap, ok := s.Read()
	require.True(t, ok)
	assert.Empty(t, snap.Asks)

	_, _, ok = s.BestBidAsk()
	assert.False(t, ok)
}

func TestWriteCapacityBoundary(t *testing.T) {
	bidsA := []protocol.Level{{100, 1}}
	bidsB := []protocol.Level{{100, 10}}
	asks := []protocol.Level{{101, 1}}

	a, err := EncodePayload(bidsA, asks)
	require.NoError(t, err)
	b, err := EncodePayload(bidsB, asks)
	require.NoError(t, err)
	require.Equal(t, len(a)+1, len(b))

	s, _ := newStore(t, HeaderSize+len(a))

	require.NoError(t, s.Write(bidsA, asks))
	require.ErrorIs(t, s.Write(bidsB, asks), exception.ErrCapacityExceeded)

	snap, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, bidsA, snap.Bids)
	assert.Equal(t, asks, snap.Asks)
}

func TestWriteShrinkClearsTail(t *testing.T) {
	s, _ := newStore(t, 0)

	long := []protocol.Level{{100, 1}, {99, 2}, {98, 3}, {97, 4}}
	require.NoError(t, s.Write(long, long))
	longLen := int(readHeader(s.data).Length)

	short := []protocol.Level{{1, 1}}
	require.NoError(t, s.Write(short, short))
	shortLen := int(readHeader(s.data).Length)
	require.Less(t, shortLen, longLen)

	for i := HeaderSize + shortLen; i < HeaderSize+longLen; i++ {
		require.Zerof(t, s.data[i], "byte %d not cleared", i)
	}

	snap, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, short, snap.Bids)
}

func TestReadCorruptPayload(t *testing.T) {
	s, _ := newStore(t, 0)
	require.NoError(t, s.Write([]protocol.Level{{1, 1}}, []protocol.Level{{2, 1}}))

	copy(s.data[HeaderSize:], "{not json")
	_, ok := s.Read()
	assert.False(t, ok)
}

func TestReadCountMismatch(t *testing.T) {
	s, _ := newStore(t, 0)
	require.NoError(t, s.Write([]protocol.Level{{1, 1}}, []protocol.Level{{2, 1}}))

	h := readHeader(s.data)
	h.Bids = 3
	putHeader(s.data, h)

	_, ok := s.Read()
	assert.False(t, ok)
}

func TestAttachReader(t *testing.T) {
	s, opts := newStore(t, 0)

	r, err := Attach("book_test", opts)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Read()
	assert.False(t, ok)

	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, s.Write([]protocol.Level{{50, 2}}, []protocol.Level{{51, 3}}))

	snap, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, 1700000000.0, snap.Timestamp)

	bid, ask, ok := r.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, 50.0, bid)
	assert.Equal(t, 51.0, ask)

	assert.ErrorIs(t, r.Write(nil, nil), exception.ErrStoreReadOnly)
	assert.ErrorIs(t, r.Unlink(), exception.ErrStoreReadOnly)
	assert.False(t, r.Creator())
}

func TestAttachNotFound(t *testing.T) {
	_, err := Attach("missing", Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, exception.ErrSegmentNotFound)
}

func TestCreateReplacesExisting(t *testing.T) {
	s, opts := newStore(t, 0)
	require.NoError(t, s.Write([]protocol.Level{{1, 1}}, []protocol.Level{{2, 1}}))
	require.NoError(t, s.Close())

	again, err := Create("book_test", opts)
	require.NoError(t, err)
	defer again.Close()

	_, ok := again.Read()
	assert.False(t, ok)
}

func TestCreateInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Create("", Options{Dir: dir})
	assert.ErrorIs(t, err, exception.ErrSegmentName)

	_, err = Create("a/b", Options{Dir: dir})
	assert.ErrorIs(t, err, exception.ErrSegmentName)

	_, err = Create("tiny", Options{Dir: dir, Capacity: HeaderSize - 1})
	assert.ErrorIs(t, err, exception.ErrSegmentTooSmall)
}

func TestCloseAndUnlink(t *testing.T) {
	opts := Options{Dir: t.TempDir()}
	s, err := Create("book_unlink", opts)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Write(nil, nil), exception.ErrStoreClosed)

	_, ok := s.Read()
	assert.False(t, ok)

	require.NoError(t, s.Unlink())
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	_, err = Attach("book_unlink", opts)
	assert.ErrorIs(t, err, exception.ErrSegmentNotFound)
}
