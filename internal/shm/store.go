package shm

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tradepipe/internal/errors"
	"tradepipe/internal/protocol"
	"tradepipe/pkg/exception"

	"golang.org/x/sys/unix"
)

const (
	DefaultCapacity = 65536
	DefaultDir      = "/dev/shm"
)

type Options struct {
	// Dir holds the segment file. Defaults to DefaultDir.
	Dir string
	// Capacity is the total segment size including the header. Only used by Create.
	Capacity int
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = DefaultDir
	}
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	return o
}

// Snapshot is the current book held in the segment. Bids and asks are best first.
type Snapshot struct {
	Timestamp float64
	Bids      []protocol.Level
	Asks      []protocol.Level
}

// Store is a handle on a named shared order book segment. A Store obtained
// from Create is the single writer; Attach returns a read-only handle.
type Store struct {
	name string
	path string

	mu      sync.Mutex
	file    *os.File
	data    []byte
	creator bool
	closed  bool

	now func() time.Time
}

// Create destroys any existing segment with the same name and creates a new,
// zeroed one. The caller becomes the only writer.
func Create(name string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	path, err := segmentPath(opts.Dir, name)
	if err != nil {
		return nil, err
	}
	if opts.Capacity < HeaderSize {
		return nil, exception.ErrSegmentTooSmall
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(opts.Capacity)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, errors.Wrap(err, "size segment")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, opts.Capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, errors.Wrap(err, "map segment")
	}

	return &Store{
		name:    name,
		path:    path,
		file:    f,
		data:    data,
		creator: true,
		now:     time.Now,
	}, nil
}

// Attach maps an existing segment read-only. It fails fast with
// exception.ErrSegmentNotFound when no writer has created it yet.
func Attach(name string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	path, err := segmentPath(opts.Dir, name)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exception.ErrSegmentNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.Size() < HeaderSize {
		_ = f.Close()
		return nil, exception.ErrSegmentTooSmall
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "map segment")
	}

	return &Store{
		name: name,
		path: path,
		file: f,
		data: data,
		now:  time.Now,
	}, nil
}

func segmentPath(dir, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '/') || name == "." || name == ".." {
		return "", exception.ErrSegmentName
	}
	return filepath.Join(dir, name), nil
}

func (s *Store) Name() string { return s.name }

func (s *Store) Path() string { return s.path }

// Capacity is the segment size including the header.
func (s *Store) Capacity() int { return len(s.data) }

// Creator reports whether this handle created the segment.
func (s *Store) Creator() bool { return s.creator }

// Write replaces the current snapshot with bids and asks stamped with the
// current time. When header and payload exceed the capacity the write is
// rejected with exception.ErrCapacityExceeded and the previous snapshot stays.
func (s *Store) Write(bids, asks []protocol.Level) error {
	if !s.creator {
		return exception.ErrStoreReadOnly
	}

	payload, err := EncodePayload(bids, asks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return exception.ErrStoreClosed
	}
	if HeaderSize+len(payload) > len(s.data) {
		return exception.ErrCapacityExceeded
	}

	if err := flock(s.file); err != nil {
		return err
	}
	defer funlock(s.file)

	prev := int(readHeader(s.data).Length)
	if prev > len(s.data)-HeaderSize {
		prev = len(s.data) - HeaderSize
	}

	copy(s.data[HeaderSize:], payload)
	if prev > len(payload) {
		clear(s.data[HeaderSize+len(payload) : HeaderSize+prev])
	}

	putHeader(s.data, header{
		Timestamp: protocol.Timestamp(s.now()),
		Bids:      uint32(len(bids)),
		Asks:      uint32(len(asks)),
		Length:    uint32(len(payload)),
	})
	return nil
}

// Read returns the current snapshot. It reports false when nothing has been
// published yet or when the segment content cannot be parsed.
func (s *Store) Read() (Snapshot, bool) {
	hdr, payload, ok := s.load()
	if !ok || hdr.Timestamp == 0 {
		return Snapshot{}, false
	}

	p, err := decodePayload(payload)
	if err != nil {
		return Snapshot{}, false
	}
	if len(p.Bids) != int(hdr.Bids) || len(p.Asks) != int(hdr.Asks) {
		return Snapshot{}, false
	}

	return Snapshot{
		Timestamp: hdr.Timestamp,
		Bids:      p.Bids,
		Asks:      p.Asks,
	}, true
}

// load copies header and payload out of the segment under the lock.
func (s *Store) load() (header, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return header{}, nil, false
	}
	if err := flock(s.file); err != nil {
		return header{}, nil, false
	}
	defer funlock(s.file)

	hdr := readHeader(s.data)
	if hdr.Timestamp == 0 {
		return hdr, nil, true
	}
	if int(hdr.Length) > len(s.data)-HeaderSize {
		return header{}, nil, false
	}

	payload := make([]byte, hdr.Length)
	copy(payload, s.data[HeaderSize:HeaderSize+int(hdr.Length)])
	return hdr, payload, true
}

// BestBidAsk returns the top of book. ok is false when nothing is published
// or either side is empty.
func (s *Store) BestBidAsk() (bid, ask float64, ok bool) {
	snap, ok := s.Read()
	if !ok || len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return 0, 0, false
	}
	return snap.Bids[0].Price(), snap.Asks[0].Price(), true
}

// Close unmaps the segment. The segment itself survives until Unlink.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Unlink removes the segment name. Only the creating handle may unlink.
func (s *Store) Unlink() error {
	if !s.creator {
		return exception.ErrStoreReadOnly
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
