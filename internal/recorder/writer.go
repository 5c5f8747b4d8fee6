package recorder

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

var (
	ErrQueueFull      = errors.New("journal queue full")
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
)

// Writer appends one JSON document per line to a file from a buffered queue.
// A failed write is recorded in Err and logged, the loop keeps going.
type Writer struct {
	cfg  Config
	file *os.File
	buf  *bufio.Writer
	ch   chan []byte
	wg   sync.WaitGroup
	err  atomic.Value

	written uint64
	failed  uint64

	started uint32
	closed  uint32

	// gate orders enqueues against the loop shutting down, so a line is
	// either drained or refused.
	gate    sync.RWMutex
	stopped bool
}

// NewWriter opens the journal in append mode and ensures its directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		cfg:  cfg,
		file: file,
		buf:  bufio.NewWriterSize(file, cfg.BufferSize),
		ch:   make(chan []byte, cfg.QueueSize),
	}, nil
}

func (w *Writer) Path() string { return w.cfg.Path }

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops accepting records, writes what is queued and closes the file.
func (w *Writer) Close() error {
	w.gate.Lock()
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.gate.Unlock()
	w.wg.Wait()
	if atomic.LoadUint32(&w.started) == 0 {
		return w.file.Close()
	}
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Written is the number of lines handed to the file so far.
func (w *Writer) Written() uint64 { return atomic.LoadUint64(&w.written) }

// Failed is the number of lines that could not be written.
func (w *Writer) Failed() uint64 { return atomic.LoadUint64(&w.failed) }

// TryAppend encodes v and enqueues it without blocking. Once the loop has
// exited, through Close or its context, it returns ErrClosed.
func (w *Writer) TryAppend(v any) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}

	line, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.gate.RLock()
	defer w.gate.RUnlock()
	if w.stopped || atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	select {
	case w.ch <- line:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		w.stop()
		w.setErr(w.closeFile())
	}()

	for {
		select {
		case <-ctx.Done():
			w.stop()
			w.drainNonBlocking()
			return
		case line, ok := <-w.ch:
			if !ok {
				return
			}
			w.writeLine(line)
		case <-flushC:
			if err := w.buf.Flush(); err != nil {
				w.fail(err)
			}
		case <-syncC:
			if err := w.sync(); err != nil {
				w.fail(err)
			}
		}
	}
}

func (w *Writer) stop() {
	w.gate.Lock()
	w.stopped = true
	w.gate.Unlock()
}

func (w *Writer) drainNonBlocking() {
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				return
			}
			w.writeLine(line)
		default:
			return
		}
	}
}

func (w *Writer) writeLine(line []byte) {
	if _, err := w.buf.Write(line); err != nil {
		atomic.AddUint64(&w.failed, 1)
		w.fail(err)
		return
	}
	atomic.AddUint64(&w.written, 1)
}

func (w *Writer) sync() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *Writer) closeFile() error {
	if err := w.sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) fail(err error) {
	logs.Errorf("journal %s write failed, err: %+v", w.cfg.Path, err)
	w.setErr(err)
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}
