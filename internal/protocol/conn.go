package protocol

import (
	"bufio"
	"net"
	"sync"

	"tradepipe/internal/errors"
	"tradepipe/pkg/exception"
)

const readBufferSize = 64 << 10

// Conn frames messages over a stream connection. Send is safe for concurrent
// use, Read must be called from one goroutine.
type Conn struct {
	raw net.Conn
	r   *bufio.Reader

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a connected stream.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		raw: c,
		r:   bufio.NewReaderSize(c, readBufferSize),
	}
}

// Read blocks until one whole frame has been received.
func (c *Conn) Read() (Message, error) {
	msg, _, err := ReadMessage(c.r)
	return msg, err
}

// Send writes one frame. The frame is written with a single Write call so
// concurrent senders never interleave.
func (c *Conn) Send(p Payload) error {
	frame, err := Encode(p)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.raw.Write(frame); err != nil {
		return errors.Mark(err, exception.ErrConnectionBroken)
	}
	return nil
}

func (c *Conn) RemoteAddr() string {
	if c.raw.RemoteAddr() == nil {
		return ""
	}
	return c.raw.RemoteAddr().String()
}

// Close closes the underlying stream. Subsequent calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}
