package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"tradepipe/pkg/exception"

	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"

	// DefaultAcceptTimeout bounds each Accept so the loop observes cancellation.
	DefaultAcceptTimeout = time.Second
)

// Handler serves one accepted connection and must return once ctx is done.
// Handlers blocked in a read use CloseOnDone. The connection is closed when
// the handler returns.
type Handler func(ctx context.Context, conn net.Conn) error

// Server listens on a tcp address or a unix socket path.
type Server struct {
	network string
	address string

	// AcceptTimeout is the accept deadline used to poll for cancellation.
	AcceptTimeout time.Duration
	// Limit caps concurrently served connections, 0 means unlimited.
	Limit int
	// OnIdle is called whenever an accept deadline expires without a client.
	OnIdle func()

	ln net.Listener
}

// NewServer creates a server for network "tcp" or "unix".
func NewServer(network, address string) (*Server, error) {
	if address == "" {
		return nil, exception.ErrEmptyAddress
	}
	if network != NetworkTCP && network != NetworkUnix {
		return nil, exception.ErrUnsupportedNet
	}
	return &Server{
		network:       network,
		address:       address,
		AcceptTimeout: DefaultAcceptTimeout,
	}, nil
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.address
}

func (s *Server) Network() string { return s.network }

// Listen binds the address. An existing unix socket file is removed first.
func (s *Server) Listen() error {
	if s == nil {
		return exception.ErrNilServer
	}
	if s.ln != nil {
		return exception.ErrAlreadyListen
	}
	if s.network == NetworkUnix {
		if err := RemoveIfExists(s.address); err != nil {
			return err
		}
	}

	ln, err := net.Listen(s.network, s.address)
	if err != nil {
		return err
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	s.ln = ln
	return nil
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// Serve accepts connections until ctx is done or the listener fails, and runs
// handler for each one in its own goroutine. It returns after every handler
// has finished.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	if s == nil {
		return exception.ErrNilServer
	}
	if s.ln == nil {
		return exception.ErrNotListening
	}
	if handler == nil {
		return exception.ErrInvalidArgument
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if s.Limit > 0 {
		g.SetLimit(s.Limit)
	}

	dl, _ := s.ln.(deadliner)
	timeout := s.AcceptTimeout
	if timeout <= 0 {
		timeout = DefaultAcceptTimeout
	}

	var acceptErr error
	for gctx.Err() == nil {
		if dl != nil {
			_ = dl.SetDeadline(time.Now().Add(timeout))
		}

		conn, err := s.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if s.OnIdle != nil {
					s.OnIdle()
				}
				continue
			}
			if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			acceptErr = err
			break
		}

		g.Go(func() error {
			peer := PeerName(conn)
			defer conn.Close()

			if err := handler(gctx, conn); err != nil && gctx.Err() == nil {
				logs.Errorf("serve %s, err: %+v", peer, err)
			}
			return nil
		})
	}

	cancel()
	if err := g.Wait(); err != nil && acceptErr == nil {
		acceptErr = err
	}
	return acceptErr
}

// Close stops the listener.
func (s *Server) Close() error {
	if s == nil {
		return exception.ErrNilServer
	}
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

// RemoveIfExists removes the socket file if it exists.
func RemoveIfExists(path string) error {
	if path == "" {
		return exception.ErrEmptyAddress
	}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return exception.ErrPathNotSocket
	}
	return os.Remove(path)
}

// PeerName describes the remote end of conn for logging.
func PeerName(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return conn.LocalAddr().Network() + " peer"
}
