package exception

import "errors"

var (
	// ErrPeerNotFound is returned when a peer role cannot be reached after the
	// connect retry policy is exhausted.
	ErrPeerNotFound = errors.New("transport: peer not found")

	ErrEmptyAddress    = errors.New("transport: empty address")
	ErrUnsupportedNet  = errors.New("transport: unsupported network")
	ErrPathNotSocket   = errors.New("transport: path exists and is not a socket")
	ErrAlreadyListen   = errors.New("transport: already listening")
	ErrNotListening    = errors.New("transport: not listening")
	ErrNilServer       = errors.New("transport: nil server")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNilInstance     = errors.New("nil instance")
)
