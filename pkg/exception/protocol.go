package exception

import "errors"

// Protocol errors
var (
	// ErrDecode is returned for a malformed frame body, an unknown type tag or
	// a payload whose shape does not match its kind. Fatal to one message.
	ErrDecode = errors.New("protocol: decode error")

	// ErrConnectionBroken is returned when the peer closes the stream before a
	// whole frame arrived. Fatal to the connection.
	ErrConnectionBroken = errors.New("protocol: connection broken")

	// ErrFrameTooLarge is returned when a length prefix exceeds the frame limit.
	ErrFrameTooLarge = errors.New("protocol: frame too large")

	ErrEncode      = errors.New("protocol: encode error")
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)
