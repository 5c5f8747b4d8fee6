package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"tradepipe/internal/errors"
	"tradepipe/pkg/exception"

	"github.com/bytedance/sonic"
)

const (
	// HeaderSize is the length of the big-endian body length prefix.
	HeaderSize = 4
	// MaxBodySize bounds a single frame body.
	MaxBodySize = 16 << 20
)

var (
	encoder = sonic.ConfigDefault
	strict  = sonic.Config{
		DisallowUnknownFields: true,
		ValidateString:        true,
	}.Froze()
)

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoing struct {
	Type Kind    `json:"type"`
	Data Payload `json:"data"`
}

// EncodeBody serializes p into the JSON frame body {"type":N,"data":{...}}.
func EncodeBody(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.Mark(exception.ErrInvalidArgument, exception.ErrEncode)
	}
	if !p.Kind().Valid() {
		return nil, errors.Mark(exception.ErrUnknownKind, exception.ErrEncode)
	}
	body, err := encoder.Marshal(outgoing{Type: p.Kind(), Data: p})
	if err != nil {
		return nil, errors.Mark(err, exception.ErrEncode)
	}
	if len(body) > MaxBodySize {
		return nil, exception.ErrFrameTooLarge
	}
	return body, nil
}

// Encode serializes p into a complete frame: length prefix plus body.
func Encode(p Payload) ([]byte, error) {
	body, err := EncodeBody(p)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(body)))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// Decode parses one frame body. Unknown tags, unknown or missing fields and
// payloads that fail validation are reported as exception.ErrDecode.
func Decode(body []byte) (Message, error) {
	var env envelope
	if err := strict.Unmarshal(body, &env); err != nil {
		return Message{}, errors.Mark(err, exception.ErrDecode)
	}
	if !env.Type.Valid() {
		return Message{}, errors.Mark(fmt.Errorf("type %d", int(env.Type)), exception.ErrDecode)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return Message{}, errors.Mark(fmt.Errorf("%s: missing data", env.Type), exception.ErrDecode)
	}

	var (
		p   Payload
		err error
	)
	switch env.Type {
	case KindMarketData:
		p, err = decodeShadow[marketDataWire](env.Data)
	case KindNewsSentiment:
		p, err = decodeShadow[newsSentimentWire](env.Data)
	case KindTradingSignal:
		p, err = decodeShadow[tradingSignalWire](env.Data)
	case KindOrder:
		p, err = decodeShadow[orderWire](env.Data)
	case KindTradeExecution:
		p, err = decodeShadow[executionWire](env.Data)
	case KindOrderBookUpdate:
		p, err = decodeShadow[orderBookUpdateWire](env.Data)
	case KindHeartbeat:
		p, err = decodeShadow[heartbeatWire](env.Data)
	case KindShutdown:
		p, err = decodeShutdown(env.Data)
	}
	if err != nil {
		return Message{}, errors.Mark(err, exception.ErrDecode)
	}
	return Message{Kind: env.Type, Payload: p}, nil
}

func decodeShutdown(data []byte) (Payload, error) {
	var v Shutdown
	if err := strict.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadMessage reads exactly one frame from r and returns the decoded message
// with the number of bytes consumed.
//
// A stream that ends before the frame is complete yields
// exception.ErrConnectionBroken. A body that does not decode yields
// exception.ErrDecode with the stream still positioned at the next frame.
func ReadMessage(r io.Reader) (Message, int, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return Message{}, n, errors.Mark(err, exception.ErrConnectionBroken)
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxBodySize {
		return Message{}, n, errors.Mark(fmt.Errorf("length %d", size), exception.ErrFrameTooLarge)
	}

	body := make([]byte, size)
	m, err := io.ReadFull(r, body)
	n += m
	if err != nil {
		return Message{}, n, errors.Mark(err, exception.ErrConnectionBroken)
	}

	msg, err := Decode(body)
	return msg, n, err
}

// WriteMessage writes p as one frame to w.
func WriteMessage(w io.Writer, p Payload) (int, error) {
	frame, err := Encode(p)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(frame)
	if err != nil {
		return n, errors.Mark(err, exception.ErrConnectionBroken)
	}
	return n, nil
}
