package shm

import (
	"encoding/binary"
	"math"

	"tradepipe/internal/protocol"

	"github.com/bytedance/sonic"
)

// Segment layout, all integers big-endian:
//
//	[0:8)   timestamp float64 seconds, 0 means nothing published
//	[8:12)  bid level count
//	[12:16) ask level count
//	[16:20) payload length
//	[20:)   payload {"bids":[[p,s],...],"asks":[[p,s],...]}, zero padded
const (
	HeaderSize = 20

	offTimestamp = 0
	offBids      = 8
	offAsks      = 12
	offLength    = 16
)

type header struct {
	Timestamp float64
	Bids      uint32
	Asks      uint32
	Length    uint32
}

func putHeader(dst []byte, h header) {
	binary.BigEndian.PutUint64(dst[offTimestamp:offBids], math.Float64bits(h.Timestamp))
	binary.BigEndian.PutUint32(dst[offBids:offAsks], h.Bids)
	binary.BigEndian.PutUint32(dst[offAsks:offLength], h.Asks)
	binary.BigEndian.PutUint32(dst[offLength:HeaderSize], h.Length)
}

func readHeader(src []byte) header {
	return header{
		Timestamp: math.Float64frombits(binary.BigEndian.Uint64(src[offTimestamp:offBids])),
		Bids:      binary.BigEndian.Uint32(src[offBids:offAsks]),
		Asks:      binary.BigEndian.Uint32(src[offAsks:offLength]),
		Length:    binary.BigEndian.Uint32(src[offLength:HeaderSize]),
	}
}

type bookPayload struct {
	Bids []protocol.Level `json:"bids"`
	Asks []protocol.Level `json:"asks"`
}

// EncodePayload returns the payload bytes a Write of bids and asks would store.
func EncodePayload(bids, asks []protocol.Level) ([]byte, error) {
	if bids == nil {
		bids = []protocol.Level{}
	}
	if asks == nil {
		asks = []protocol.Level{}
	}
	return sonic.Marshal(bookPayload{Bids: bids, Asks: asks})
}

func decodePayload(src []byte) (bookPayload, error) {
	var p bookPayload
	if err := sonic.Unmarshal(src, &p); err != nil {
		return bookPayload{}, err
	}
	return p, nil
}
