package protocol

import (
	"bytes"
	"testing"
)

func benchMarketData() MarketData {
	return MarketData{
		Symbol:    "AAPL",
		Timestamp: 1700000000.5,
		Bids:      []Level{{150.0, 300}, {149.9, 120}, {149.8, 410}, {149.7, 90}, {149.6, 600}},
		Asks:      []Level{{150.1, 200}, {150.2, 80}, {150.3, 330}, {150.4, 510}, {150.5, 150}},
		LastPrice: 150.05,
		Volume:    52000,
	}
}

func BenchmarkEncodeMarketData(b *testing.B) {
	md := benchMarketData()
	for b.Loop() {
		frame, err := Encode(md)
		if err != nil {
			b.Fatal(err)
		}
		_ = frame
	}
}

func BenchmarkReadMessageMarketData(b *testing.B) {
	frame, err := Encode(benchMarketData())
	if err != nil {
		b.Fatal(err)
	}
	r := bytes.NewReader(frame)
	b.SetBytes(int64(len(frame)))
	for b.Loop() {
		r.Reset(frame)
		if _, _, err := ReadMessage(r); err != nil {
			b.Fatal(err)
		}
	}
}
