package execution

import (
	"context"

	"tradepipe/internal/protocol"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the producer side used by KafkaJournal. *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaJournal publishes each execution keyed by symbol.
type KafkaJournal struct {
	w MessageWriter
}

func NewKafkaJournal(w MessageWriter) *KafkaJournal {
	return &KafkaJournal{w: w}
}

func (j *KafkaJournal) Append(ctx context.Context, e protocol.Execution) error {
	value, err := sonic.Marshal(e)
	if err != nil {
		return err
	}
	return j.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Symbol),
		Value: value,
		Time:  protocol.Time(e.Timestamp),
	})
}

func (j *KafkaJournal) Close() error {
	return j.w.Close()
}
