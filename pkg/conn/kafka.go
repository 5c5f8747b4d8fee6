package conn

import (
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaOption struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	Async        bool
}

// NewKafkaWriter builds a producer for one topic. kafka-go dials lazily, so
// broker errors surface on the first write.
func NewKafkaWriter(option KafkaOption) *kafka.Writer {
	batchTimeout := option.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(option.Brokers...),
		Topic:                  option.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteBackoffMin:        50 * time.Millisecond,
		WriteBackoffMax:        500 * time.Millisecond,
		BatchTimeout:           batchTimeout,
		Async:                  option.Async,
	}
}
