package book

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisMirror stores the latest published book under key:symbol and
// announces it on the key channel.
type RedisMirror struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisMirror(client redis.Cmdable, key string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, key: key, ttl: ttl}
}

func (m *RedisMirror) Mirror(ctx context.Context, b Book) error {
	value, err := sonic.Marshal(b)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.entryKey(b.Symbol), value, m.ttl)
	pipe.Publish(ctx, m.key, value)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) entryKey(symbol string) string {
	return m.key + ":" + symbol
}
