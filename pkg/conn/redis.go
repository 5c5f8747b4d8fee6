package conn

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOption struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedis connects to redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, option RedisOption) (*redis.Client, error) {
	poolSize := option.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}
	client := redis.NewClient(&redis.Options{
		Addr:         option.Address,
		Password:     option.Password,
		DB:           option.DB,
		PoolSize:     poolSize,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
