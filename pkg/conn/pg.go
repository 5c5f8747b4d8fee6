package conn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepipe/pkg/exception"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PGOption configures a PostgreSQL pool.
type PGOption struct {
	// DSN is a key/value connection string or a postgres:// URL.
	DSN          string
	MaxOpenConns int
	// SimpleProtocol skips prepared statements, for transaction poolers.
	SimpleProtocol bool
}

func (opt PGOption) validate() error {
	if strings.TrimSpace(opt.DSN) == "" {
		return fmt.Errorf("postgres dsn is empty: %w", exception.ErrInvalidArgument)
	}
	if opt.MaxOpenConns < 0 {
		return fmt.Errorf("postgres max open conns %d: %w", opt.MaxOpenConns, exception.ErrInvalidArgument)
	}
	return nil
}

func (opt PGOption) maxOpen() int {
	if opt.MaxOpenConns == 0 {
		return 4
	}
	return opt.MaxOpenConns
}

// PG is a pinged gorm pool.
type PG struct {
	db *gorm.DB
}

// NewPG opens the pool and fails unless the server answers a ping within
// five seconds.
func NewPG(ctx context.Context, opt PGOption) (*PG, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  opt.DSN,
		PreferSimpleProtocol: opt.SimpleProtocol,
	})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(opt.maxOpen())
	pool.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &PG{db: db}, nil
}

func (c *PG) DB() *gorm.DB { return c.db }

func (c *PG) Close() error {
	pool, err := c.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}
