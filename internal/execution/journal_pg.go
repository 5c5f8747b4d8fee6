package execution

import (
	"context"
	"time"

	"tradepipe/internal/protocol"

	"gorm.io/gorm"
)

// ExecutionRecord is the row stored per execution.
type ExecutionRecord struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement"`
	ExecutionID    string  `gorm:"size:64;uniqueIndex"`
	OrderID        string  `gorm:"size:64;index"`
	Symbol         string  `gorm:"size:16;index"`
	Side           string  `gorm:"size:4"`
	Quantity       int64
	OrderPrice     float64
	ExecutionPrice float64
	Status         string `gorm:"size:16"`
	ExecutedAt     time.Time
	CreatedAt      time.Time
}

func (ExecutionRecord) TableName() string { return "executions" }

func newExecutionRecord(e protocol.Execution) ExecutionRecord {
	return ExecutionRecord{
		ExecutionID:    e.ExecutionID,
		OrderID:        e.OrderID,
		Symbol:         e.Symbol,
		Side:           string(e.Side),
		Quantity:       e.Quantity,
		OrderPrice:     e.OrderPrice,
		ExecutionPrice: e.ExecutionPrice,
		Status:         string(e.Status),
		ExecutedAt:     protocol.Time(e.Timestamp).UTC(),
	}
}

// PGJournal inserts executions into Postgres.
type PGJournal struct {
	db      *gorm.DB
	closeFn func() error
}

// NewPGJournal migrates the executions table. closeFn releases the pool and may be nil.
func NewPGJournal(ctx context.Context, db *gorm.DB, closeFn func() error) (*PGJournal, error) {
	if err := db.WithContext(ctx).AutoMigrate(&ExecutionRecord{}); err != nil {
		return nil, err
	}
	return &PGJournal{db: db, closeFn: closeFn}, nil
}

func (j *PGJournal) Append(ctx context.Context, e protocol.Execution) error {
	rec := newExecutionRecord(e)
	return j.db.WithContext(ctx).Create(&rec).Error
}

func (j *PGJournal) Close() error {
	if j.closeFn == nil {
		return nil
	}
	return j.closeFn()
}
