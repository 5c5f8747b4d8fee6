package recorder

import (
	"fmt"
	"time"
)

const (
	defaultQueueSize  = 4096
	defaultBufferSize = 64 * 1024
)

var defaultFlushInterval = time.Second

// Config controls journal writer behavior.
type Config struct {
	// Path of the JSON-lines file. Missing parent directories are created.
	Path          string
	QueueSize     int
	BufferSize    int
	FlushInterval time.Duration
	SyncInterval  time.Duration
}

// DefaultConfig returns a baseline configuration for the journal writer.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		QueueSize:     defaultQueueSize,
		BufferSize:    defaultBufferSize,
		FlushInterval: defaultFlushInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("invalid recorder config: Path is empty")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid recorder config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid recorder config: BufferSize must be > 0")
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("invalid recorder config: FlushInterval must be >= 0")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("invalid recorder config: SyncInterval must be >= 0")
	}
	return nil
}
