package exception

import "github.com/yanun0323/errors"

// Config errors
var (
	ErrInvalidConfig = errors.New("config: invalid")
)
