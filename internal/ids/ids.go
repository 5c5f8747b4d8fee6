package ids

import "github.com/google/uuid"

const (
	OrderPrefix     = "ORD-"
	ExecutionPrefix = "EXEC-"
)

// NewOrderID returns a unique, time ordered order identifier.
func NewOrderID() string {
	return OrderPrefix + newV7()
}

// NewExecutionID returns a unique, time ordered execution identifier.
func NewExecutionID() string {
	return ExecutionPrefix + newV7()
}

func newV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
