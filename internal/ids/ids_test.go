package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDsUniqueAndOrdered(t *testing.T) {
	const n = 1000
	seen := make(map[string]struct{}, n)
	prev := ""
	for range n {
		id := NewOrderID()
		require.True(t, strings.HasPrefix(id, OrderPrefix))
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestExecutionIDIsUUIDv7(t *testing.T) {
	id := NewExecutionID()
	require.True(t, strings.HasPrefix(id, ExecutionPrefix))

	u, err := uuid.Parse(strings.TrimPrefix(id, ExecutionPrefix))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
}
