package obs

import (
	"sync/atomic"
)

// Sequence hands out monotonically increasing numbers, starting at 1.
type Sequence struct {
	next uint64
}

// Next returns the next sequence number.
func (g *Sequence) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}

// Last returns the most recently issued number.
func (g *Sequence) Last() uint64 {
	if g == nil {
		return 0
	}
	return atomic.LoadUint64(&g.next)
}
