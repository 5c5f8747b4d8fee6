package exception

import "errors"

// Shared memory errors
var (
	// ErrCapacityExceeded is returned when a snapshot does not fit the segment.
	// The write is rejected and the previous snapshot stays visible.
	ErrCapacityExceeded = errors.New("shm: capacity exceeded")

	// ErrSegmentNotFound is returned when attaching to a segment that does not exist.
	ErrSegmentNotFound = errors.New("shm: segment not found")

	ErrSegmentName     = errors.New("shm: invalid segment name")
	ErrSegmentTooSmall = errors.New("shm: segment smaller than header")
	ErrStoreClosed     = errors.New("shm: store closed")
	ErrStoreReadOnly   = errors.New("shm: store is read-only")
)
