package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

// flock takes an exclusive advisory lock on the segment file so that writers
// and readers in other processes are serialized with this one.
func flock(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

func funlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
