//go:build !windows

package lease

import (
	"errors"

	"golang.org/x/sys/unix"
)

// tryFlock attempts a non-blocking exclusive lock. A held lock reports
// (false, nil) rather than an error.
func tryFlock(fd uintptr) (bool, error) {
	err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	return false, err
}

func unflock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
