//go:build windows

package lease

import (
	"errors"

	"golang.org/x/sys/windows"
)

// tryFlock attempts a non-blocking exclusive lock via LockFileEx. A held
// lock reports (false, nil) rather than an error.
func tryFlock(fd uintptr) (bool, error) {
	var ol windows.Overlapped
	err := windows.LockFileEx(windows.Handle(fd),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &ol)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return false, nil
	}
	return false, err
}

func unflock(fd uintptr) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(fd), 0, 1, 0, &ol)
}
