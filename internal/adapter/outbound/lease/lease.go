// Package lease provides a cooperative start lease backed by an advisory
// file lock. Two supervisors racing to start the gateway both reach the
// sandbox; the lease lets one of them yield and adopt the winner's process
// instead of starting a duplicate.
package lease

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileLease implements the supervisor's start lease with flock on a path
// shared by all supervisor instances on the host.
type FileLease struct {
	path string
}

// NewFileLease returns a lease anchored at path. The file is created on
// first acquisition.
func NewFileLease(path string) *FileLease {
	return &FileLease{path: path}
}

// Acquire attempts to take the lease without blocking. On success it
// returns a release function and acquired=true. If another holder has the
// lease it returns acquired=false with no error. Errors mean the lease
// mechanism itself is unavailable; callers proceed without coordination.
func (l *FileLease) Acquire(ctx context.Context) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create lease directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, false, fmt.Errorf("open lease file: %w", err)
	}

	ok, err := tryFlock(f.Fd())
	if err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("acquire lease lock: %w", err)
	}
	if !ok {
		_ = f.Close()
		return nil, false, nil
	}

	release := func() {
		_ = unflock(f.Fd())
		_ = f.Close()
	}
	return release, true, nil
}
