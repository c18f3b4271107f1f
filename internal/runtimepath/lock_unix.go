//go:build linux || darwin

package runtimepath

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// AcquireLockAt takes an exclusive flock on path without blocking. The lock is
// dropped by Release or when the process exits.
func AcquireLockAt(path string) (*RunLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return &RunLock{
		path: path,
		release: func() error {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			return f.Close()
		},
	}, nil
}
