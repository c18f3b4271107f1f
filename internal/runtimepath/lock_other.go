//go:build !linux && !darwin

package runtimepath

// AcquireLockAt is a no-op where no display backend exists.
func AcquireLockAt(path string) (*RunLock, error) {
	return &RunLock{path: path}, nil
}
