package runtimepath

import "errors"

// ErrLocked is returned by AcquireLock when another process holds the lock.
var ErrLocked = errors.New("another modepin run is in progress")

// RunLock is an exclusive advisory lock on the runtime lock file.
type RunLock struct {
	path    string
	release func() error
}

// Path returns the locked file.
func (l *RunLock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *RunLock) Release() error {
	if l == nil || l.release == nil {
		return nil
	}
	release := l.release
	l.release = nil
	return release()
}

// AcquireLock takes the run lock at LockPath without blocking.
func AcquireLock() (*RunLock, error) {
	path, err := LockPath()
	if err != nil {
		return nil, err
	}
	return AcquireLockAt(path)
}
