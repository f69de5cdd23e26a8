//go:build !unix

package daemon

// AcquireLock is a no-op where flock is unavailable; the PID file check is
// the only single-instance guard on these platforms.
func AcquireLock(path string) (*FileLock, error) {
	return &FileLock{path: path}, nil
}

// Release is a no-op on non-unix platforms.
func (l *FileLock) Release() error {
	return nil
}

// IsLocked always reports false on non-unix platforms.
func IsLocked(path string) bool {
	return false
}
