package daemon

import "os"

// FileLock is an exclusive lock on the daemon's lock file. The OS drops the
// lock when the process dies, including SIGKILL, which makes it the
// authoritative single-instance check even when the PID file is stale.
type FileLock struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
