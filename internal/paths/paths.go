// Package paths resolves the runtime file locations for a hubwatch daemon.
//
// Each repository gets its own runtime directory so that daemons for
// different repositories never collide on socket, pid, or lock files:
//
//	$XDG_STATE_HOME/hubwatch/<owner>__<repo>/
//	    hubwatch.sock   Unix domain socket for the IPC server
//	    hubwatch.pid    JSON pid file with daemon metadata
//	    hubwatch.lock   flock file held for the daemon's lifetime
//	    events.db       SQLite log of routed events
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+/[A-Za-z0-9._-]+$`)

// ValidateRepo checks that repo has the "owner/name" form GitHub expects.
func ValidateRepo(repo string) error {
	if !repoPattern.MatchString(repo) {
		return fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return nil
}

// StateHome returns the base state directory for hubwatch.
// Honors XDG_STATE_HOME, falling back to ~/.local/state.
func StateHome() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "hubwatch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "hubwatch"), nil
}

// RuntimeDir returns the per-repository runtime directory.
// The directory is not created; callers use EnsureRuntimeDir for that.
func RuntimeDir(repo string) (string, error) {
	if err := ValidateRepo(repo); err != nil {
		return "", err
	}
	base, err := StateHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, repoSlug(repo)), nil
}

// EnsureRuntimeDir creates the per-repository runtime directory with
// owner-only permissions and returns its path.
func EnsureRuntimeDir(repo string) (string, error) {
	dir, err := RuntimeDir(repo)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create runtime directory: %w", err)
	}
	return dir, nil
}

// SocketPath returns the Unix socket path inside the runtime directory.
func SocketPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "hubwatch.sock")
}

// PIDPath returns the pid file path inside the runtime directory.
func PIDPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "hubwatch.pid")
}

// LockPath returns the flock file path inside the runtime directory.
func LockPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "hubwatch.lock")
}

// EventLogPath returns the routed-event database path inside the runtime
// directory.
func EventLogPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "events.db")
}

// repoSlug converts "owner/repo" into a single filesystem-safe component.
func repoSlug(repo string) string {
	return strings.ReplaceAll(repo, "/", "__")
}
