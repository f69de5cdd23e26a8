package github

import (
	"errors"
	"fmt"
	"time"
)

// Provisioning failure classes. Startup treats NotInstalled and
// NotAuthenticated as fatal and non-retryable; the rest surface to the caller
// of daemon start.
var (
	// ErrNotInstalled means the gh CLI binary is missing from PATH.
	ErrNotInstalled = errors.New("gh CLI is not installed")
	// ErrNotAuthenticated means gh has no usable credentials.
	ErrNotAuthenticated = errors.New("gh CLI is not authenticated; run 'gh auth login'")
	// ErrPermissionDenied means the token cannot manage hooks on the repo.
	ErrPermissionDenied = errors.New("permission denied managing repository webhooks")
	// ErrHookExists means a cli forwarding hook already exists for the repo.
	ErrHookExists = errors.New("webhook already exists for repository")
)

// RateLimitError reports API rate limiting with a retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limited, retry after %s", e.RetryAfter)
}
