package github

import (
	"context"
	"fmt"
	"strings"
)

// TokenSource yields a bearer token for authenticating the event stream.
// Tokens are requested fresh before every connection attempt and never
// cached across reconnects.
type TokenSource func(ctx context.Context) (string, error)

// CLITokenSource returns a TokenSource backed by `gh auth token`.
func CLITokenSource() TokenSource {
	return tokenSourceWithRunner(runGH)
}

func tokenSourceWithRunner(run runner) TokenSource {
	return func(ctx context.Context) (string, error) {
		stdout, stderr, err := run(ctx, "auth", "token")
		if err != nil {
			return "", classifyError(stderr, err)
		}
		token := strings.TrimSpace(string(stdout))
		if token == "" {
			return "", fmt.Errorf("gh auth token returned no token: %w", ErrNotAuthenticated)
		}
		return token, nil
	}
}
