package cli

import (
	"os"

	"github.com/oklog/ulid/v2"
)

// ResolveSessionID picks the session identity for subscribe/unsubscribe.
// Precedence: explicit --session flag, HUBWATCH_SESSION, the surrounding
// tmux pane, then a generated id. The tmux pane default means an agent
// running inside tmux gets deliveries typed into its own pane without any
// configuration.
func ResolveSessionID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("HUBWATCH_SESSION"); env != "" {
		return env
	}
	if pane := os.Getenv("TMUX_PANE"); pane != "" {
		return pane
	}
	return "hubwatch-" + ulid.Make().String()
}
