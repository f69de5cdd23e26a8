package cli

import (
	"fmt"

	"github.com/hubwatch/hubwatch/internal/eventlog"
	"github.com/hubwatch/hubwatch/internal/paths"
)

// Events reads recent routed events from the repository's event log. A
// prNumber of 0 means all pull requests.
func Events(repo string, prNumber, limit int) ([]eventlog.Entry, error) {
	runtimeDir, err := paths.RuntimeDir(repo)
	if err != nil {
		return nil, err
	}

	log, err := eventlog.Open(paths.EventLogPath(runtimeDir))
	if err != nil {
		return nil, fmt.Errorf("open event log (has the daemon run yet?): %w", err)
	}
	defer log.Close()

	return log.Recent(prNumber, limit)
}
