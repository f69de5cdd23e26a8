// Package cli implements the client side of hubwatch: talking to the daemon
// over its socket, managing the daemon process, and formatting output.
package cli

import (
	"context"
	"fmt"

	"github.com/hubwatch/hubwatch/internal/daemon"
	"github.com/hubwatch/hubwatch/internal/paths"
	"github.com/hubwatch/hubwatch/internal/protocol"
)

// SocketFor resolves the daemon socket path for a repository.
func SocketFor(repo string) (string, error) {
	runtimeDir, err := paths.RuntimeDir(repo)
	if err != nil {
		return "", err
	}
	return paths.SocketPath(runtimeDir), nil
}

// Subscribe asks the daemon to subscribe a session to pull requests.
func Subscribe(ctx context.Context, repo, sessionID string, prNumbers []int) (string, error) {
	resp, err := request(ctx, repo, &protocol.Command{
		Type:      protocol.CommandSubscribe,
		SessionID: sessionID,
		PRNumbers: prNumbers,
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Unsubscribe asks the daemon to drop a session's subscriptions.
func Unsubscribe(ctx context.Context, repo, sessionID string, prNumbers []int) (string, error) {
	resp, err := request(ctx, repo, &protocol.Command{
		Type:      protocol.CommandUnsubscribe,
		SessionID: sessionID,
		PRNumbers: prNumbers,
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Status fetches the daemon's status snapshot.
func Status(ctx context.Context, repo string) (*protocol.DaemonStatus, error) {
	resp, err := request(ctx, repo, &protocol.Command{Type: protocol.CommandStatus})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("daemon returned a status response without a status")
	}
	return resp.Status, nil
}

// Shutdown asks the daemon to exit gracefully.
func Shutdown(ctx context.Context, repo string) (string, error) {
	resp, err := request(ctx, repo, &protocol.Command{Type: protocol.CommandShutdown})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// request performs one exchange and converts protocol-level errors into Go
// errors so callers only deal with one failure path.
func request(ctx context.Context, repo string, cmd *protocol.Command) (*protocol.Response, error) {
	socketPath, err := SocketFor(repo)
	if err != nil {
		return nil, err
	}
	resp, err := daemon.Request(ctx, socketPath, cmd)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	if resp.Type == protocol.ResponseError {
		return nil, fmt.Errorf("daemon: %s", resp.Err)
	}
	return resp, nil
}
