package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/hubwatch/hubwatch/internal/protocol"
)

// Request performs one IPC exchange: dial the socket, send the command as a
// JSON line, read the single response, close. The daemon closes the
// connection after responding, so clients never reuse one.
func Request(ctx context.Context, socketPath string, cmd *protocol.Command) (*protocol.Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &resp, nil
}

// WaitForSocket polls until the daemon answers a status command on the
// socket, or the timeout elapses. Used after spawning the daemon.
func WaitForSocket(socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for daemon socket %s", socketPath)
		case <-ticker.C:
			probeCtx, probeCancel := context.WithTimeout(ctx, time.Second)
			_, err := Request(probeCtx, socketPath, &protocol.Command{Type: protocol.CommandStatus})
			probeCancel()
			if err == nil {
				return nil
			}
		}
	}
}
