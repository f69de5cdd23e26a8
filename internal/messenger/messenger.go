// Package messenger delivers rendered event lines into local agent sessions.
// The production implementation types the line into a tmux pane; tests plug
// in a Func.
package messenger

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/logging"
)

// Messenger sends one message to one session. Implementations must be safe
// for concurrent use; the router fans out to all subscribed sessions in
// parallel.
type Messenger interface {
	Send(ctx context.Context, sessionID, message string) error
}

// Func adapts a function to the Messenger interface.
type Func func(ctx context.Context, sessionID, message string) error

func (f Func) Send(ctx context.Context, sessionID, message string) error {
	return f(ctx, sessionID, message)
}

// Tmux delivers messages by typing them into the tmux pane named by the
// session id, followed by Enter.
type Tmux struct {
	command string
	log     *logrus.Entry
}

// NewTmux creates a tmux-backed messenger. command is the tmux binary to
// invoke; empty means "tmux" from PATH.
func NewTmux(command string) *Tmux {
	if command == "" {
		command = "tmux"
	}
	return &Tmux{command: command, log: logging.NewLogger("messenger")}
}

// Send types message into the target pane as a literal line and presses
// Enter. The -l flag stops tmux from interpreting key names in the message,
// and -- guards against messages that start with a dash.
func (t *Tmux) Send(ctx context.Context, sessionID, message string) error {
	if err := t.sendKeys(ctx, sessionID, "-l", "--", message); err != nil {
		return fmt.Errorf("send message to %s: %w", sessionID, err)
	}
	if err := t.sendKeys(ctx, sessionID, "Enter"); err != nil {
		return fmt.Errorf("submit message to %s: %w", sessionID, err)
	}
	return nil
}

func (t *Tmux) sendKeys(ctx context.Context, target string, args ...string) error {
	cmd := exec.CommandContext(ctx, t.command, append([]string{"send-keys", "-t", target}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("%s: %s", err, msg)
		}
		return err
	}
	return nil
}
