// Package protocol defines the IPC wire format spoken over the daemon's
// Unix socket: one newline-delimited JSON command in, one JSON response out,
// connection closed after the response.
package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandType discriminates the IPC command variants. The set is closed;
// unknown values are rejected at decode time.
type CommandType string

const (
	CommandSubscribe   CommandType = "subscribe"
	CommandUnsubscribe CommandType = "unsubscribe"
	CommandStatus      CommandType = "status"
	CommandShutdown    CommandType = "shutdown"
)

// Command is a decoded IPC command. SessionID and PRNumbers are only
// meaningful for subscribe/unsubscribe.
type Command struct {
	Type      CommandType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	PRNumbers []int       `json:"prNumbers,omitempty"`
}

// DecodeCommand parses and validates one wire line. Errors cover malformed
// JSON, unknown command types, and invalid subscribe/unsubscribe arguments;
// a command that decodes cleanly is safe to hand to the processor.
func DecodeCommand(line []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Validate checks the command against the per-type argument rules.
func (c *Command) Validate() error {
	switch c.Type {
	case CommandSubscribe, CommandUnsubscribe:
		if c.SessionID == "" {
			return fmt.Errorf("sessionId must not be empty")
		}
		if len(c.PRNumbers) == 0 {
			return fmt.Errorf("prNumbers must not be empty")
		}
		for _, n := range c.PRNumbers {
			if n <= 0 {
				return fmt.Errorf("prNumbers must be positive integers, got %d", n)
			}
		}
		return nil
	case CommandStatus, CommandShutdown:
		return nil
	case "":
		return fmt.Errorf("missing command type")
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
}

// Response type discriminators.
const (
	ResponseSuccess = "success"
	ResponseError   = "error"
	ResponseStatus  = "status_response"
)

// Response is the single reply written for each command.
type Response struct {
	Type    string        `json:"type"`
	Message string        `json:"message,omitempty"`
	Err     string        `json:"error,omitempty"`
	Status  *DaemonStatus `json:"status,omitempty"`
}

// Success builds a success response.
func Success(message string) *Response {
	return &Response{Type: ResponseSuccess, Message: message}
}

// Errorf builds an error response.
func Errorf(format string, args ...any) *Response {
	return &Response{Type: ResponseError, Err: fmt.Sprintf(format, args...)}
}

// StatusResponse wraps a DaemonStatus.
func StatusResponse(status *DaemonStatus) *Response {
	return &Response{Type: ResponseStatus, Status: status}
}

// DaemonStatus is the on-demand status snapshot returned for a status command.
type DaemonStatus struct {
	Running           bool                 `json:"running"`
	PID               int                  `json:"pid"`
	Repo              string               `json:"repo"`
	ConnectedToGitHub bool                 `json:"connectedToGitHub"`
	Subscriptions     []SubscriptionStatus `json:"subscriptions"`
	UptimeSeconds     int64                `json:"uptime"`
	EventsRouted      int64                `json:"eventsRouted"`
}

// SubscriptionStatus describes one session's subscriptions.
type SubscriptionStatus struct {
	SessionID    string `json:"sessionId"`
	PRNumbers    []int  `json:"prNumbers"`
	SubscribedAt string `json:"subscribedAt"`
}
