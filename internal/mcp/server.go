// Package mcp exposes hubwatch subscriptions as MCP tools so agents can
// manage their pull request watches without shelling out to the CLI.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hubwatch/hubwatch/internal/cli"
)

// Server is the hubwatch MCP server. Each tool call opens a fresh one-shot
// connection to the daemon, matching the one-command-per-connection IPC
// contract.
type Server struct {
	repo      string
	sessionID string
	version   string
	server    *gomcp.Server
}

// Option configures the MCP server.
type Option func(*Server)

// WithVersion sets the server version string.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates an MCP server for the given repository. The default
// session identity is resolved once at startup so all tool calls from one
// agent target the same session.
func NewServer(repo string, opts ...Option) (*Server, error) {
	if repo == "" {
		return nil, fmt.Errorf("repository is required; pass --repo or set HUBWATCH_REPO")
	}

	s := &Server{
		repo:      repo,
		sessionID: cli.ResolveSessionID(""),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "hubwatch",
			Version: s.version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP on stdin/stdout until the client disconnects or the context
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "subscribe_pr",
		Description: "Subscribe this session to GitHub pull requests. Webhook events for the PRs are delivered into the session as they happen.",
	}, s.handleSubscribePR)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "unsubscribe_pr",
		Description: "Stop watching pull requests previously subscribed with subscribe_pr",
	}, s.handleUnsubscribePR)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "watch_status",
		Description: "Report the hubwatch daemon status: connectivity, uptime, and active subscriptions",
	}, s.handleWatchStatus)
}

func (s *Server) session(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.sessionID
}

func (s *Server) handleSubscribePR(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input SubscribePRInput,
) (*gomcp.CallToolResult, SubscribePROutput, error) {
	if len(input.PRNumbers) == 0 {
		return nil, SubscribePROutput{}, fmt.Errorf("'pr_numbers' is required")
	}

	sessionID := s.session(input.SessionID)
	message, err := cli.Subscribe(ctx, s.repo, sessionID, input.PRNumbers)
	if err != nil {
		return nil, SubscribePROutput{}, err
	}
	return nil, SubscribePROutput{
		Status:    "subscribed",
		SessionID: sessionID,
		Message:   message,
	}, nil
}

func (s *Server) handleUnsubscribePR(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input UnsubscribePRInput,
) (*gomcp.CallToolResult, UnsubscribePROutput, error) {
	if len(input.PRNumbers) == 0 {
		return nil, UnsubscribePROutput{}, fmt.Errorf("'pr_numbers' is required")
	}

	sessionID := s.session(input.SessionID)
	message, err := cli.Unsubscribe(ctx, s.repo, sessionID, input.PRNumbers)
	if err != nil {
		return nil, UnsubscribePROutput{}, err
	}
	return nil, UnsubscribePROutput{
		Status:    "unsubscribed",
		SessionID: sessionID,
		Message:   message,
	}, nil
}

func (s *Server) handleWatchStatus(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input WatchStatusInput,
) (*gomcp.CallToolResult, WatchStatusOutput, error) {
	status, err := cli.Status(ctx, s.repo)
	if err != nil {
		// A dead daemon is an answer, not a tool failure.
		return nil, WatchStatusOutput{Running: false, Repo: s.repo, Subscriptions: []SubscriptionInfo{}}, nil
	}

	subs := make([]SubscriptionInfo, 0, len(status.Subscriptions))
	for _, sub := range status.Subscriptions {
		subs = append(subs, SubscriptionInfo{
			SessionID:    sub.SessionID,
			PRNumbers:    sub.PRNumbers,
			SubscribedAt: sub.SubscribedAt,
		})
	}

	return nil, WatchStatusOutput{
		Running:           status.Running,
		PID:               status.PID,
		Repo:              status.Repo,
		ConnectedToGitHub: status.ConnectedToGitHub,
		UptimeSeconds:     status.UptimeSeconds,
		EventsRouted:      status.EventsRouted,
		Subscriptions:     subs,
	}, nil
}
