package mcp

import (
	"context"
	"testing"

	"github.com/hubwatch/hubwatch/internal/daemon"
	"github.com/hubwatch/hubwatch/internal/paths"
	"github.com/hubwatch/hubwatch/internal/protocol"
	"github.com/hubwatch/hubwatch/internal/registry"
)

// startFakeDaemon serves the real IPC protocol at the repo's socket path so
// the MCP handlers exercise the same client path the CLI uses.
func startFakeDaemon(t *testing.T, repo string, reg *registry.Registry) {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtimeDir, err := paths.EnsureRuntimeDir(repo)
	if err != nil {
		t.Fatal(err)
	}

	queue := daemon.NewQueue()
	server := daemon.NewServer(paths.SocketPath(runtimeDir), queue)
	if err := server.Start(); err != nil {
		t.Fatalf("start fake daemon: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	status := func() *protocol.DaemonStatus {
		subs := reg.AllSubscriptions()
		statuses := make([]protocol.SubscriptionStatus, 0, len(subs))
		for _, sub := range subs {
			statuses = append(statuses, protocol.SubscriptionStatus{
				SessionID: sub.SessionID,
				PRNumbers: sub.PRNumbers,
			})
		}
		return &protocol.DaemonStatus{Running: true, PID: 999, Repo: repo, Subscriptions: statuses}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go daemon.NewProcessor(queue, reg, status, func() {}).Run(ctx)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("HUBWATCH_SESSION", "mcp-session")
	s, err := NewServer("owner/repo")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func TestNewServerRequiresRepo(t *testing.T) {
	if _, err := NewServer(""); err == nil {
		t.Fatal("expected error for empty repo")
	}
}

func TestSubscribeAndUnsubscribeTools(t *testing.T) {
	reg := registry.New()
	s := newTestServer(t)
	startFakeDaemon(t, "owner/repo", reg)

	_, out, err := s.handleSubscribePR(context.Background(), nil, SubscribePRInput{PRNumbers: []int{42, 7}})
	if err != nil {
		t.Fatalf("subscribe_pr: %v", err)
	}
	if out.Status != "subscribed" || out.SessionID != "mcp-session" {
		t.Errorf("output = %+v", out)
	}
	if got := reg.SessionsFor(42); len(got) != 1 || got[0] != "mcp-session" {
		t.Errorf("registry state: %v", got)
	}

	_, uout, err := s.handleUnsubscribePR(context.Background(), nil, UnsubscribePRInput{PRNumbers: []int{42}})
	if err != nil {
		t.Fatalf("unsubscribe_pr: %v", err)
	}
	if uout.Status != "unsubscribed" {
		t.Errorf("output = %+v", uout)
	}
	if got := reg.SessionsFor(42); len(got) != 0 {
		t.Errorf("still subscribed: %v", got)
	}
}

func TestSubscribeToolValidatesInput(t *testing.T) {
	s := newTestServer(t)
	if _, _, err := s.handleSubscribePR(context.Background(), nil, SubscribePRInput{}); err == nil {
		t.Fatal("expected error for missing pr_numbers")
	}
}

func TestSubscribeToolExplicitSessionWins(t *testing.T) {
	reg := registry.New()
	s := newTestServer(t)
	startFakeDaemon(t, "owner/repo", reg)

	_, out, err := s.handleSubscribePR(context.Background(), nil,
		SubscribePRInput{PRNumbers: []int{1}, SessionID: "other-session"})
	if err != nil {
		t.Fatal(err)
	}
	if out.SessionID != "other-session" {
		t.Errorf("SessionID = %q", out.SessionID)
	}
	if got := reg.SessionsFor(1); len(got) != 1 || got[0] != "other-session" {
		t.Errorf("registry state: %v", got)
	}
}

func TestWatchStatusTool(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("mcp-session", []int{5})
	s := newTestServer(t)
	startFakeDaemon(t, "owner/repo", reg)

	_, out, err := s.handleWatchStatus(context.Background(), nil, WatchStatusInput{})
	if err != nil {
		t.Fatalf("watch_status: %v", err)
	}
	if !out.Running || out.PID != 999 {
		t.Errorf("output = %+v", out)
	}
	if len(out.Subscriptions) != 1 || out.Subscriptions[0].SessionID != "mcp-session" {
		t.Errorf("subscriptions = %+v", out.Subscriptions)
	}
}

func TestWatchStatusToolDaemonDown(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	s := newTestServer(t)

	_, out, err := s.handleWatchStatus(context.Background(), nil, WatchStatusInput{})
	if err != nil {
		t.Fatalf("watch_status must not fail when the daemon is down: %v", err)
	}
	if out.Running {
		t.Error("reported running with no daemon")
	}
}
