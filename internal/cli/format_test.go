package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/hubwatch/hubwatch/internal/eventlog"
	"github.com/hubwatch/hubwatch/internal/protocol"
)

func TestFormatStatus(t *testing.T) {
	out := FormatStatus(&protocol.DaemonStatus{
		Running:           true,
		PID:               4242,
		Repo:              "owner/repo",
		ConnectedToGitHub: true,
		UptimeSeconds:     3723,
		EventsRouted:      9,
		Subscriptions: []protocol.SubscriptionStatus{
			{SessionID: "agent-1", PRNumbers: []int{42, 7}, SubscribedAt: "2026-08-24T10:00:00Z"},
		},
	})

	for _, want := range []string{"PID 4242", "owner/repo", "connected: yes", "1h2m3s", "9 events", "agent-1 -> #42, #7"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStatusNoSubscriptions(t *testing.T) {
	out := FormatStatus(&protocol.DaemonStatus{Running: true, PID: 1, Repo: "o/r"})
	if !strings.Contains(out, "Subscriptions: none") {
		t.Errorf("output:\n%s", out)
	}
}

func TestFormatEvents(t *testing.T) {
	out := FormatEvents([]eventlog.Entry{
		{
			DeliveryID: "d-1",
			EventType:  "pull_request",
			Action:     "opened",
			PRNumber:   42,
			Sessions:   []string{"agent-1", "agent-2"},
			ReceivedAt: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		},
	})
	for _, want := range []string{"#42", "pull_request opened", "agent-1, agent-2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatEventsEmpty(t *testing.T) {
	if out := FormatEvents(nil); !strings.Contains(out, "no events") {
		t.Errorf("output = %q", out)
	}
}
