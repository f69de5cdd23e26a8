package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/hubwatch/hubwatch/internal/eventlog"
	"github.com/hubwatch/hubwatch/internal/protocol"
)

// TerminalWidth returns the terminal width in columns, falling back to the
// COLUMNS variable and then 80.
func TerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if raw := os.Getenv("COLUMNS"); raw != "" {
		if width, err := strconv.Atoi(raw); err == nil && width > 0 {
			return width
		}
	}
	return 80
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// FormatStatus renders a status snapshot for humans.
func FormatStatus(status *protocol.DaemonStatus) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Daemon:     running (PID %d)\n", status.PID)
	fmt.Fprintf(&b, "Repository: %s\n", status.Repo)
	connected := "no"
	if status.ConnectedToGitHub {
		connected = "yes"
	}
	fmt.Fprintf(&b, "GitHub:     connected: %s\n", connected)
	fmt.Fprintf(&b, "Uptime:     %s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	fmt.Fprintf(&b, "Routed:     %d events\n", status.EventsRouted)

	if len(status.Subscriptions) == 0 {
		b.WriteString("Subscriptions: none\n")
		return b.String()
	}

	b.WriteString("Subscriptions:\n")
	for _, sub := range status.Subscriptions {
		fmt.Fprintf(&b, "  %s -> %s (since %s)\n", sub.SessionID, formatPRs(sub.PRNumbers), sub.SubscribedAt)
	}
	return b.String()
}

// FormatEvents renders event log entries, newest first, one per line.
func FormatEvents(entries []eventlog.Entry) string {
	if len(entries) == 0 {
		return "no events recorded\n"
	}

	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("%s  #%-5d %s", e.ReceivedAt.Local().Format("2006-01-02 15:04:05"), e.PRNumber, e.EventType)
		if e.Action != "" {
			line += " " + e.Action
		}
		if len(e.Sessions) > 0 {
			line += " -> " + strings.Join(e.Sessions, ", ")
		}
		if width := TerminalWidth(); len(line) > width {
			line = line[:width-3] + "..."
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatPRs(prs []int) string {
	parts := make([]string, len(prs))
	for i, n := range prs {
		parts[i] = "#" + strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
