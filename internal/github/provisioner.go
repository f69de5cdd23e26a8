// Package github provisions the repository webhook that backs the event
// stream, and supplies bearer tokens for connecting to it. All GitHub access
// goes through the locally installed gh CLI so the daemon never handles
// stored credentials itself.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/logging"
)

// Registration is the remote webhook resource created for the daemon's
// lifetime. StreamURL is the websocket endpoint events are forwarded to.
type Registration struct {
	ID        int64    `json:"id"`
	URL       string   `json:"url"`
	StreamURL string   `json:"ws_url"`
	Events    []string `json:"events"`
	Active    bool     `json:"active"`
}

// Provisioner manages the remote webhook resource. Create must return a
// registration with a usable StreamURL; the lifecycle calls Deactivate and
// Delete best-effort during cleanup.
type Provisioner interface {
	Create(ctx context.Context, repo string, events []string) (*Registration, error)
	Activate(ctx context.Context, repo string, id int64) error
	Deactivate(ctx context.Context, repo string, id int64) error
	Delete(ctx context.Context, repo string, id int64) error
}

// runner executes a gh invocation and returns stdout and stderr.
type runner func(ctx context.Context, args ...string) (stdout, stderr []byte, err error)

// CLIProvisioner implements Provisioner by shelling out to the gh CLI.
type CLIProvisioner struct {
	run runner
	log *logrus.Entry
}

// NewCLIProvisioner creates a provisioner backed by the gh binary on PATH.
func NewCLIProvisioner() *CLIProvisioner {
	return &CLIProvisioner{
		run: runGH,
		log: logging.NewLogger("github"),
	}
}

// Create registers a cli-forwarding webhook on the repository. The hook is
// created inactive; the lifecycle activates it once the daemon is ready to
// consume the stream.
func (p *CLIProvisioner) Create(ctx context.Context, repo string, events []string) (*Registration, error) {
	args := []string{
		"api", fmt.Sprintf("repos/%s/hooks", repo),
		"-f", "name=cli",
		"-F", "active=false",
		"-f", "config[content_type]=json",
		"-f", "config[insecure_ssl]=0",
	}
	for _, event := range events {
		args = append(args, "-f", "events[]="+event)
	}

	stdout, stderr, err := p.run(ctx, args...)
	if err != nil {
		return nil, classifyError(stderr, err)
	}

	var reg Registration
	if err := json.Unmarshal(stdout, &reg); err != nil {
		return nil, fmt.Errorf("parse hook response: %w", err)
	}
	if reg.StreamURL == "" {
		return nil, fmt.Errorf("hook %d has no stream URL; repository may not support cli forwarding", reg.ID)
	}
	p.log.WithFields(logrus.Fields{"repo": repo, "hook_id": reg.ID}).Info("webhook created")
	return &reg, nil
}

// Activate enables delivery on the hook.
func (p *CLIProvisioner) Activate(ctx context.Context, repo string, id int64) error {
	return p.setActive(ctx, repo, id, true)
}

// Deactivate disables delivery on the hook. Safe to call during cleanup.
func (p *CLIProvisioner) Deactivate(ctx context.Context, repo string, id int64) error {
	return p.setActive(ctx, repo, id, false)
}

func (p *CLIProvisioner) setActive(ctx context.Context, repo string, id int64, active bool) error {
	_, stderr, err := p.run(ctx,
		"api", "-X", "PATCH", hookPath(repo, id),
		"-F", "active="+strconv.FormatBool(active),
	)
	if err != nil {
		return classifyError(stderr, err)
	}
	return nil
}

// Delete removes the hook. Returns nil if the hook is already gone.
func (p *CLIProvisioner) Delete(ctx context.Context, repo string, id int64) error {
	_, stderr, err := p.run(ctx, "api", "-X", "DELETE", hookPath(repo, id))
	if err != nil {
		classified := classifyError(stderr, err)
		// A 404 during cleanup means someone deleted it for us.
		if errors.Is(classified, ErrPermissionDenied) && bytes.Contains(stderr, []byte("HTTP 404")) {
			return nil
		}
		return classified
	}
	return nil
}

func hookPath(repo string, id int64) string {
	return fmt.Sprintf("repos/%s/hooks/%d", repo, id)
}

func runGH(ctx context.Context, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var httpStatusPattern = regexp.MustCompile(`HTTP (\d{3})`)

// classifyError maps a failed gh invocation onto the provisioning error
// taxonomy using the HTTP status gh echoes in its error output.
func classifyError(stderr []byte, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return ErrNotInstalled
	}

	msg := strings.TrimSpace(string(stderr))
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "gh auth login") || strings.Contains(lower, "authentication") {
		return ErrNotAuthenticated
	}

	status := 0
	if m := httpStatusPattern.FindStringSubmatch(msg); m != nil {
		status, _ = strconv.Atoi(m[1])
	}

	switch {
	case status == 401:
		return ErrNotAuthenticated
	case status == 403 && strings.Contains(lower, "rate limit"):
		return &RateLimitError{RetryAfter: retryAfterHint(lower)}
	case status == 403, status == 404:
		return ErrPermissionDenied
	case status == 422 && strings.Contains(lower, "already exists"):
		return ErrHookExists
	}

	if msg != "" {
		return fmt.Errorf("gh: %s: %w", msg, err)
	}
	return fmt.Errorf("gh: %w", err)
}

var retryAfterPattern = regexp.MustCompile(`retry after (\d+)`)

func retryAfterHint(msg string) time.Duration {
	if m := retryAfterPattern.FindStringSubmatch(msg); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return time.Minute
}
