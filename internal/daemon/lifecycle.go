package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/config"
	"github.com/hubwatch/hubwatch/internal/eventlog"
	"github.com/hubwatch/hubwatch/internal/github"
	"github.com/hubwatch/hubwatch/internal/logging"
	"github.com/hubwatch/hubwatch/internal/messenger"
	"github.com/hubwatch/hubwatch/internal/paths"
	"github.com/hubwatch/hubwatch/internal/protocol"
	"github.com/hubwatch/hubwatch/internal/registry"
	"github.com/hubwatch/hubwatch/internal/router"
	"github.com/hubwatch/hubwatch/internal/stream"
)

// cleanupTimeout bounds the webhook teardown calls made during shutdown.
const cleanupTimeout = 15 * time.Second

// Lifecycle wires all daemon components together and owns startup ordering
// and teardown. Every exit path, graceful or not, releases the lock, removes
// the PID file and socket, and tears down the webhook.
type Lifecycle struct {
	cfg        *config.Config
	repo       string
	runtimeDir string

	provisioner github.Provisioner
	token       github.TokenSource
	messenger   messenger.Messenger

	registry *registry.Registry
	connFlag *stream.Flag
	router   *router.Router

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	startTime    time.Time
	log          *logrus.Entry
}

// NewLifecycle builds a lifecycle for the configured repository. The gh CLI
// and tmux are the production collaborators; tests swap them with the Set
// methods before Run.
func NewLifecycle(cfg *config.Config) (*Lifecycle, error) {
	if err := paths.ValidateRepo(cfg.Repo); err != nil {
		return nil, err
	}
	runtimeDir, err := paths.EnsureRuntimeDir(cfg.Repo)
	if err != nil {
		return nil, err
	}

	return &Lifecycle{
		cfg:         cfg,
		repo:        cfg.Repo,
		runtimeDir:  runtimeDir,
		provisioner: github.NewCLIProvisioner(),
		token:       github.CLITokenSource(),
		messenger:   messenger.NewTmux(cfg.Messenger.TmuxCommand),
		registry:    registry.New(),
		connFlag:    stream.NewFlag(),
		shutdownCh:  make(chan struct{}),
		log:         logging.NewLogger("daemon"),
	}, nil
}

// SetProvisioner replaces the webhook provisioner. Call before Run.
func (l *Lifecycle) SetProvisioner(p github.Provisioner) { l.provisioner = p }

// SetTokenSource replaces the stream token source. Call before Run.
func (l *Lifecycle) SetTokenSource(t github.TokenSource) { l.token = t }

// SetMessenger replaces the session messenger. Call before Run.
func (l *Lifecycle) SetMessenger(m messenger.Messenger) { l.messenger = m }

// SocketPath returns the IPC socket path the daemon will listen on.
func (l *Lifecycle) SocketPath() string { return paths.SocketPath(l.runtimeDir) }

// Shutdown triggers a graceful shutdown. Safe to call from any goroutine and
// more than once.
func (l *Lifecycle) Shutdown() {
	l.shutdownOnce.Do(func() { close(l.shutdownCh) })
}

// Run starts the daemon and blocks until shutdown. The ordering matters: the
// instance guards come first so a second daemon fails before touching shared
// state, the IPC server comes up before the webhook exists so subscribers
// never race provisioning, and the webhook is only activated once the stream
// consumer is running.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.startTime = time.Now()

	lock, err := AcquireLock(paths.LockPath(l.runtimeDir))
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			l.log.WithError(err).Warn("lock release failed")
		}
	}()

	pidPath := paths.PIDPath(l.runtimeDir)
	running, existing, err := CheckPIDFile(pidPath)
	if err != nil {
		l.log.WithError(err).Warn("unreadable PID file, overwriting")
	} else if running {
		return fmt.Errorf("daemon already running (PID %d) for %s", existing.PID, l.repo)
	}

	socketPath := l.SocketPath()
	if err := WritePIDFile(pidPath, PIDInfo{
		PID:        os.Getpid(),
		Repo:       l.repo,
		StartedAt:  l.startTime.UTC(),
		SocketPath: socketPath,
	}); err != nil {
		return err
	}

	queue := NewQueue()
	server := NewServer(socketPath, queue)

	// Safety net for panics and early returns. Graceful shutdown marks
	// completion so this runs only when the orderly path was skipped.
	var shutdownComplete atomic.Bool
	serverStarted := false
	defer func() {
		if shutdownComplete.Load() {
			return
		}
		queue.Close()
		if serverStarted {
			_ = server.Stop()
		}
		_ = RemovePIDFile(pidPath)
	}()

	var recorder router.Recorder
	evlog, err := eventlog.Open(paths.EventLogPath(l.runtimeDir))
	if err != nil {
		l.log.WithError(err).Warn("event log unavailable, continuing without history")
	} else {
		recorder = evlog
		defer func() { _ = evlog.Close() }()
	}

	l.router = router.New(l.repo, l.registry, l.messenger, recorder)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	processor := NewProcessor(queue, l.registry, l.status, l.Shutdown)
	processorDone := make(chan struct{})
	go func() {
		defer close(processorDone)
		processor.Run(runCtx)
	}()

	if err := server.Start(); err != nil {
		return err
	}
	serverStarted = true
	l.log.WithField("socket", socketPath).Info("IPC server listening")

	registration, err := l.provisioner.Create(runCtx, l.repo, l.cfg.Events)
	if err != nil {
		return fmt.Errorf("provision webhook: %w", err)
	}
	defer l.teardownWebhook(registration.ID)

	client := stream.NewClient(stream.Config{
		URL:        registration.StreamURL,
		Token:      l.token,
		MaxRetries: l.cfg.Stream.MaxRetries,
		BaseDelay:  time.Duration(l.cfg.Stream.BaseDelaySeconds) * time.Second,
		MaxDelay:   time.Duration(l.cfg.Stream.MaxDelaySeconds) * time.Second,
	}, l.connFlag)

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		l.router.Run(runCtx, client.Events())
	}()

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		err := client.Run(runCtx)
		switch {
		case err == nil:
			l.log.Info("event stream ended, daemon stays up for IPC")
		case runCtx.Err() != nil:
			// Shutdown in progress.
		default:
			l.log.WithError(err).Error("event stream failed, daemon stays up for IPC")
		}
	}()

	if err := l.provisioner.Activate(runCtx, l.repo, registration.ID); err != nil {
		return fmt.Errorf("activate webhook: %w", err)
	}
	l.log.WithFields(logrus.Fields{"repo": l.repo, "hook_id": registration.ID}).Info("daemon ready")

	go l.handleSignals()

	select {
	case <-l.shutdownCh:
	case <-ctx.Done():
		l.Shutdown()
	}

	l.log.Info("shutting down")
	shutdownComplete.Store(true)

	// Refuse new commands, answer stragglers, then stop the listener.
	queue.Close()
	if err := server.Stop(); err != nil {
		l.log.WithError(err).Warn("IPC server stop failed")
	}

	cancel()
	waitOrTimeout(streamDone, 5*time.Second)
	waitOrTimeout(routerDone, 5*time.Second)
	waitOrTimeout(processorDone, 5*time.Second)

	if err := RemovePIDFile(pidPath); err != nil {
		l.log.WithError(err).Warn("PID file removal failed")
	}
	l.log.Info("shutdown complete")
	return nil
}

// teardownWebhook deactivates and deletes the hook with a fresh context so
// cleanup still happens when the run context is already canceled.
func (l *Lifecycle) teardownWebhook(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := l.provisioner.Deactivate(ctx, l.repo, id); err != nil {
		l.log.WithError(err).Warn("webhook deactivation failed")
	}
	if err := l.provisioner.Delete(ctx, l.repo, id); err != nil {
		l.log.WithError(err).Warn("webhook deletion failed")
	}
}

func (l *Lifecycle) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	l.log.WithField("signal", sig.String()).Info("signal received")
	l.Shutdown()
}

// status snapshots daemon state for a status command.
func (l *Lifecycle) status() *protocol.DaemonStatus {
	subs := l.registry.AllSubscriptions()
	statuses := make([]protocol.SubscriptionStatus, 0, len(subs))
	for _, sub := range subs {
		statuses = append(statuses, protocol.SubscriptionStatus{
			SessionID:    sub.SessionID,
			PRNumbers:    sub.PRNumbers,
			SubscribedAt: sub.SubscribedAt.Format(time.RFC3339),
		})
	}

	var routed int64
	if l.router != nil {
		routed = int64(l.router.Routed())
	}

	return &protocol.DaemonStatus{
		Running:           true,
		PID:               os.Getpid(),
		Repo:              l.repo,
		ConnectedToGitHub: l.connFlag.Connected(),
		Subscriptions:     statuses,
		UptimeSeconds:     int64(time.Since(l.startTime).Seconds()),
		EventsRouted:      routed,
	}
}

func waitOrTimeout(ch <-chan struct{}, timeout time.Duration) {
	select {
	case <-ch:
	case <-time.After(timeout):
	}
}
