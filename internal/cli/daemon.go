package cli

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/hubwatch/hubwatch/internal/daemon"
	"github.com/hubwatch/hubwatch/internal/paths"
)

const startStopTimeout = 10 * time.Second

// DaemonStart spawns the daemon as a detached background process and waits
// until its socket answers.
func DaemonStart(repo string) error {
	runtimeDir, err := paths.RuntimeDir(repo)
	if err != nil {
		return err
	}

	pidPath := paths.PIDPath(runtimeDir)
	running, info, err := daemon.CheckPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running (PID %d)", info.PID)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}

	cmd := exec.Command(executable, "daemon", "run", "--repo", repo)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	// New session so the daemon survives the terminal closing.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}
	// Release, never Wait: the parent exits immediately and a dangling Wait
	// can wedge the child on macOS.
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release daemon process: %w", err)
	}

	return daemon.WaitForSocket(paths.SocketPath(runtimeDir), startStopTimeout)
}

// DaemonStop signals the daemon with SIGTERM and waits until the process is
// gone.
func DaemonStop(repo string) error {
	runtimeDir, err := paths.RuntimeDir(repo)
	if err != nil {
		return err
	}

	pidPath := paths.PIDPath(runtimeDir)
	running, info, err := daemon.CheckPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("check daemon status: %w", err)
	}
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("find daemon process %d: %w", info.PID, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon %d: %w", info.PID, err)
	}

	deadline := time.After(startStopTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			return fmt.Errorf("daemon (PID %d) did not exit within %s", info.PID, startStopTimeout)
		case <-ticker.C:
			if err := process.Signal(syscall.Signal(0)); err != nil {
				return nil
			}
		}
	}
}

// DaemonRunning reports whether a daemon currently serves the repository,
// returning its PID when it does.
func DaemonRunning(repo string) (bool, int, error) {
	runtimeDir, err := paths.RuntimeDir(repo)
	if err != nil {
		return false, 0, err
	}
	running, info, err := daemon.CheckPIDFile(paths.PIDPath(runtimeDir))
	if err != nil {
		return false, 0, err
	}
	return running, info.PID, nil
}
