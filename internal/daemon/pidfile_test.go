package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.pid")
	info := PIDInfo{
		PID:        os.Getpid(),
		Repo:       "owner/repo",
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		SocketPath: "/tmp/hubwatch.sock",
	}
	if err := WritePIDFile(path, info); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}

	got, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("ReadPIDFile: %v", err)
	}
	if got.PID != info.PID || got.Repo != info.Repo || got.SocketPath != info.SocketPath {
		t.Errorf("got %+v", got)
	}
	if !got.StartedAt.Equal(info.StartedAt) {
		t.Errorf("StartedAt = %s, want %s", got.StartedAt, info.StartedAt)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := stat.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestCheckPIDFileMissing(t *testing.T) {
	running, info, err := CheckPIDFile(filepath.Join(t.TempDir(), "absent.pid"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if running || info.PID != 0 {
		t.Errorf("running=%v info=%+v", running, info)
	}
}

func TestCheckPIDFileLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.pid")
	WritePIDFile(path, PIDInfo{PID: os.Getpid()})

	running, info, err := CheckPIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !running || info.PID != os.Getpid() {
		t.Errorf("running=%v info=%+v", running, info)
	}
}

func TestCheckPIDFileStaleProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.pid")
	// PID beyond the default pid_max; no live process can have it.
	WritePIDFile(path, PIDInfo{PID: 1 << 30})

	running, _, err := CheckPIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if running {
		t.Error("stale PID reported as running")
	}
}

func TestCheckPIDFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.pid")
	os.WriteFile(path, []byte("not json at all"), 0o600)

	if _, _, err := CheckPIDFile(path); err == nil {
		t.Error("corrupt PID file must surface an error")
	}
}

func TestRemovePIDFileIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.pid")
	WritePIDFile(path, PIDInfo{PID: 1})
	if err := RemovePIDFile(path); err != nil {
		t.Fatal(err)
	}
	if err := RemovePIDFile(path); err != nil {
		t.Errorf("second remove errored: %v", err)
	}
}
