//go:build unix

package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.lock")

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	if _, err := AcquireLock(path); err == nil {
		t.Error("second AcquireLock in the same process succeeded")
	}
}

func TestReleaseRemovesFileAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.lock")

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release errored: %v", err)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.lock")

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatal(err)
	}
	lock.Release()

	again, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again.Release()
}

func TestIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubwatch.lock")
	if IsLocked(path) {
		t.Error("absent lock file reported locked")
	}

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	// Within one process flock is per-fd, so a second open fd observes the
	// lock held.
	if !IsLocked(path) {
		t.Error("held lock reported free")
	}
}
