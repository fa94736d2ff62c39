//go:build !windows

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireLock_CreatesPrivateFile(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "picker.lock")

	fd, err := acquireLock(lockPath)
	if err != nil {
		t.Fatalf("acquireLock failed: %v", err)
	}
	defer releaseLock(fd)

	info, err := os.Stat(lockPath)
	if err != nil {
		t.Fatalf("lock file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("lock file mode = %v, want owner-only", perm)
	}
}

func TestAcquireLock_SecondInstanceFails(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "picker.lock")

	fd1, err := acquireLock(lockPath)
	if err != nil {
		t.Fatalf("first acquireLock failed: %v", err)
	}

	fd2, err := acquireLock(lockPath)
	if err == nil {
		releaseLock(fd2)
		releaseLock(fd1)
		t.Fatal("expected second acquireLock to fail, but it succeeded")
	}

	releaseLock(fd1)

	fd3, err := acquireLock(lockPath)
	if err != nil {
		t.Fatalf("acquireLock after release failed: %v", err)
	}
	releaseLock(fd3)
}

func TestAcquireLock_MissingDir(t *testing.T) {
	if _, err := acquireLock(filepath.Join(t.TempDir(), "nope", "picker.lock")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReleaseLock_InvalidFd(t *testing.T) {
	releaseLock(-1)
}
