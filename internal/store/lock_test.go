package store

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/Iron-Ham/gavel/internal/errors"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	s := newStore(t)

	lock, err := s.AcquireLock("s1")
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if lock.PID != os.Getpid() {
		t.Errorf("lock PID = %d, want %d", lock.PID, os.Getpid())
	}

	// Same process cannot double-acquire: our own PID is alive.
	if _, err := s.AcquireLock("s1"); !errors.Is(err, errors.ErrSessionLocked) {
		t.Errorf("second acquire error = %v, want ErrSessionLocked", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("double Release should be a no-op: %v", err)
	}

	if _, err := s.AcquireLock("s1"); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
}

func TestStaleLockIsReclaimed(t *testing.T) {
	s := newStore(t)

	// Fabricate a lock owned by a dead process. PID 1 is init and always
	// alive, so use an implausibly large PID instead.
	stale := Lock{
		SessionID:  "s2",
		PID:        1 << 22,
		Hostname:   "elsewhere",
		AcquiredAt: time.Now().Add(-time.Hour),
	}
	data, _ := json.Marshal(stale)
	if err := os.WriteFile(s.lockPath("s2"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := s.AcquireLock("s2")
	if err != nil {
		t.Fatalf("stale lock should be reclaimed: %v", err)
	}
	if lock.PID != os.Getpid() {
		t.Errorf("reclaimed lock PID = %d, want current process", lock.PID)
	}
}

func TestLockHolder(t *testing.T) {
	s := newStore(t)

	if _, held := s.lockHolder("s3"); held {
		t.Error("no lock file means no holder")
	}

	lock, err := s.AcquireLock("s3")
	if err != nil {
		t.Fatal(err)
	}
	holder, held := s.lockHolder("s3")
	if !held || holder.PID != os.Getpid() {
		t.Errorf("holder = %+v, held = %v", holder, held)
	}
	lock.Release()
}
