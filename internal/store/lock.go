package store

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/Iron-Ham/gavel/internal/errors"
)

// Lock is an acquired per-session lock, backed by a lock file holding the
// owner's PID and hostname. A lock whose owning process has exited is
// stale and reclaimed on the next acquire.
type Lock struct {
	SessionID  string    `json:"sessionId"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquiredAt"`

	lockFile string
	store    *Store
}

// AcquireLock takes the exclusive lock for a session. It returns
// ErrSessionLocked (wrapped) when another live process holds it; stale
// locks are cleaned and re-acquired.
func (s *Store) AcquireLock(sessionID string) (*Lock, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	lockPath := s.lockPath(sessionID)

	if existing, err := readLock(lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			return nil, fmt.Errorf("%w: held by PID %d on %s",
				errors.ErrSessionLocked, existing.PID, existing.Hostname)
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.NewAuditError(errors.CodePersistenceError,
				"failed to remove stale session lock", err)
		}
		s.logger.Warn("stale session lock cleaned",
			"sessionId", sessionID, "oldPid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &Lock{
		SessionID:  sessionID,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: s.now(),
		lockFile:   lockPath,
		store:      s,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			"failed to marshal session lock", err)
	}

	// O_EXCL guards against a concurrent acquire between the stale check
	// and this create.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := readLock(lockPath); readErr == nil {
				return nil, fmt.Errorf("%w: held by PID %d on %s",
					errors.ErrSessionLocked, existing.PID, existing.Hostname)
			}
			return nil, errors.ErrSessionLocked
		}
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			"failed to create session lock file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			"failed to write session lock file", err)
	}

	s.logger.Debug("session lock acquired", "sessionId", sessionID, "pid", lock.PID)
	return lock, nil
}

// Release removes the lock file. Safe to call more than once; only the
// owning PID's lock is removed.
func (l *Lock) Release() error {
	if l == nil || l.lockFile == "" {
		return nil
	}

	existing, err := readLock(l.lockFile)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.lockFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	if l.store != nil {
		l.store.logger.Debug("session lock released", "sessionId", l.SessionID)
	}
	return nil
}

// lockHolder returns the live holder of a session's lock, if any.
func (s *Store) lockHolder(sessionID string) (*Lock, bool) {
	lock, err := readLock(s.lockPath(sessionID))
	if err != nil {
		return nil, false
	}
	if !isProcessAlive(lock.PID) {
		return lock, false
	}
	return lock, true
}

func readLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// isProcessAlive checks a PID with signal 0.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
