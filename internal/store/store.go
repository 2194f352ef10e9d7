// Package store persists audit session state as one JSON journal per
// session under the state directory. Writes are atomic (temp file then
// rename) and retried with exponential backoff; stale sessions are
// garbage collected in the background.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/gavel/internal/errors"
	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/review"
)

// Store defaults.
const (
	// DefaultDir is the state directory, relative to the working directory.
	DefaultDir = ".mcp-gan-state"
	// DefaultMaxSessionAge is how long an untouched session survives GC.
	DefaultMaxSessionAge = 24 * time.Hour
	// DefaultCleanupInterval is how often the background GC runs.
	DefaultCleanupInterval = time.Hour
)

// Write retry policy: the initial attempt plus two retries.
const (
	saveRetries    = 2
	initialBackoff = 50 * time.Millisecond
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,127}$`)

// Store is a file-backed session store. It is safe for concurrent use
// within one process; cross-process exclusion uses session lock files.
type Store struct {
	dir    string
	mu     sync.RWMutex
	logger *logging.Logger

	// swappable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Store rooted at dir, creating the directory if needed.
// An empty dir uses the default state directory.
func New(dir string, logger *logging.Logger) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			fmt.Sprintf("failed to create state directory %s", dir), err)
	}
	return &Store{
		dir:    dir,
		logger: logger.WithComponent("store"),
		now:    time.Now,
		sleep:  time.Sleep,
	}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Save persists the session journal atomically, retrying transient
// filesystem failures with exponential backoff. The session's UpdatedAt
// is refreshed before writing.
func (s *Store) Save(ctx context.Context, state *review.SessionState) error {
	if err := validateSessionID(state.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = s.now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.NewAuditError(errors.CodePersistenceError,
			fmt.Sprintf("failed to marshal session %s", state.ID), err)
	}

	path := s.sessionPath(state.ID)
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt <= saveRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			s.sleep(backoff)
			backoff *= 2
		}
		if lastErr = atomicWriteFile(path, data, 0o644); lastErr == nil {
			return nil
		}
		s.logger.Warn("session write failed",
			"sessionId", state.ID, "attempt", attempt+1, "error", lastErr)
	}

	return errors.NewAuditError(errors.CodePersistenceError,
		fmt.Sprintf("failed to persist session %s after %d attempts", state.ID, saveRetries+1), lastErr)
}

// Load reads a session journal. A missing file yields ErrSessionNotFound;
// a corrupt one yields a PersistenceError.
func (s *Store) Load(ctx context.Context, sessionID string) (*review.SessionState, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
		}
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			fmt.Sprintf("failed to read session %s", sessionID), err)
	}

	var state review.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			fmt.Sprintf("session journal %s is corrupt", sessionID), err)
	}
	if state.ID != sessionID {
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			fmt.Sprintf("session journal %s holds id %q", sessionID, state.ID), nil)
	}
	return &state, nil
}

// Exists reports whether a session journal is present.
func (s *Store) Exists(ctx context.Context, sessionID string) bool {
	if validateSessionID(sessionID) != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.sessionPath(sessionID))
	return err == nil
}

// Delete removes a session journal and its lock file, if any.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.sessionPath(sessionID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
		}
		return errors.NewAuditError(errors.CodePersistenceError,
			fmt.Sprintf("failed to delete session %s", sessionID), err)
	}
	_ = os.Remove(s.lockPath(sessionID))
	return nil
}

// List returns the IDs of all stored sessions, sorted by file name.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewAuditError(errors.CodePersistenceError,
			"failed to read state directory", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// MarkComplete sets a session's completion flag and reason. Completion is
// one-way and idempotent: marking an already-complete session is a no-op
// that keeps the original reason.
func (s *Store) MarkComplete(ctx context.Context, sessionID, reason string) error {
	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if state.IsComplete {
		return nil
	}
	state.IsComplete = true
	state.CompletionReason = reason
	return s.Save(ctx, state)
}

// GC removes session journals whose last update is older than maxAge.
// Locked sessions with a live owner are skipped.
func (s *Store) GC(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxSessionAge
	}

	ids, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, id := range ids {
		state, err := s.Load(ctx, id)
		if err != nil {
			// A corrupt journal past the age cutoff is removed by mtime.
			if info, statErr := os.Stat(s.sessionPath(id)); statErr == nil && info.ModTime().Before(cutoff) {
				if s.Delete(ctx, id) == nil {
					removed++
				}
			}
			continue
		}
		if !state.UpdatedAt.Before(cutoff) {
			continue
		}
		if _, held := s.lockHolder(id); held {
			continue
		}
		if err := s.Delete(ctx, id); err == nil {
			removed++
			s.logger.Info("expired session removed", "sessionId", id, "updatedAt", state.UpdatedAt)
		}
	}
	return removed, nil
}

// StartGC runs GC on the given interval until ctx is cancelled.
func (s *Store) StartGC(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := s.GC(ctx, maxAge); err != nil {
					s.logger.Warn("session GC failed", "error", err)
				} else if removed > 0 {
					s.logger.Info("session GC complete", "removed", removed)
				}
			}
		}
	}()
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *Store) lockPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".lock")
}

func validateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return errors.NewAuditError(errors.CodeInvalidThought,
			fmt.Sprintf("invalid session id %q", sessionID), errors.ErrInvalidThought)
	}
	return nil
}

// atomicWriteFile writes data to a temp file in the target's directory
// and renames it into place, so readers never observe a partial journal.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
