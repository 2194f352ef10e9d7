package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/gavel/internal/errors"
	"github.com/Iron-Ham/gavel/internal/review"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), DefaultDir), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	state := review.NewSessionState("session-1", review.DefaultSessionConfig())
	state.History = append(state.History, review.IterationRecord{
		ThoughtNumber: 1,
		ArtifactHash:  review.ArtifactHash("content"),
		Score:         72,
		Verdict:       review.VerdictRevise,
		Timestamp:     time.Now().UTC(),
	})
	state.CurrentLoop = 1

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.CurrentLoop != 1 || len(loaded.History) != 1 {
		t.Errorf("loaded state = %+v", loaded)
	}
	if loaded.History[0].Score != 72 {
		t.Errorf("score = %d, want 72", loaded.History[0].Score)
	}
}

func TestLoadMissingSession(t *testing.T) {
	s := newStore(t)
	_, err := s.Load(context.Background(), "nope")
	if !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestLoadCorruptJournal(t *testing.T) {
	s := newStore(t)
	path := s.sessionPath("broken")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(context.Background(), "broken")
	if err == nil {
		t.Fatal("corrupt journal should error")
	}
	if errors.CodeOf(err) != errors.CodePersistenceError {
		t.Errorf("code = %q, want PersistenceError", errors.CodeOf(err))
	}
}

func TestSaveRetriesWithBackoff(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var delays []time.Duration
	s.sleep = func(d time.Duration) { delays = append(delays, d) }

	// Turn the session path into a directory so every rename fails.
	state := review.NewSessionState("blocked", review.DefaultSessionConfig())
	if err := os.MkdirAll(s.sessionPath("blocked"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := s.Save(ctx, state)
	if err == nil {
		t.Fatal("Save into a directory path should fail")
	}
	if errors.CodeOf(err) != errors.CodePersistenceError {
		t.Errorf("code = %q, want PersistenceError", errors.CodeOf(err))
	}
	if len(delays) != saveRetries {
		t.Fatalf("retried %d times, want %d", len(delays), saveRetries)
	}
	if delays[1] != delays[0]*2 {
		t.Errorf("backoff should double: %v", delays)
	}
}

func TestMarkCompleteIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	state := review.NewSessionState("done", review.DefaultSessionConfig())
	if err := s.Save(ctx, state); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkComplete(ctx, "done", "score"); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if err := s.MarkComplete(ctx, "done", "maxLoops"); err != nil {
		t.Fatalf("second MarkComplete failed: %v", err)
	}

	loaded, err := s.Load(ctx, "done")
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.IsComplete {
		t.Error("session should be complete")
	}
	if loaded.CompletionReason != "score" {
		t.Errorf("reason = %q, want original reason preserved", loaded.CompletionReason)
	}
}

func TestListSessions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, review.NewSessionState(id, review.DefaultSessionConfig())); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Errorf("ids = %v, want 3 sessions", ids)
	}
}

func TestGCRemovesExpiredSessions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	old := review.NewSessionState("old", review.DefaultSessionConfig())
	if err := s.Save(ctx, old); err != nil {
		t.Fatal(err)
	}

	current = current.Add(25 * time.Hour)
	fresh := review.NewSessionState("fresh", review.DefaultSessionConfig())
	if err := s.Save(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	removed, err := s.GC(ctx, DefaultMaxSessionAge)
	if err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if s.Exists(ctx, "old") {
		t.Error("expired session should be gone")
	}
	if !s.Exists(ctx, "fresh") {
		t.Error("fresh session should survive")
	}
}

func TestGCSkipsLockedSessions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	state := review.NewSessionState("held", review.DefaultSessionConfig())
	if err := s.Save(ctx, state); err != nil {
		t.Fatal(err)
	}
	lock, err := s.AcquireLock("held")
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	current = current.Add(48 * time.Hour)
	removed, err := s.GC(ctx, DefaultMaxSessionAge)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Error("a session locked by a live process must not be collected")
	}
}

func TestValidateSessionIDRejectsTraversal(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"", "../escape", "a/b", ".hidden", "x y"} {
		if err := s.Save(context.Background(), review.NewSessionState(id, review.DefaultSessionConfig())); err == nil {
			t.Errorf("id %q should be rejected", id)
		}
	}
}
