// Package review defines the shared data model for the gavel audit engine:
// thoughts, session state, quality dimensions, judge output, and the
// structured review document returned to callers.
package review

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/gavel/internal/errors"
)

// Verdict is the ship decision for a single iteration.
type Verdict string

const (
	// VerdictPass indicates the artifact meets the ship threshold with no
	// critical issues and all required dimensions satisfied.
	VerdictPass Verdict = "pass"
	// VerdictRevise indicates the artifact needs another iteration.
	VerdictRevise Verdict = "revise"
	// VerdictReject indicates the artifact scored below the reject floor.
	VerdictReject Verdict = "reject"
)

// Severity classifies evidence entries.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityMajor    Severity = "Major"
	SeverityMinor    Severity = "Minor"
)

// severityRank orders severities for sorting, most severe first.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// SeverityRank exposes the sort rank of a severity (lower is more severe).
func SeverityRank(s Severity) int { return severityRank(s) }

// Thought is one submission from the caller, typically a successive
// revision of the artifact under audit.
type Thought struct {
	SessionID        string `json:"sessionId,omitempty"`
	BranchID         string `json:"branchId,omitempty"`
	ThoughtNumber    int    `json:"thoughtNumber"`
	Artifact         string `json:"artifact"`
	InlineConfigText string `json:"inlineConfigText,omitempty"`
}

// Validate checks the thought's structural invariants. Violations surface
// to the caller as fail-fast InvalidThought errors.
func (t *Thought) Validate() error {
	if t.ThoughtNumber < 1 {
		return errors.NewAuditError(errors.CodeInvalidThought,
			fmt.Sprintf("thoughtNumber must be >= 1, got %d", t.ThoughtNumber),
			errors.ErrInvalidThought)
	}
	if strings.TrimSpace(t.Artifact) == "" {
		return errors.NewAuditError(errors.CodeInvalidThought,
			"artifact must not be empty", errors.ErrInvalidThought)
	}
	return nil
}

// Scope selects what part of the repository the audit covers.
type Scope string

const (
	ScopeDiff      Scope = "diff"
	ScopePaths     Scope = "paths"
	ScopeWorkspace Scope = "workspace"
)

// ValidScope reports whether s is a recognized scope value.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeDiff, ScopePaths, ScopeWorkspace:
		return true
	}
	return false
}

// SessionConfig holds the per-session audit configuration. Inline
// configuration blocks merge over it; defaults fill anything absent.
type SessionConfig struct {
	Task       string   `json:"task"`
	Scope      Scope    `json:"scope"`
	Paths      []string `json:"paths,omitempty"`
	Threshold  int      `json:"threshold"`
	MaxCycles  int      `json:"maxCycles"`
	Candidates int      `json:"candidates"`
	Judges     []string `json:"judges,omitempty"`
	ApplyFixes bool     `json:"applyFixes"`
}

// DefaultSessionConfig returns the documented session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Task:       "",
		Scope:      ScopeDiff,
		Threshold:  85,
		MaxCycles:  1,
		Candidates: 1,
	}
}

// Validate checks configuration invariants: the threshold range and the
// paths requirement for scope=paths.
func (c *SessionConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be within 0..100, got %d", c.Threshold)
	}
	if !ValidScope(c.Scope) {
		return fmt.Errorf("unknown scope %q", c.Scope)
	}
	if c.Scope == ScopePaths && len(c.Paths) == 0 {
		return fmt.Errorf("scope=paths requires non-empty paths")
	}
	if c.MaxCycles < 1 {
		return fmt.Errorf("maxCycles must be >= 1, got %d", c.MaxCycles)
	}
	if c.Candidates < 1 {
		return fmt.Errorf("candidates must be >= 1, got %d", c.Candidates)
	}
	return nil
}

// Digest returns a stable fingerprint of the effective configuration.
// Combined with the artifact hash it forms the result cache key.
func (c *SessionConfig) Digest() string {
	// json.Marshal on a struct emits fields in declaration order, so the
	// encoding is canonical for our purposes.
	data, err := json.Marshal(c)
	if err != nil {
		// Marshal of this struct cannot fail; keep a deterministic fallback.
		data = []byte(fmt.Sprintf("%+v", c))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ArtifactHash returns the content fingerprint of an artifact.
func ArtifactHash(artifact string) string {
	sum := sha256.Sum256([]byte(artifact))
	return hex.EncodeToString(sum[:])
}

// CacheKey derives the result-cache key from an artifact and the effective
// configuration digest.
func CacheKey(artifact string, configDigest string) string {
	sum := sha256.Sum256([]byte(ArtifactHash(artifact) + ":" + configDigest))
	return hex.EncodeToString(sum[:])
}

// IterationRecord is one completed (thought → review) cycle in a session.
type IterationRecord struct {
	ThoughtNumber int              `json:"thoughtNumber"`
	ArtifactHash  string           `json:"artifactHash"`
	Score         int              `json:"score"`
	Verdict       Verdict          `json:"verdict"`
	Review        StructuredReview `json:"review"`
	Timestamp     time.Time        `json:"timestamp"`
}

// SessionState is the durable per-session record kept by the session store.
// CurrentLoop always equals len(History); IsComplete is one-way true.
type SessionState struct {
	ID               string            `json:"id"`
	Config           SessionConfig     `json:"config"`
	CurrentLoop      int               `json:"currentLoop"`
	IsComplete       bool              `json:"isComplete"`
	CompletionReason string            `json:"completionReason,omitempty"`
	History          []IterationRecord `json:"history"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// NewSessionState creates a fresh session with the given configuration.
func NewSessionState(id string, config SessionConfig) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		ID:        id,
		Config:    config,
		History:   []IterationRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep-enough copy for handing to readers: history is
// copied so the store's exclusively-owned slice never escapes.
func (s *SessionState) Clone() *SessionState {
	cp := *s
	cp.History = make([]IterationRecord, len(s.History))
	copy(cp.History, s.History)
	cp.Config.Paths = append([]string(nil), s.Config.Paths...)
	cp.Config.Judges = append([]string(nil), s.Config.Judges...)
	return &cp
}

// LastIteration returns the most recent iteration record, or nil when the
// session has no history yet.
func (s *SessionState) LastIteration() *IterationRecord {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}
