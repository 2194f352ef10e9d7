package completion

import (
	"testing"
	"time"

	"github.com/Iron-Ham/gavel/internal/review"
)

func stateAtLoop(loop int) *review.SessionState {
	state := review.NewSessionState("s", review.DefaultSessionConfig())
	state.CurrentLoop = loop
	return state
}

func TestEffectiveThresholdSchedule(t *testing.T) {
	e, err := New(nil, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		loop int
		want int
	}{
		{1, 95}, {9, 95}, {10, 95}, {14, 95},
		{15, 90}, {19, 90},
		{20, 85}, {24, 85},
	}
	for _, tt := range tests {
		if got := e.EffectiveThreshold(tt.loop); got != tt.want {
			t.Errorf("EffectiveThreshold(%d) = %d, want %d", tt.loop, got, tt.want)
		}
	}
}

func TestEvaluateScoreBoundaries(t *testing.T) {
	e, _ := New(nil, 0)

	tests := []struct {
		name         string
		loop         int
		score        int
		wantComplete bool
		wantReason   string
	}{
		{"loop 10 score 95 completes", 10, 95, true, ReasonScore},
		{"loop 10 score 94 continues", 10, 94, false, ""},
		{"loop 15 score 90 completes", 15, 90, true, ReasonScore},
		{"loop 14 score 90 continues", 14, 90, false, ""},
		{"loop 20 score 85 completes", 20, 85, true, ReasonScore},
		{"loop 19 score 85 continues", 19, 85, false, ""},
		{"early perfect score completes", 2, 97, true, ReasonScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Evaluate(stateAtLoop(tt.loop), tt.score, false)
			if res.ShouldContinue != !tt.wantComplete {
				t.Errorf("shouldContinue = %v, want %v", res.ShouldContinue, !tt.wantComplete)
			}
			if res.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateHardStop(t *testing.T) {
	e, _ := New(nil, 0)

	res := e.Evaluate(stateAtLoop(25), 10, false)
	if res.ShouldContinue {
		t.Error("loop 25 must terminate regardless of score")
	}
	if res.Reason != ReasonMaxLoops {
		t.Errorf("reason = %q, want maxLoops", res.Reason)
	}

	// Ceiling outranks stagnation and score.
	res = e.Evaluate(stateAtLoop(25), 99, true)
	if res.Reason != ReasonMaxLoops {
		t.Errorf("reason = %q, want maxLoops to take precedence", res.Reason)
	}
}

func TestEvaluateStagnation(t *testing.T) {
	e, _ := New(nil, 0)

	res := e.Evaluate(stateAtLoop(12), 50, true)
	if res.ShouldContinue {
		t.Error("stagnant session must terminate")
	}
	if res.Reason != ReasonStagnation {
		t.Errorf("reason = %q, want stagnation", res.Reason)
	}
}

func TestEvaluateCarriesSessionSignals(t *testing.T) {
	e, _ := New(nil, 0)
	state := stateAtLoop(3)

	now := time.Now()
	state.History = []review.IterationRecord{
		{ThoughtNumber: 1, Score: 60, Verdict: review.VerdictRevise, Timestamp: now},
		{ThoughtNumber: 2, Score: 50, Verdict: review.VerdictRevise, Timestamp: now},
		{ThoughtNumber: 3, Score: 70, Verdict: review.VerdictRevise, Timestamp: now,
			Review: review.StructuredReview{EvidenceTable: review.EvidenceTable{Entries: []review.EvidenceEntry{
				{Issue: "nil deref", Severity: review.SeverityCritical},
				{Issue: "naming", Severity: review.SeverityMinor},
			}}}},
	}

	res := e.Evaluate(state, 70, false)
	if res.FailureRate != 0.5 {
		t.Errorf("failureRate = %v, want 0.5 (one regression in two transitions)", res.FailureRate)
	}
	if len(res.CriticalIssues) != 1 || res.CriticalIssues[0] != "nil deref" {
		t.Errorf("criticalIssues = %v", res.CriticalIssues)
	}
	if res.TotalLoops != 3 || res.FinalScore != 70 {
		t.Errorf("totalLoops=%d finalScore=%d", res.TotalLoops, res.FinalScore)
	}
}

func TestNewValidatesTiers(t *testing.T) {
	if _, err := New([]Tier{{MinLoop: 0, Score: 120}}, 0); err == nil {
		t.Error("score over 100 should fail")
	}
	if _, err := New([]Tier{{MinLoop: 5, Score: 90}, {MinLoop: 5, Score: 85}}, 0); err == nil {
		t.Error("non-increasing minLoops should fail")
	}
}
