// Package completion decides when an audit session is finished. The
// evaluator applies a graduated threshold schedule: the longer a session
// runs, the lower the score it needs to terminate, with a hard stop at
// the loop ceiling.
package completion

import (
	"fmt"

	"github.com/Iron-Ham/gavel/internal/review"
)

// MaxLoops is the hard iteration ceiling. No session runs past it.
const MaxLoops = 25

// Tier is one rung of the graduated threshold schedule: at or after
// MinLoop, a score of at least Score completes the session.
type Tier struct {
	MinLoop int
	Score   int
}

// DefaultTiers is the built-in schedule. Tiers are consulted from the
// most lenient (latest) rung downward; before loop 15 only the strictest
// rung applies.
func DefaultTiers() []Tier {
	return []Tier{
		{MinLoop: 0, Score: 95},
		{MinLoop: 15, Score: 90},
		{MinLoop: 20, Score: 85},
	}
}

// Reasons a session terminates.
const (
	ReasonScore      = "score"
	ReasonMaxLoops   = "maxLoops"
	ReasonStagnation = "stagnation"
)

// Evaluator applies the threshold schedule and the hard loop ceiling.
type Evaluator struct {
	tiers    []Tier
	maxLoops int
}

// New creates an Evaluator. Nil tiers use the default schedule; a
// non-positive maxLoops uses the built-in ceiling.
func New(tiers []Tier, maxLoops int) (*Evaluator, error) {
	if tiers == nil {
		tiers = DefaultTiers()
	}
	for i, tier := range tiers {
		if tier.Score < 0 || tier.Score > 100 {
			return nil, fmt.Errorf("tier %d score %d out of range 0..100", i, tier.Score)
		}
		if tier.MinLoop < 0 {
			return nil, fmt.Errorf("tier %d minLoop %d is negative", i, tier.MinLoop)
		}
		if i > 0 && tier.MinLoop <= tiers[i-1].MinLoop {
			return nil, fmt.Errorf("tier minLoops must be strictly increasing")
		}
	}
	if maxLoops <= 0 {
		maxLoops = MaxLoops
	}
	return &Evaluator{tiers: tiers, maxLoops: maxLoops}, nil
}

// MaxLoops returns the configured loop ceiling.
func (e *Evaluator) MaxLoops() int { return e.maxLoops }

// EffectiveThreshold returns the score required to complete at the given
// loop count: the most lenient tier whose MinLoop the session has reached.
func (e *Evaluator) EffectiveThreshold(loop int) int {
	threshold := e.tiers[0].Score
	for _, tier := range e.tiers {
		if loop >= tier.MinLoop {
			threshold = tier.Score
		}
	}
	return threshold
}

// Evaluate decides whether the session terminates after the given loop.
// Precedence: loop ceiling, then stagnation, then score. The returned
// TerminationResult carries aggregate session quality signals either way.
func (e *Evaluator) Evaluate(state *review.SessionState, score int, stagnant bool) review.TerminationResult {
	loop := state.CurrentLoop
	result := review.TerminationResult{
		ShouldContinue: true,
		FinalScore:     score,
		TotalLoops:     loop,
		FailureRate:    failureRate(state),
		CriticalIssues: lastCriticalIssues(state),
	}

	switch {
	case loop >= e.maxLoops:
		result.ShouldContinue = false
		result.Reason = ReasonMaxLoops
	case stagnant:
		result.ShouldContinue = false
		result.Reason = ReasonStagnation
	case score >= e.EffectiveThreshold(loop):
		result.ShouldContinue = false
		result.Reason = ReasonScore
	}
	return result
}

// failureRate is the fraction of iterations whose score decreased
// relative to the previous one. First iterations cannot regress.
func failureRate(state *review.SessionState) float64 {
	if len(state.History) < 2 {
		return 0
	}
	regressed := 0
	for i := 1; i < len(state.History); i++ {
		if state.History[i].Score < state.History[i-1].Score {
			regressed++
		}
	}
	return float64(regressed) / float64(len(state.History)-1)
}

// lastCriticalIssues returns the critical findings of the most recent
// iteration, the ones a terminating caller still needs to surface.
func lastCriticalIssues(state *review.SessionState) []string {
	last := state.LastIteration()
	if last == nil {
		return nil
	}
	var out []string
	for _, entry := range last.Review.EvidenceTable.Entries {
		if entry.Severity == review.SeverityCritical {
			out = append(out, entry.Issue)
		}
	}
	return out
}
