// Package judge defines the contracts between the audit engine and its
// pluggable evaluation backends, plus a deterministic built-in judge used
// when no external backend is configured.
package judge

import (
	"context"

	"github.com/Iron-Ham/gavel/internal/review"
)

// Step identifies one stage of the audit evaluation pipeline.
type Step string

const (
	StepInit    Step = "INIT"
	StepRepro   Step = "REPRO"
	StepStatic  Step = "STATIC"
	StepTests   Step = "TESTS"
	StepDynamic Step = "DYNAMIC"
	StepConform Step = "CONFORM"
	StepTrace   Step = "TRACE"
	StepVerdict Step = "VERDICT"
)

// Steps returns the pipeline stages in execution order.
func Steps() []Step {
	return []Step{StepInit, StepRepro, StepStatic, StepTests, StepDynamic, StepConform, StepTrace, StepVerdict}
}

// Request is everything a judge needs to evaluate one iteration.
type Request struct {
	SessionID   string
	Loop        int
	Task        string
	Artifact    string
	Context     string
	Config      review.SessionConfig
	PriorIssues []string
}

// Judge evaluates an artifact and returns a raw review. Implementations
// must honor the context deadline; the queue enforces a per-job timeout
// above them.
type Judge interface {
	Name() string
	Review(ctx context.Context, req Request) (*review.RawReview, error)
}

// ContextBuilder assembles the repository context a judge sees alongside
// the artifact. A failing builder degrades the audit rather than
// aborting it.
type ContextBuilder interface {
	Build(ctx context.Context, thought review.Thought, cfg review.SessionConfig) (string, error)
}

// StepResult is one pipeline stage's contribution to the review.
type StepResult struct {
	Step       Step
	Dimensions []review.RawDimension
	Notes      string
	Skipped    bool
}

// StepEvaluator runs a single pipeline stage. Judges that evaluate
// everything in one shot do not implement it; staged backends do.
type StepEvaluator interface {
	EvaluateStep(ctx context.Context, step Step, req Request) (*StepResult, error)
}

// DegradedContextPlaceholder is what the orchestrator substitutes when
// the context builder fails.
const DegradedContextPlaceholder = "[context unavailable: repository state could not be collected]"

// NopContextBuilder returns the artifact's surroundings as empty context.
// Used when the audit scope carries everything the judge needs.
type NopContextBuilder struct{}

func (NopContextBuilder) Build(context.Context, review.Thought, review.SessionConfig) (string, error) {
	return "", nil
}
