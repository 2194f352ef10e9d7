// Package orchestrator drives the per-thought audit workflow: session
// resolution, inline configuration, context assembly, judge scheduling,
// scoring, stagnation analysis, completion, output building, and
// sanitization. Degradations along the way become review warnings; only
// invalid input, a full queue, or a locked session surface as errors.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/gavel/internal/cache"
	"github.com/Iron-Ham/gavel/internal/completion"
	"github.com/Iron-Ham/gavel/internal/errors"
	"github.com/Iron-Ham/gavel/internal/event"
	"github.com/Iron-Ham/gavel/internal/judge"
	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/output"
	"github.com/Iron-Ham/gavel/internal/progress"
	"github.com/Iron-Ham/gavel/internal/queue"
	"github.com/Iron-Ham/gavel/internal/review"
	"github.com/Iron-Ham/gavel/internal/sanitize"
	"github.com/Iron-Ham/gavel/internal/scoring"
	"github.com/Iron-Ham/gavel/internal/similarity"
	"github.com/Iron-Ham/gavel/internal/store"
)

// Deps are the orchestrator's collaborators. Store, Queue, Assembler,
// Evaluator, Builder, and at least one Judge are required; the rest have
// working defaults or are optional.
type Deps struct {
	Store          *store.Store
	Cache          *cache.Cache // nil disables result caching
	Queue          *queue.Queue
	Judges         []judge.Judge
	ContextBuilder judge.ContextBuilder
	Assembler      *scoring.Assembler
	Evaluator      *completion.Evaluator
	Analyzer       *similarity.Analyzer
	Builder        *output.Builder
	Sanitizer      *sanitize.Sanitizer
	Tracker        *progress.Tracker // nil disables progress tracking
	Bus            *event.Bus        // nil disables event emission
	Logger         *logging.Logger
}

// Orchestrator runs audits. It is safe for concurrent use; per-session
// ordering is enforced by the session lock.
type Orchestrator struct {
	deps   Deps
	logger *logging.Logger

	mu      sync.Mutex
	windows map[string][]similarity.Snapshot // recent artifacts per session
}

// New validates the dependency set and creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("orchestrator requires a session store")
	case deps.Queue == nil:
		return nil, fmt.Errorf("orchestrator requires an audit queue")
	case len(deps.Judges) == 0:
		return nil, fmt.Errorf("orchestrator requires at least one judge")
	case deps.Assembler == nil:
		return nil, fmt.Errorf("orchestrator requires a score assembler")
	case deps.Evaluator == nil:
		return nil, fmt.Errorf("orchestrator requires a completion evaluator")
	case deps.Builder == nil:
		return nil, fmt.Errorf("orchestrator requires an output builder")
	}
	if deps.ContextBuilder == nil {
		deps.ContextBuilder = judge.NopContextBuilder{}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = similarity.NewAnalyzer(0, 0, 0, 0)
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.New(0, deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	return &Orchestrator{
		deps:    deps,
		logger:  deps.Logger.WithComponent("orchestrator"),
		windows: make(map[string][]similarity.Snapshot),
	}, nil
}

// Process runs one audit iteration for the submitted thought and returns
// the sanitized review document. Judge failures degrade into a fallback
// review; Process errors only on invalid input, queue rejection, or a
// locked session.
func (o *Orchestrator) Process(ctx context.Context, thought review.Thought) (*review.StructuredReview, error) {
	if err := thought.Validate(); err != nil {
		return nil, err
	}

	sessionID := resolveSessionID(thought)
	logger := o.logger.WithSession(sessionID)

	state, stateWarnings := o.loadOrCreate(ctx, sessionID, logger)

	lock, err := o.deps.Store.AcquireLock(sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	artifactHash := review.ArtifactHash(thought.Artifact)
	if state.IsComplete {
		if last := state.LastIteration(); last != nil && last.ArtifactHash == artifactHash {
			// Idempotent replay of the final result.
			replay := last.Review
			return &replay, nil
		}
		return nil, errors.NewAuditError(errors.CodeSessionLocked,
			fmt.Sprintf("session %s is complete (%s); submit a new session for further work",
				sessionID, state.CompletionReason), errors.ErrSessionLocked)
	}

	var warnings []review.Warning
	warnings = append(warnings, stateWarnings...)

	if configText, ok := review.ExtractInlineConfig(thought.Artifact); ok {
		merged, configWarnings, changed := review.MergeInlineConfig(state.Config, configText)
		warnings = append(warnings, configWarnings...)
		if changed {
			state.Config = merged
			logger.Info("inline configuration applied", "digest", merged.Digest())
		}
	}

	cacheKey := review.CacheKey(thought.Artifact, state.Config.Digest())
	if o.deps.Cache != nil {
		if cached, err := o.deps.Cache.Get(cacheKey); err == nil {
			logger.Debug("cache hit", "key", cacheKey)
			return &cached, nil
		}
	}

	opID := uuid.NewString()
	o.trackStart(opID, sessionID)
	defer o.trackRemove(opID)

	o.trackAdvance(opID, progress.StageParsingCode)
	repoContext, err := o.deps.ContextBuilder.Build(ctx, thought, state.Config)
	if err != nil {
		logger.Warn("context builder failed; audit degraded", "error", err)
		repoContext = judge.DegradedContextPlaceholder
		warnings = append(warnings, review.Warning{
			Code:    string(errors.CodeContextError),
			Message: fmt.Sprintf("repository context unavailable: %v", err),
		})
	}

	req := judge.Request{
		SessionID:   sessionID,
		Loop:        state.CurrentLoop + 1,
		Task:        state.Config.Task,
		Artifact:    thought.Artifact,
		Context:     repoContext,
		Config:      state.Config,
		PriorIssues: priorIssues(state),
	}

	o.trackAdvance(opID, progress.StageAnalyzingStructure)
	raw, judgeErr := o.scheduleJudges(ctx, opID, req)
	if judgeErr != nil && errors.IsFailFast(judgeErr) {
		// Queue rejection is the caller's problem, not a degraded review.
		return nil, judgeErr
	}

	o.trackAdvance(opID, progress.StageEvaluatingQuality)
	var assembled scoring.Result
	if judgeErr != nil {
		logger.Warn("judge unavailable; issuing fallback review", "error", judgeErr)
		raw, assembled = o.fallbackReview()
		warnings = append(warnings, review.Warning{
			Code:    string(errors.CodeOf(judgeErr)),
			Message: fmt.Sprintf("judge unavailable: %v", judgeErr),
		})
	} else {
		assembled = o.deps.Assembler.Assemble(raw.Dimensions, len(raw.CriticalIssues()) > 0)
	}

	state.CurrentLoop++
	analysis := o.analyzeProgress(sessionID, thought.Artifact, assembled.OverallScore, raw, state.CurrentLoop)
	if analysis.Stagnant {
		logger.Info("stagnation detected",
			"loop", state.CurrentLoop, "avgSimilarity", analysis.AvgSimilarity)
		o.publish(event.NewStagnationEvent(sessionID, analysis.AvgSimilarity))
		warnings = append(warnings, review.Warning{
			Code:    string(errors.CodeStagnationDetected),
			Message: "recent revisions no longer change the artifact in substance",
		})
	}

	termination := o.deps.Evaluator.Evaluate(state, assembled.OverallScore, analysis.Stagnant)

	o.trackAdvance(opID, progress.StageGeneratingFeedback)
	doc := o.deps.Builder.Build(ctx, output.Inputs{
		Raw:         raw,
		Assembled:   assembled,
		Config:      state.Config,
		State:       state,
		Termination: termination,
		Progress:    progressAnalysis(analysis, state.CurrentLoop),
	})
	for _, w := range warnings {
		doc.AddWarning(w.Code, w.Message)
	}

	o.trackAdvance(opID, progress.StageFinalizing)
	doc = o.deps.Sanitizer.Sanitize(doc)

	state.History = append(state.History, review.IterationRecord{
		ThoughtNumber: thought.ThoughtNumber,
		ArtifactHash:  artifactHash,
		Score:         assembled.OverallScore,
		Verdict:       assembled.Verdict,
		Review:        doc,
		Timestamp:     doc.Metadata.Timestamp,
	})
	state.CurrentLoop = len(state.History)

	if !termination.ShouldContinue {
		state.IsComplete = true
		state.CompletionReason = termination.Reason
	}

	if err := o.deps.Store.Save(ctx, state); err != nil {
		// In-memory state advanced; the caller still gets the review.
		logger.Error("session journal write failed", "error", err)
		doc.AddWarning(string(errors.CodePersistenceDegraded),
			fmt.Sprintf("session state could not be persisted: %v", err))
	}

	if state.IsComplete {
		o.publish(event.NewSessionCompletedEvent(
			sessionID, state.CompletionReason, assembled.OverallScore, state.CurrentLoop))
		o.clearWindow(sessionID)
		logger.Info("session complete",
			"reason", state.CompletionReason, "score", assembled.OverallScore, "loops", state.CurrentLoop)
	}

	if o.deps.Cache != nil {
		o.deps.Cache.Put(cacheKey, doc)
	}

	o.trackComplete(opID)
	return &doc, nil
}

// resolveSessionID picks the session identity: explicit ID, then branch
// ID, then a generated fallback.
func resolveSessionID(thought review.Thought) string {
	if thought.SessionID != "" {
		return thought.SessionID
	}
	if thought.BranchID != "" {
		return thought.BranchID
	}
	return "fallback-" + uuid.NewString()
}

// loadOrCreate fetches the session journal or starts a fresh session. A
// corrupt journal degrades to a fresh session with a warning rather than
// blocking the audit.
func (o *Orchestrator) loadOrCreate(ctx context.Context, sessionID string, logger *logging.Logger) (*review.SessionState, []review.Warning) {
	state, err := o.deps.Store.Load(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, errors.ErrSessionNotFound) {
		return review.NewSessionState(sessionID, review.DefaultSessionConfig()), nil
	}

	logger.Warn("session journal unreadable; starting fresh", "error", err)
	return review.NewSessionState(sessionID, review.DefaultSessionConfig()),
		[]review.Warning{{
			Code:    string(errors.CodePersistenceError),
			Message: fmt.Sprintf("previous session state was unreadable: %v", err),
		}}
}

// scheduleJudges submits the judge run to the audit queue and waits for
// its result. The queue owns the per-job timeout and retry policy.
func (o *Orchestrator) scheduleJudges(ctx context.Context, opID string, req judge.Request) (*review.RawReview, error) {
	// The judge's raw output travels through this slot rather than the
	// future, whose result type is the finished review document. A
	// timed-out attempt may write concurrently with a retry, so the slot
	// is guarded.
	var (
		slotMu sync.Mutex
		slot   *review.RawReview
	)

	future, err := o.deps.Queue.Submit(queue.Spec{
		SessionID: req.SessionID,
		Priority:  queue.PriorityNormal,
		Run: func(jobCtx context.Context) (*review.StructuredReview, error) {
			raw, err := o.runJudges(jobCtx, req)
			if err != nil {
				return nil, err
			}
			slotMu.Lock()
			slot = raw
			slotMu.Unlock()
			return nil, nil
		},
	})
	if err != nil {
		return nil, err
	}

	o.trackAdvance(opID, progress.StageRunningChecks)
	if _, err := future.Wait(ctx); err != nil {
		return nil, err
	}

	slotMu.Lock()
	defer slotMu.Unlock()
	if slot == nil {
		return nil, errors.NewAuditError(errors.CodeJudgeError,
			"judge produced no output", errors.ErrJudgeFailed)
	}
	return slot, nil
}

// runJudges evaluates the request with every configured judge and merges
// their output. Individual judge failures are tolerated as long as one
// succeeds.
func (o *Orchestrator) runJudges(ctx context.Context, req judge.Request) (*review.RawReview, error) {
	var merged *review.RawReview
	var lastErr error
	for _, j := range o.deps.Judges {
		raw, err := j.Review(ctx, req)
		if err != nil {
			lastErr = err
			o.logger.Warn("judge failed", "judge", j.Name(), "error", err)
			continue
		}
		if merged == nil {
			merged = raw
			continue
		}
		mergeRaw(merged, raw)
	}
	if merged == nil {
		if lastErr == nil {
			lastErr = errors.ErrJudgeFailed
		}
		return nil, lastErr
	}
	return merged, nil
}

// mergeRaw folds a second judge's review into the base: dimension scores
// are averaged by ID, issues and judge cards are unioned.
func mergeRaw(base, other *review.RawReview) {
	byID := make(map[string]int, len(base.Dimensions))
	for i, d := range base.Dimensions {
		byID[d.ID] = i
	}
	for _, d := range other.Dimensions {
		if i, ok := byID[d.ID]; ok {
			base.Dimensions[i].Score = (base.Dimensions[i].Score + d.Score) / 2
			base.Dimensions[i].Issues = append(base.Dimensions[i].Issues, d.Issues...)
			continue
		}
		base.Dimensions = append(base.Dimensions, d)
	}
	base.JudgeCards = append(base.JudgeCards, other.JudgeCards...)
	base.Citations = append(base.Citations, other.Citations...)
	if base.Summary == "" {
		base.Summary = other.Summary
	}
}

// fallbackReview is issued when no judge produced usable output. The
// artifact is neither endorsed nor rejected: mid-scale score, revise
// verdict, and a judge card naming the fallback.
func (o *Orchestrator) fallbackReview() (*review.RawReview, scoring.Result) {
	raw := &review.RawReview{
		Summary:    "The judge was unavailable for this iteration; this is a fallback review.",
		JudgeCards: []review.JudgeCard{{Model: "fallback", Score: 50}},
	}
	var dims []review.DimensionScore
	for _, d := range review.DefaultDimensions() {
		raw.Dimensions = append(raw.Dimensions, review.RawDimension{ID: d.ID, Name: d.Name, Score: 50})
		dims = append(dims, review.DimensionScore{Name: d.Name, Score: 50})
	}
	return raw, scoring.Result{
		OverallScore: 50,
		Verdict:      review.VerdictRevise,
		Dimensions:   dims,
	}
}

// analyzeProgress appends the iteration to the session's snapshot window
// and runs the stagnation analyzer over it.
func (o *Orchestrator) analyzeProgress(sessionID, artifact string, score int, raw *review.RawReview, loop int) similarity.Analysis {
	snapshot := similarity.Snapshot{Artifact: artifact, Score: score}
	if raw != nil {
		for _, dim := range raw.Dimensions {
			for _, issue := range dim.Issues {
				snapshot.Issues = append(snapshot.Issues, issue.Description)
			}
		}
	}

	o.mu.Lock()
	window := append(o.windows[sessionID], snapshot)
	if limit := o.deps.Analyzer.Window(); len(window) > limit {
		window = window[len(window)-limit:]
	}
	o.windows[sessionID] = window
	snapshots := append([]similarity.Snapshot(nil), window...)
	o.mu.Unlock()

	return o.deps.Analyzer.Analyze(snapshots, loop)
}

// progressAnalysis decides whether the analyzer's diagnostics belong on
// the review: only once the session has enough history for them to mean
// anything.
func progressAnalysis(analysis similarity.Analysis, loop int) *review.ProgressAnalysis {
	if loop < similarity.DefaultMinIterations && !analysis.Stagnant {
		return nil
	}
	if analysis.AvgSimilarity == 0 && len(analysis.Suggestions) == 0 {
		return nil
	}
	pa := analysis.ProgressAnalysis
	return &pa
}

func priorIssues(state *review.SessionState) []string {
	last := state.LastIteration()
	if last == nil {
		return nil
	}
	var out []string
	for _, entry := range last.Review.EvidenceTable.Entries {
		out = append(out, entry.Issue)
	}
	return out
}

func (o *Orchestrator) clearWindow(sessionID string) {
	o.mu.Lock()
	delete(o.windows, sessionID)
	o.mu.Unlock()
}

func (o *Orchestrator) publish(e event.Event) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(e)
	}
}

func (o *Orchestrator) trackStart(opID, sessionID string) {
	if o.deps.Tracker != nil {
		// An untracked operation is harmless; Advance becomes a no-op.
		_ = o.deps.Tracker.Start(opID, sessionID)
	}
}

func (o *Orchestrator) trackAdvance(opID string, stage progress.Stage) {
	if o.deps.Tracker != nil {
		o.deps.Tracker.Advance(opID, stage)
	}
}

func (o *Orchestrator) trackComplete(opID string) {
	if o.deps.Tracker != nil {
		o.deps.Tracker.Complete(opID)
	}
}

func (o *Orchestrator) trackRemove(opID string) {
	if o.deps.Tracker != nil {
		o.deps.Tracker.Remove(opID)
	}
}
