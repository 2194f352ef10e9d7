// Package output assembles the final structured review document from the
// raw judge output and the assembled score. The section generators run
// in parallel, each under its own deadline; a failing generator degrades
// to a default section instead of failing the review.
package output

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/gavel/internal/errors"
	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/review"
	"github.com/Iron-Ham/gavel/internal/scoring"
)

// DefaultSectionTimeout bounds each section generator.
const DefaultSectionTimeout = 10 * time.Second

// Task prioritization strategies for the follow-up task list.
const (
	StrategySeverityFirst   = "severity_first"
	StrategyImpactBased     = "impact_based"
	StrategyEffortWeighted  = "effort_weighted"
	StrategyDependencyAware = "dependency_aware"
)

// Options are the tunables for the section generators.
type Options struct {
	// TaskStrategy orders the follow-up task list.
	TaskStrategy string
	// MaxEvidenceEntries caps the evidence table after sorting.
	MaxEvidenceEntries int
	// GroupEvidenceByFile orders evidence by location before severity.
	GroupEvidenceByFile bool
	// DirectRefWeight and KeywordWeight compose traceability confidence;
	// ConfidenceThreshold is the coverage cutoff.
	DirectRefWeight     int
	KeywordWeight       int
	ConfidenceThreshold int
}

// DefaultOptions returns the standard generator tunables.
func DefaultOptions() Options {
	return Options{
		TaskStrategy:        StrategySeverityFirst,
		MaxEvidenceEntries:  20,
		DirectRefWeight:     80,
		KeywordWeight:       20,
		ConfidenceThreshold: 60,
	}
}

// withDefaults fills zero fields so generators can rely on the tunables.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TaskStrategy == "" {
		o.TaskStrategy = d.TaskStrategy
	}
	if o.MaxEvidenceEntries <= 0 {
		o.MaxEvidenceEntries = d.MaxEvidenceEntries
	}
	if o.DirectRefWeight <= 0 {
		o.DirectRefWeight = d.DirectRefWeight
	}
	if o.KeywordWeight <= 0 {
		o.KeywordWeight = d.KeywordWeight
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = d.ConfidenceThreshold
	}
	return o
}

// Inputs carries everything the builder needs for one review document.
type Inputs struct {
	Raw         *review.RawReview
	Assembled   scoring.Result
	Config      review.SessionConfig
	State       *review.SessionState
	Termination review.TerminationResult
	Progress    *review.ProgressAnalysis
	Opts        Options
}

// Builder produces StructuredReview documents.
type Builder struct {
	sectionTimeout time.Duration
	opts           Options
	logger         *logging.Logger
}

// New creates a Builder with default options. A non-positive timeout
// uses the default.
func New(sectionTimeout time.Duration, logger *logging.Logger) *Builder {
	return NewWithOptions(sectionTimeout, Options{}, logger)
}

// NewWithOptions creates a Builder with explicit generator tunables.
// Zero option fields use the defaults.
func NewWithOptions(sectionTimeout time.Duration, opts Options, logger *logging.Logger) *Builder {
	if sectionTimeout <= 0 {
		sectionTimeout = DefaultSectionTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{
		sectionTimeout: sectionTimeout,
		opts:           opts.withDefaults(),
		logger:         logger.WithComponent("output"),
	}
}

// section is one generator's slot in the document.
type section struct {
	name     string
	generate func(context.Context, Inputs, *review.StructuredReview)
	fallback func(Inputs, *review.StructuredReview)
}

// Build assembles the document. Generators run concurrently and write to
// disjoint fields of the review; each is bounded by the section timeout
// and replaced by its fallback on failure. Build never returns an error.
func (b *Builder) Build(ctx context.Context, in Inputs) review.StructuredReview {
	in.Opts = b.opts
	doc := review.StructuredReview{
		OverallScore: in.Assembled.OverallScore,
		Verdict:      in.Assembled.Verdict,
		Dimensions:   in.Assembled.Dimensions,
		Metadata: review.ReviewMetadata{
			Version:   review.SchemaVersion,
			Timestamp: time.Now().UTC(),
			Warnings:  append([]review.Warning(nil), in.Assembled.Warnings...),
		},
	}
	if in.State != nil {
		doc.Iterations = in.State.CurrentLoop
	}
	if in.Raw != nil {
		doc.Summary = in.Raw.Summary
		doc.JudgeCards = append([]review.JudgeCard(nil), in.Raw.JudgeCards...)
	}
	doc.Completion = completionStatus(in)
	doc.ProgressAnalysis = in.Progress
	termination := in.Termination
	doc.Termination = &termination

	sections := []section{
		{name: "executiveVerdict", generate: generateVerdict, fallback: fallbackVerdict},
		{name: "evidenceTable", generate: generateEvidence, fallback: fallbackEvidence},
		{name: "proposedDiffs", generate: generateDiffs, fallback: fallbackDiffs},
		{name: "reproductionGuide", generate: generateRepro, fallback: fallbackRepro},
		{name: "traceabilityMatrix", generate: generateTraceability, fallback: fallbackTraceability},
		{name: "followUpTasks", generate: generateTasks, fallback: fallbackTasks},
		{name: "qualityMetrics", generate: generateMetrics, fallback: fallbackMetrics},
	}

	// Each generator gets a private copy to write into; merging back is
	// single-threaded after the group finishes.
	results := make([]review.StructuredReview, len(sections))
	failed := make([]error, len(sections))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, sec := range sections {
		g.Go(func() error {
			sectionCtx, cancel := context.WithTimeout(groupCtx, b.sectionTimeout)
			defer cancel()
			failed[i] = b.runSection(sectionCtx, sec, in, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, sec := range sections {
		if failed[i] != nil {
			b.logger.Warn("section generator degraded",
				"section", sec.name, "error", failed[i])
			// A timed-out generator may still be writing to its slot;
			// build the fallback in a fresh document instead.
			var safe review.StructuredReview
			sec.fallback(in, &safe)
			doc.AddWarning(warningCode(failed[i]),
				fmt.Sprintf("section %s used fallback content: %v", sec.name, failed[i]))
			mergeSection(sec.name, &doc, &safe)
			continue
		}
		mergeSection(sec.name, &doc, &results[i])
	}

	return doc
}

// runSection executes one generator, converting panics and deadline
// expiry into errors.
func (b *Builder) runSection(ctx context.Context, sec section, in Inputs, out *review.StructuredReview) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("section %s panicked: %v", sec.name, r)
			}
		}()
		sec.generate(ctx, in, out)
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: section %s deadline exceeded", errors.ErrJobTimeout, sec.name)
	}
}

func warningCode(err error) string {
	if errors.Is(err, errors.ErrJobTimeout) {
		return string(errors.CodeJobTimeout)
	}
	return string(errors.CodeJudgeError)
}

// mergeSection copies one generator's fields into the document.
func mergeSection(name string, doc, src *review.StructuredReview) {
	switch name {
	case "executiveVerdict":
		doc.ExecutiveVerdict = src.ExecutiveVerdict
	case "evidenceTable":
		doc.EvidenceTable = src.EvidenceTable
	case "proposedDiffs":
		doc.ProposedDiffs = src.ProposedDiffs
	case "reproductionGuide":
		doc.ReproductionGuide = src.ReproductionGuide
	case "traceabilityMatrix":
		doc.TraceabilityMatrix = src.TraceabilityMatrix
	case "followUpTasks":
		doc.FollowUpTasks = src.FollowUpTasks
	case "qualityMetrics":
		doc.QualityMetrics = src.QualityMetrics
	}
}

func completionStatus(in Inputs) review.CompletionStatus {
	status := review.CompletionStatus{
		IsComplete:        !in.Termination.ShouldContinue,
		Reason:            in.Termination.Reason,
		NextThoughtNeeded: in.Termination.ShouldContinue,
	}
	switch in.Termination.Reason {
	case "score":
		status.Message = fmt.Sprintf("Score %d meets the completion threshold.", in.Termination.FinalScore)
	case "maxLoops":
		status.Message = fmt.Sprintf("Loop ceiling reached after %d iterations.", in.Termination.TotalLoops)
	case "stagnation":
		status.Message = "Revisions have stopped making substantive progress."
	default:
		if status.NextThoughtNeeded {
			status.Message = "Further revision required; submit the next iteration."
		}
	}
	return status
}
