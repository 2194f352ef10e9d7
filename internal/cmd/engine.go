package cmd

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/gavel/internal/cache"
	"github.com/Iron-Ham/gavel/internal/completion"
	"github.com/Iron-Ham/gavel/internal/config"
	"github.com/Iron-Ham/gavel/internal/event"
	"github.com/Iron-Ham/gavel/internal/judge"
	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/orchestrator"
	"github.com/Iron-Ham/gavel/internal/output"
	"github.com/Iron-Ham/gavel/internal/progress"
	"github.com/Iron-Ham/gavel/internal/queue"
	"github.com/Iron-Ham/gavel/internal/review"
	"github.com/Iron-Ham/gavel/internal/sanitize"
	"github.com/Iron-Ham/gavel/internal/scoring"
	"github.com/Iron-Ham/gavel/internal/similarity"
	"github.com/Iron-Ham/gavel/internal/store"
)

// engine bundles the wired audit stack for one CLI invocation.
type engine struct {
	orch  *orchestrator.Orchestrator
	store *store.Store
	queue *queue.Queue
}

// newEngine assembles the full audit stack from the loaded configuration,
// using the deterministic built-in judge.
func newEngine(cfg *config.Config) (*engine, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Store.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	bus := event.NewBus(logger)
	q := queue.New(queue.Options{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		MaxQueueSize:  cfg.Queue.MaxQueueSize,
		JobTimeout:    cfg.Queue.JobTimeout(),
		MaxRetries:    cfg.Queue.MaxRetries,
	}, bus, logger)

	assembler, err := scoring.New(review.DefaultDimensions(), cfg.Session.Threshold)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring configuration: %w", err)
	}

	tiers := make([]completion.Tier, 0, len(cfg.Completion.Tiers))
	for _, t := range cfg.Completion.Tiers {
		tiers = append(tiers, completion.Tier{MinLoop: t.MinLoop, Score: t.Score})
	}
	evaluator, err := completion.New(tiers, cfg.Completion.MaxLoops)
	if err != nil {
		return nil, fmt.Errorf("invalid completion configuration: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:     st,
		Cache:     cache.New(cfg.Cache.Capacity, cfg.Cache.TTL(), logger),
		Queue:     q,
		Judges:    []judge.Judge{judge.NewStaticJudge()},
		Assembler: assembler,
		Evaluator: evaluator,
		Analyzer: similarity.NewAnalyzer(
			cfg.Stagnation.MinIterations,
			cfg.Stagnation.StartLoop,
			cfg.Stagnation.Threshold,
			cfg.Stagnation.Window,
		),
		Builder: output.NewWithOptions(cfg.Output.SectionTimeout(), output.Options{
			TaskStrategy:        cfg.Output.TaskStrategy,
			MaxEvidenceEntries:  cfg.Output.MaxEvidenceEntries,
			GroupEvidenceByFile: cfg.Output.GroupEvidenceByFile,
		}, logger),
		Sanitizer: sanitize.NewWithLevel(sanitize.Level(cfg.Sanitizer.Level), cfg.Sanitizer.MaxPathDepth, logger),
		Tracker:   progress.NewTracker(bus, cfg.Progress.ActivationThreshold(), logger),
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &engine{orch: orch, store: st, queue: q}, nil
}

// Close releases the engine's workers.
func (e *engine) Close() {
	if e.queue != nil {
		e.queue.Destroy()
	}
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if cfg.Logging.Dir != "" {
		return logging.NewFileLogger(cfg.Logging.Dir, cfg.Logging.Level)
	}
	return logging.New(os.Stderr, cfg.Logging.Level), nil
}
