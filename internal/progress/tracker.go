// Package progress tracks long-running audit operations through a fixed
// stage pipeline and reports weighted percentages over the event bus.
// Short operations stay invisible: nothing is published until an
// operation has been running longer than the activation threshold.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/gavel/internal/event"
	"github.com/Iron-Ham/gavel/internal/logging"
)

// Stage is one step of the audit pipeline.
type Stage string

const (
	StageInitializing       Stage = "INITIALIZING"
	StageParsingCode        Stage = "PARSING_CODE"
	StageAnalyzingStructure Stage = "ANALYZING_STRUCTURE"
	StageRunningChecks      Stage = "RUNNING_CHECKS"
	StageEvaluatingQuality  Stage = "EVALUATING_QUALITY"
	StageGeneratingFeedback Stage = "GENERATING_FEEDBACK"
	StageFinalizing         Stage = "FINALIZING"
	StageCompleted          Stage = "COMPLETED"
	StageFailed             Stage = "FAILED"
)

// stageOrder lists the non-terminal stages in pipeline order with their
// weights. Weights sum to 100.
var stageOrder = []struct {
	stage  Stage
	weight int
}{
	{StageInitializing, 5},
	{StageParsingCode, 10},
	{StageAnalyzingStructure, 15},
	{StageRunningChecks, 20},
	{StageEvaluatingQuality, 20},
	{StageGeneratingFeedback, 20},
	{StageFinalizing, 10},
}

// Tracker defaults.
const (
	// DefaultActivationThreshold is how long an operation must run before
	// its progress is published.
	DefaultActivationThreshold = 5 * time.Second
	// MaxTracked bounds the number of simultaneously tracked operations.
	MaxTracked = 10
)

// Status is a point-in-time view of one tracked operation.
type Status struct {
	OperationID string
	SessionID   string
	Stage       Stage
	Percent     int
	StartedAt   time.Time
	Terminal    bool
}

type operation struct {
	id        string
	sessionID string
	stage     Stage
	percent   int
	startedAt time.Time
	terminal  bool
}

// Tracker maintains per-operation stage state. It is safe for concurrent
// use.
type Tracker struct {
	mu        sync.Mutex
	ops       map[string]*operation
	order     []string // insertion order, for eviction of finished ops
	bus       *event.Bus
	threshold time.Duration
	logger    *logging.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates a Tracker publishing on bus. A nil bus disables
// publication; a non-positive threshold uses the default.
func NewTracker(bus *event.Bus, threshold time.Duration, logger *logging.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultActivationThreshold
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Tracker{
		ops:       make(map[string]*operation),
		bus:       bus,
		threshold: threshold,
		logger:    logger.WithComponent("progress"),
		now:       time.Now,
	}
}

// Start begins tracking an operation in the INITIALIZING stage. When the
// tracker is full, finished operations are evicted first; if every slot
// is an active operation the new one is not tracked and Start reports an
// error. Untracked operations are harmless: later Advance calls on them
// are no-ops.
func (t *Tracker) Start(operationID, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ops[operationID]; exists {
		return fmt.Errorf("operation %q is already tracked", operationID)
	}
	if len(t.ops) >= MaxTracked {
		t.evictFinishedLocked()
	}
	if len(t.ops) >= MaxTracked {
		t.logger.Warn("progress tracker full; operation not tracked",
			"operationId", operationID, "tracked", len(t.ops))
		return fmt.Errorf("tracker is at capacity (%d active operations)", MaxTracked)
	}

	t.ops[operationID] = &operation{
		id:        operationID,
		sessionID: sessionID,
		stage:     StageInitializing,
		percent:   0,
		startedAt: t.now(),
	}
	t.order = append(t.order, operationID)
	return nil
}

// Advance moves an operation to the given pipeline stage. The percentage
// is the summed weight of all completed prior stages. Unknown operations
// and unknown stages are ignored.
func (t *Tracker) Advance(operationID string, stage Stage) {
	t.mu.Lock()
	op, ok := t.ops[operationID]
	if !ok || op.terminal {
		t.mu.Unlock()
		return
	}

	percent, known := percentEntering(stage)
	if !known {
		t.mu.Unlock()
		t.logger.Warn("unknown progress stage", "stage", string(stage))
		return
	}

	changed := op.stage != stage
	op.stage = stage
	op.percent = percent
	active := t.now().Sub(op.startedAt) >= t.threshold
	t.mu.Unlock()

	if active {
		if changed {
			t.publish(event.TypeProgressStageChanged, op.id, stage, percent)
		}
		t.publish(event.TypeProgressUpdated, op.id, stage, percent)
	}
}

// Complete marks an operation finished at 100%.
func (t *Tracker) Complete(operationID string) {
	t.finish(operationID, StageCompleted, 100)
}

// Fail marks an operation failed, keeping its last reached percentage.
func (t *Tracker) Fail(operationID string) {
	t.finish(operationID, StageFailed, -1)
}

func (t *Tracker) finish(operationID string, stage Stage, percent int) {
	t.mu.Lock()
	op, ok := t.ops[operationID]
	if !ok || op.terminal {
		t.mu.Unlock()
		return
	}
	op.stage = stage
	if percent >= 0 {
		op.percent = percent
	}
	op.terminal = true
	finalPercent := op.percent
	active := t.now().Sub(op.startedAt) >= t.threshold
	t.mu.Unlock()

	if active {
		eventType := event.TypeProgressCompleted
		if stage == StageFailed {
			eventType = event.TypeProgressFailed
		}
		t.publish(eventType, operationID, stage, finalPercent)
	}
}

// Snapshot returns the current status of every tracked operation.
func (t *Tracker) Snapshot() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Status, 0, len(t.order))
	for _, id := range t.order {
		op, ok := t.ops[id]
		if !ok {
			continue
		}
		out = append(out, Status{
			OperationID: op.id,
			SessionID:   op.sessionID,
			Stage:       op.stage,
			Percent:     op.percent,
			StartedAt:   op.startedAt,
			Terminal:    op.terminal,
		})
	}
	return out
}

// Remove drops an operation from the tracker.
func (t *Tracker) Remove(operationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(operationID)
}

func (t *Tracker) publish(eventType, operationID string, stage Stage, percent int) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(event.NewProgressEvent(eventType, operationID, string(stage), percent))
}

// evictFinishedLocked drops terminal operations, oldest first.
func (t *Tracker) evictFinishedLocked() {
	for _, id := range append([]string(nil), t.order...) {
		if len(t.ops) < MaxTracked {
			return
		}
		if op, ok := t.ops[id]; ok && op.terminal {
			t.removeLocked(id)
		}
	}
}

func (t *Tracker) removeLocked(operationID string) {
	delete(t.ops, operationID)
	for i, id := range t.order {
		if id == operationID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// percentEntering returns the cumulative weight of all stages before the
// given one, i.e. the percentage complete when the stage begins.
func percentEntering(stage Stage) (int, bool) {
	sum := 0
	for _, s := range stageOrder {
		if s.stage == stage {
			return sum, true
		}
		sum += s.weight
	}
	return 0, false
}
