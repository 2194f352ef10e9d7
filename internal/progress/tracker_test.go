package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/Iron-Ham/gavel/internal/event"
)

func TestStageWeightsSumTo100(t *testing.T) {
	sum := 0
	for _, s := range stageOrder {
		sum += s.weight
	}
	if sum != 100 {
		t.Errorf("stage weights sum to %d, want 100", sum)
	}
}

func TestPercentEntering(t *testing.T) {
	tests := []struct {
		stage Stage
		want  int
	}{
		{StageInitializing, 0},
		{StageParsingCode, 5},
		{StageAnalyzingStructure, 15},
		{StageRunningChecks, 30},
		{StageEvaluatingQuality, 50},
		{StageGeneratingFeedback, 70},
		{StageFinalizing, 90},
	}
	for _, tt := range tests {
		got, ok := percentEntering(tt.stage)
		if !ok {
			t.Fatalf("percentEntering(%s) unknown", tt.stage)
		}
		if got != tt.want {
			t.Errorf("percentEntering(%s) = %d, want %d", tt.stage, got, tt.want)
		}
	}
	if _, ok := percentEntering("NOT_A_STAGE"); ok {
		t.Error("unknown stage should not resolve")
	}
}

func TestNoPublicationBeforeActivationThreshold(t *testing.T) {
	bus := event.NewBus(nil)
	published := 0
	bus.Subscribe(event.TypeProgressUpdated, func(event.Event) { published++ })
	completed := 0
	bus.Subscribe(event.TypeProgressCompleted, func(event.Event) { completed++ })

	tracker := NewTracker(bus, 5*time.Second, nil)
	current := time.Unix(1000, 0)
	tracker.now = func() time.Time { return current }

	if err := tracker.Start("op-1", "s-1"); err != nil {
		t.Fatal(err)
	}

	current = current.Add(2 * time.Second)
	tracker.Advance("op-1", StageRunningChecks)
	if published != 0 {
		t.Error("no events before the activation threshold")
	}

	current = current.Add(4 * time.Second)
	tracker.Advance("op-1", StageEvaluatingQuality)
	if published != 1 {
		t.Errorf("published = %d, want 1 after threshold", published)
	}

	tracker.Complete("op-1")
	if completed != 1 {
		t.Errorf("completed events = %d, want 1", completed)
	}

	snap := tracker.Snapshot()
	if len(snap) != 1 || snap[0].Percent != 100 || !snap[0].Terminal {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLifecycleEventTypes(t *testing.T) {
	bus := event.NewBus(nil)
	byType := map[string]int{}
	for _, eventType := range []string{
		event.TypeProgressUpdated,
		event.TypeProgressStageChanged,
		event.TypeProgressCompleted,
		event.TypeProgressFailed,
	} {
		bus.Subscribe(eventType, func(e event.Event) { byType[e.EventType()]++ })
	}

	tracker := NewTracker(bus, time.Nanosecond, nil)
	current := time.Unix(1000, 0)
	tracker.now = func() time.Time { return current }

	if err := tracker.Start("op-1", "s-1"); err != nil {
		t.Fatal(err)
	}
	current = current.Add(time.Second)
	tracker.Advance("op-1", StageRunningChecks)
	tracker.Advance("op-1", StageEvaluatingQuality)
	tracker.Complete("op-1")

	if err := tracker.Start("op-2", "s-2"); err != nil {
		t.Fatal(err)
	}
	current = current.Add(time.Second)
	tracker.Advance("op-2", StageRunningChecks)
	tracker.Fail("op-2")

	if byType[event.TypeProgressUpdated] != 3 {
		t.Errorf("updated = %d, want one per Advance", byType[event.TypeProgressUpdated])
	}
	if byType[event.TypeProgressStageChanged] != 3 {
		t.Errorf("stage-changed = %d, want one per stage transition", byType[event.TypeProgressStageChanged])
	}
	if byType[event.TypeProgressCompleted] != 1 {
		t.Errorf("completed = %d, want 1", byType[event.TypeProgressCompleted])
	}
	if byType[event.TypeProgressFailed] != 1 {
		t.Errorf("failed = %d, want 1", byType[event.TypeProgressFailed])
	}
}

func TestFailKeepsLastPercent(t *testing.T) {
	tracker := NewTracker(nil, time.Hour, nil)
	if err := tracker.Start("op", "s"); err != nil {
		t.Fatal(err)
	}
	tracker.Advance("op", StageRunningChecks)
	tracker.Fail("op")

	snap := tracker.Snapshot()
	if snap[0].Stage != StageFailed || snap[0].Percent != 30 {
		t.Errorf("snapshot = %+v, want FAILED at 30%%", snap[0])
	}

	// Terminal operations ignore further transitions.
	tracker.Advance("op", StageFinalizing)
	if tracker.Snapshot()[0].Stage != StageFailed {
		t.Error("terminal operation must not advance")
	}
}

func TestTrackerCapacityEvictsFinishedFirst(t *testing.T) {
	tracker := NewTracker(nil, time.Hour, nil)

	for i := 0; i < MaxTracked; i++ {
		if err := tracker.Start(fmt.Sprintf("op-%d", i), "s"); err != nil {
			t.Fatal(err)
		}
	}

	// Full of active operations: the next Start is refused.
	if err := tracker.Start("overflow", "s"); err == nil {
		t.Error("Start should fail when every slot is active")
	}

	// Finishing one frees a slot for the next Start.
	tracker.Complete("op-0")
	if err := tracker.Start("replacement", "s"); err != nil {
		t.Errorf("Start after eviction failed: %v", err)
	}

	snap := tracker.Snapshot()
	if len(snap) != MaxTracked {
		t.Errorf("tracked = %d, want %d", len(snap), MaxTracked)
	}
	for _, st := range snap {
		if st.OperationID == "op-0" {
			t.Error("finished op-0 should have been evicted")
		}
	}
}

func TestDuplicateStartRejected(t *testing.T) {
	tracker := NewTracker(nil, time.Hour, nil)
	if err := tracker.Start("op", "s"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Start("op", "s"); err == nil {
		t.Error("duplicate Start should fail")
	}
}

func TestAdvanceUnknownOperationIsNoOp(t *testing.T) {
	tracker := NewTracker(nil, time.Hour, nil)
	tracker.Advance("ghost", StageRunningChecks)
	if len(tracker.Snapshot()) != 0 {
		t.Error("unknown operation must not appear")
	}
}
