// Package event provides the synchronous pub-sub bus that decouples the
// audit queue, progress tracker, and CLI surfaces from one another.
package event

import "time"

// Event is the interface all bus events implement.
type Event interface {
	// EventType returns the event's identifier, "category.action"
	// (e.g. "job.started", "session.completed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides the common fields; embed it in concrete events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// Job lifecycle event types.
const (
	TypeJobQueued    = "job.queued"
	TypeJobStarted   = "job.started"
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
	TypeJobRetried   = "job.retried"
)

// Queue lifecycle event types.
const (
	TypeQueuePaused    = "queue.paused"
	TypeQueueResumed   = "queue.resumed"
	TypeQueueCleared   = "queue.cleared"
	TypeQueueDestroyed = "queue.destroyed"
)

// Audit progress and session event types. Percent updates, stage
// transitions, and terminal outcomes are distinct events so subscribers
// can pick the granularity they need.
const (
	TypeProgressUpdated      = "progress.updated"
	TypeProgressStageChanged = "progress.stage-changed"
	TypeProgressCompleted    = "progress.completed"
	TypeProgressFailed       = "progress.failed"
	TypeSessionCompleted     = "session.completed"
	TypeStagnationDetected   = "stagnation.detected"
)

// JobEvent is emitted at each job lifecycle transition.
type JobEvent struct {
	baseEvent
	JobID     string
	SessionID string
	Priority  int
	Attempt   int
	Err       error
}

// NewJobEvent creates a job lifecycle event of the given type.
func NewJobEvent(eventType, jobID, sessionID string, priority, attempt int, err error) JobEvent {
	return JobEvent{
		baseEvent: newBaseEvent(eventType),
		JobID:     jobID,
		SessionID: sessionID,
		Priority:  priority,
		Attempt:   attempt,
		Err:       err,
	}
}

// QueueEvent is emitted when the queue as a whole changes state.
type QueueEvent struct {
	baseEvent
	Dropped int // jobs rejected by the transition (Clear, Destroy)
}

// NewQueueEvent creates a queue lifecycle event.
func NewQueueEvent(eventType string, dropped int) QueueEvent {
	return QueueEvent{baseEvent: newBaseEvent(eventType), Dropped: dropped}
}

// ProgressEvent carries a tracked operation's stage and percentage; the
// event type says which transition occurred.
type ProgressEvent struct {
	baseEvent
	OperationID string
	Stage       string
	Percent     int
}

// NewProgressEvent creates a progress event of the given type.
func NewProgressEvent(eventType, operationID, stage string, percent int) ProgressEvent {
	return ProgressEvent{
		baseEvent:   newBaseEvent(eventType),
		OperationID: operationID,
		Stage:       stage,
		Percent:     percent,
	}
}

// SessionCompletedEvent is emitted when a session terminates.
type SessionCompletedEvent struct {
	baseEvent
	SessionID string
	Reason    string
	Score     int
	Loops     int
}

// NewSessionCompletedEvent creates a session termination event.
func NewSessionCompletedEvent(sessionID, reason string, score, loops int) SessionCompletedEvent {
	return SessionCompletedEvent{
		baseEvent: newBaseEvent(TypeSessionCompleted),
		SessionID: sessionID,
		Reason:    reason,
		Score:     score,
		Loops:     loops,
	}
}

// StagnationEvent is emitted when the analyzer declares a session stuck.
type StagnationEvent struct {
	baseEvent
	SessionID     string
	AvgSimilarity float64
}

// NewStagnationEvent creates a stagnation event.
func NewStagnationEvent(sessionID string, avgSimilarity float64) StagnationEvent {
	return StagnationEvent{
		baseEvent:     newBaseEvent(TypeStagnationDetected),
		SessionID:     sessionID,
		AvgSimilarity: avgSimilarity,
	}
}
