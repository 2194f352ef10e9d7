// Package queue schedules audit jobs through a bounded worker pool with
// strict priority ordering. Higher priorities always dispatch first;
// equal priorities dispatch FIFO. Running jobs are never preempted.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/gavel/internal/errors"
	"github.com/Iron-Ham/gavel/internal/event"
	"github.com/Iron-Ham/gavel/internal/logging"
	"github.com/Iron-Ham/gavel/internal/review"
)

// Priority levels. Values leave room for intermediate levels without
// renumbering.
type Priority int

const (
	PriorityHigh   Priority = 100
	PriorityNormal Priority = 50
	PriorityLow    Priority = 10
)

// Queue limits and the per-job execution budget.
const (
	DefaultMaxConcurrent = 3
	DefaultMaxQueueSize  = 50
	DefaultJobTimeout    = 30 * time.Second
	DefaultMaxRetries    = 2
)

// ErrJobCleared resolves futures of jobs dropped by Clear.
var ErrJobCleared = errors.New("job removed by queue clear")

// Task is the work a job performs. It must honor ctx: the queue enforces
// the per-job timeout through it.
type Task func(ctx context.Context) (*review.StructuredReview, error)

// Spec describes a job to submit.
type Spec struct {
	SessionID string
	Priority  Priority
	Run       Task
}

type job struct {
	id        string
	sessionID string
	priority  Priority
	run       Task
	future    *Future
	enqueued  time.Time
	started   time.Time
	attempt   int
}

// Options configures a Queue. Zero values use the defaults; MaxRetries
// of -1 disables retries.
type Options struct {
	MaxConcurrent int
	MaxQueueSize  int
	JobTimeout    time.Duration
	MaxRetries    int
}

// Queue is the priority audit queue. It is safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*job // sorted: highest priority first, FIFO within priority
	running   int
	paused    bool
	destroyed bool

	opts   Options
	bus    *event.Bus
	logger *logging.Logger
	stats  stats
	wg     sync.WaitGroup
}

// New creates a queue and starts its workers. A nil bus disables event
// emission.
func New(opts Options, bus *event.Bus, logger *logging.Logger) *Queue {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultMaxQueueSize
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if logger == nil {
		logger = logging.Nop()
	}

	q := &Queue{
		opts:   opts,
		bus:    bus,
		logger: logger.WithComponent("queue"),
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < opts.MaxConcurrent; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a job and returns its future. It fails fast with
// ErrQueueFull when the pending backlog is at capacity and with
// ErrQueueDestroyed after Destroy.
func (q *Queue) Submit(spec Spec) (*Future, error) {
	if spec.Run == nil {
		return nil, fmt.Errorf("job has no task")
	}
	if spec.Priority == 0 {
		spec.Priority = PriorityNormal
	}

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return nil, errors.ErrQueueDestroyed
	}
	if len(q.pending) >= q.opts.MaxQueueSize {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %d jobs pending", errors.ErrQueueFull, q.opts.MaxQueueSize)
	}

	j := &job{
		id:        uuid.NewString(),
		sessionID: spec.SessionID,
		priority:  spec.Priority,
		run:       spec.Run,
		future:    newFuture(),
		enqueued:  time.Now(),
		attempt:   1,
	}
	q.insertLocked(j)
	q.stats.queued++
	q.cond.Signal()
	q.mu.Unlock()

	q.publish(event.NewJobEvent(event.TypeJobQueued, j.id, j.sessionID, int(j.priority), 1, nil))
	return j.future, nil
}

// insertLocked places a job after all jobs of equal or higher priority,
// preserving FIFO within a priority band.
func (q *Queue) insertLocked(j *job) {
	idx := len(q.pending)
	for i, p := range q.pending {
		if p.priority < j.priority {
			idx = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = j
}

// worker pulls jobs while the queue is alive and not paused.
func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for !q.destroyed && (q.paused || len(q.pending) == 0) {
			q.cond.Wait()
		}
		if q.destroyed {
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending = q.pending[1:]
		j.started = time.Now()
		q.running++
		q.mu.Unlock()

		q.execute(j)

		q.mu.Lock()
		q.running--
		q.mu.Unlock()
	}
}

// execute runs one attempt under the per-job timeout. A retryable
// failure with budget left re-inserts the job into the pending backlog
// in priority order with its start timestamp cleared, so the worker slot
// is free for higher-priority work between attempts. The future resolves
// exactly once.
func (q *Queue) execute(j *job) {
	q.publish(event.NewJobEvent(event.TypeJobStarted, j.id, j.sessionID, int(j.priority), j.attempt, nil))

	result, err := q.runOnce(j)
	if err == nil {
		q.finish(j, result, nil)
		return
	}
	if j.attempt > q.opts.MaxRetries || !errors.IsRetryable(err) {
		q.finish(j, nil, err)
		return
	}

	j.attempt++
	j.started = time.Time{}
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		j.future.resolve(nil, errors.ErrQueueDestroyed)
		return
	}
	q.insertLocked(j)
	q.cond.Signal()
	q.mu.Unlock()

	q.logger.Warn("job requeued for retry",
		"jobId", j.id, "sessionId", j.sessionID, "attempt", j.attempt, "error", err)
	q.publish(event.NewJobEvent(event.TypeJobRetried, j.id, j.sessionID, int(j.priority), j.attempt, err))
}

// runOnce executes the task with the job timeout. A task that outlives
// its deadline keeps running on its goroutine but its eventual result is
// discarded.
func (q *Queue) runOnce(j *job) (*review.StructuredReview, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.JobTimeout)
	defer cancel()

	type outcome struct {
		result *review.StructuredReview
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := j.run(ctx)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		// A task that surfaces its own deadline error is a timeout too.
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: job exceeded %s", errors.ErrJobTimeout, q.opts.JobTimeout)
		}
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: job exceeded %s", errors.ErrJobTimeout, q.opts.JobTimeout)
	}
}

func (q *Queue) finish(j *job, result *review.StructuredReview, err error) {
	duration := time.Since(j.started)

	q.mu.Lock()
	if err == nil {
		q.stats.completed++
	} else {
		q.stats.failed++
	}
	q.stats.record(record{
		JobID:     j.id,
		SessionID: j.sessionID,
		Priority:  j.priority,
		Attempts:  j.attempt,
		Wait:      j.started.Sub(j.enqueued),
		Duration:  duration,
		Failed:    err != nil,
		Err:       errString(err),
		Finished:  time.Now(),
	})
	q.mu.Unlock()

	if err == nil {
		j.future.resolve(result, nil)
		q.publish(event.NewJobEvent(event.TypeJobCompleted, j.id, j.sessionID, int(j.priority), j.attempt, nil))
	} else {
		j.future.resolve(nil, err)
		q.publish(event.NewJobEvent(event.TypeJobFailed, j.id, j.sessionID, int(j.priority), j.attempt, err))
	}
}

// Pause stops dispatching new jobs. Running jobs finish normally.
func (q *Queue) Pause() {
	q.mu.Lock()
	already := q.paused || q.destroyed
	q.paused = true
	q.mu.Unlock()
	if !already {
		q.publish(event.NewQueueEvent(event.TypeQueuePaused, 0))
	}
}

// Resume restarts dispatch after Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	wasPaused := q.paused && !q.destroyed
	q.paused = false
	q.cond.Broadcast()
	q.mu.Unlock()
	if wasPaused {
		q.publish(event.NewQueueEvent(event.TypeQueueResumed, 0))
	}
}

// Clear drops every pending job, resolving their futures with
// ErrJobCleared. Running jobs are unaffected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, j := range dropped {
		j.future.resolve(nil, ErrJobCleared)
	}
	if len(dropped) > 0 {
		q.publish(event.NewQueueEvent(event.TypeQueueCleared, len(dropped)))
	}
	return len(dropped)
}

// Destroy rejects all pending jobs, refuses new submissions, and waits
// for running jobs to finish. Safe to call more than once.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true
	dropped := q.pending
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, j := range dropped {
		j.future.resolve(nil, errors.ErrQueueDestroyed)
	}
	q.wg.Wait()
	q.publish(event.NewQueueEvent(event.TypeQueueDestroyed, len(dropped)))
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running returns the number of jobs currently executing.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *Queue) publish(e event.Event) {
	if q.bus != nil {
		q.bus.Publish(e)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
