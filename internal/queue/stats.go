package queue

import "time"

// statsWindow is how many recent job records the queue retains.
const statsWindow = 100

// record is one finished job's accounting entry. Wait spans enqueue to
// final dispatch; Duration covers the final attempt's execution.
type record struct {
	JobID     string
	SessionID string
	Priority  Priority
	Attempts  int
	Wait      time.Duration
	Duration  time.Duration
	Failed    bool
	Err       string
	Finished  time.Time
}

// stats accumulates queue counters plus a ring of recent records.
// Guarded by the queue mutex.
type stats struct {
	queued    int
	completed int
	failed    int

	ring [statsWindow]record
	next int
	size int
}

func (s *stats) record(r record) {
	s.ring[s.next] = r
	s.next = (s.next + 1) % statsWindow
	if s.size < statsWindow {
		s.size++
	}
}

// recent returns the retained records, oldest first.
func (s *stats) recent() []record {
	out := make([]record, 0, s.size)
	start := s.next - s.size
	if start < 0 {
		start += statsWindow
	}
	for i := 0; i < s.size; i++ {
		out = append(out, s.ring[(start+i)%statsWindow])
	}
	return out
}

// Stats is a point-in-time summary of queue activity. Averages cover
// the recent-job window; Utilization is running workers as a percentage
// of MaxConcurrent.
type Stats struct {
	Pending     int
	Running     int
	Queued      int
	Completed   int
	Failed      int
	AvgWait     time.Duration
	AvgDuration time.Duration
	Utilization int
	Recent      []Record
}

// Record is the exported form of one finished job's accounting entry.
type Record struct {
	JobID     string
	SessionID string
	Priority  Priority
	Attempts  int
	Wait      time.Duration
	Duration  time.Duration
	Failed    bool
	Err       string
	Finished  time.Time
}

// Stats returns a snapshot of counters and the recent-job window.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	recent := q.stats.recent()
	out := Stats{
		Pending:     len(q.pending),
		Running:     q.running,
		Queued:      q.stats.queued,
		Completed:   q.stats.completed,
		Failed:      q.stats.failed,
		Utilization: q.running * 100 / q.opts.MaxConcurrent,
		Recent:      make([]Record, len(recent)),
	}

	var totalWait, totalDuration time.Duration
	for i, r := range recent {
		out.Recent[i] = Record(r)
		totalWait += r.Wait
		totalDuration += r.Duration
	}
	if len(recent) > 0 {
		out.AvgWait = totalWait / time.Duration(len(recent))
		out.AvgDuration = totalDuration / time.Duration(len(recent))
	}
	return out
}
