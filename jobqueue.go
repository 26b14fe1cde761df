package scriptcore

import (
	"log/slog"
	"sync"
)

// JobQueue is a multi-producer, single-consumer FIFO of zero-argument
// thunks. Enqueue is thread-safe and non-blocking; Drain runs on the
// calling (host) thread only. There are no delayed or scheduled jobs —
// every job runs on the next drain that reaches it within its budget, in
// FIFO order.
type JobQueue struct {
	cfg JobQueueConfig
	log *slog.Logger

	mu    sync.Mutex
	jobs  []func() error
	m     *Metrics
}

// NewJobQueue constructs an empty JobQueue.
func NewJobQueue(cfg JobQueueConfig, log *slog.Logger, m *Metrics) *JobQueue {
	if log == nil {
		log = NewLogger()
	}
	return &JobQueue{cfg: cfg, log: log, m: m}
}

// Enqueue appends a thunk to the queue. Safe to call from any goroutine.
func (q *JobQueue) Enqueue(fn func() error) {
	q.mu.Lock()
	q.jobs = append(q.jobs, fn)
	q.mu.Unlock()
}

// Len reports the number of jobs currently queued.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Drain runs up to budget jobs in FIFO order on the calling thread and
// returns the number executed. A budget of 0 or less drains every queued
// job. A job that returns an error is logged and skipped — it never stops
// the drain.
func (q *JobQueue) Drain(budget int) int {
	batch := q.takeBatch(budget)

	for _, job := range batch {
		if err := runJob(job); err != nil {
			q.log.Error("job failed", "error", err)
		}
	}

	if q.m != nil {
		q.m.recordDrain(len(batch))
	}
	return len(batch)
}

func (q *JobQueue) takeBatch(budget int) []func() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.jobs)
	if budget > 0 && budget < n {
		n = budget
	}
	batch := q.jobs[:n]
	q.jobs = q.jobs[n:]
	return batch
}

// runJob invokes a single job, converting a panic into an error so one
// broken job never aborts the drain loop.
func runJob(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ScriptCallError{Phase: "job", Err: errFromPanic(p)}
		}
	}()
	return fn()
}
