// Package async runs extraction sessions on a bounded worker pool so the
// HTTP tier can accept uploads without blocking on parsing and extraction.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has begun. The caller
// owns the session row and must record the drop; the job will never run.
var ErrQueueClosed = errors.New("queue is shut down")

// Job is one queued extraction session. The document bytes ride along so
// the upload handler can drop its references immediately.
type Job struct {
	SessionID string
	FileName  string
	Data      []byte
}

// Handler processes one job. Errors are the handler's to record; the queue
// only logs them.
type Handler func(ctx context.Context, job Job) error

type Queue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(handler Handler, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.handler(ctx, job)
					cancel()

					if err != nil {
						q.logger.Error("async.job.failed",
							"worker_id", workerID,
							"session_id", job.SessionID,
							"file", job.FileName,
							"error", err)
					} else {
						q.logger.Info("async.job.done",
							"worker_id", workerID,
							"session_id", job.SessionID,
							"file", job.FileName)
					}
				}

				q.logger.Info("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a job, blocking for backpressure when the buffer is full.
// After Shutdown it returns ErrQueueClosed and the job is dropped.
func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("async.enqueue.rejected", "session_id", job.SessionID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("async.enqueue.ok", "session_id", job.SessionID, "file", job.FileName)
	default:
		q.logger.Warn("async.enqueue.backpressure", "session_id", job.SessionID)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake and drains in-flight jobs, bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
