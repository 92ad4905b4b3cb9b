package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
)

type Config struct {
	Workers int
	Size    int
	// Timeout bounds one job; zero means no limit.
	Timeout time.Duration
}

// ConfigFrom maps the application queue settings.
func ConfigFrom(c common.QueueConfig) Config {
	return Config{Workers: c.Workers, Size: c.Size, Timeout: c.Timeout}
}

// WorkerQueue is a bounded channel drained by a fixed set of workers.
type WorkerQueue struct {
	jobs    chan Job
	handler Handler
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*WorkerQueue)

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *WorkerQueue) { q.metrics = m }
}

// NewWorkerQueue starts cfg.Workers goroutines running handler.
func NewWorkerQueue(cfg Config, handler Handler, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size < 0 {
		cfg.Size = 0
	}
	q := &WorkerQueue{
		jobs:    make(chan Job, cfg.Size),
		handler: handler,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	for _, o := range opts {
		o(q)
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	logger.Info("queue.started", "workers", cfg.Workers, "size", cfg.Size)
	return q
}

// Enqueue blocks until the job is accepted, ctx ends, or the queue is shut down.
func (q *WorkerQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	if job.TraceID == "" {
		job.TraceID = common.RequestIDFromContext(ctx)
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}
	select {
	case q.jobs <- job:
		q.metrics.IncrementJobsInQueue()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.logger.Info("queue.drained")
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.timeout", "err", ctx.Err())
	}
}

func (q *WorkerQueue) work(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.metrics.DecrementJobsInQueue()
		q.metrics.IncrementActiveWorkers()
		q.run(id, job)
		q.metrics.DecrementActiveWorkers()
	}
}

func (q *WorkerQueue) run(id int, job Job) {
	ctx := common.WithRequestID(context.Background(), job.TraceID)
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue.job.panic", "worker", id, "path", job.Path, "panic", r)
		}
	}()

	start := time.Now()
	if err := q.handler(ctx, job); err != nil {
		q.logger.Error("queue.job.failed", "worker", id, "path", job.Path, "trace_id", job.TraceID, "err", err)
		return
	}
	q.logger.Debug("queue.job.ok",
		"worker", id,
		"path", job.Path,
		"trace_id", job.TraceID,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
