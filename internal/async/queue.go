package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue closed")

// Job is one document waiting to be processed.
type Job struct {
	Path        string
	Force       bool // re-extract even if the content hash is already stored
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes one job. Errors are logged by the worker, not retried.
type Handler func(ctx context.Context, job Job) error
