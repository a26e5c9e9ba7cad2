package writeback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

const (
	defaultQueueSize = 256

	dropQueueFull   = "queue_full"
	dropClosed      = "closed"
	dropMaxAttempts = "max_attempts"
	dropRejected    = "rejected"
	dropShutdown    = "shutdown"
)

var errUnknownKind = errors.New("unknown write-back job kind")

// AppliedFunc is called after a job reached the spreadsheet.
type AppliedFunc func(ctx context.Context, job Job)

// QueueParams configure the write-back queue.
type QueueParams struct {
	Logger    *logger.Logger
	Gateway   sheets.Gateway
	Gate      *sheets.Gate
	Auth      sheets.Reauthenticator
	Metrics   *metrics.WriteBackMetrics
	Size      int
	Retry     sheets.RetryPolicy
	OnApplied AppliedFunc
}

// Queue is an in-memory FIFO of spreadsheet mutations drained by a single
// consumer. The ledger is written before a job is enqueued, so a dropped job
// only delays the sheet.
type Queue struct {
	logg    *logger.Logger
	gateway sheets.Gateway
	gate    *sheets.Gate
	auth    sheets.Reauthenticator
	metrics *metrics.WriteBackMetrics
	retry   sheets.RetryPolicy

	jobs chan Job
	done chan struct{}

	mu        sync.RWMutex
	closed    bool
	onApplied AppliedFunc
	abort     context.CancelFunc
}

// NewQueue builds a queue; call Run to start consuming.
func NewQueue(params QueueParams) (*Queue, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("sheets gateway is required")
	}
	if params.Gate == nil {
		return nil, errors.New("sheets gate is required")
	}
	size := params.Size
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		logg:      params.Logger,
		gateway:   params.Gateway,
		gate:      params.Gate,
		auth:      params.Auth,
		metrics:   params.Metrics,
		retry:     params.Retry,
		jobs:      make(chan Job, size),
		done:      make(chan struct{}),
		onApplied: params.OnApplied,
	}, nil
}

// OnApplied registers the post-apply callback. It must be set before Run.
func (q *Queue) OnApplied(fn AppliedFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onApplied = fn
}

// Enqueue submits a job without blocking. It returns false when the job was
// dropped because the queue is full or no longer accepting work.
func (q *Queue) Enqueue(ctx context.Context, job Job) bool {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(ctx, job, dropClosed, nil)
		return false
	}

	select {
	case q.jobs <- job:
		q.metrics.IncEnqueued(job.Kind.String())
		q.metrics.SetDepth(len(q.jobs))
		return true
	default:
		q.drop(ctx, job, dropQueueFull, nil)
		return false
	}
}

// Len reports the number of jobs waiting.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Run consumes jobs in submission order until the queue is closed and empty.
// Canceling ctx closes intake; jobs already queued are still applied.
func (q *Queue) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer close(q.done)

	applyCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()
	q.mu.Lock()
	q.abort = abort
	onApplied := q.onApplied
	q.mu.Unlock()

	stop := context.AfterFunc(ctx, q.closeIntake)
	defer stop()

	q.logg.Info(ctx, "write-back queue started")
	for job := range q.jobs {
		q.metrics.SetDepth(len(q.jobs))
		q.process(applyCtx, job, onApplied)
	}
	q.logg.Info(ctx, "write-back queue drained")
	return nil
}

// Shutdown stops intake and waits for queued jobs to be applied. If ctx ends
// first the in-flight job is aborted and the remaining jobs are dropped.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.closeIntake()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.mu.RLock()
		abort := q.abort
		q.mu.RUnlock()
		if abort != nil {
			abort()
		}
		return fmt.Errorf("write-back drain interrupted: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) closeIntake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}

func (q *Queue) process(ctx context.Context, job Job, onApplied AppliedFunc) {
	defer func() {
		if r := recover(); r != nil {
			q.drop(ctx, job, dropRejected, fmt.Errorf("panic applying job: %v", r))
		}
	}()

	if ctx.Err() != nil {
		q.drop(ctx, job, dropShutdown, ctx.Err())
		return
	}

	start := time.Now()
	err := sheets.Do(ctx, q.retry, q.auth, func(ctx context.Context) error {
		return q.gate.Do(ctx, func(ctx context.Context) error {
			return q.apply(ctx, job)
		})
	})
	q.metrics.ObserveApply(job.Kind.String(), time.Since(start))

	if err != nil {
		reason := dropRejected
		switch {
		case ctx.Err() != nil:
			reason = dropShutdown
		case sheets.IsAuthError(err), sheets.IsTransient(err):
			reason = dropMaxAttempts
		}
		q.drop(ctx, job, reason, err)
		return
	}

	q.metrics.IncApplied(job.Kind.String())
	if onApplied != nil {
		onApplied(ctx, job)
	}
}

func (q *Queue) apply(ctx context.Context, job Job) error {
	switch job.Kind {
	case enums.WriteBackJobUpdateQuantity:
		return q.gateway.WriteCell(ctx, job.Cell, job.Quantity)
	case enums.WriteBackJobAppendRow:
		return q.gateway.AppendRow(ctx, job.Sheet, job.Values)
	default:
		return fmt.Errorf("%w: %q", errUnknownKind, job.Kind)
	}
}

func (q *Queue) drop(ctx context.Context, job Job, reason string, err error) {
	q.metrics.IncDropped(job.Kind.String(), reason)
	fields := job.fields()
	fields["drop_reason"] = reason
	ctx = q.logg.WithFields(ctx, fields)
	if err != nil {
		ctx = q.logg.WithField(ctx, "error", err.Error())
	}
	q.logg.Warn(ctx, "write-back job dropped")
}
