package queue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vintasoftware/vintasend-go/pkg/logger"
)

// Dispatcher hands a dequeued notification id to the dispatch pipeline.
// *notifications.Pipeline satisfies it through DelayedSend.
type Dispatcher interface {
	DelayedSend(ctx context.Context, id uuid.UUID) error
}

// Dequeuer is the consuming side of a notification queue.
type Dequeuer interface {
	Dequeue(ctx context.Context) (uuid.UUID, error)
}

// Worker consumes notification ids from a queue and dispatches each through
// the pipeline. Dispatch failures are logged and never stop the loop; the
// pipeline's own status handling records the failure on the notification.
type Worker struct {
	queue       Dequeuer
	dispatcher  Dispatcher
	logger      *slog.Logger
	concurrency int
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithConcurrency caps in-flight dispatches. Defaults to 1, sequential.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// NewWorker creates a worker over the given queue and dispatcher.
func NewWorker(queue Dequeuer, dispatcher Dispatcher, opts ...WorkerOption) (*Worker, error) {
	if queue == nil {
		return nil, ErrDequeuerNil
	}
	if dispatcher == nil {
		return nil, ErrDispatcherNil
	}

	w := &Worker{
		queue:       queue,
		dispatcher:  dispatcher,
		logger:      slog.Default(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run consumes until ctx is cancelled or the queue closes. It returns nil on
// clean shutdown.
func (w *Worker) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)

	for {
		id, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) {
				if ctx.Err() != nil {
					break
				}
				continue
			}
			if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			w.logger.LogAttrs(ctx, slog.LevelError, "queue dequeue failed", logger.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		g.Go(func() error {
			if err := w.dispatcher.DelayedSend(ctx, id); err != nil {
				w.logger.LogAttrs(ctx, slog.LevelError, "queued notification dispatch failed",
					logger.NotificationID(id),
					logger.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
	return nil
}
