package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskbridge/taskbridge/internal/queue"
	"github.com/taskbridge/taskbridge/internal/sync"
	"github.com/taskbridge/taskbridge/internal/user"
	"github.com/taskbridge/taskbridge/pkg/clog"
	"github.com/taskbridge/taskbridge/pkg/panicerr"
)

// CycleRunner runs one sync cycle for one user.
type CycleRunner interface {
	SyncUser(ctx context.Context, email string) (sync.Stats, error)
}

// Worker consumes sync jobs and maintains each user's failure state. A cycle
// error never bounces the message; the scheduler's backoff gate owns retries.
type Worker struct {
	engine    CycleRunner
	users     user.Repository
	queue     *queue.Queue
	workers   int
	retryBase time.Duration
	retryCap  time.Duration
	now       func() time.Time
}

func New(engine CycleRunner, users user.Repository, q *queue.Queue, workers int, retryBase, retryCap time.Duration) *Worker {
	return &Worker{
		engine:    engine,
		users:     users,
		queue:     q,
		workers:   workers,
		retryBase: retryBase,
		retryCap:  retryCap,
		now:       time.Now,
	}
}

// Start blocks consuming jobs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	slog.Info("worker pool started", "workers", w.workers)
	return w.queue.Consume(ctx, w.workers, w.Run)
}

// Run processes one job. A panic inside a cycle is converted into a cycle
// error so one bad user cannot take the pool down.
func (w *Worker) Run(ctx context.Context, email string) {
	ctx = clog.ContextWithSlog(ctx)

	err := panicerr.SafeContext(func(ctx context.Context) error {
		_, err := w.engine.SyncUser(ctx, email)
		return err
	})(ctx)
	if err != nil {
		clog.AddError(ctx, err)
		slog.ErrorContext(ctx, "sync cycle failed", "email", email)
		w.recordFailure(ctx, email, err)
		return
	}
	w.clearFailure(ctx, email)
}

// recordFailure escalates the user's sync error: the consecutive failure
// count grows and the next retry backs off exponentially up to the cap.
func (w *Worker) recordFailure(ctx context.Context, email string, cycleErr error) {
	u, err := w.users.Get(ctx, email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load user for failure state", "email", email, "error", err)
		return
	}

	num := 1
	sentEmail := false
	if u.SyncError != nil {
		num = u.SyncError.Num + 1
		sentEmail = u.SyncError.SentEmail
	}
	syncErr := &user.SyncError{
		Message:   cycleErr.Error(),
		Num:       num,
		NextRetry: w.now().Add(w.Backoff(num)),
		SentEmail: sentEmail,
	}
	if err := w.users.SaveSyncError(ctx, email, syncErr); err != nil {
		slog.ErrorContext(ctx, "failed to save sync error", "email", email, "error", err)
	}
}

func (w *Worker) clearFailure(ctx context.Context, email string) {
	u, err := w.users.Get(ctx, email)
	if err != nil || u.SyncError == nil {
		return
	}
	if err := w.users.SaveSyncError(ctx, email, nil); err != nil {
		slog.ErrorContext(ctx, "failed to clear sync error", "email", email, "error", err)
	}
}

// Backoff returns the delay before retry number num+1.
func (w *Worker) Backoff(num int) time.Duration {
	d := w.retryBase
	for i := 1; i < num; i++ {
		d *= 2
		if d >= w.retryCap {
			return w.retryCap
		}
	}
	if d > w.retryCap {
		return w.retryCap
	}
	return d
}
