package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskbridge/taskbridge/internal/queue"
	"github.com/taskbridge/taskbridge/internal/user"
)

// Scheduler periodically selects users due for a sync and dispatches them to
// the queue in batches.
type Scheduler struct {
	users    user.Repository
	queue    *queue.Queue
	interval time.Duration
	// minAge keeps freshly synced users out of the next tick.
	minAge      time.Duration
	batch       int
	maxFailures int
	now         func() time.Time
}

func New(users user.Repository, q *queue.Queue, interval, minAge time.Duration, batch, maxFailures int) *Scheduler {
	return &Scheduler{
		users:       users,
		queue:       q,
		interval:    interval,
		minAge:      minAge,
		batch:       batch,
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

// Start ticks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	users, err := s.users.List(ctx)
	if err != nil {
		slog.Error("scheduler: failed to list users", "error", err)
		return
	}

	now := s.now()
	dispatched := 0
	for _, u := range users {
		if !s.Eligible(u, now) {
			continue
		}
		if dispatched >= s.batch {
			// The rest waits for the next tick.
			break
		}
		if err := s.queue.Publish(ctx, u.Email); err != nil {
			slog.Error("scheduler: failed to enqueue user", "email", u.Email, "error", err)
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		slog.Info("scheduler dispatched users", "count", dispatched)
	}
}

// Eligible gates which users are picked up on a tick. A user without a
// watermark never finished onboarding. A failing user waits for the backoff
// to elapse and is abandoned entirely past the failure cap.
func (s *Scheduler) Eligible(u *user.SyncRecord, now time.Time) bool {
	if u.LastSynced == nil {
		return false
	}
	if now.Sub(*u.LastSynced) < s.minAge {
		return false
	}
	if u.SyncError != nil {
		if u.SyncError.Num >= s.maxFailures {
			return false
		}
		if u.SyncError.NextRetry.After(now) {
			return false
		}
	}
	return true
}
