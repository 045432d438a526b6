package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskbridge/taskbridge/internal/user"
)

// FailureSender is what the notifier needs from the mail layer.
type FailureSender interface {
	SendFailureNotice(email, failureMessage string) error
}

// Notifier periodically emails users whose sync has been failing long enough
// that waiting it out stopped being an option.
type Notifier struct {
	users       user.Repository
	sender      FailureSender
	interval    time.Duration
	notifyAfter int
}

func NewNotifier(users user.Repository, sender FailureSender, interval time.Duration, notifyAfter int) *Notifier {
	return &Notifier{
		users:       users,
		sender:      sender,
		interval:    interval,
		notifyAfter: notifyAfter,
	}
}

// Start ticks until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	slog.Info("failure notifier started", "interval", n.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("failure notifier stopped")
			return
		case <-ticker.C:
			n.Sweep(ctx)
		}
	}
}

// Sweep notifies every user past the failure threshold exactly once per
// failure streak. The latch is set before the send: a crash in between costs
// one email, a crash the other way around would spam the user every tick.
func (n *Notifier) Sweep(ctx context.Context) {
	users, err := n.users.List(ctx)
	if err != nil {
		slog.Error("notifier: failed to list users", "error", err)
		return
	}

	for _, u := range users {
		if u.SyncError == nil || u.SyncError.SentEmail || u.SyncError.Num < n.notifyAfter {
			continue
		}
		if err := n.users.MarkNotified(ctx, u.Email); err != nil {
			slog.Error("notifier: failed to set notification latch", "email", u.Email, "error", err)
			continue
		}
		if err := n.sender.SendFailureNotice(u.Email, u.SyncError.Message); err != nil {
			slog.Error("notifier: failed to send failure notice", "email", u.Email, "error", err)
			continue
		}
		slog.Info("notifier: failure notice sent", "email", u.Email, "failures", u.SyncError.Num)
	}
}
