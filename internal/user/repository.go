package user

import (
	"context"
	"time"

	"github.com/taskbridge/taskbridge/internal/mapping"
)

type Repository interface {
	Create(ctx context.Context, u *SyncRecord) error
	Get(ctx context.Context, email string) (*SyncRecord, error)
	List(ctx context.Context) ([]*SyncRecord, error)
	// SaveMapping persists an intermediate mapping without touching the
	// watermark, so a crash between the two directions loses no pairs.
	SaveMapping(ctx context.Context, email string, m mapping.Mapping) error
	// SaveWatermark stores the cycle start time as the new LastSynced.
	SaveWatermark(ctx context.Context, email string, t time.Time) error
	// SaveSyncError replaces the failure state; nil clears it.
	SaveSyncError(ctx context.Context, email string, e *SyncError) error
	// MarkNotified sets SentEmail on the current failure state.
	MarkNotified(ctx context.Context, email string) error
}
