package user

import (
	"time"

	"github.com/taskbridge/taskbridge/internal/mapping"
)

// SyncRecord is the full per-user sync state. LastSynced doubles as the
// change watermark for the next cycle; nil means onboarding never finished
// and the scheduler skips the user.
type SyncRecord struct {
	Email              string          `yaml:"email"`
	GoogleRefreshToken string          `yaml:"google_refresh_token"`
	NotionAccessToken  string          `yaml:"notion_access_token"`
	TasklistID         string          `yaml:"tasklist_id"`
	DatabaseID         string          `yaml:"database_id"`
	Mapping            mapping.Mapping `yaml:"mapping"`
	LastSynced         *time.Time      `yaml:"last_synced,omitempty"`
	SyncError          *SyncError      `yaml:"sync_error,omitempty"`
	CreatedAt          time.Time       `yaml:"created_at"`
	UpdatedAt          time.Time       `yaml:"updated_at"`
}

// SyncError tracks consecutive cycle failures for backoff and notification.
type SyncError struct {
	Message   string    `yaml:"message"`
	Num       int       `yaml:"num"`
	NextRetry time.Time `yaml:"next_retry"`
	SentEmail bool      `yaml:"sent_email"`
}
