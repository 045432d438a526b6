package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskbridge/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskbridge/"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
}

type GoogleEnv struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID" required:"true"`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" required:"true"`
}

type MailEnv struct {
	MailjetAPIKey    string `envconfig:"MAILJET_API_KEY"`
	MailjetSecretKey string `envconfig:"MAILJET_SECRET_KEY"`
	TemplateID       int    `envconfig:"MAILJET_TEMPLATE_ID"`
	FromEmail        string `envconfig:"MAIL_FROM_EMAIL"`
	FromName         string `envconfig:"MAIL_FROM_NAME"`
}

// SyncEnv carries every tunable of the sync engine so nothing hides in
// module-level constants.
type SyncEnv struct {
	// Scheduling.
	ScheduleInterval time.Duration `envconfig:"SCHEDULE_INTERVAL" default:"1m"`
	MinSyncAge       time.Duration `envconfig:"MIN_SYNC_AGE" default:"5m"`
	DispatchBatch    int           `envconfig:"DISPATCH_BATCH" default:"100"`
	Workers          int           `envconfig:"WORKERS" default:"8"`

	// Fetch limits. Both APIs are read one page at a time.
	GooglePageSize int64 `envconfig:"GOOGLE_PAGE_SIZE" default:"100"`
	NotionPageSize int   `envconfig:"NOTION_PAGE_SIZE" default:"100"`

	// Mapping retention.
	RetentionDays int `envconfig:"RETENTION_DAYS" default:"7"`

	// Failure backoff.
	RetryBase   time.Duration `envconfig:"RETRY_BASE" default:"5m"`
	RetryCap    time.Duration `envconfig:"RETRY_CAP" default:"24h"`
	MaxFailures int           `envconfig:"MAX_FAILURES" default:"20"`

	// Notification.
	NotifyAfter    int           `envconfig:"NOTIFY_AFTER" default:"6"`
	NotifyInterval time.Duration `envconfig:"NOTIFY_INTERVAL" default:"1h"`
}

type Env struct {
	BaseEnv
	StorageEnv
	GoogleEnv
	MailEnv
	SyncEnv
}

const namespace = "TASKBRIDGE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
