package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/taskbridge/taskbridge/internal"
	"github.com/taskbridge/taskbridge/internal/config"
	"github.com/taskbridge/taskbridge/internal/googletasks"
	"github.com/taskbridge/taskbridge/internal/notify"
	"github.com/taskbridge/taskbridge/internal/notion"
	"github.com/taskbridge/taskbridge/internal/queue"
	"github.com/taskbridge/taskbridge/internal/scheduler"
	"github.com/taskbridge/taskbridge/internal/sync"
	userrepo "github.com/taskbridge/taskbridge/internal/user/repositoryimpl"
	"github.com/taskbridge/taskbridge/internal/worker"
	"github.com/taskbridge/taskbridge/pkg/clog"
	"github.com/taskbridge/taskbridge/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	userRepo := userrepo.NewYAMLRepository(store)

	googleFactory := func(ctx context.Context, refreshToken string) (sync.GoogleAPI, error) {
		return googletasks.NewClient(ctx, env.GoogleEnv.ClientID, env.GoogleEnv.ClientSecret, refreshToken, env.SyncEnv.GooglePageSize)
	}
	notionFactory := func(accessToken string) sync.NotionAPI {
		return notion.NewClient(accessToken, env.SyncEnv.NotionPageSize)
	}
	engine := sync.NewEngine(userRepo, googleFactory, notionFactory, env.SyncEnv.RetentionDays)

	q := queue.New()
	defer q.Close()

	sched := scheduler.New(userRepo, q, env.SyncEnv.ScheduleInterval, env.SyncEnv.MinSyncAge, env.SyncEnv.DispatchBatch, env.SyncEnv.MaxFailures)
	pool := worker.New(engine, userRepo, q, env.SyncEnv.Workers, env.SyncEnv.RetryBase, env.SyncEnv.RetryCap)
	notifier := notify.NewNotifier(userRepo, notify.NewSender(&env.MailEnv), env.SyncEnv.NotifyInterval, env.SyncEnv.NotifyAfter)

	srv := server.NewServer(env, engine, userRepo, notionFactory)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go sched.Start(ctx)
	go notifier.Start(ctx)
	go func() {
		if err := pool.Start(ctx); err != nil {
			slog.Error("worker pool error", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give in-flight cycles and requests time to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
