package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/taskbridge/taskbridge/internal/config"
	"github.com/taskbridge/taskbridge/internal/googletasks"
	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/notion"
	"github.com/taskbridge/taskbridge/internal/sync"
	"github.com/taskbridge/taskbridge/internal/user"
	userrepo "github.com/taskbridge/taskbridge/internal/user/repositoryimpl"
	"github.com/taskbridge/taskbridge/pkg/storage"
)

var (
	app = kingpin.New("taskbridge", "Bidirectional sync between Notion databases and Google Tasks")

	syncCmd   = app.Command("sync", "Run one sync cycle for a user")
	syncEmail = syncCmd.Arg("email", "User email").Required().String()

	validateCmd   = app.Command("validate", "Check a user's Notion database schema")
	validateEmail = validateCmd.Arg("email", "User email").Required().String()

	usersCmd = app.Command("users", "List registered users and their sync state")

	pruneCmd   = app.Command("prune", "Prune expired completed pairs from a user's mapping")
	pruneEmail = pruneCmd.Arg("email", "User email").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fatalf("failed to load env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			fatalf("failed to create S3 storage: %v", err)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			fatalf("failed to create local storage: %v", err)
		}
	}
	repo := userrepo.NewYAMLRepository(store)

	switch command {
	case syncCmd.FullCommand():
		handleSync(ctx, env, repo, *syncEmail)
	case validateCmd.FullCommand():
		handleValidate(ctx, env, repo, *validateEmail)
	case usersCmd.FullCommand():
		handleUsers(ctx, repo)
	case pruneCmd.FullCommand():
		handlePrune(ctx, env, repo, *pruneEmail)
	}
}

func handleSync(ctx context.Context, env *config.Env, repo user.Repository, email string) {
	engine := sync.NewEngine(
		repo,
		func(ctx context.Context, refreshToken string) (sync.GoogleAPI, error) {
			return googletasks.NewClient(ctx, env.GoogleEnv.ClientID, env.GoogleEnv.ClientSecret, refreshToken, env.SyncEnv.GooglePageSize)
		},
		func(accessToken string) sync.NotionAPI {
			return notion.NewClient(accessToken, env.SyncEnv.NotionPageSize)
		},
		env.SyncEnv.RetentionDays,
	)

	stats, err := engine.SyncUser(ctx, email)
	if err != nil {
		fatalf("sync failed: %v", err)
	}
	color.Green("sync finished for %s", email)
	fmt.Printf("  google: %d created, %d updated, %d completed\n", stats.GoogleCreated, stats.GoogleUpdated, stats.GoogleCompleted)
	fmt.Printf("  notion: %d created, %d updated, %d archived\n", stats.NotionCreated, stats.NotionUpdated, stats.NotionArchived)
	if stats.TaskErrors > 0 {
		color.Yellow("  %d task(s) failed, see logs", stats.TaskErrors)
	}
}

func handleValidate(ctx context.Context, env *config.Env, repo user.Repository, email string) {
	u, err := repo.Get(ctx, email)
	if err != nil {
		fatalf("failed to load user: %v", err)
	}
	client := notion.NewClient(u.NotionAccessToken, env.SyncEnv.NotionPageSize)
	if err := client.EnsureSchema(ctx, u.DatabaseID); err != nil {
		fatalf("schema check failed: %v", err)
	}
	color.Green("database schema for %s is valid", email)
}

func handleUsers(ctx context.Context, repo user.Repository) {
	users, err := repo.List(ctx)
	if err != nil {
		fatalf("failed to list users: %v", err)
	}
	for _, u := range users {
		lastSynced := "never"
		if u.LastSynced != nil {
			lastSynced = u.LastSynced.Format(time.RFC3339)
		}
		fmt.Printf("%s  pairs=%d  last_synced=%s", u.Email, len(u.Mapping), lastSynced)
		if u.SyncError != nil {
			color.Red("  failing (%d consecutive): %s", u.SyncError.Num, u.SyncError.Message)
		} else {
			fmt.Println()
		}
	}
}

func handlePrune(ctx context.Context, env *config.Env, repo user.Repository, email string) {
	u, err := repo.Get(ctx, email)
	if err != nil {
		fatalf("failed to load user: %v", err)
	}
	pruned := mapping.Prune(u.Mapping, time.Now(), env.SyncEnv.RetentionDays)
	removed := len(u.Mapping) - len(pruned)
	if removed == 0 {
		fmt.Println("nothing to prune")
		return
	}
	if err := repo.SaveMapping(ctx, email, pruned); err != nil {
		fatalf("failed to save mapping: %v", err)
	}
	color.Green("pruned %d expired pair(s), %d remain", removed, len(pruned))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
