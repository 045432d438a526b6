package repositoryimpl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/user"
	"github.com/taskbridge/taskbridge/pkg/cerr"
	"github.com/taskbridge/taskbridge/pkg/storage"
)

const usersPrefix = "users"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(email string) string {
	return fmt.Sprintf("%s/%s.yaml", usersPrefix, email)
}

func (r *YAMLRepository) Create(ctx context.Context, u *user.SyncRecord) error {
	exists, err := r.storage.Exists(ctx, path(u.Email))
	if err != nil {
		return cerr.WrapStorageWriteError("user", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "user already exists", nil)
	}
	return r.save(ctx, u)
}

func (r *YAMLRepository) Get(ctx context.Context, email string) (*user.SyncRecord, error) {
	data, err := r.storage.Read(ctx, path(email))
	if err != nil {
		return nil, cerr.WrapStorageReadError("user", err)
	}
	var u user.SyncRecord
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal user: %w", err))
	}
	return &u, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*user.SyncRecord, error) {
	paths, err := r.storage.List(ctx, usersPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("users", err)
	}

	// Sort by filename for consistent ordering.
	sort.Strings(paths)

	users := make([]*user.SyncRecord, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var u user.SyncRecord
		if err := yaml.Unmarshal(data, &u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, nil
}

func (r *YAMLRepository) SaveMapping(ctx context.Context, email string, m mapping.Mapping) error {
	u, err := r.Get(ctx, email)
	if err != nil {
		return err
	}
	u.Mapping = m
	return r.save(ctx, u)
}

func (r *YAMLRepository) SaveWatermark(ctx context.Context, email string, t time.Time) error {
	u, err := r.Get(ctx, email)
	if err != nil {
		return err
	}
	u.LastSynced = &t
	return r.save(ctx, u)
}

func (r *YAMLRepository) SaveSyncError(ctx context.Context, email string, e *user.SyncError) error {
	u, err := r.Get(ctx, email)
	if err != nil {
		return err
	}
	u.SyncError = e
	return r.save(ctx, u)
}

func (r *YAMLRepository) MarkNotified(ctx context.Context, email string) error {
	u, err := r.Get(ctx, email)
	if err != nil {
		return err
	}
	if u.SyncError == nil {
		return cerr.NewError(cerr.FailedPrecondition, "user has no sync error", nil)
	}
	u.SyncError.SentEmail = true
	return r.save(ctx, u)
}

func (r *YAMLRepository) save(ctx context.Context, u *user.SyncRecord) error {
	u.UpdatedAt = time.Now()
	data, err := yaml.Marshal(u)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal user: %w", err))
	}
	if err := r.storage.Write(ctx, path(u.Email), data); err != nil {
		return cerr.WrapStorageWriteError("user", err)
	}
	return nil
}
