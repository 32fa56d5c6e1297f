package repository

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/repository/file_repository"
	"github.com/mohammad-safakhou/scholar/repository/redis_repository"
)

// SnapshotRepository keeps session snapshots outside the process.
type SnapshotRepository interface {
	Save(ctx context.Context, snap models.Snapshot) error
	// Load reports found=false when no snapshot exists for id.
	Load(ctx context.Context, id string) (snap models.Snapshot, found bool, err error)
	Delete(ctx context.Context, id string) error
}

type RepoType string

const (
	RepoTypeNone  RepoType = "none"
	RepoTypeFile  RepoType = "file"
	RepoTypeRedis RepoType = "redis"
)

// NewSnapshotRepository opens the configured backend. For "none" it returns a
// nil repository. The returned closer releases connections.
func NewSnapshotRepository(ctx context.Context, cfg config.StorageConfig) (SnapshotRepository, func() error, error) {
	noop := func() error { return nil }
	switch RepoType(cfg.Backend) {
	case RepoTypeNone, "":
		return nil, noop, nil
	case RepoTypeFile:
		repo, err := file_repository.New(cfg.File.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return repo, noop, nil
	case RepoTypeRedis:
		r := cfg.Redis
		c, err := redis_repository.Conn(ctx, r.Host, r.Port, r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("redis connection failed (%s:%s): %w", r.Host, r.Port, err)
		}
		return redis_repository.NewSnapshotRepository(c, r.KeyPrefix, r.TTL), c.Close, nil
	}
	return nil, noop, fmt.Errorf("invalid repository type: %s", cfg.Backend)
}
