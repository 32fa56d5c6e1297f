package session

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/repository"
	"github.com/mohammad-safakhou/scholar/session/inmemory"
	"github.com/mohammad-safakhou/scholar/session/session_object"
	"go.uber.org/zap"
)

// Store owns the lifecycle of research sessions. Every method except
// GetOrCreate fails with models.NotFoundError for an unknown id.
type Store interface {
	GetOrCreate(ctx context.Context, id string) (*session_object.Session, error)
	Get(ctx context.Context, id string) (*session_object.Session, error)
	// Lock serializes mutating operations on one session; call the returned
	// func to release it.
	Lock(ctx context.Context, id string) (func(), error)
	Apply(ctx context.Context, id string, fn func(w *session_object.Writer) error) error

	AppendMessage(ctx context.Context, id string, role models.Role, content string) (models.Message, error)
	UpsertPaper(ctx context.Context, id string, p models.Paper) (models.Paper, bool, error)
	AddCitations(ctx context.Context, id string, citations []models.Citation) error
	AddTopics(ctx context.Context, id string, topics []string) error
	AddFindings(ctx context.Context, id string, findings []models.Finding) error
	Clear(ctx context.Context, id string) error
	Snapshot(ctx context.Context, id string) (models.Snapshot, error)
	RelevantPapers(ctx context.Context, id, text string, k int) ([]models.Paper, error)

	Close()
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
)

// NewStore builds a session store from configuration. repo may be nil.
func NewStore(storeType StoreType, cfg config.SessionConfig, repo repository.SnapshotRepository, logger *zap.Logger, metrics *telemetry.Metrics) (Store, error) {
	switch storeType {
	case InMemoryStore, "":
		return inmemory.NewInMemorySessionStore(inmemory.Options{
			IdleTimeout:     cfg.IdleTimeout,
			CleanupInterval: cfg.CleanupInterval,
			Repository:      repo,
			Logger:          logger,
			Metrics:         metrics,
		}), nil
	}
	return nil, fmt.Errorf("unsupported store type: %s", storeType)
}

var _ Store = (*inmemory.Store)(nil)
