package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/repository"
	"github.com/mohammad-safakhou/scholar/session/session_object"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

// Options configures the in-memory store. Zero values disable the feature
// they govern: no expiry, no janitor, no persistence.
type Options struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	Repository      repository.SnapshotRepository
	Logger          *zap.Logger
	Metrics         *telemetry.Metrics
}

// Store is an arena of sessions keyed by id. Sessions idle for longer than
// IdleTimeout are evicted and their resources released.
type Store struct {
	sessions *cache.Cache
	ttl      time.Duration
	createMu sync.Mutex

	repo    repository.SnapshotRepository
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

func NewInMemorySessionStore(opts Options) *Store {
	ttl := opts.IdleTimeout
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{
		sessions: cache.New(ttl, opts.CleanupInterval),
		ttl:      ttl,
		repo:     opts.Repository,
		logger:   logger.Named("session_store"),
		metrics:  opts.Metrics,
	}
	store.sessions.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*session_object.Session); ok {
			sess.Close()
		}
		store.metrics.SessionClosed()
		store.logger.Debug("session evicted", zap.String("session_id", id))
	})
	return store
}

// lookup returns a live session and refreshes its idle deadline. Replace
// fails once the janitor has removed the entry, so an evicted session is
// never put back.
func (store *Store) lookup(id string) (*session_object.Session, bool) {
	v, ok := store.sessions.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*session_object.Session)
	if sess.Closed() {
		return nil, false
	}
	if err := store.sessions.Replace(id, sess, cache.DefaultExpiration); err != nil {
		return nil, false
	}
	return sess, true
}

// restore loads a stored snapshot into the arena. Callers hold createMu.
func (store *Store) restore(ctx context.Context, id string) (*session_object.Session, bool) {
	if store.repo == nil {
		return nil, false
	}
	snap, found, err := store.repo.Load(ctx, id)
	if err != nil {
		store.logger.Warn("snapshot load failed", zap.String("session_id", id), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	snap.SessionID = id
	sess := session_object.Restore(snap)
	if err := sess.Check(); err != nil {
		store.logger.Error("restored session is inconsistent", zap.String("session_id", id), zap.Error(err))
	}
	store.sessions.Set(id, sess, cache.DefaultExpiration)
	store.metrics.SessionOpened()
	return sess, true
}

// GetOrCreate returns the session for id, restoring it from the repository or
// creating it when missing. An empty id mints a fresh one.
func (store *Store) GetOrCreate(ctx context.Context, id string) (*session_object.Session, error) {
	if id == "" {
		id = uuid.NewString()
	} else if !models.ValidSessionID(id) {
		return nil, models.NewValidationError("session_id", "must be 1-128 letters, digits, '-' or '_'")
	}
	if sess, ok := store.lookup(id); ok {
		return sess, nil
	}

	store.createMu.Lock()
	defer store.createMu.Unlock()
	if sess, ok := store.lookup(id); ok {
		return sess, nil
	}
	// Drop an expired or closed entry the janitor has not reached yet so it
	// is released before being replaced.
	store.sessions.Delete(id)
	if sess, ok := store.restore(ctx, id); ok {
		return sess, nil
	}
	sess := session_object.NewSession(id)
	store.sessions.Set(id, sess, cache.DefaultExpiration)
	store.metrics.SessionOpened()
	store.logger.Debug("session created", zap.String("session_id", id))
	return sess, nil
}

// Get returns an existing session, restoring a stored one on miss.
func (store *Store) Get(ctx context.Context, id string) (*session_object.Session, error) {
	if sess, ok := store.lookup(id); ok {
		return sess, nil
	}
	if !models.ValidSessionID(id) {
		return nil, &models.NotFoundError{SessionID: id}
	}
	store.createMu.Lock()
	defer store.createMu.Unlock()
	if sess, ok := store.lookup(id); ok {
		return sess, nil
	}
	// Drop an expired or closed entry the janitor has not reached yet so it
	// is released before being replaced.
	store.sessions.Delete(id)
	if sess, ok := store.restore(ctx, id); ok {
		return sess, nil
	}
	return nil, &models.NotFoundError{SessionID: id}
}

// Lock acquires the session's operation lock. The returned func releases it.
func (store *Store) Lock(ctx context.Context, id string) (func(), error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.LockOp()
	return sess.UnlockOp, nil
}

// Apply commits fn atomically on the session and persists the result.
func (store *Store) Apply(ctx context.Context, id string, fn func(w *session_object.Writer) error) error {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.Apply(fn); err != nil {
		return err
	}
	store.persist(ctx, sess)
	return nil
}

func (store *Store) AppendMessage(ctx context.Context, id string, role models.Role, content string) (models.Message, error) {
	var msg models.Message
	err := store.Apply(ctx, id, func(w *session_object.Writer) error {
		var err error
		msg, err = w.AppendMessage(role, content)
		return err
	})
	return msg, err
}

func (store *Store) UpsertPaper(ctx context.Context, id string, p models.Paper) (models.Paper, bool, error) {
	var (
		out   models.Paper
		isNew bool
	)
	err := store.Apply(ctx, id, func(w *session_object.Writer) error {
		var err error
		out, isNew, err = w.UpsertPaper(p)
		return err
	})
	if err != nil {
		return models.Paper{}, false, err
	}
	store.metrics.PaperUpserted(isNew)
	return out, isNew, nil
}

func (store *Store) AddCitations(ctx context.Context, id string, citations []models.Citation) error {
	return store.Apply(ctx, id, func(w *session_object.Writer) error {
		w.AddCitations(citations)
		return nil
	})
}

func (store *Store) AddTopics(ctx context.Context, id string, topics []string) error {
	return store.Apply(ctx, id, func(w *session_object.Writer) error {
		w.AddTopics(topics)
		return nil
	})
}

func (store *Store) AddFindings(ctx context.Context, id string, findings []models.Finding) error {
	return store.Apply(ctx, id, func(w *session_object.Writer) error {
		w.AddFindings(findings)
		return nil
	})
}

// Clear empties the session and removes its stored snapshot.
func (store *Store) Clear(ctx context.Context, id string) error {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Clear()
	if store.repo != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := store.repo.Delete(dctx, id); err != nil {
			store.logger.Warn("snapshot delete failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return nil
}

func (store *Store) Snapshot(ctx context.Context, id string) (models.Snapshot, error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return sess.Snapshot()
}

func (store *Store) RelevantPapers(ctx context.Context, id, text string, k int) ([]models.Paper, error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.RelevantPapers(text, k)
}

// Len reports the number of live sessions.
func (store *Store) Len() int { return store.sessions.ItemCount() }

// Close releases every session. The store must not be used afterwards.
func (store *Store) Close() {
	for id := range store.sessions.Items() {
		store.sessions.Delete(id)
	}
}

func (store *Store) persist(ctx context.Context, sess *session_object.Session) {
	if store.repo == nil {
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := store.repo.Save(pctx, snap); err != nil {
		store.logger.Warn("snapshot save failed", zap.String("session_id", sess.ID()), zap.Error(err))
	}
}
