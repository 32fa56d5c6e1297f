package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/session/session_object"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu      sync.Mutex
	snaps   map[string]models.Snapshot
	saves   int
	deletes int
	failing bool
}

func newMemRepo() *memRepo { return &memRepo{snaps: map[string]models.Snapshot{}} }

func (r *memRepo) Save(_ context.Context, snap models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("disk full")
	}
	r.saves++
	r.snaps[snap.SessionID] = snap
	return nil
}

func (r *memRepo) Load(_ context.Context, id string) (models.Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[id]
	return snap, ok, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.snaps, id)
	return nil
}

func newStore(t *testing.T, opts Options) *Store {
	t.Helper()
	store := NewInMemorySessionStore(opts)
	t.Cleanup(store.Close)
	return store
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t, Options{IdleTimeout: time.Hour})

	a, err := store.GetOrCreate(ctx, "abc")
	require.NoError(t, err)
	b, err := store.GetOrCreate(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, a, b)

	fresh, err := store.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, "abc", fresh.ID())
	assert.Equal(t, 2, store.Len())

	_, err = store.GetOrCreate(ctx, "../../etc/passwd")
	assert.True(t, models.IsValidation(err))
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t, Options{})

	_, err := store.AppendMessage(ctx, "missing", models.RoleUser, "hi")
	assert.True(t, models.IsNotFound(err))
	_, _, err = store.UpsertPaper(ctx, "missing", models.Paper{Title: "T"})
	assert.True(t, models.IsNotFound(err))
	assert.True(t, models.IsNotFound(store.AddTopics(ctx, "missing", []string{"x"})))
	assert.True(t, models.IsNotFound(store.AddCitations(ctx, "missing", nil)))
	assert.True(t, models.IsNotFound(store.AddFindings(ctx, "missing", nil)))
	assert.True(t, models.IsNotFound(store.Clear(ctx, "missing")))
	_, err = store.Snapshot(ctx, "missing")
	assert.True(t, models.IsNotFound(err))
	_, err = store.Lock(ctx, "missing")
	assert.True(t, models.IsNotFound(err))
}

func TestMutationsPersistAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newMemRepo()
	store := newStore(t, Options{Repository: repo})

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "s1", models.RoleUser, "tell me about transformers")
	require.NoError(t, err)
	_, isNew, err := store.UpsertPaper(ctx, "s1", models.Paper{Title: "BERT", Abstract: "bidirectional transformers", Relevance: 0.8})
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NoError(t, store.AddTopics(ctx, "s1", []string{"NLP"}))
	require.NoError(t, store.AddCitations(ctx, "s1", []models.Citation{{Text: "Devlin (2018)"}}))
	require.NoError(t, store.AddFindings(ctx, "s1", []models.Finding{{Content: "pre-training helps", Source: "BERT"}}))
	assert.Equal(t, 5, repo.saves)

	other := newStore(t, Options{Repository: repo})
	snap, err := other.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 1)
	require.Len(t, snap.Papers, 1)
	assert.Equal(t, "BERT", snap.Papers[0].Title)
	assert.Equal(t, []string{"nlp"}, snap.Topics)

	found, err := other.RelevantPapers(ctx, "s1", "bidirectional", 3)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, other.Clear(ctx, "s1"))
	assert.Equal(t, 1, repo.deletes)
	_, ok, _ := repo.Load(ctx, "s1")
	assert.False(t, ok)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newMemRepo()
	repo.failing = true
	store := newStore(t, Options{Repository: repo})

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, store.AddTopics(ctx, "s1", []string{"graphs"}))
	snap, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"graphs"}, snap.Topics)
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	store := newStore(t, Options{IdleTimeout: 20 * time.Millisecond, Metrics: metrics})

	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessions))

	time.Sleep(40 * time.Millisecond)
	store.sessions.DeleteExpired()

	_, err = store.Get(ctx, "s1")
	assert.True(t, models.IsNotFound(err))
	assert.True(t, models.IsInconsistency(sess.Check()))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestClosedSessionIsNeverServedAgain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	store := newStore(t, Options{IdleTimeout: time.Hour, Metrics: metrics})

	old, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, "s1", models.RoleUser, "hello")
	require.NoError(t, err)

	// Closed while still cached, as when eviction races with a lookup.
	old.Close()

	_, err = store.Get(ctx, "s1")
	assert.True(t, models.IsNotFound(err))

	fresh, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	require.NoError(t, fresh.Check())
	_, err = store.AppendMessage(ctx, "s1", models.RoleUser, "again")
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, "s1"))
	assert.Equal(t, 1, store.Len())
}

func TestExpiredSessionIsReplacedNotRevived(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	store := newStore(t, Options{IdleTimeout: 20 * time.Millisecond, Metrics: metrics})

	old, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	fresh, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.True(t, models.IsInconsistency(old.Check()))
	require.NoError(t, fresh.Check())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestExpiryDuringHeldOperationDoesNotBlock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t, Options{IdleTimeout: 20 * time.Millisecond})

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	unlock, err := store.Lock(ctx, "s1")
	require.NoError(t, err)
	defer unlock()
	time.Sleep(40 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := store.AppendMessage(ctx, "s1", models.RoleUser, "late")
		done <- err
	}()
	select {
	case err := <-done:
		assert.True(t, models.IsNotFound(err))
	case <-time.After(2 * time.Second):
		t.Fatal("append blocked on an expired session")
	}
}

func TestLockSerializesOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t, Options{})
	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, "s2")
	require.NoError(t, err)

	unlock, err := store.Lock(ctx, "s1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := store.Lock(ctx, "s1")
		if err == nil {
			u()
		}
		close(acquired)
	}()

	// another session is not blocked
	u2, err := store.Lock(ctx, "s2")
	require.NoError(t, err)
	u2()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func TestApplyCommitsAtomically(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t, Options{})
	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	err = store.Apply(ctx, "s1", func(w *session_object.Writer) error {
		_, _, err := w.UpsertPaper(models.Paper{Title: "Random Forests", Abstract: "ensembles"})
		if err != nil {
			return err
		}
		w.AddTopics([]string{"Ensembles"})
		w.AddFindings([]models.Finding{{Content: "forests generalize", Source: "Random Forests"}})
		return nil
	})
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, snap.Papers, 1)
	assert.Equal(t, []string{"ensembles"}, snap.Topics)
	assert.Len(t, snap.Findings, 1)
}
