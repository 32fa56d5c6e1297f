package session

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Parallel()
	store, err := NewStore(InMemoryStore, config.SessionConfig{IdleTimeout: time.Hour}, nil, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())

	_, err = NewStore("postgres", config.SessionConfig{}, nil, nil, nil)
	assert.Error(t, err)
}
