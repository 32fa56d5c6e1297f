package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mohammad-safakhou/scholar/models"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "scholar:session:"

// redisSnapshotRepository stores one JSON snapshot per session. Every save
// refreshes the key's TTL, so idle sessions expire from Redis on their own.
type redisSnapshotRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSnapshotRepository(client *redis.Client, prefix string, ttl time.Duration) *redisSnapshotRepository {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &redisSnapshotRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *redisSnapshotRepository) key(id string) string { return r.prefix + id }

func (r *redisSnapshotRepository) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(snap.SessionID), data, r.ttl).Err()
}

func (r *redisSnapshotRepository) Load(ctx context.Context, id string) (models.Snapshot, bool, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Snapshot{}, false, nil
		}
		return models.Snapshot{}, false, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return models.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (r *redisSnapshotRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
