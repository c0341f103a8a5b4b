package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "advisor:session:"
	redisSessionIndex  = "advisor:sessions"
)

// #region redis-store
// RedisStore keeps sessions in Redis so several advisor processes can share them.
// Sessions expire after ttl of inactivity; zero disables expiry.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects using a redis:// URL and verifies the connection.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (AgentState, error) {
	raw, err := r.rdb.Get(ctx, redisSessionPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return AgentState{}, ErrSessionNotFound
	}
	if err != nil {
		return AgentState{}, fmt.Errorf("redis get %s: %w", sessionID, err)
	}
	var st AgentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return AgentState{}, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return st, nil
}

func (r *RedisStore) Put(ctx context.Context, st AgentState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionPrefix+st.SessionID, raw, r.ttl)
		pipe.ZAdd(ctx, redisSessionIndex, redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: st.SessionID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", st.SessionID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionPrefix+sessionID)
		pipe.ZRem(ctx, redisSessionIndex, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", sessionID, err)
	}
	return nil
}

// List walks the recency index and skips ids whose payload has expired.
func (r *RedisStore) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, redisSessionIndex, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	out := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		st, err := r.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			r.rdb.ZRem(ctx, redisSessionIndex, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(st))
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

// #endregion redis-store
