// Package kv defines the key-value store adapter every ledger component
// persists through. The interface is the exact primitive set the remote
// store offers; components compose these primitives and nothing else.
// Per-key operations are atomic; nothing spanning keys is.
package kv

import (
	"context"
	"time"
)

// ScoredMember is a sorted-set member paired with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the adapter over the shared remote key-value store.
// A zero TTL means the key does not expire.
type Store interface {
	// Plain keys
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Hashes
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// Sets
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	// Sorted sets
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// Lists
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}
