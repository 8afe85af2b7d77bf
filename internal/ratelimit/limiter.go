// Package ratelimit provides fixed-window per-action counters backed by
// the shared store, so limits hold across processes. Advisory only: the
// window opens at the first increment and the counter simply vanishes an
// hour later, so a burst straddling the reset is capped within each live
// window rather than per calendar hour.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/roastcast/ledger/internal/kv"
)

// Action kinds with their default hourly limits.
const (
	ActionGenerate = "generate"
	ActionPost     = "post"
	ActionReact    = "react"

	GenerateLimit = 10
	PostLimit     = 20
	ReactLimit    = 100
)

const window = time.Hour

// Limiter counts actions per (user, kind) in the shared store.
type Limiter struct {
	store kv.Store
}

// NewLimiter creates a limiter.
func NewLimiter(store kv.Store) *Limiter {
	return &Limiter{store: store}
}

// Allow increments the caller's counter for the action kind and reports
// whether the post-increment count is still within limit. The window
// opens when the increment creates the key; later increments do not
// extend it.
func (l *Limiter) Allow(ctx context.Context, fid int64, kind string, limit int64) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", kind, fid)
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.store.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= limit, nil
}
