// Package leaderboard maintains the ranked views over user activity and
// the rolling trending index over roasts.
//
// Three metrics by three windows gives nine independent sorted indices.
// Windowed indices do not slide: each carries a TTL refreshed on write,
// holds whatever accumulated since its last expiry, and then vanishes
// wholesale. A "weekly" board can therefore contain scores up to seven
// days stale, which is the documented behavior.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/roast"
)

// Metric identifies what a board ranks users by.
type Metric string

const (
	MostRoasted    Metric = "most-roasted"
	BiggestRoaster Metric = "biggest-roaster"
	MostReactions  Metric = "most-reactions"
)

// ValidMetric reports whether m names a known board.
func ValidMetric(m Metric) bool {
	switch m {
	case MostRoasted, BiggestRoaster, MostReactions:
		return true
	}
	return false
}

// Window is a scoring period.
type Window string

const (
	WindowAll    Window = "all"
	WindowWeekly Window = "weekly"
	WindowDaily  Window = "daily"
)

// ValidWindow reports whether w names a known period.
func ValidWindow(w Window) bool {
	switch w {
	case WindowAll, WindowWeekly, WindowDaily:
		return true
	}
	return false
}

const (
	dayTTL      = 24 * time.Hour
	weekTTL     = 7 * 24 * time.Hour
	trendingKey = "trending:24h"
)

// Entry is one ranked row: a user and their additive score.
type Entry struct {
	FID   int64   `json:"fid"`
	Score float64 `json:"score"`
}

// Aggregator owns the ranked indices.
type Aggregator struct {
	store kv.Store
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(store kv.Store) *Aggregator {
	return &Aggregator{store: store}
}

func boardKey(metric Metric, window Window) string {
	if window == WindowAll {
		return "leaderboard:" + string(metric)
	}
	return fmt.Sprintf("leaderboard:%s:%s", window, metric)
}

func windowTTL(window Window) time.Duration {
	if window == WindowDaily {
		return dayTTL
	}
	return weekTTL
}

// RecordRoast credits a roast to its sender (biggest-roaster) and target
// (most-roasted) across all three windows.
func (a *Aggregator) RecordRoast(ctx context.Context, senderFID, targetFID int64) error {
	sender := strconv.FormatInt(senderFID, 10)
	target := strconv.FormatInt(targetFID, 10)
	for _, window := range []Window{WindowAll, WindowWeekly, WindowDaily} {
		if _, err := a.store.ZIncrBy(ctx, boardKey(BiggestRoaster, window), 1, sender); err != nil {
			return fmt.Errorf("bump %s: %w", boardKey(BiggestRoaster, window), err)
		}
		if _, err := a.store.ZIncrBy(ctx, boardKey(MostRoasted, window), 1, target); err != nil {
			return fmt.Errorf("bump %s: %w", boardKey(MostRoasted, window), err)
		}
	}
	return a.refreshWindows(ctx, BiggestRoaster, MostRoasted)
}

// RecordReaction credits an accepted reaction to the roast's sender
// across all three windows.
func (a *Aggregator) RecordReaction(ctx context.Context, senderFID int64) error {
	sender := strconv.FormatInt(senderFID, 10)
	for _, window := range []Window{WindowAll, WindowWeekly, WindowDaily} {
		if _, err := a.store.ZIncrBy(ctx, boardKey(MostReactions, window), 1, sender); err != nil {
			return fmt.Errorf("bump %s: %w", boardKey(MostReactions, window), err)
		}
	}
	return a.refreshWindows(ctx, MostReactions)
}

// refreshWindows re-arms the TTLs on the daily and weekly boards for the
// given metrics. Re-arming on every write is idempotent and keeps a live
// board from expiring mid-window... until writes stop, which is the point.
func (a *Aggregator) refreshWindows(ctx context.Context, metrics ...Metric) error {
	for _, m := range metrics {
		if err := a.store.Expire(ctx, boardKey(m, WindowDaily), dayTTL); err != nil {
			return err
		}
		if err := a.store.Expire(ctx, boardKey(m, WindowWeekly), weekTTL); err != nil {
			return err
		}
	}
	return nil
}

// BumpTrending adds one to a roast's rolling trending score. The index
// expires 24h after the first bump following each reset.
func (a *Aggregator) BumpTrending(ctx context.Context, roastID string) error {
	if _, err := a.store.ZIncrBy(ctx, trendingKey, 1, roastID); err != nil {
		return fmt.Errorf("bump trending: %w", err)
	}
	return a.store.Expire(ctx, trendingKey, dayTTL)
}

// Rank returns the top entries for a board, highest score first. Ties
// appear in the store's iteration order, which is implementation-defined
// and not to be relied on.
func (a *Aggregator) Rank(ctx context.Context, metric Metric, window Window, limit int) ([]Entry, error) {
	if !ValidMetric(metric) {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if !ValidWindow(window) {
		return nil, fmt.Errorf("unknown window %q", window)
	}
	if limit <= 0 {
		limit = 20
	}
	scored, err := a.store.ZRevRangeWithScores(ctx, boardKey(metric, window), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("rank %s/%s: %w", metric, window, err)
	}
	entries := make([]Entry, 0, len(scored))
	for _, m := range scored {
		fid, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{FID: fid, Score: m.Score})
	}
	return entries, nil
}

// Trending returns the top roast ids by 24h reaction score. When the
// index is empty (fresh reset, or no reactions in the window) it falls
// back to the most recent roasts, so callers must not assume a returned
// id saw any reaction activity.
func (a *Aggregator) Trending(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := a.store.ZRevRange(ctx, trendingKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	if len(ids) > 0 {
		return ids, nil
	}
	ids, err = a.store.ZRevRange(ctx, roast.AllIndexKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("trending fallback: %w", err)
	}
	return ids, nil
}
