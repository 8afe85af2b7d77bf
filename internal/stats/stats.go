// Package stats keeps the per-user activity counters. All counters are
// monotonic: un-reacting never decrements them (see the reaction ledger).
package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roastcast/ledger/internal/kv"
)

// UserStats are the counters tracked for a single user.
type UserStats struct {
	Sent      int64 `json:"sent"`
	Received  int64 `json:"received"`
	Likes     int64 `json:"likes"` // legacy counter, superseded by Reactions
	Reactions int64 `json:"reactions"`
}

// Stats reads and bumps user counters stored in a per-user hash.
type Stats struct {
	store kv.Store
}

// New creates a Stats over the given store.
func New(store kv.Store) *Stats {
	return &Stats{store: store}
}

func key(fid int64) string {
	return fmt.Sprintf("stats:%d", fid)
}

// IncrSent bumps the roasts-sent counter.
func (s *Stats) IncrSent(ctx context.Context, fid int64) error {
	_, err := s.store.HIncrBy(ctx, key(fid), "sent", 1)
	return err
}

// IncrReceived bumps the roasts-received counter.
func (s *Stats) IncrReceived(ctx context.Context, fid int64) error {
	_, err := s.store.HIncrBy(ctx, key(fid), "received", 1)
	return err
}

// IncrReactions bumps the reactions-received counter.
func (s *Stats) IncrReactions(ctx context.Context, fid int64) error {
	_, err := s.store.HIncrBy(ctx, key(fid), "reactions", 1)
	return err
}

// Get returns the current counters for a user. Users with no activity get
// all zeroes. Records predating the reaction system report their legacy
// likes count as reactions.
func (s *Stats) Get(ctx context.Context, fid int64) (UserStats, error) {
	data, err := s.store.HGetAll(ctx, key(fid))
	if err != nil {
		return UserStats{}, fmt.Errorf("get stats: %w", err)
	}
	out := UserStats{
		Sent:     parseField(data, "sent"),
		Received: parseField(data, "received"),
		Likes:    parseField(data, "likes"),
	}
	if _, ok := data["reactions"]; ok {
		out.Reactions = parseField(data, "reactions")
	} else {
		out.Reactions = out.Likes
	}
	return out, nil
}

func parseField(data map[string]string, field string) int64 {
	n, _ := strconv.ParseInt(data[field], 10, 64)
	return n
}
