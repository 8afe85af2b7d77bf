package roast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/stats"
	"github.com/roastcast/ledger/pkg/logger"
)

// AllIndexKey is the global recency index over every roast, ranked by
// creation timestamp.
const AllIndexKey = "roasts:all"

// listLimit bounds the per-user and per-chain id lists read back.
const listLimit = 50

// Scores mirrors roast creation into the ranked leaderboard indices.
// Implemented by the leaderboard aggregator.
type Scores interface {
	RecordRoast(ctx context.Context, senderFID, targetFID int64) error
}

// Repository persists roasts and maintains the indexes derived from them.
//
// Create issues a batch of independent writes with no cross-key atomicity.
// The roast record itself is the only write whose failure is surfaced;
// a missing index entry is logged and tolerated, because durability of
// the roast is the priority.
type Repository struct {
	store  kv.Store
	stats  *stats.Stats
	scores Scores
	log    *logger.Logger
}

// NewRepository creates a roast repository.
func NewRepository(store kv.Store, st *stats.Stats, scores Scores, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.NewDefault("roast")
	}
	return &Repository{store: store, stats: st, scores: scores, log: log}
}

func recordKey(id string) string  { return "roast:" + id }
func sentKey(fid int64) string    { return fmt.Sprintf("sent:%d", fid) }
func inboxKey(fid int64) string   { return fmt.Sprintf("inbox:%d", fid) }
func chainKey(id string) string   { return "chain:" + id }
func styleKey(style Style) string { return "roasts:style:" + string(style) }

// Create persists the roast and fans out to every derived index.
func (r *Repository) Create(ctx context.Context, rst Roast) error {
	if rst.ID == "" {
		return fmt.Errorf("create roast: missing id")
	}
	if rst.Text == "" || len(rst.Text) > MaxTextLength {
		return fmt.Errorf("create roast: text length out of range")
	}
	if rst.Reactions == nil {
		rst.Reactions = map[Kind]int64{KindFire: 0, KindSkull: 0, KindIce: 0, KindClown: 0}
	}

	data, err := json.Marshal(rst)
	if err != nil {
		return fmt.Errorf("marshal roast: %w", err)
	}
	if err := r.store.Set(ctx, recordKey(rst.ID), string(data), RetentionTTL); err != nil {
		return fmt.Errorf("persist roast: %w", err)
	}

	// Everything below is secondary fan-out. Partial failure leaves the
	// roast persisted with an index entry missing.
	r.secondary(ctx, "recency index", func() error {
		return r.store.ZAdd(ctx, AllIndexKey, float64(rst.Timestamp), rst.ID)
	})
	r.secondary(ctx, "sent list", func() error {
		return r.store.LPush(ctx, sentKey(rst.SenderFID), rst.ID)
	})
	r.secondary(ctx, "inbox list", func() error {
		return r.store.LPush(ctx, inboxKey(rst.TargetFID), rst.ID)
	})
	r.secondary(ctx, "sender stats", func() error {
		return r.stats.IncrSent(ctx, rst.SenderFID)
	})
	r.secondary(ctx, "target stats", func() error {
		return r.stats.IncrReceived(ctx, rst.TargetFID)
	})
	r.secondary(ctx, "leaderboards", func() error {
		return r.scores.RecordRoast(ctx, rst.SenderFID, rst.TargetFID)
	})
	if rst.ParentID != "" {
		r.secondary(ctx, "reply chain", func() error {
			return r.store.LPush(ctx, chainKey(rst.ParentID), rst.ID)
		})
	}
	if rst.Style != "" {
		r.secondary(ctx, "style index", func() error {
			return r.store.ZAdd(ctx, styleKey(rst.Style), float64(rst.Timestamp), rst.ID)
		})
	}

	r.log.WithField("roast_id", rst.ID).
		WithField("sender_fid", rst.SenderFID).
		WithField("target_fid", rst.TargetFID).
		Info("roast created")
	return nil
}

func (r *Repository) secondary(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		r.log.WithError(err).WithField("index", name).Warn("secondary write failed")
	}
}

// Get returns the roast or nil when missing or expired. Legacy records
// are normalized in place, not persisted.
func (r *Repository) Get(ctx context.Context, id string) (*Roast, error) {
	data, ok, err := r.store.Get(ctx, recordKey(id))
	if err != nil {
		return nil, fmt.Errorf("get roast: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var rst Roast
	if err := json.Unmarshal([]byte(data), &rst); err != nil {
		return nil, fmt.Errorf("decode roast %s: %w", id, err)
	}
	rst.Normalize()
	return &rst, nil
}

// Update rewrites the stored record, refreshing the retention window.
// Only the reaction ledger should call this; roasts are otherwise
// immutable.
func (r *Repository) Update(ctx context.Context, rst Roast) error {
	data, err := json.Marshal(rst)
	if err != nil {
		return fmt.Errorf("marshal roast: %w", err)
	}
	return r.store.Set(ctx, recordKey(rst.ID), string(data), RetentionTTL)
}

// Recent returns the newest roasts from the global recency index.
func (r *Repository) Recent(ctx context.Context, offset, limit int) ([]Roast, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := r.store.ZRevRange(ctx, AllIndexKey, int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, fmt.Errorf("recent roasts: %w", err)
	}
	return r.resolve(ctx, ids), nil
}

// ByStyle returns the newest roasts carrying the given style tag.
func (r *Repository) ByStyle(ctx context.Context, style Style, offset, limit int) ([]Roast, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := r.store.ZRevRange(ctx, styleKey(style), int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, fmt.Errorf("roasts by style: %w", err)
	}
	return r.resolve(ctx, ids), nil
}

// SentBy returns the roasts a user has sent, newest first.
func (r *Repository) SentBy(ctx context.Context, fid int64) ([]Roast, error) {
	ids, err := r.store.LRange(ctx, sentKey(fid), 0, listLimit-1)
	if err != nil {
		return nil, fmt.Errorf("sent roasts: %w", err)
	}
	return r.resolve(ctx, ids), nil
}

// ReceivedBy returns the roasts targeting a user, newest first.
func (r *Repository) ReceivedBy(ctx context.Context, fid int64) ([]Roast, error) {
	ids, err := r.store.LRange(ctx, inboxKey(fid), 0, listLimit-1)
	if err != nil {
		return nil, fmt.Errorf("inbox roasts: %w", err)
	}
	return r.resolve(ctx, ids), nil
}

// Chain returns the direct and indirect replies under the given roast,
// breadth-first (each generation newest first). The root itself is not
// included; callers needing it fetch it separately. The walk is bounded
// so a pathological chain cannot fan out indefinitely.
func (r *Repository) Chain(ctx context.Context, rootID string) ([]Roast, error) {
	var out []Roast
	queue := []string{rootID}
	seen := map[string]struct{}{rootID: {}}
	for len(queue) > 0 && len(out) < listLimit {
		id := queue[0]
		queue = queue[1:]
		ids, err := r.store.LRange(ctx, chainKey(id), 0, listLimit-1)
		if err != nil {
			return nil, fmt.Errorf("roast chain: %w", err)
		}
		for _, cid := range ids {
			if _, dup := seen[cid]; dup {
				continue
			}
			seen[cid] = struct{}{}
			rst, err := r.Get(ctx, cid)
			if err != nil {
				r.log.WithError(err).WithField("roast_id", cid).Warn("failed to resolve chain entry")
				continue
			}
			if rst == nil {
				continue
			}
			out = append(out, *rst)
			queue = append(queue, cid)
		}
	}
	return out, nil
}

// resolve fetches each id individually, silently dropping records that
// have expired out from under their index entries.
func (r *Repository) resolve(ctx context.Context, ids []string) []Roast {
	out := make([]Roast, 0, len(ids))
	for _, id := range ids {
		rst, err := r.Get(ctx, id)
		if err != nil {
			r.log.WithError(err).WithField("roast_id", id).Warn("failed to resolve indexed roast")
			continue
		}
		if rst != nil {
			out = append(out, *rst)
		}
	}
	return out
}
