// Package battle detects two-party roast exchanges and ranks them.
package battle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/roast"
	"github.com/roastcast/ledger/pkg/logger"
)

// maxWalkDepth bounds the parent-pointer walk to the chain root. A chain
// deeper than this is abandoned rather than walked indefinitely.
const maxWalkDepth = 64

const rankKey = "battles"

// Battle is a registered two-party exchange, keyed by its root roast.
type Battle struct {
	RootID         string `json:"rootRoastId"`
	User1FID       int64  `json:"user1Fid"`
	User2FID       int64  `json:"user2Fid"`
	ChainLength    int64  `json:"chainLength"`
	TotalReactions int64  `json:"totalReactions"`
}

// Score is the composite ranking value: length dominates, engagement
// breaks near-ties.
func (b Battle) Score() float64 {
	return float64(b.ChainLength*10 + b.TotalReactions)
}

// Detector walks reply chains and maintains the battle registry.
type Detector struct {
	store kv.Store
	repo  *roast.Repository
	log   *logger.Logger
}

// NewDetector creates a battle detector.
func NewDetector(store kv.Store, repo *roast.Repository, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.NewDefault("battle")
	}
	return &Detector{store: store, repo: repo, log: log}
}

func metaKey(rootID string) string {
	return "battle:" + rootID
}

// OnReply re-evaluates the chain a new reply belongs to. A battle is
// registered (or its entry refreshed) only when the chain has exactly
// two distinct senders and at least three roasts counting the root.
// Chains that later gain a third sender keep their existing entry; the
// registry is never retracted.
func (d *Detector) OnReply(ctx context.Context, r roast.Roast) error {
	if r.ParentID == "" {
		return nil
	}

	rootID, err := d.findRoot(ctx, r.ParentID)
	if err != nil {
		return err
	}
	if rootID == "" {
		return nil
	}

	root, err := d.repo.Get(ctx, rootID)
	if err != nil {
		return err
	}
	if root == nil {
		return nil
	}

	replies, err := d.repo.Chain(ctx, rootID)
	if err != nil {
		return err
	}
	all := append([]roast.Roast{*root}, replies...)

	senders := make(map[int64]struct{}, 2)
	var totalReactions int64
	for _, rst := range all {
		senders[rst.SenderFID] = struct{}{}
		totalReactions += rst.ReactionCount
	}
	if len(senders) != 2 || len(all) < 3 {
		return nil
	}

	fids := make([]int64, 0, 2)
	for fid := range senders {
		fids = append(fids, fid)
	}
	b := Battle{
		RootID:         rootID,
		User1FID:       fids[0],
		User2FID:       fids[1],
		ChainLength:    int64(len(all)),
		TotalReactions: totalReactions,
	}

	if err := d.store.ZAdd(ctx, rankKey, b.Score(), rootID); err != nil {
		return fmt.Errorf("rank battle: %w", err)
	}
	err = d.store.HSet(ctx, metaKey(rootID), map[string]string{
		"user1Fid":       strconv.FormatInt(b.User1FID, 10),
		"user2Fid":       strconv.FormatInt(b.User2FID, 10),
		"chainLength":    strconv.FormatInt(b.ChainLength, 10),
		"totalReactions": strconv.FormatInt(b.TotalReactions, 10),
	})
	if err != nil {
		return fmt.Errorf("store battle meta: %w", err)
	}

	d.log.WithField("root_id", rootID).
		WithField("chain_length", b.ChainLength).
		Info("battle registered")
	return nil
}

// findRoot follows parent pointers until a roast with no parent. Returns
// "" when the chain is broken by an expired record or exceeds the depth
// cap.
func (d *Detector) findRoot(ctx context.Context, parentID string) (string, error) {
	rootID := parentID
	for depth := 0; depth < maxWalkDepth; depth++ {
		parent, err := d.repo.Get(ctx, rootID)
		if err != nil {
			return "", err
		}
		if parent == nil {
			return "", nil
		}
		if parent.ParentID == "" {
			return rootID, nil
		}
		rootID = parent.ParentID
	}
	d.log.WithField("parent_id", parentID).Warn("chain walk exceeded depth cap")
	return "", nil
}

// List returns battles ranked by composite score, best first.
func (d *Detector) List(ctx context.Context, limit int) ([]Battle, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := d.store.ZRevRange(ctx, rankKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	battles := make([]Battle, 0, len(ids))
	for _, id := range ids {
		meta, err := d.store.HGetAll(ctx, metaKey(id))
		if err != nil {
			d.log.WithError(err).WithField("root_id", id).Warn("failed to load battle meta")
			continue
		}
		if len(meta) == 0 {
			continue
		}
		battles = append(battles, Battle{
			RootID:         id,
			User1FID:       parseInt(meta["user1Fid"]),
			User2FID:       parseInt(meta["user2Fid"]),
			ChainLength:    parseInt(meta["chainLength"]),
			TotalReactions: parseInt(meta["totalReactions"]),
		})
	}
	return battles, nil
}

func parseInt(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
