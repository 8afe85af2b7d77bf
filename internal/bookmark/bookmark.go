// Package bookmark keeps per-user saved-roast sets.
package bookmark

import (
	"context"
	"fmt"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/roast"
)

// Bookmarks toggles and lists a user's saved roasts.
type Bookmarks struct {
	store kv.Store
	repo  *roast.Repository
}

// New creates a bookmark service.
func New(store kv.Store, repo *roast.Repository) *Bookmarks {
	return &Bookmarks{store: store, repo: repo}
}

func key(fid int64) string {
	return fmt.Sprintf("bookmarks:%d", fid)
}

// Toggle flips the bookmark and reports the new state: true when the
// roast is now bookmarked.
func (b *Bookmarks) Toggle(ctx context.Context, fid int64, roastID string) (bool, error) {
	isMember, err := b.store.SIsMember(ctx, key(fid), roastID)
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	if isMember {
		if _, err := b.store.SRem(ctx, key(fid), roastID); err != nil {
			return false, fmt.Errorf("remove bookmark: %w", err)
		}
		return false, nil
	}
	if _, err := b.store.SAdd(ctx, key(fid), roastID); err != nil {
		return false, fmt.Errorf("add bookmark: %w", err)
	}
	return true, nil
}

// Has reports whether the roast is bookmarked by the user.
func (b *Bookmarks) Has(ctx context.Context, fid int64, roastID string) (bool, error) {
	return b.store.SIsMember(ctx, key(fid), roastID)
}

// List resolves the user's bookmarks through the repository, dropping
// roasts that have expired since they were saved.
func (b *Bookmarks) List(ctx context.Context, fid int64) ([]roast.Roast, error) {
	ids, err := b.store.SMembers(ctx, key(fid))
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	out := make([]roast.Roast, 0, len(ids))
	for _, id := range ids {
		rst, err := b.repo.Get(ctx, id)
		if err != nil || rst == nil {
			continue
		}
		out = append(out, *rst)
	}
	return out, nil
}
