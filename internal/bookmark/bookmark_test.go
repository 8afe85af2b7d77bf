package bookmark

import (
	"context"
	"testing"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/roast"
	"github.com/roastcast/ledger/internal/stats"
)

type nopScores struct{}

func (nopScores) RecordRoast(ctx context.Context, senderFID, targetFID int64) error { return nil }

func seedRoast(t *testing.T, repo *roast.Repository, id string) {
	t.Helper()
	err := repo.Create(context.Background(), roast.Roast{
		ID:        id,
		SenderFID: 1,
		TargetFID: 2,
		Text:      "saved for later",
		Theme:     roast.ThemeInferno,
		Timestamp: 1000,
	})
	if err != nil {
		t.Fatalf("seed roast %s: %v", id, err)
	}
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := roast.NewRepository(store, stats.New(store), nopScores{}, nil)
	bookmarks := New(store, repo)
	seedRoast(t, repo, "abc123abc123")

	saved, err := bookmarks.Toggle(ctx, 7, "abc123abc123")
	if err != nil || !saved {
		t.Fatalf("toggle on = (%v, %v), want (true, nil)", saved, err)
	}
	has, _ := bookmarks.Has(ctx, 7, "abc123abc123")
	if !has {
		t.Fatal("bookmark not recorded")
	}

	saved, err = bookmarks.Toggle(ctx, 7, "abc123abc123")
	if err != nil || saved {
		t.Fatalf("toggle off = (%v, %v), want (false, nil)", saved, err)
	}
	has, _ = bookmarks.Has(ctx, 7, "abc123abc123")
	if has {
		t.Fatal("bookmark not removed")
	}
}

func TestTogglePerUser(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := roast.NewRepository(store, stats.New(store), nopScores{}, nil)
	bookmarks := New(store, repo)
	seedRoast(t, repo, "abc123abc123")

	bookmarks.Toggle(ctx, 7, "abc123abc123")
	has, _ := bookmarks.Has(ctx, 8, "abc123abc123")
	if has {
		t.Fatal("bookmark leaked across users")
	}
}

func TestListDropsMissing(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := roast.NewRepository(store, stats.New(store), nopScores{}, nil)
	bookmarks := New(store, repo)
	seedRoast(t, repo, "abc123abc123")

	bookmarks.Toggle(ctx, 7, "abc123abc123")
	bookmarks.Toggle(ctx, 7, "gone00000000") // never persisted

	list, err := bookmarks.List(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "abc123abc123" {
		t.Fatalf("list = %+v, want only the live roast", list)
	}
}
