package reaction

import (
	"context"
	"testing"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/roast"
	"github.com/roastcast/ledger/internal/stats"
)

type recordingScores struct {
	roasts    int
	reactions int
	trending  map[string]int
}

func newRecordingScores() *recordingScores {
	return &recordingScores{trending: make(map[string]int)}
}

func (r *recordingScores) RecordRoast(ctx context.Context, senderFID, targetFID int64) error {
	r.roasts++
	return nil
}

func (r *recordingScores) RecordReaction(ctx context.Context, senderFID int64) error {
	r.reactions++
	return nil
}

func (r *recordingScores) BumpTrending(ctx context.Context, roastID string) error {
	r.trending[roastID]++
	return nil
}

func newTestLedger(t *testing.T) (*Ledger, *roast.Repository, *stats.Stats, *recordingScores) {
	t.Helper()
	store := kv.NewMemoryStore()
	st := stats.New(store)
	scores := newRecordingScores()
	repo := roast.NewRepository(store, st, scores, nil)
	return NewLedger(store, repo, st, scores, nil), repo, st, scores
}

func seedRoast(t *testing.T, repo *roast.Repository, id string, sender int64) {
	t.Helper()
	err := repo.Create(context.Background(), roast.Roast{
		ID:        id,
		SenderFID: sender,
		TargetFID: sender + 1,
		Text:      "test roast",
		Timestamp: 1000,
	})
	if err != nil {
		t.Fatalf("seed roast: %v", err)
	}
}

func TestToggleAdd(t *testing.T) {
	ctx := context.Background()
	ledger, repo, st, scores := newTestLedger(t)
	seedRoast(t, repo, "target000001", 10)

	result, err := ledger.Toggle(ctx, "target000001", roast.KindFire, 99)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if result.Counts[roast.KindFire] != 1 || result.Total != 1 {
		t.Fatalf("result = %+v, want fire=1 total=1", result)
	}
	if len(result.UserReactions) != 1 || result.UserReactions[0] != roast.KindFire {
		t.Fatalf("user reactions = %v, want [fire]", result.UserReactions)
	}

	// The roast's sender gets the credit, not the reactor.
	senderStats, _ := st.Get(ctx, 10)
	if senderStats.Reactions != 1 {
		t.Fatalf("sender reactions = %d, want 1", senderStats.Reactions)
	}
	if scores.reactions != 1 || scores.trending["target000001"] != 1 {
		t.Fatalf("scores = %+v", scores)
	}
}

func TestToggleRemoveAsymmetry(t *testing.T) {
	ctx := context.Background()
	ledger, repo, st, scores := newTestLedger(t)
	seedRoast(t, repo, "target000002", 10)

	if _, err := ledger.Toggle(ctx, "target000002", roast.KindSkull, 99); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	result, err := ledger.Toggle(ctx, "target000002", roast.KindSkull, 99)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	if result.Counts[roast.KindSkull] != 0 || result.Total != 0 {
		t.Fatalf("counts after untoggle = %+v, want zeroes", result)
	}
	if len(result.UserReactions) != 0 {
		t.Fatalf("user reactions = %v, want none", result.UserReactions)
	}

	// Un-reacting keeps the sender's earned credit: stats, leaderboard and
	// trending all still show the original reaction.
	senderStats, _ := st.Get(ctx, 10)
	if senderStats.Reactions != 1 {
		t.Fatalf("sender reactions = %d, want 1 after untoggle", senderStats.Reactions)
	}
	if scores.reactions != 1 || scores.trending["target000002"] != 1 {
		t.Fatalf("scores after untoggle = %+v, want original credit intact", scores)
	}
}

func TestToggleRestore(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _, _ := newTestLedger(t)
	seedRoast(t, repo, "target000003", 10)

	for i := 0; i < 3; i++ { // on, off, on
		if _, err := ledger.Toggle(ctx, "target000003", roast.KindIce, 99); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
	}

	counts, err := ledger.CountsFor(ctx, "target000003")
	if err != nil {
		t.Fatalf("countsfor: %v", err)
	}
	if counts[roast.KindIce] != 1 {
		t.Fatalf("ice count = %d, want 1", counts[roast.KindIce])
	}
}

func TestToggleDistinctUsers(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _, _ := newTestLedger(t)
	seedRoast(t, repo, "target000004", 10)

	for fid := int64(100); fid < 103; fid++ {
		if _, err := ledger.Toggle(ctx, "target000004", roast.KindClown, fid); err != nil {
			t.Fatalf("toggle fid %d: %v", fid, err)
		}
	}

	counts, _ := ledger.CountsFor(ctx, "target000004")
	if counts[roast.KindClown] != 3 {
		t.Fatalf("clown count = %d, want 3", counts[roast.KindClown])
	}
}

func TestToggleUnknownKind(t *testing.T) {
	ledger, repo, _, _ := newTestLedger(t)
	seedRoast(t, repo, "target000005", 10)

	_, err := ledger.Toggle(context.Background(), "target000005", roast.Kind("thumbsup"), 99)
	if err != ErrUnknownKind {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestToggleMissingRoast(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)

	result, err := ledger.Toggle(context.Background(), "ghost0000001", roast.KindFire, 99)
	if err != nil {
		t.Fatalf("toggle on missing roast: %v", err)
	}
	if result.Total != 0 || len(result.UserReactions) != 0 {
		t.Fatalf("result for missing roast = %+v, want empty", result)
	}
}

func TestReactionsOf(t *testing.T) {
	ctx := context.Background()
	ledger, repo, _, _ := newTestLedger(t)
	seedRoast(t, repo, "target000006", 10)

	ledger.Toggle(ctx, "target000006", roast.KindFire, 99)
	ledger.Toggle(ctx, "target000006", roast.KindIce, 99)

	active, err := ledger.ReactionsOf(ctx, "target000006", 99)
	if err != nil {
		t.Fatalf("reactionsof: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %v, want fire and ice", active)
	}
}
