package streak

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/roastcast/ledger/internal/kv"
)

func newTestTracker() (*Tracker, *time.Time) {
	store := kv.NewMemoryStore()
	tracker := NewTracker(store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.Now = func() time.Time { return now }
	return tracker, &now
}

func TestStateJSONExposesLastDate(t *testing.T) {
	tracker, _ := newTestTracker()
	st, err := tracker.Record(context.Background(), 1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"lastDate":"2025-06-01"`) {
		t.Fatalf("json = %s, want lastDate included", data)
	}
}

func TestRecordFirstPost(t *testing.T) {
	tracker, _ := newTestTracker()

	st, err := tracker.Record(context.Background(), 1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if st.Current != 1 || st.Longest != 1 {
		t.Fatalf("state = %+v, want current=1 longest=1", st)
	}
}

func TestRecordSameDayIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker, now := newTestTracker()

	tracker.Record(ctx, 1)
	*now = now.Add(6 * time.Hour)
	st, err := tracker.Record(ctx, 1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if st.Current != 1 {
		t.Fatalf("current = %d, want 1 (same-day posts don't stack)", st.Current)
	}
}

func TestRecordConsecutiveDays(t *testing.T) {
	ctx := context.Background()
	tracker, now := newTestTracker()

	for day := 0; day < 4; day++ {
		st, err := tracker.Record(ctx, 1)
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if st.Current != int64(day+1) {
			t.Fatalf("day %d current = %d, want %d", day, st.Current, day+1)
		}
		*now = now.Add(24 * time.Hour)
	}
}

func TestRecordGapResets(t *testing.T) {
	ctx := context.Background()
	tracker, now := newTestTracker()

	tracker.Record(ctx, 1)
	*now = now.Add(24 * time.Hour)
	tracker.Record(ctx, 1)

	// Two-day silence breaks the streak but keeps the high-water mark.
	*now = now.Add(48 * time.Hour)
	st, err := tracker.Record(ctx, 1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if st.Current != 1 {
		t.Fatalf("current = %d, want 1 after gap", st.Current)
	}
	if st.Longest != 2 {
		t.Fatalf("longest = %d, want 2", st.Longest)
	}
}

func TestPeek(t *testing.T) {
	ctx := context.Background()
	tracker, now := newTestTracker()

	t.Run("never posted", func(t *testing.T) {
		st, err := tracker.Peek(ctx, 404)
		if err != nil {
			t.Fatalf("peek: %v", err)
		}
		if st.Current != 0 || st.Longest != 0 {
			t.Fatalf("state = %+v, want zeroes", st)
		}
	})

	tracker.Record(ctx, 1)
	*now = now.Add(24 * time.Hour)
	tracker.Record(ctx, 1)

	t.Run("live streak", func(t *testing.T) {
		st, _ := tracker.Peek(ctx, 1)
		if st.Current != 2 {
			t.Fatalf("current = %d, want 2", st.Current)
		}
	})

	t.Run("still alive next day", func(t *testing.T) {
		*now = now.Add(24 * time.Hour)
		st, _ := tracker.Peek(ctx, 1)
		if st.Current != 2 {
			t.Fatalf("current = %d, want 2 (yesterday counts)", st.Current)
		}
	})

	t.Run("broken streak reads as zero", func(t *testing.T) {
		*now = now.Add(24 * time.Hour)
		st, _ := tracker.Peek(ctx, 1)
		if st.Current != 0 {
			t.Fatalf("current = %d, want 0 after two silent days", st.Current)
		}
		if st.Longest != 2 {
			t.Fatalf("longest = %d, want 2 preserved", st.Longest)
		}
	})

	t.Run("peek does not write", func(t *testing.T) {
		// Posting again after the broken-streak peek restarts at 1,
		// proving the peek left the stored state untouched.
		st, err := tracker.Record(ctx, 1)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if st.Current != 1 {
			t.Fatalf("current = %d, want 1", st.Current)
		}
	})
}
