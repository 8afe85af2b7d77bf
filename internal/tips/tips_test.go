package tips

import (
	"context"
	"testing"

	"github.com/roastcast/ledger/internal/kv"
)

func TestRecordAccumulates(t *testing.T) {
	ctx := context.Background()
	tips := New(kv.NewMemoryStore())

	if err := tips.Record(ctx, "roast-1", 1, 2, "0.5"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tips.Record(ctx, "roast-1", 3, 2, "1.25"); err != nil {
		t.Fatalf("record: %v", err)
	}

	total, err := tips.RoastTotal(ctx, "roast-1")
	if err != nil || total != 1.75 {
		t.Fatalf("roast total = (%v, %v), want 1.75", total, err)
	}
	received, _ := tips.Received(ctx, 2)
	if received != 1.75 {
		t.Fatalf("received = %v, want 1.75", received)
	}
	sent, _ := tips.Sent(ctx, 1)
	if sent != 0.5 {
		t.Fatalf("sent = %v, want 0.5", sent)
	}
}

func TestZeroForAbsent(t *testing.T) {
	ctx := context.Background()
	tips := New(kv.NewMemoryStore())

	total, err := tips.RoastTotal(ctx, "never-tipped")
	if err != nil || total != 0 {
		t.Fatalf("total = (%v, %v), want (0, nil)", total, err)
	}
	received, err := tips.Received(ctx, 99)
	if err != nil || received != 0 {
		t.Fatalf("received = (%v, %v), want (0, nil)", received, err)
	}
}

func TestRecordRejectsBadAmount(t *testing.T) {
	ctx := context.Background()
	tips := New(kv.NewMemoryStore())

	if err := tips.Record(ctx, "roast-1", 1, 2, "a lot"); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
	total, _ := tips.RoastTotal(ctx, "roast-1")
	if total != 0 {
		t.Fatalf("total = %v, want untouched", total)
	}
}
