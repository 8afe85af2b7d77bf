// Package tips accumulates USDC tip totals per roast and per user.
package tips

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roastcast/ledger/internal/kv"
)

// Tips records and reads tip totals. Amounts are USDC decimal strings.
type Tips struct {
	store kv.Store
}

// New creates a tip tracker.
func New(store kv.Store) *Tips {
	return &Tips{store: store}
}

func totalKey(roastID string) string { return "tips:total:" + roastID }
func receivedKey(fid int64) string   { return fmt.Sprintf("tips:received:%d", fid) }
func sentKey(fid int64) string       { return fmt.Sprintf("tips:sent:%d", fid) }

// Record adds a tip to the roast's total and both parties' running sums.
func (t *Tips) Record(ctx context.Context, roastID string, senderFID, recipientFID int64, amount string) error {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return fmt.Errorf("parse tip amount %q: %w", amount, err)
	}
	if _, err := t.store.IncrByFloat(ctx, totalKey(roastID), value); err != nil {
		return fmt.Errorf("roast tip total: %w", err)
	}
	if _, err := t.store.IncrByFloat(ctx, receivedKey(recipientFID), value); err != nil {
		return fmt.Errorf("recipient tip total: %w", err)
	}
	if _, err := t.store.IncrByFloat(ctx, sentKey(senderFID), value); err != nil {
		return fmt.Errorf("sender tip total: %w", err)
	}
	return nil
}

// RoastTotal returns the total tipped on a roast, zero when untipped.
func (t *Tips) RoastTotal(ctx context.Context, roastID string) (float64, error) {
	return t.readFloat(ctx, totalKey(roastID))
}

// Received returns the total a user has received in tips.
func (t *Tips) Received(ctx context.Context, fid int64) (float64, error) {
	return t.readFloat(ctx, receivedKey(fid))
}

// Sent returns the total a user has sent in tips.
func (t *Tips) Sent(ctx context.Context, fid int64) (float64, error) {
	return t.readFloat(ctx, sentKey(fid))
}

func (t *Tips) readFloat(ctx context.Context, key string) (float64, error) {
	val, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("decode tip total: %w", err)
	}
	return f, nil
}
