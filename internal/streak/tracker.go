// Package streak tracks consecutive-day posting streaks on UTC calendar days.
package streak

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roastcast/ledger/internal/kv"
)

// State is a user's streak as stored: the running count, the high-water
// mark, and the UTC date of the last qualifying post.
type State struct {
	Current  int64  `json:"current"`
	Longest  int64  `json:"longest"`
	LastDate string `json:"lastDate,omitempty"`
}

// Tracker advances and reads streak state.
type Tracker struct {
	store kv.Store

	// Now reports the current time. Overridable in tests.
	Now func() time.Time
}

// NewTracker creates a streak tracker.
func NewTracker(store kv.Store) *Tracker {
	return &Tracker{store: store, Now: time.Now}
}

func key(fid int64) string {
	return fmt.Sprintf("streak:%d", fid)
}

func dateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Record registers a qualifying post for today. Idempotent per calendar
// day: a second call on the same UTC day returns the stored state
// without writing. A post the day after the last one extends the streak;
// any longer gap restarts it at one.
func (t *Tracker) Record(ctx context.Context, fid int64) (State, error) {
	st, err := t.load(ctx, fid)
	if err != nil {
		return State{}, err
	}

	now := t.Now()
	today := dateString(now)
	if st.LastDate == today {
		return st, nil
	}

	yesterday := dateString(now.Add(-24 * time.Hour))
	if st.LastDate == yesterday {
		st.Current++
	} else {
		st.Current = 1
	}
	if st.Current > st.Longest {
		st.Longest = st.Current
	}
	st.LastDate = today

	err = t.store.HSet(ctx, key(fid), map[string]string{
		"current":  strconv.FormatInt(st.Current, 10),
		"longest":  strconv.FormatInt(st.Longest, 10),
		"lastDate": st.LastDate,
	})
	if err != nil {
		return State{}, fmt.Errorf("save streak: %w", err)
	}
	return st, nil
}

// Peek reads the streak without writing. A streak whose last post is
// neither today nor yesterday is reported as broken (current zero);
// the stored value is only corrected by the next Record.
func (t *Tracker) Peek(ctx context.Context, fid int64) (State, error) {
	st, err := t.load(ctx, fid)
	if err != nil {
		return State{}, err
	}
	if st.LastDate == "" {
		return State{}, nil
	}
	now := t.Now()
	if st.LastDate != dateString(now) && st.LastDate != dateString(now.Add(-24*time.Hour)) {
		return State{Current: 0, Longest: st.Longest, LastDate: st.LastDate}, nil
	}
	return st, nil
}

func (t *Tracker) load(ctx context.Context, fid int64) (State, error) {
	data, err := t.store.HGetAll(ctx, key(fid))
	if err != nil {
		return State{}, fmt.Errorf("load streak: %w", err)
	}
	current, _ := strconv.ParseInt(data["current"], 10, 64)
	longest, _ := strconv.ParseInt(data["longest"], 10, 64)
	return State{Current: current, Longest: longest, LastDate: data["lastDate"]}, nil
}
