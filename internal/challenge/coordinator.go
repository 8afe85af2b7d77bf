// Package challenge runs the daily target-and-vote mini contest.
//
// Exactly one challenge is active at a time, held under a single keyed
// hash with a 24h TTL. Submissions, per-submission voter sets, and the
// global voted-today set all share that TTL and are left to expire on
// their own after resolution.
package challenge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/pkg/logger"
)

const (
	currentKey     = "challenge:current"
	submissionsKey = "challenge:submissions"
	votersKey      = "challenge:voters"
	winnerKey      = "challenge:winner"

	dayTTL = 24 * time.Hour
)

// Challenge is the active contest: a target user and its 24h window.
type Challenge struct {
	TargetFID      int64  `json:"targetFid"`
	TargetUsername string `json:"targetUsername"`
	TargetPfp      string `json:"targetPfp"`
	StartedAt      int64  `json:"startedAt"` // epoch ms
	ExpiresAt      int64  `json:"expiresAt"` // epoch ms
}

// Coordinator owns the challenge lifecycle.
type Coordinator struct {
	store kv.Store
	log   *logger.Logger

	// Now reports the current time. Overridable in tests.
	Now func() time.Time
}

// NewCoordinator creates a challenge coordinator.
func NewCoordinator(store kv.Store, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("challenge")
	}
	return &Coordinator{store: store, log: log, Now: time.Now}
}

func votesKey(roastID string) string {
	return "challenge:votes:" + roastID
}

// Current returns the active challenge, or nil when none is running.
func (c *Coordinator) Current(ctx context.Context) (*Challenge, error) {
	data, err := c.store.HGetAll(ctx, currentKey)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if data["targetFid"] == "" {
		return nil, nil
	}
	targetFID, _ := strconv.ParseInt(data["targetFid"], 10, 64)
	startedAt, _ := strconv.ParseInt(data["startedAt"], 10, 64)
	expiresAt, _ := strconv.ParseInt(data["expiresAt"], 10, 64)
	return &Challenge{
		TargetFID:      targetFID,
		TargetUsername: data["targetUsername"],
		TargetPfp:      data["targetPfp"],
		StartedAt:      startedAt,
		ExpiresAt:      expiresAt,
	}, nil
}

// SetCurrent replaces the active challenge wholesale. The caller picks
// the target (typically at random from a leaderboard snapshot); the
// coordinator only stores the result.
func (c *Coordinator) SetCurrent(ctx context.Context, ch Challenge) error {
	err := c.store.HSet(ctx, currentKey, map[string]string{
		"targetFid":      strconv.FormatInt(ch.TargetFID, 10),
		"targetUsername": ch.TargetUsername,
		"targetPfp":      ch.TargetPfp,
		"startedAt":      strconv.FormatInt(ch.StartedAt, 10),
		"expiresAt":      strconv.FormatInt(ch.ExpiresAt, 10),
	})
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	if err := c.store.Expire(ctx, currentKey, dayTTL); err != nil {
		return fmt.Errorf("arm challenge ttl: %w", err)
	}
	c.log.WithField("target_fid", ch.TargetFID).Info("challenge target set")
	return nil
}

// Submit appends a roast to the day's submission index, ranked by
// submission time. Whether the roast actually targets the challenge
// target is the caller's check, not ours.
func (c *Coordinator) Submit(ctx context.Context, roastID string) error {
	score := float64(c.Now().UnixMilli())
	if err := c.store.ZAdd(ctx, submissionsKey, score, roastID); err != nil {
		return fmt.Errorf("submit to challenge: %w", err)
	}
	return c.store.Expire(ctx, submissionsKey, dayTTL)
}

// Submissions returns the day's submissions, newest first.
func (c *Coordinator) Submissions(ctx context.Context) ([]string, error) {
	return c.store.ZRevRange(ctx, submissionsKey, 0, -1)
}

// Vote casts the voter's single daily vote for a submission. Returns
// false, without error, when the voter already voted today — on any
// submission.
func (c *Coordinator) Vote(ctx context.Context, roastID string, voterFID int64) (bool, error) {
	voter := strconv.FormatInt(voterFID, 10)
	already, err := c.store.SIsMember(ctx, votersKey, voter)
	if err != nil {
		return false, fmt.Errorf("check voter: %w", err)
	}
	if already {
		return false, nil
	}
	if _, err := c.store.SAdd(ctx, votesKey(roastID), voter); err != nil {
		return false, fmt.Errorf("record vote: %w", err)
	}
	if _, err := c.store.SAdd(ctx, votersKey, voter); err != nil {
		return false, fmt.Errorf("record voter: %w", err)
	}
	if err := c.store.Expire(ctx, votesKey(roastID), dayTTL); err != nil {
		return false, err
	}
	if err := c.store.Expire(ctx, votersKey, dayTTL); err != nil {
		return false, err
	}
	return true, nil
}

// VoteCount returns the number of votes a submission has collected.
func (c *Coordinator) VoteCount(ctx context.Context, roastID string) (int64, error) {
	return c.store.SCard(ctx, votesKey(roastID))
}

// HasVoted reports whether the user has spent today's vote.
func (c *Coordinator) HasVoted(ctx context.Context, fid int64) (bool, error) {
	return c.store.SIsMember(ctx, votersKey, strconv.FormatInt(fid, 10))
}

// PreviousWinner returns the last resolved winner's roast id, or "".
func (c *Coordinator) PreviousWinner(ctx context.Context) (string, error) {
	val, _, err := c.store.Get(ctx, winnerKey)
	return val, err
}

// Resolve closes out the day: the submission with the most votes wins.
// Equal non-zero vote counts go to whichever submission the scan meets
// first, which is the store's default order and implementation-defined.
// A day with no votes at all goes to the earliest submission. Returns
// "" when there were no submissions. Called by the external scheduler,
// never by user action.
func (c *Coordinator) Resolve(ctx context.Context) (string, error) {
	submissions, err := c.Submissions(ctx)
	if err != nil {
		return "", fmt.Errorf("load submissions: %w", err)
	}
	if len(submissions) == 0 {
		return "", nil
	}

	var winnerID string
	var maxVotes int64
	for _, roastID := range submissions {
		votes, err := c.VoteCount(ctx, roastID)
		if err != nil {
			return "", fmt.Errorf("count votes: %w", err)
		}
		if votes > maxVotes {
			maxVotes = votes
			winnerID = roastID
		}
	}

	// No votes cast: the earliest submission wins. Submissions scan
	// newest-first, so the earliest is the last element.
	if winnerID == "" {
		winnerID = submissions[len(submissions)-1]
	}

	if err := c.store.Set(ctx, winnerKey, winnerID, 0); err != nil {
		return "", fmt.Errorf("store winner: %w", err)
	}

	// Dated history record; submissions and voter sets expire on their own.
	if ch, err := c.Current(ctx); err == nil && ch != nil {
		dateKey := c.Now().UTC().Format("2006-01-02")
		err := c.store.HSet(ctx, "challenge:history:"+dateKey, map[string]string{
			"targetFid":        strconv.FormatInt(ch.TargetFID, 10),
			"winnerRoastId":    winnerID,
			"totalSubmissions": strconv.Itoa(len(submissions)),
		})
		if err != nil {
			c.log.WithError(err).Warn("failed to write challenge history")
		}
	}

	c.log.WithField("winner_roast_id", winnerID).
		WithField("submissions", len(submissions)).
		Info("challenge resolved")
	return winnerID, nil
}
