// Package app wires the ledger's services together and owns the
// cross-service flows: submitting a roast, toggling a reaction,
// generating roast text, and the daily challenge lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/roastcast/ledger/internal/achievement"
	"github.com/roastcast/ledger/internal/app/metrics"
	"github.com/roastcast/ledger/internal/battle"
	"github.com/roastcast/ledger/internal/bookmark"
	"github.com/roastcast/ledger/internal/challenge"
	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/leaderboard"
	"github.com/roastcast/ledger/internal/profile"
	"github.com/roastcast/ledger/internal/ratelimit"
	"github.com/roastcast/ledger/internal/reaction"
	"github.com/roastcast/ledger/internal/roast"
	"github.com/roastcast/ledger/internal/stats"
	"github.com/roastcast/ledger/internal/streak"
	"github.com/roastcast/ledger/internal/tips"
	"github.com/roastcast/ledger/pkg/logger"
)

// Submission failure modes surfaced to the API layer.
var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidText     = errors.New("roast text empty or too long")
	ErrInvalidTarget   = errors.New("invalid target fid")
	ErrPaymentRequired = errors.New("payment required for non-self roast")
	ErrRoastNotFound   = errors.New("roast not found")
)

// PaymentVerifier is the slice of the chain verifier the submit flow
// needs. Satisfied by chainpay.Verifier; tests stub it.
type PaymentVerifier interface {
	Verify(ctx context.Context, txHash string) error
	MarkUsed(ctx context.Context, txHash string) error
}

// TextGenerator produces roast text for a target. Satisfied by
// gen.Generator; tests stub it.
type TextGenerator interface {
	Generate(ctx context.Context, target *profile.Profile, casts []string, style roast.Style) (string, error)
}

// ProfileSource resolves user profiles. Satisfied by profile.Client.
type ProfileSource interface {
	ByFID(ctx context.Context, fid int64) (*profile.Profile, error)
	RecentCasts(ctx context.Context, fid int64) ([]string, error)
}

// Application ties the ledger services together.
type Application struct {
	Store        kv.Store
	Stats        *stats.Stats
	Roasts       *roast.Repository
	Reactions    *reaction.Ledger
	Boards       *leaderboard.Aggregator
	Streaks      *streak.Tracker
	Achievements *achievement.Engine
	Battles      *battle.Detector
	Challenges   *challenge.Coordinator
	Limits       *ratelimit.Limiter
	Bookmarks    *bookmark.Bookmarks
	Tips         *tips.Tips

	Notifier  RoastNotifier
	Payments  PaymentVerifier
	Generator TextGenerator
	Profiles  ProfileSource

	// run executes fire-and-forget work. Asynchronous in production,
	// synchronous in tests.
	run TaskRunner
	log *logger.Logger
}

// RoastNotifier is the notification surface the flows use. Satisfied by
// notify.Service; nil disables notifications.
type RoastNotifier interface {
	NotifyRoast(ctx context.Context, targetFID int64, roastID, senderUsername string)
	NotifyRoastBack(ctx context.Context, fid int64, roastID, senderUsername string)
	NotifyReaction(ctx context.Context, fid int64, roastID, emoji string)
}

// Options carries the optional collaborators for New.
type Options struct {
	Notifier  RoastNotifier
	Payments  PaymentVerifier
	Generator TextGenerator
	Profiles  ProfileSource

	// Runner overrides the default asynchronous task runner.
	Runner TaskRunner
}

// New builds a fully wired application over the given store.
func New(store kv.Store, opts Options, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	st := stats.New(store)
	boards := leaderboard.NewAggregator(store)
	roasts := roast.NewRepository(store, st, boards, log)
	reactions := reaction.NewLedger(store, roasts, st, boards, log)

	var notifier achievement.Notifier
	if n, ok := opts.Notifier.(achievement.Notifier); ok {
		notifier = n
	}
	achievements := achievement.NewEngine(store, st, roasts, notifier, log)

	runner := opts.Runner
	if runner == nil {
		runner = AsyncRunner(log)
	}

	return &Application{
		Store:        store,
		Stats:        st,
		Roasts:       roasts,
		Reactions:    reactions,
		Boards:       boards,
		Streaks:      streak.NewTracker(store),
		Achievements: achievements,
		Battles:      battle.NewDetector(store, roasts, log),
		Challenges:   challenge.NewCoordinator(store, log),
		Limits:       ratelimit.NewLimiter(store),
		Bookmarks:    bookmark.New(store, roasts),
		Tips:         tips.New(store),
		Notifier:     opts.Notifier,
		Payments:     opts.Payments,
		Generator:    opts.Generator,
		Profiles:     opts.Profiles,
		run:          runner,
		log:          log,
	}
}

// SubmitRequest is one roast submission, already authenticated.
type SubmitRequest struct {
	SenderFID         int64       `json:"senderFid"`
	SenderUsername    string      `json:"senderUsername"`
	SenderPfp         string      `json:"senderPfp"`
	TargetFID         int64       `json:"targetFid"`
	TargetUsername    string      `json:"targetUsername"`
	TargetDisplayName string      `json:"targetDisplayName"`
	TargetPfp         string      `json:"targetPfp"`
	TargetBio         string      `json:"targetBio"`
	Text              string      `json:"roastText"`
	Theme             roast.Theme `json:"theme"`
	Style             roast.Style `json:"style"`
	TxHash            string      `json:"txHash"`
	ParentID          string      `json:"parentRoastId"`
	ChallengeMode     bool        `json:"challengeMode"`
}

// SubmitRoast runs the full submission flow: rate limit, validation,
// payment verification for non-self roasts, persistence, streak and
// challenge bookkeeping, then asynchronous fan-out to notifications,
// battle detection and achievements.
func (a *Application) SubmitRoast(ctx context.Context, req SubmitRequest) (*roast.Roast, error) {
	allowed, err := a.Limits.Allow(ctx, req.SenderFID, ratelimit.ActionPost, ratelimit.PostLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if !allowed {
		metrics.RecordRateLimitRejection(ratelimit.ActionPost)
		return nil, ErrRateLimited
	}

	if req.Text == "" || len(req.Text) > roast.MaxTextLength {
		return nil, ErrInvalidText
	}
	if req.TargetFID <= 0 || req.SenderFID <= 0 {
		return nil, ErrInvalidTarget
	}

	selfRoast := req.SenderFID == req.TargetFID
	if !selfRoast && a.Payments != nil {
		if req.TxHash == "" {
			return nil, ErrPaymentRequired
		}
		if err := a.Payments.Verify(ctx, req.TxHash); err != nil {
			return nil, fmt.Errorf("verify payment: %w", err)
		}
	}

	rst := roast.Roast{
		ID:                roast.NewID(),
		SenderFID:         req.SenderFID,
		SenderUsername:    req.SenderUsername,
		SenderPfp:         req.SenderPfp,
		TargetFID:         req.TargetFID,
		TargetUsername:    req.TargetUsername,
		TargetDisplayName: req.TargetDisplayName,
		TargetPfp:         req.TargetPfp,
		TargetBio:         req.TargetBio,
		Text:              req.Text,
		Theme:             req.Theme,
		Style:             req.Style,
		SelfRoast:         selfRoast,
		TxHash:            req.TxHash,
		ParentID:          req.ParentID,
		Timestamp:         time.Now().UnixMilli(),
	}
	if err := a.Roasts.Create(ctx, rst); err != nil {
		return nil, err
	}
	metrics.RecordRoastCreated(selfRoast)

	// The hash is burned only after the roast persists, so a failed
	// submit never consumes the payment.
	if !selfRoast && a.Payments != nil {
		if err := a.Payments.MarkUsed(ctx, req.TxHash); err != nil {
			a.log.WithError(err).WithField("tx_hash", req.TxHash).Warn("failed to burn payment hash")
		}
	}

	if _, err := a.Streaks.Record(ctx, req.SenderFID); err != nil {
		a.log.WithError(err).WithField("fid", req.SenderFID).Warn("streak update failed")
	}

	if req.ChallengeMode {
		a.submitToChallenge(ctx, rst)
	}

	a.fanOut(rst)
	return &rst, nil
}

// submitToChallenge enters the roast into the active challenge when it
// actually targets the challenge target.
func (a *Application) submitToChallenge(ctx context.Context, rst roast.Roast) {
	current, err := a.Challenges.Current(ctx)
	if err != nil {
		a.log.WithError(err).Warn("failed to load active challenge")
		return
	}
	if current == nil || current.TargetFID != rst.TargetFID {
		return
	}
	if err := a.Challenges.Submit(ctx, rst.ID); err != nil {
		a.log.WithError(err).WithField("roast_id", rst.ID).Warn("challenge submission failed")
	}
}

// fanOut runs the best-effort post-submit work off the request path.
func (a *Application) fanOut(rst roast.Roast) {
	a.run("post-submit", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if a.Notifier != nil && !rst.SelfRoast {
			if rst.ParentID != "" {
				if parent, err := a.Roasts.Get(ctx, rst.ParentID); err == nil && parent != nil && parent.SenderFID == rst.TargetFID {
					a.Notifier.NotifyRoastBack(ctx, rst.TargetFID, rst.ID, rst.SenderUsername)
				} else {
					a.Notifier.NotifyRoast(ctx, rst.TargetFID, rst.ID, rst.SenderUsername)
				}
			} else {
				a.Notifier.NotifyRoast(ctx, rst.TargetFID, rst.ID, rst.SenderUsername)
			}
		}

		if rst.ParentID != "" {
			if err := a.Battles.OnReply(ctx, rst); err != nil {
				a.log.WithError(err).WithField("roast_id", rst.ID).Warn("battle detection failed")
			}
		}

		_, err := a.Achievements.Evaluate(ctx, achievement.TriggerRoastCreated, achievement.Context{
			FID:       rst.SenderFID,
			SelfRoast: rst.SelfRoast,
			ParentID:  rst.ParentID,
		})
		if err != nil {
			a.log.WithError(err).WithField("fid", rst.SenderFID).Warn("achievement evaluation failed")
		}
	})
}

// React toggles the caller's reaction on a roast and fans out the
// add-path side effects.
func (a *Application) React(ctx context.Context, roastID string, kind roast.Kind, fid int64) (reaction.Result, error) {
	allowed, err := a.Limits.Allow(ctx, fid, ratelimit.ActionReact, ratelimit.ReactLimit)
	if err != nil {
		return reaction.Result{}, fmt.Errorf("rate limit: %w", err)
	}
	if !allowed {
		metrics.RecordRateLimitRejection(ratelimit.ActionReact)
		return reaction.Result{}, ErrRateLimited
	}

	rst, err := a.Roasts.Get(ctx, roastID)
	if err != nil {
		return reaction.Result{}, err
	}
	if rst == nil {
		return reaction.Result{}, ErrRoastNotFound
	}

	result, err := a.Reactions.Toggle(ctx, roastID, kind, fid)
	if err != nil {
		return reaction.Result{}, err
	}

	added := false
	for _, k := range result.UserReactions {
		if k == kind {
			added = true
			break
		}
	}
	metrics.RecordReactionToggled(string(kind), added)

	if added {
		senderFID := rst.SenderFID
		a.run("post-react", func() {
			bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if a.Notifier != nil && senderFID != fid {
				a.Notifier.NotifyReaction(bg, senderFID, roastID, emojiFor(kind))
			}
			_, err := a.Achievements.Evaluate(bg, achievement.TriggerReactionReceived, achievement.Context{FID: senderFID})
			if err != nil {
				a.log.WithError(err).WithField("fid", senderFID).Warn("achievement evaluation failed")
			}
		})
	}
	return result, nil
}

func emojiFor(kind roast.Kind) string {
	switch kind {
	case roast.KindFire:
		return "🔥"
	case roast.KindSkull:
		return "💀"
	case roast.KindIce:
		return "🧊"
	case roast.KindClown:
		return "🤡"
	}
	return string(kind)
}

// GenerateRoast produces roast text for the target in the given style,
// seeded with their profile and recent casts.
func (a *Application) GenerateRoast(ctx context.Context, callerFID, targetFID int64, style roast.Style) (string, error) {
	allowed, err := a.Limits.Allow(ctx, callerFID, ratelimit.ActionGenerate, ratelimit.GenerateLimit)
	if err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	if !allowed {
		metrics.RecordRateLimitRejection(ratelimit.ActionGenerate)
		return "", ErrRateLimited
	}
	if a.Generator == nil || a.Profiles == nil {
		return "", errors.New("generation not configured")
	}

	target, err := a.Profiles.ByFID(ctx, targetFID)
	if err != nil {
		metrics.RecordGeneration("profile_error")
		return "", fmt.Errorf("resolve target: %w", err)
	}
	casts, err := a.Profiles.RecentCasts(ctx, targetFID)
	if err != nil {
		// Casts are seasoning, not a requirement.
		a.log.WithError(err).WithField("fid", targetFID).Warn("failed to load recent casts")
		casts = nil
	}

	text, err := a.Generator.Generate(ctx, target, casts, style)
	if err != nil {
		// Generation must never block the compose flow; serve a canned
		// line instead of an error.
		a.log.WithError(err).WithField("fid", targetFID).Warn("roast generation failed, using fallback")
		metrics.RecordGeneration("fallback")
		return fallbackRoasts[rand.Intn(len(fallbackRoasts))], nil
	}
	metrics.RecordGeneration("ok")
	return text, nil
}

// fallbackRoasts are served when the generator upstream is down.
var fallbackRoasts = []string{
	"Your timeline is so dry the algorithm filed a missing persons report.",
	"You post like someone who reads the terms of service for fun.",
	"Your takes are so lukewarm they come with a food safety warning.",
	"Even your notifications have stopped checking on you.",
}

// VoteChallenge casts the caller's daily challenge vote.
func (a *Application) VoteChallenge(ctx context.Context, roastID string, voterFID int64) (bool, error) {
	accepted, err := a.Challenges.Vote(ctx, roastID, voterFID)
	if err != nil {
		return false, err
	}
	if accepted {
		metrics.RecordChallengeVote()
	}
	return accepted, nil
}

// RotateChallenge resolves the expiring challenge and installs a fresh
// target drawn from the most-roasted weekly board. Called by the daily
// scheduler.
func (a *Application) RotateChallenge(ctx context.Context) error {
	winner, err := a.Challenges.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve challenge: %w", err)
	}
	if winner != "" {
		a.log.WithField("winner_roast_id", winner).Info("daily challenge resolved")
	}

	entries, err := a.Boards.Rank(ctx, leaderboard.MostRoasted, leaderboard.WindowAll, 20)
	if err != nil {
		return fmt.Errorf("pick challenge target: %w", err)
	}
	if len(entries) == 0 {
		a.log.Info("no candidates for next challenge target")
		return nil
	}
	pick := entries[rand.Intn(len(entries))]

	target := challenge.Challenge{
		TargetFID:      pick.FID,
		TargetUsername: profile.FallbackLabel(pick.FID),
		StartedAt:      time.Now().UnixMilli(),
		ExpiresAt:      time.Now().Add(24 * time.Hour).UnixMilli(),
	}
	if a.Profiles != nil {
		if p, err := a.Profiles.ByFID(ctx, pick.FID); err == nil && p.Username != "" {
			target.TargetUsername = p.Username
			target.TargetPfp = p.PfpURL
		} else if err != nil {
			a.log.WithError(err).WithField("fid", pick.FID).Warn("failed to resolve challenge target profile")
		}
	}
	return a.Challenges.SetCurrent(ctx, target)
}
