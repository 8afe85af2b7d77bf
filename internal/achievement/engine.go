// Package achievement evaluates the award rules after qualifying actions.
package achievement

import (
	"context"
	"fmt"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/roast"
	"github.com/roastcast/ledger/internal/stats"
	"github.com/roastcast/ledger/pkg/logger"
)

// Trigger names the action that prompted an evaluation pass.
type Trigger string

const (
	TriggerRoastCreated     Trigger = "roast-created"
	TriggerReactionReceived Trigger = "reaction-received"
)

// Achievement identifiers.
const (
	FirstRoast       = "first-roast"
	TenRoasts        = "10-roasts"
	HundredReactions = "100-reactions"
	ChainMaster      = "chain-x3"
	SelfRoaster      = "self-roaster"
)

// Definition describes an achievement for display.
type Definition struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Emoji     string `json:"emoji"`
	Condition string `json:"condition"`
}

// Definitions lists every achievement in display order.
var Definitions = []Definition{
	{ID: FirstRoast, Label: "First Roast", Emoji: "\U0001F31F", Condition: "Sent your first roast"},
	{ID: TenRoasts, Label: "Serial Roaster", Emoji: "\U0001F525", Condition: "Sent 10+ roasts"},
	{ID: HundredReactions, Label: "Crowd Favorite", Emoji: "\U0001F3C6", Condition: "100+ total reactions received"},
	{ID: ChainMaster, Label: "Chain Master", Emoji: "⛓️", Condition: "Participated in a 3+ roast chain"},
	{ID: SelfRoaster, Label: "Self-Roaster", Emoji: "\U0001FA9E", Condition: "Sent a self-roast"},
}

// DefinitionByID returns the definition for an id, if known.
func DefinitionByID(id string) (Definition, bool) {
	for _, d := range Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Notifier delivers the "you earned a badge" push, best effort.
type Notifier interface {
	NotifyAchievement(ctx context.Context, fid int64, label, emoji string)
}

// Context carries the facts about the triggering action.
type Context struct {
	FID       int64
	SelfRoast bool
	ParentID  string
}

// Engine evaluates the rule table against current statistics.
type Engine struct {
	store    kv.Store
	stats    *stats.Stats
	repo     *roast.Repository
	notifier Notifier
	log      *logger.Logger
}

// NewEngine creates an achievement engine. notifier may be nil.
func NewEngine(store kv.Store, st *stats.Stats, repo *roast.Repository, notifier Notifier, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("achievement")
	}
	return &Engine{store: store, stats: st, repo: repo, notifier: notifier, log: log}
}

func key(fid int64) string {
	return fmt.Sprintf("achievements:%d", fid)
}

// Held returns the achievements the user already has.
func (e *Engine) Held(ctx context.Context, fid int64) ([]string, error) {
	return e.store.SMembers(ctx, key(fid))
}

// award adds the id to the user's set. The set-add is the idempotence
// check: only the writer that actually inserted the member reports true.
func (e *Engine) award(ctx context.Context, fid int64, id string) (bool, error) {
	added, err := e.store.SAdd(ctx, key(fid), id)
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// Evaluate runs every rule for the trigger and awards whatever newly
// qualifies. All satisfied rules fire in one pass, not just the first.
// Only ids actually added are returned, and only those get a
// notification.
func (e *Engine) Evaluate(ctx context.Context, trigger Trigger, evCtx Context) ([]string, error) {
	userStats, err := e.stats.Get(ctx, evCtx.FID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	existing, err := e.Held(ctx, evCtx.FID)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	held := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		held[id] = struct{}{}
	}

	type rule struct {
		id        string
		satisfied bool
	}
	onCreate := trigger == TriggerRoastCreated
	checks := []rule{
		{FirstRoast, onCreate && userStats.Sent >= 1},
		{TenRoasts, onCreate && userStats.Sent >= 10},
		{HundredReactions, userStats.Reactions >= 100},
		{SelfRoaster, onCreate && evCtx.SelfRoast},
	}

	if onCreate && evCtx.ParentID != "" {
		chain, err := e.repo.Chain(ctx, evCtx.ParentID)
		if err != nil {
			e.log.WithError(err).WithField("parent_id", evCtx.ParentID).Warn("chain check failed")
		} else if len(chain) >= 2 {
			checks = append(checks, rule{ChainMaster, true})
		}
	}

	var newlyAwarded []string
	for _, check := range checks {
		if !check.satisfied {
			continue
		}
		if _, has := held[check.id]; has {
			continue
		}
		added, err := e.award(ctx, evCtx.FID, check.id)
		if err != nil {
			e.log.WithError(err).WithField("achievement", check.id).Warn("award failed")
			continue
		}
		if !added {
			continue
		}
		newlyAwarded = append(newlyAwarded, check.id)
		e.log.WithField("fid", evCtx.FID).
			WithField("achievement", check.id).
			Info("achievement awarded")
		if e.notifier != nil {
			if def, ok := DefinitionByID(check.id); ok {
				e.notifier.NotifyAchievement(ctx, evCtx.FID, def.Label, def.Emoji)
			}
		}
	}
	return newlyAwarded, nil
}
