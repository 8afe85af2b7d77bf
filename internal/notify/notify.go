// Package notify delivers best-effort notifications: an in-app feed kept
// in the store, plus push delivery through saved client tokens. Nothing
// here is allowed to fail a primary action — every entry point swallows
// and logs its errors.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/pkg/logger"
)

const (
	feedLimit = 50
	tokenTTL  = 7 * 24 * time.Hour
)

// InAppNotification is one entry in a user's notification feed.
type InAppNotification struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // roast, roast-back, reaction, achievement, tip
	Title     string `json:"title"`
	Body      string `json:"body"`
	RoastID   string `json:"roastId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Read      bool   `json:"read"`
}

// TokenDetails is a client push endpoint: where to POST and what bearer
// token to include.
type TokenDetails struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Dispatcher delivers a push notification. Implementations are
// best-effort; the ledger never blocks on or retries delivery.
type Dispatcher interface {
	Send(ctx context.Context, fid int64, title, body, targetURL string) error
}

// Service maintains the in-app feed and fans out pushes.
type Service struct {
	store      kv.Store
	dispatcher Dispatcher
	appURL     string
	log        *logger.Logger
}

// NewService creates a notification service. dispatcher may be nil, in
// which case only the in-app feed is written.
func NewService(store kv.Store, dispatcher Dispatcher, appURL string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &Service{store: store, dispatcher: dispatcher, appURL: appURL, log: log}
}

func feedKey(fid int64) string   { return fmt.Sprintf("notifications:%d", fid) }
func unreadKey(fid int64) string { return fmt.Sprintf("notifications:unread:%d", fid) }

// Store appends a notification to the user's feed, trimming it to the
// newest entries, and bumps the unread counter.
func (s *Service) Store(ctx context.Context, fid int64, notif InAppNotification) error {
	if notif.ID == "" {
		notif.ID = uuid.New().String()
	}
	if notif.Timestamp == 0 {
		notif.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.store.LPush(ctx, feedKey(fid), string(data)); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	if err := s.store.LTrim(ctx, feedKey(fid), 0, feedLimit-1); err != nil {
		return fmt.Errorf("trim notifications: %w", err)
	}
	if _, err := s.store.Incr(ctx, unreadKey(fid)); err != nil {
		return fmt.Errorf("bump unread: %w", err)
	}
	return nil
}

// List returns the user's feed, newest first.
func (s *Service) List(ctx context.Context, fid int64) ([]InAppNotification, error) {
	raw, err := s.store.LRange(ctx, feedKey(fid), 0, feedLimit-1)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]InAppNotification, 0, len(raw))
	for _, item := range raw {
		var n InAppNotification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead zeroes the unread counter.
func (s *Service) MarkRead(ctx context.Context, fid int64) error {
	return s.store.Set(ctx, unreadKey(fid), "0", 0)
}

// UnreadCount returns how many notifications arrived since the last
// MarkRead.
func (s *Service) UnreadCount(ctx context.Context, fid int64) (int64, error) {
	val, ok, err := s.store.Get(ctx, unreadKey(fid))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode unread count: %w", err)
	}
	return n, nil
}

// deliver writes the in-app entry and pushes, logging rather than
// surfacing failures.
func (s *Service) deliver(ctx context.Context, fid int64, notif InAppNotification) {
	if err := s.Store(ctx, fid, notif); err != nil {
		s.log.WithError(err).WithField("fid", fid).Warn("in-app notification failed")
	}
	if s.dispatcher == nil {
		return
	}
	link := s.appURL
	if notif.RoastID != "" {
		link = s.appURL + "/roast/" + notif.RoastID
	}
	if err := s.dispatcher.Send(ctx, fid, notif.Title, notif.Body, link); err != nil {
		s.log.WithError(err).WithField("fid", fid).Warn("push delivery failed")
	}
}

// NotifyRoast tells a user they just got roasted.
func (s *Service) NotifyRoast(ctx context.Context, targetFID int64, roastID, senderUsername string) {
	s.deliver(ctx, targetFID, InAppNotification{
		Type:    "roast",
		Title:   "You got roasted! 🔥",
		Body:    fmt.Sprintf("@%s just roasted you. See the damage.", senderUsername),
		RoastID: roastID,
	})
}

// NotifyRoastBack tells the original roaster the target fired back.
func (s *Service) NotifyRoastBack(ctx context.Context, fid int64, roastID, senderUsername string) {
	s.deliver(ctx, fid, InAppNotification{
		Type:    "roast-back",
		Title:   "Roast battle! ⚔️",
		Body:    fmt.Sprintf("@%s roasted you back. Your move.", senderUsername),
		RoastID: roastID,
	})
}

// NotifyReaction tells a roast's author someone reacted.
func (s *Service) NotifyReaction(ctx context.Context, fid int64, roastID, emoji string) {
	s.deliver(ctx, fid, InAppNotification{
		Type:    "reaction",
		Title:   "New reaction " + emoji,
		Body:    "Someone reacted to your roast.",
		RoastID: roastID,
		Emoji:   emoji,
	})
}

// NotifyAchievement tells a user they earned a badge. Satisfies the
// achievement engine's Notifier contract.
func (s *Service) NotifyAchievement(ctx context.Context, fid int64, label, emoji string) {
	s.deliver(ctx, fid, InAppNotification{
		Type:  "achievement",
		Title: "Achievement unlocked " + emoji,
		Body:  label,
	})
}
