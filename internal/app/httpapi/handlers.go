package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roastcast/ledger/internal/app"
	"github.com/roastcast/ledger/internal/battle"
	"github.com/roastcast/ledger/internal/chainpay"
	"github.com/roastcast/ledger/internal/leaderboard"
	"github.com/roastcast/ledger/internal/notify"
	"github.com/roastcast/ledger/internal/profile"
	"github.com/roastcast/ledger/internal/reaction"
	"github.com/roastcast/ledger/internal/roast"
)

// usernameLabels resolves display handles for the given fids, degrading
// to the "fid:<id>" label when the profile provider is absent or fails.
func (s *Server) usernameLabels(c *gin.Context, fids []int64) map[int64]string {
	if s.profiles != nil {
		return s.profiles.Labels(c.Request.Context(), fids)
	}
	labels := make(map[int64]string, len(fids))
	for _, fid := range fids {
		labels[fid] = profile.FallbackLabel(fid)
	}
	return labels
}

func (s *Server) submitRoast(c *gin.Context) {
	var req app.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.SenderFID = callerFID(c)

	rst, err := s.app.SubmitRoast(c.Request.Context(), req)
	if err != nil {
		s.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rst)
}

func (s *Server) writeSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	case errors.Is(err, app.ErrInvalidText), errors.Is(err, app.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment required"})
	case errors.Is(err, chainpay.ErrTxNotFound), errors.Is(err, chainpay.ErrTxFailed), errors.Is(err, chainpay.ErrTxUsed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).Error("roast submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) listRoasts(c *gin.Context) {
	offset, limit := paging(c)
	roasts, err := s.app.Roasts.Recent(c.Request.Context(), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roasts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roasts": roasts, "count": len(roasts)})
}

func (s *Server) getRoast(c *gin.Context) {
	rst, err := s.app.Roasts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roast"})
		return
	}
	if rst == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "roast not found"})
		return
	}
	counts, err := s.app.Reactions.CountsFor(c.Request.Context(), rst.ID)
	if err == nil {
		rst.Reactions = counts
		// The cached scalar can trail the membership sets; keep the
		// response internally consistent.
		var total int64
		for _, n := range counts {
			total += n
		}
		rst.ReactionCount = total
	}
	c.JSON(http.StatusOK, rst)
}

func (s *Server) getChain(c *gin.Context) {
	rootID := c.Param("id")
	root, err := s.app.Roasts.Get(c.Request.Context(), rootID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roast"})
		return
	}
	if root == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "roast not found"})
		return
	}
	replies, err := s.app.Roasts.Chain(c.Request.Context(), rootID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chain"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"root": root, "replies": replies})
}

func (s *Server) listByStyle(c *gin.Context) {
	offset, limit := paging(c)
	roasts, err := s.app.Roasts.ByStyle(c.Request.Context(), roast.Style(c.Param("style")), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roasts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roasts": roasts, "count": len(roasts)})
}

func (s *Server) toggleReaction(c *gin.Context) {
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.app.React(c.Request.Context(), c.Param("id"), roast.Kind(body.Emoji), callerFID(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, reaction.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown reaction"})
	case errors.Is(err, app.ErrRoastNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "roast not found"})
	case errors.Is(err, app.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	default:
		s.log.WithError(err).Error("reaction toggle failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) toggleBookmark(c *gin.Context) {
	saved, err := s.app.Bookmarks.Toggle(c.Request.Context(), callerFID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle bookmark"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": saved})
}

func (s *Server) listBookmarks(c *gin.Context) {
	roasts, err := s.app.Bookmarks.List(c.Request.Context(), callerFID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookmarks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roasts": roasts, "count": len(roasts)})
}

func (s *Server) userSent(c *gin.Context) {
	fid, ok := pathFID(c)
	if !ok {
		return
	}
	roasts, err := s.app.Roasts.SentBy(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roasts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roasts": roasts, "count": len(roasts)})
}

func (s *Server) userReceived(c *gin.Context) {
	fid, ok := pathFID(c)
	if !ok {
		return
	}
	roasts, err := s.app.Roasts.ReceivedBy(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roasts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roasts": roasts, "count": len(roasts)})
}

func (s *Server) userStats(c *gin.Context) {
	fid, ok := pathFID(c)
	if !ok {
		return
	}
	stats, err := s.app.Stats.Get(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) userStreak(c *gin.Context) {
	fid, ok := pathFID(c)
	if !ok {
		return
	}
	state, err := s.app.Streaks.Peek(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load streak"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) recordStreak(c *gin.Context) {
	state, err := s.app.Streaks.Record(c.Request.Context(), callerFID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record streak"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) userAchievements(c *gin.Context) {
	fid, ok := pathFID(c)
	if !ok {
		return
	}
	held, err := s.app.Achievements.Held(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load achievements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": held})
}

func (s *Server) userTips(c *gin.Context) {
	fid, ok := pathFID(c)
	if !ok {
		return
	}
	received, err := s.app.Tips.Received(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tips"})
		return
	}
	sent, err := s.app.Tips.Sent(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tips"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": received, "sent": sent})
}

func (s *Server) recordTip(c *gin.Context) {
	var body struct {
		RoastID      string `json:"roastId"`
		RecipientFID int64  `json:"recipientFid"`
		Amount       string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.RoastID == "" || body.RecipientFID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.app.Tips.Record(c.Request.Context(), body.RoastID, callerFID(c), body.RecipientFID, body.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to record tip"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) leaderboard(c *gin.Context) {
	metric := leaderboard.Metric(c.DefaultQuery("metric", string(leaderboard.MostRoasted)))
	window := leaderboard.Window(c.DefaultQuery("window", string(leaderboard.WindowAll)))
	_, limit := paging(c)

	entries, err := s.app.Boards.Rank(c.Request.Context(), metric, window, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fids := make([]int64, len(entries))
	for i, e := range entries {
		fids[i] = e.FID
	}
	labels := s.usernameLabels(c, fids)

	type rankedEntry struct {
		leaderboard.Entry
		Username string `json:"username"`
	}
	out := make([]rankedEntry, len(entries))
	for i, e := range entries {
		out[i] = rankedEntry{Entry: e, Username: labels[e.FID]}
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "window": window, "entries": out})
}

func (s *Server) trending(c *gin.Context) {
	_, limit := paging(c)
	ids, err := s.app.Boards.Trending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trending"})
		return
	}
	roasts := make([]roast.Roast, 0, len(ids))
	for _, id := range ids {
		rst, err := s.app.Roasts.Get(c.Request.Context(), id)
		if err != nil || rst == nil {
			continue
		}
		roasts = append(roasts, *rst)
	}
	c.JSON(http.StatusOK, gin.H{"roasts": roasts, "count": len(roasts)})
}

func (s *Server) battles(c *gin.Context) {
	_, limit := paging(c)
	battles, err := s.app.Battles.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load battles"})
		return
	}

	fids := make([]int64, 0, len(battles)*2)
	for _, b := range battles {
		fids = append(fids, b.User1FID, b.User2FID)
	}
	labels := s.usernameLabels(c, fids)

	type battleView struct {
		battle.Battle
		User1Username string `json:"user1Username"`
		User2Username string `json:"user2Username"`
	}
	out := make([]battleView, len(battles))
	for i, b := range battles {
		out[i] = battleView{
			Battle:        b,
			User1Username: labels[b.User1FID],
			User2Username: labels[b.User2FID],
		}
	}
	c.JSON(http.StatusOK, gin.H{"battles": out, "count": len(out)})
}

func (s *Server) currentChallenge(c *gin.Context) {
	ch, err := s.app.Challenges.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load challenge"})
		return
	}
	if ch == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	winner, err := s.app.Challenges.PreviousWinner(c.Request.Context())
	if err != nil {
		winner = ""
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "challenge": ch, "previousWinner": winner})
}

func (s *Server) challengeSubmissions(c *gin.Context) {
	ids, err := s.app.Challenges.Submissions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load submissions"})
		return
	}
	type entry struct {
		Roast *roast.Roast `json:"roast"`
		Votes int64        `json:"votes"`
	}
	out := make([]entry, 0, len(ids))
	for _, id := range ids {
		rst, err := s.app.Roasts.Get(c.Request.Context(), id)
		if err != nil || rst == nil {
			continue
		}
		votes, err := s.app.Challenges.VoteCount(c.Request.Context(), id)
		if err != nil {
			votes = 0
		}
		out = append(out, entry{Roast: rst, Votes: votes})
	}
	c.JSON(http.StatusOK, gin.H{"submissions": out, "count": len(out)})
}

func (s *Server) voteChallenge(c *gin.Context) {
	var body struct {
		RoastID string `json:"roastId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.RoastID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	accepted, err := s.app.VoteChallenge(c.Request.Context(), body.RoastID, callerFID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record vote"})
		return
	}
	if !accepted {
		c.JSON(http.StatusConflict, gin.H{"error": "already voted today"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// resetChallenge triggers the resolve-and-rotate cycle on demand. The
// scheduler runs the same cycle nightly.
func (s *Server) resetChallenge(c *gin.Context) {
	if err := s.app.RotateChallenge(c.Request.Context()); err != nil {
		s.log.WithError(err).Error("challenge reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset challenge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) generateRoast(c *gin.Context) {
	var body struct {
		TargetFID int64  `json:"targetFid"`
		Style     string `json:"style"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.TargetFID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	text, err := s.app.GenerateRoast(c.Request.Context(), callerFID(c), body.TargetFID, roast.Style(body.Style))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"roast": text})
	case errors.Is(err, app.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	default:
		s.log.WithError(err).Error("roast generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed"})
	}
}

func (s *Server) searchProfiles(c *gin.Context) {
	if s.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile lookup not configured"})
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}
	results, err := s.profiles.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "profile search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}

func (s *Server) listNotifications(c *gin.Context) {
	if s.notifications == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications not configured"})
		return
	}
	fid := callerFID(c)
	feed, err := s.notifications.List(c.Request.Context(), fid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	unread, err := s.notifications.UnreadCount(c.Request.Context(), fid)
	if err != nil {
		unread = 0
	}
	c.JSON(http.StatusOK, gin.H{"notifications": feed, "unread": unread})
}

func (s *Server) markNotificationsRead(c *gin.Context) {
	if s.notifications == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications not configured"})
		return
	}
	if err := s.notifications.MarkRead(c.Request.Context(), callerFID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) savePushToken(c *gin.Context) {
	if s.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push not configured"})
		return
	}
	var body notify.TokenDetails
	if err := c.ShouldBindJSON(&body); err != nil || body.URL == "" || body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.tokens.Save(c.Request.Context(), callerFID(c), body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) deletePushToken(c *gin.Context) {
	if s.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push not configured"})
		return
	}
	if err := s.tokens.Delete(c.Request.Context(), callerFID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
