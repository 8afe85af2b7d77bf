// Package httpapi exposes the ledger over REST.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roastcast/ledger/internal/app"
	"github.com/roastcast/ledger/internal/app/metrics"
	"github.com/roastcast/ledger/internal/auth"
	"github.com/roastcast/ledger/internal/notify"
	"github.com/roastcast/ledger/internal/profile"
	"github.com/roastcast/ledger/pkg/logger"
)

const fidKey = "fid"

// Server bundles the HTTP handlers over the application.
type Server struct {
	app           *app.Application
	verifier      auth.Verifier
	profiles      *profile.Client
	tokens        *notify.TokenStore
	notifications *notify.Service
	log           *logger.Logger

	// AllowedOrigins restricts CORS; empty or "*" allows all.
	AllowedOrigins []string
}

// NewServer creates the API server. profiles, tokens and notifications
// may be nil; their routes then return 503.
func NewServer(application *app.Application, verifier auth.Verifier, profiles *profile.Client, tokens *notify.TokenStore, notifications *notify.Service, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Server{
		app:           application,
		verifier:      verifier,
		profiles:      profiles,
		tokens:        tokens,
		notifications: notifications,
		log:           log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(s.AllowedOrigins), metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/roasts", s.listRoasts)
		api.GET("/roasts/:id", s.getRoast)
		api.GET("/roasts/:id/chain", s.getChain)
		api.GET("/roasts/style/:style", s.listByStyle)
		api.GET("/users/:fid/sent", s.userSent)
		api.GET("/users/:fid/received", s.userReceived)
		api.GET("/users/:fid/stats", s.userStats)
		api.GET("/users/:fid/streak", s.userStreak)
		api.GET("/users/:fid/achievements", s.userAchievements)
		api.GET("/users/:fid/tips", s.userTips)
		api.GET("/leaderboard", s.leaderboard)
		api.GET("/trending", s.trending)
		api.GET("/battles", s.battles)
		api.GET("/challenge", s.currentChallenge)
		api.GET("/challenge/submissions", s.challengeSubmissions)
		api.GET("/profiles/search", s.searchProfiles)

		authed := api.Group("", s.requireAuth())
		{
			authed.POST("/roasts", s.submitRoast)
			authed.POST("/roasts/:id/reactions", s.toggleReaction)
			authed.POST("/roasts/:id/bookmark", s.toggleBookmark)
			authed.GET("/bookmarks", s.listBookmarks)
			authed.POST("/generate", s.generateRoast)
			authed.POST("/streak", s.recordStreak)
			authed.POST("/challenge/vote", s.voteChallenge)
			authed.POST("/challenge/reset", s.resetChallenge)
			authed.POST("/tips", s.recordTip)
			authed.GET("/notifications", s.listNotifications)
			authed.POST("/notifications/read", s.markNotificationsRead)
			authed.POST("/notifications/token", s.savePushToken)
			authed.DELETE("/notifications/token", s.deletePushToken)
		}
	}
	return r
}

// requireAuth validates the bearer token and stashes the caller's fid.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		fid, err := s.verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(fidKey, fid)
		c.Next()
	}
}

func callerFID(c *gin.Context) int64 {
	return c.GetInt64(fidKey)
}

func pathFID(c *gin.Context) (int64, bool) {
	fid, err := strconv.ParseInt(c.Param("fid"), 10, 64)
	if err != nil || fid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fid"})
		return 0, false
	}
	return fid, true
}

func paging(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
