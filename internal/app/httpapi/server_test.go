package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastcast/ledger/internal/app"
	"github.com/roastcast/ledger/internal/auth"
	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/notify"
	"github.com/roastcast/ledger/internal/profile"
	"github.com/roastcast/ledger/internal/roast"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, target *profile.Profile, casts []string, style roast.Style) (string, error) {
	return "generated burn", nil
}

type stubProfiles struct{}

func (stubProfiles) ByFID(ctx context.Context, fid int64) (*profile.Profile, error) {
	return &profile.Profile{FID: fid, Username: "roastee"}, nil
}

func (stubProfiles) RecentCasts(ctx context.Context, fid int64) ([]string, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *app.Application) {
	t.Helper()
	store := kv.NewMemoryStore()
	application := app.New(store, app.Options{
		Generator: stubGenerator{},
		Profiles:  stubProfiles{},
		Runner:    app.SyncRunner(),
	}, nil)
	verifier := auth.StaticVerifier{"token-1": 1, "token-2": 2}
	tokens := notify.NewTokenStore(store)
	notifications := notify.NewService(store, nil, "https://roast.example", nil)
	return NewServer(application, verifier, nil, tokens, notifications, nil), application
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doRequest(t, server.Router(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	server, _ := newTestServer(t)
	server.AllowedOrigins = []string{"https://roast.example"}
	router := server.Router()

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/roasts", nil)
		req.Header.Set("Origin", "https://roast.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://roast.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSubmitRequiresAuth(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/roasts", "", map[string]interface{}{
		"targetFid": 2, "roastText": "burn",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/roasts", "bad-token", map[string]interface{}{
		"targetFid": 2, "roastText": "burn",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitAndFetchRoast(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/roasts", "token-1", map[string]interface{}{
		"targetFid":      1, // self roast, no payment configured
		"targetUsername": "sender",
		"roastText":      "I roast myself before anyone else can",
		"theme":          "inferno",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created roast.Roast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.SelfRoast)
	// The caller's identity comes from the token, not the body.
	assert.Equal(t, int64(1), created.SenderFID)

	t.Run("fetch by id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/roasts/"+created.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got roast.Roast
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("appears in feed", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/roasts", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var feed struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
		assert.Equal(t, 1, feed.Count)
	})

	t.Run("missing roast is 404", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/roasts/nope00000000", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReactionEndpoint(t *testing.T) {
	server, application := newTestServer(t)
	router := server.Router()

	rst, err := application.SubmitRoast(context.Background(), app.SubmitRequest{
		SenderFID: 1, TargetFID: 1, Text: "self burn", Theme: roast.ThemeInferno,
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/roasts/"+rst.ID+"/reactions", "token-2", map[string]string{
		"emoji": "fire",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.Total)

	t.Run("unknown emoji", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/roasts/"+rst.ID+"/reactions", "token-2", map[string]string{
			"emoji": "thumbsup",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing roast", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/roasts/ghost0000001/reactions", "token-2", map[string]string{
			"emoji": "fire",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("fetch reflects membership counts", func(t *testing.T) {
		// Toggle the reaction back off; the response total must track the
		// membership sets, not the cached scalar on the record.
		rec := doRequest(t, router, http.MethodPost, "/api/roasts/"+rst.ID+"/reactions", "token-2", map[string]string{
			"emoji": "fire",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(t, router, http.MethodGet, "/api/roasts/"+rst.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got roast.Roast
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Zero(t, got.ReactionCount)
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, application := newTestServer(t)
	router := server.Router()

	_, err := application.SubmitRoast(context.Background(), app.SubmitRequest{
		SenderFID: 1, TargetFID: 1, Text: "burn", Theme: roast.ThemeInferno,
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/api/leaderboard?metric=most-roasted&window=all", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []struct {
			FID      int64   `json:"fid"`
			Score    float64 `json:"score"`
			Username string  `json:"username"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, int64(1), body.Entries[0].FID)
	// Without a profile provider every entry still gets a usable handle.
	assert.Equal(t, "fid:1", body.Entries[0].Username)

	t.Run("unknown metric", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/leaderboard?metric=tallest", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserEndpoints(t *testing.T) {
	server, application := newTestServer(t)
	router := server.Router()

	_, err := application.SubmitRoast(context.Background(), app.SubmitRequest{
		SenderFID: 1, TargetFID: 1, Text: "burn", Theme: roast.ThemeInferno,
	})
	require.NoError(t, err)

	for _, path := range []string{"sent", "received", "stats", "streak", "achievements"} {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/users/1/%s", path), "", nil)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	t.Run("bad fid", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/users/zero/stats", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGenerateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/generate", "token-1", map[string]interface{}{
		"targetFid": 42, "style": "savage",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Roast string `json:"roast"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "generated burn", body.Roast)
}

func TestBookmarkEndpoints(t *testing.T) {
	server, application := newTestServer(t)
	router := server.Router()

	rst, err := application.SubmitRoast(context.Background(), app.SubmitRequest{
		SenderFID: 1, TargetFID: 1, Text: "keeper", Theme: roast.ThemeInferno,
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/roasts/"+rst.ID+"/bookmark", "token-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled struct {
		Bookmarked bool `json:"bookmarked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.True(t, toggled.Bookmarked)

	rec = doRequest(t, router, http.MethodGet, "/api/bookmarks", "token-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

func TestNotificationEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	t.Run("save token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/notifications/token", "token-1", map[string]string{
			"url": "https://client.example/push", "token": "tok",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list empty", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/notifications", "token-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Unread int64 `json:"unread"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Zero(t, body.Unread)
	})

	t.Run("delete token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodDelete, "/api/notifications/token", "token-1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
