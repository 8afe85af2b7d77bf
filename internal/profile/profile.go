// Package profile resolves Farcaster user profiles through a Neynar-style
// HTTP API, with a short store-backed cache in front of it.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/pkg/logger"
)

const (
	cacheTTL        = time.Hour
	searchLimit     = 10
	recentCastLimit = 8
)

// Profile is the subset of a Farcaster user we care about.
type Profile struct {
	FID            int64  `json:"fid"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	PfpURL         string `json:"pfpUrl"`
	Bio            string `json:"bio"`
	FollowerCount  int64  `json:"followerCount"`
	FollowingCount int64  `json:"followingCount"`
}

// Client fetches profiles from the upstream API, caching hits for an
// hour so repeated roast flows don't hammer it.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	store   kv.Store
	log     *logger.Logger
}

// NewClient creates a profile client. store may be nil to disable the
// cache, which tests use.
func NewClient(baseURL, apiKey string, store kv.Store, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("profile")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
		log:     log,
	}
}

func cacheKey(fid int64) string { return fmt.Sprintf("profile:%d", fid) }

// FallbackLabel is the degraded display handle used when a profile
// cannot be resolved.
func FallbackLabel(fid int64) string { return fmt.Sprintf("fid:%d", fid) }

// ByFID resolves a profile by fid, consulting the cache first.
func (c *Client) ByFID(ctx context.Context, fid int64) (*Profile, error) {
	if c.store != nil {
		if val, ok, err := c.store.Get(ctx, cacheKey(fid)); err == nil && ok {
			var p Profile
			if err := json.Unmarshal([]byte(val), &p); err == nil {
				return &p, nil
			}
		}
	}

	body, err := c.get(ctx, "/v2/farcaster/user/bulk", url.Values{"fids": {fmt.Sprintf("%d", fid)}})
	if err != nil {
		return nil, err
	}
	user := gjson.GetBytes(body, "users.0")
	if !user.Exists() {
		return nil, fmt.Errorf("profile %d not found", fid)
	}
	p := parseUser(user)

	if c.store != nil {
		if data, err := json.Marshal(p); err == nil {
			if err := c.store.Set(ctx, cacheKey(fid), string(data), cacheTTL); err != nil {
				c.log.WithError(err).WithField("fid", fid).Warn("profile cache write failed")
			}
		}
	}
	return &p, nil
}

// Labels resolves display handles for a batch of fids in one bulk call.
// Every requested fid gets a label: fids the upstream cannot resolve,
// and the whole batch on upstream failure, degrade to "fid:<id>".
func (c *Client) Labels(ctx context.Context, fids []int64) map[int64]string {
	labels := make(map[int64]string, len(fids))
	for _, fid := range fids {
		labels[fid] = FallbackLabel(fid)
	}
	if len(fids) == 0 {
		return labels
	}

	list := make([]string, len(fids))
	for i, fid := range fids {
		list[i] = fmt.Sprintf("%d", fid)
	}
	body, err := c.get(ctx, "/v2/farcaster/user/bulk", url.Values{"fids": {strings.Join(list, ",")}})
	if err != nil {
		c.log.WithError(err).Warn("bulk profile lookup failed, using fallback labels")
		return labels
	}
	gjson.GetBytes(body, "users").ForEach(func(_, user gjson.Result) bool {
		if fid, username := user.Get("fid").Int(), user.Get("username").String(); fid != 0 && username != "" {
			labels[fid] = username
		}
		return true
	})
	return labels
}

// ByUsername resolves a profile by handle. Not cached: handle lookups
// are rare compared to fid lookups.
func (c *Client) ByUsername(ctx context.Context, username string) (*Profile, error) {
	body, err := c.get(ctx, "/v2/farcaster/user/by_username", url.Values{"username": {username}})
	if err != nil {
		return nil, err
	}
	user := gjson.GetBytes(body, "user")
	if !user.Exists() {
		return nil, fmt.Errorf("profile %q not found", username)
	}
	p := parseUser(user)
	return &p, nil
}

// Search returns up to ten profiles matching the query.
func (c *Client) Search(ctx context.Context, query string) ([]Profile, error) {
	body, err := c.get(ctx, "/v2/farcaster/user/search", url.Values{
		"q":     {query},
		"limit": {fmt.Sprintf("%d", searchLimit)},
	})
	if err != nil {
		return nil, err
	}
	var out []Profile
	gjson.GetBytes(body, "result.users").ForEach(func(_, user gjson.Result) bool {
		out = append(out, parseUser(user))
		return len(out) < searchLimit
	})
	return out, nil
}

// RecentCasts returns the text of the user's latest casts, used as raw
// material for generated roasts.
func (c *Client) RecentCasts(ctx context.Context, fid int64) ([]string, error) {
	body, err := c.get(ctx, "/v2/farcaster/feed/user/casts", url.Values{
		"fid":   {fmt.Sprintf("%d", fid)},
		"limit": {fmt.Sprintf("%d", recentCastLimit)},
	})
	if err != nil {
		return nil, err
	}
	var out []string
	gjson.GetBytes(body, "casts.#.text").ForEach(func(_, text gjson.Result) bool {
		if t := text.String(); t != "" {
			out = append(out, t)
		}
		return len(out) < recentCastLimit
	})
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile api returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read profile response: %w", err)
	}
	return body, nil
}

func parseUser(user gjson.Result) Profile {
	return Profile{
		FID:            user.Get("fid").Int(),
		Username:       user.Get("username").String(),
		DisplayName:    user.Get("display_name").String(),
		PfpURL:         user.Get("pfp_url").String(),
		Bio:            user.Get("profile.bio.text").String(),
		FollowerCount:  user.Get("follower_count").Int(),
		FollowingCount: user.Get("following_count").Int(),
	}
}
