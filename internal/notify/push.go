package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/pkg/logger"
)

func tokenKey(fid int64) string { return fmt.Sprintf("push-token:%d", fid) }

// TokenStore persists client push endpoints. Tokens expire after a week
// unless the client checks in again.
type TokenStore struct {
	store kv.Store
}

// NewTokenStore creates a token store.
func NewTokenStore(store kv.Store) *TokenStore {
	return &TokenStore{store: store}
}

// Save stores the user's push endpoint, refreshing its TTL.
func (t *TokenStore) Save(ctx context.Context, fid int64, details TokenDetails) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return t.store.Set(ctx, tokenKey(fid), string(data), tokenTTL)
}

// Get returns the user's push endpoint, or nil when none is saved.
func (t *TokenStore) Get(ctx context.Context, fid int64) (*TokenDetails, error) {
	val, ok, err := t.store.Get(ctx, tokenKey(fid))
	if err != nil || !ok {
		return nil, err
	}
	var details TokenDetails
	if err := json.Unmarshal([]byte(val), &details); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &details, nil
}

// Delete removes the user's push endpoint, e.g. on opt-out.
func (t *TokenStore) Delete(ctx context.Context, fid int64) error {
	return t.store.Del(ctx, tokenKey(fid))
}

// HTTPDispatcher delivers pushes by POSTing to each user's saved
// endpoint, the shape Farcaster-style clients expect.
type HTTPDispatcher struct {
	tokens *TokenStore
	client *http.Client
	log    *logger.Logger
}

// NewHTTPDispatcher creates a dispatcher over the token store.
func NewHTTPDispatcher(tokens *TokenStore, log *logger.Logger) *HTTPDispatcher {
	if log == nil {
		log = logger.NewDefault("push")
	}
	return &HTTPDispatcher{
		tokens: tokens,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type pushPayload struct {
	NotificationID string   `json:"notificationId"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	TargetURL      string   `json:"targetUrl"`
	Tokens         []string `json:"tokens"`
}

// Send pushes one notification to the user's endpoint. A user without a
// saved token is not an error; delivery is silently skipped.
func (d *HTTPDispatcher) Send(ctx context.Context, fid int64, title, body, targetURL string) error {
	details, err := d.tokens.Get(ctx, fid)
	if err != nil {
		return fmt.Errorf("load push token: %w", err)
	}
	if details == nil {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		NotificationID: uuid.New().String(),
		Title:          title,
		Body:           body,
		TargetURL:      targetURL,
		Tokens:         []string{details.Token},
	})
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, details.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		// Dead endpoints get cleaned up so we stop retrying them.
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			if err := d.tokens.Delete(ctx, fid); err != nil {
				d.log.WithError(err).WithField("fid", fid).Warn("failed to drop stale push token")
			}
		}
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
