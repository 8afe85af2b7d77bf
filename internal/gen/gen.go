// Package gen produces roast text through an OpenAI-compatible chat
// completion API, seeded with the target's profile and recent casts.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roastcast/ledger/internal/profile"
	"github.com/roastcast/ledger/internal/roast"
)

// ErrEmptyCompletion is returned when the model produced no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

const systemPrompt = "You write short, funny roasts for a social app. " +
	"Punch at the profile, never at protected traits. Keep it under two " +
	"sentences, no hashtags, no emoji spam."

var styleHints = map[roast.Style]string{
	roast.StyleSavage:       "Go for the jugular. Maximum burn.",
	roast.StyleWholesome:    "Tease gently, land soft. A hug disguised as a burn.",
	roast.StyleCryptoBro:    "Lean into crypto-bro jargon. WAGMI energy.",
	roast.StyleIntellectual: "Dry, erudite, devastating. Big words, small mercy.",
	roast.StyleGenZ:         "Chronically-online gen-z slang.",
}

// Generator calls the completion API.
type Generator struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewGenerator creates a generator for the given endpoint and model.
func NewGenerator(baseURL, apiKey, model string) *Generator {
	return &Generator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Generate produces one roast for the target in the given style. Output
// is clamped to the ledger's maximum roast length.
func (g *Generator) Generate(ctx context.Context, target *profile.Profile, casts []string, style roast.Style) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(target, casts, style)},
		},
		MaxTokens:   200,
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion api returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	text := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	text = strings.Trim(text, `"`)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	if len(text) > roast.MaxTextLength {
		text = text[:roast.MaxTextLength]
	}
	return text, nil
}

func buildPrompt(target *profile.Profile, casts []string, style roast.Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Roast @%s", target.Username)
	if target.DisplayName != "" && target.DisplayName != target.Username {
		fmt.Fprintf(&b, " (%s)", target.DisplayName)
	}
	b.WriteString(".\n")
	if target.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", target.Bio)
	}
	fmt.Fprintf(&b, "Followers: %d, following: %d.\n", target.FollowerCount, target.FollowingCount)
	if len(casts) > 0 {
		b.WriteString("Recent posts:\n")
		for _, cast := range casts {
			fmt.Fprintf(&b, "- %s\n", cast)
		}
	}
	if hint, ok := styleHints[style]; ok {
		fmt.Fprintf(&b, "Style: %s\n", hint)
	}
	return b.String()
}
