// Package roast stores roast records and the indexes derived from them.
package roast

import (
	"crypto/rand"
	"time"
)

// Kind is one of the four reaction symbols a roast can collect.
type Kind string

const (
	KindFire  Kind = "fire"
	KindSkull Kind = "skull"
	KindIce   Kind = "ice"
	KindClown Kind = "clown"
)

// Kinds lists every valid reaction symbol.
var Kinds = []Kind{KindFire, KindSkull, KindIce, KindClown}

// ValidKind reports whether k is a known reaction symbol.
func ValidKind(k Kind) bool {
	switch k {
	case KindFire, KindSkull, KindIce, KindClown:
		return true
	}
	return false
}

// Theme is the visual theme a roast was posted under.
type Theme string

const (
	ThemeInferno Theme = "inferno"
	ThemeSavage  Theme = "savage"
	ThemeNuclear Theme = "nuclear"
	ThemeIceCold Theme = "ice-cold"
	ThemeClown   Theme = "clown"
)

// Style selects the voice the roast text was generated in.
type Style string

const (
	StyleSavage       Style = "savage"
	StyleWholesome    Style = "wholesome"
	StyleCryptoBro    Style = "crypto-bro"
	StyleIntellectual Style = "intellectual"
	StyleGenZ         Style = "gen-z"
)

// MaxTextLength is the hard cap on roast text.
const MaxTextLength = 500

// RetentionTTL is how long a roast record is kept.
const RetentionTTL = 90 * 24 * time.Hour

// Roast is a single authored entry targeting a user. Immutable after
// creation except for the reaction map and its cached total, which the
// reaction ledger maintains.
type Roast struct {
	ID                string         `json:"id"`
	SenderFID         int64          `json:"senderFid"`
	SenderUsername    string         `json:"senderUsername"`
	SenderPfp         string         `json:"senderPfp,omitempty"`
	TargetFID         int64          `json:"targetFid"`
	TargetUsername    string         `json:"targetUsername"`
	TargetDisplayName string         `json:"targetDisplayName,omitempty"`
	TargetPfp         string         `json:"targetPfp,omitempty"`
	TargetBio         string         `json:"targetBio,omitempty"`
	Text              string         `json:"roastText"`
	Theme             Theme          `json:"theme"`
	Style             Style          `json:"style,omitempty"`
	SelfRoast         bool           `json:"isSelfRoast"`
	TxHash            string         `json:"txHash,omitempty"`
	ParentID          string         `json:"parentRoastId,omitempty"`
	Timestamp         int64          `json:"timestamp"` // epoch ms
	Likes             int64          `json:"likes"`     // legacy scalar count
	ReactionCount     int64          `json:"reactionCount"`
	Reactions         map[Kind]int64 `json:"reactions,omitempty"`
}

// Normalize repairs records written before the reaction map existed.
// Legacy records carry only the scalar likes count, which is folded into
// the fire symbol. The repair happens on read and is never persisted.
func (r *Roast) Normalize() {
	if r.Reactions == nil {
		r.Reactions = map[Kind]int64{KindFire: r.Likes}
		r.ReactionCount = r.Likes
		return
	}
	if r.ReactionCount == 0 {
		var sum int64
		for _, n := range r.Reactions {
			sum += n
		}
		r.ReactionCount = sum
	}
}

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// NewID returns a 12-character random roast id.
func NewID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic("roast: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)&63]
	}
	return string(buf)
}
