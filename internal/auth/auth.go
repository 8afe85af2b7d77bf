// Package auth verifies caller identity tokens and maps them to fids.
package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure modes.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongDomain  = errors.New("token issued for another domain")
)

// Verifier checks a bearer token and returns the authenticated fid.
type Verifier interface {
	Verify(token string) (int64, error)
}

// JWTVerifier validates HS256 session tokens minted by the app's login
// flow. The subject claim carries the fid; the audience claim must name
// this deployment's domain.
type JWTVerifier struct {
	secret []byte
	domain string
}

// NewJWTVerifier creates a verifier for the given signing secret and
// expected domain.
func NewJWTVerifier(secret, domain string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), domain: domain}
}

// Verify parses the token, checks its signature and audience, and
// returns the fid from the subject claim.
func (v *JWTVerifier) Verify(token string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	if v.domain != "" {
		aud, err := claims.GetAudience()
		if err != nil {
			return 0, ErrInvalidToken
		}
		matched := false
		for _, a := range aud {
			if a == v.domain {
				matched = true
				break
			}
		}
		if !matched {
			return 0, ErrWrongDomain
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, ErrInvalidToken
	}
	fid, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || fid <= 0 {
		return 0, ErrInvalidToken
	}
	return fid, nil
}

// StaticVerifier maps fixed tokens to fids. Test and development use.
type StaticVerifier map[string]int64

// Verify looks the token up in the static table.
func (s StaticVerifier) Verify(token string) (int64, error) {
	fid, ok := s[token]
	if !ok {
		return 0, ErrInvalidToken
	}
	return fid, nil
}
