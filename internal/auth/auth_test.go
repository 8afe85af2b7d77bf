package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, secret, sub string, aud []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if len(aud) > 0 {
		claims["aud"] = aud
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewJWTVerifier("secret", "roast.example")
	token := mintToken(t, "secret", "42", []string{"roast.example"})

	fid, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if fid != 42 {
		t.Fatalf("fid = %d, want 42", fid)
	}
}

func TestVerifyRejects(t *testing.T) {
	verifier := NewJWTVerifier("secret", "roast.example")

	t.Run("wrong signature", func(t *testing.T) {
		token := mintToken(t, "other-secret", "42", []string{"roast.example"})
		if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := verifier.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong audience", func(t *testing.T) {
		token := mintToken(t, "secret", "42", []string{"other.example"})
		if _, err := verifier.Verify(token); !errors.Is(err, ErrWrongDomain) {
			t.Fatalf("err = %v, want ErrWrongDomain", err)
		}
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		token := mintToken(t, "secret", "alice", []string{"roast.example"})
		if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub": "42",
			"aud": []string{"roast.example"},
			"exp": time.Now().Add(-time.Hour).Unix(),
		}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v, want ErrInvalidToken", err)
		}
	})
}

func TestVerifyNoDomainCheck(t *testing.T) {
	// Empty domain disables the audience check, for development setups.
	verifier := NewJWTVerifier("secret", "")
	token := mintToken(t, "secret", "42", nil)
	fid, err := verifier.Verify(token)
	if err != nil || fid != 42 {
		t.Fatalf("verify = (%d, %v), want (42, nil)", fid, err)
	}
}

func TestStaticVerifier(t *testing.T) {
	verifier := StaticVerifier{"token-a": 1, "token-b": 2}

	fid, err := verifier.Verify("token-b")
	if err != nil || fid != 2 {
		t.Fatalf("verify = (%d, %v), want (2, nil)", fid, err)
	}
	if _, err := verifier.Verify("unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
