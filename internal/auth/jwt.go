package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken  = errors.New("token expired")
	ErrTokenNotAllowed = errors.New("token not present in allowlist")
)

// Claims embeds the registered claims plus the username the dispatcher and
// policy engine act on. The token's jti doubles as the allowlist row id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// IssueToken signs a new bearer token for username and returns both the
// signed string and the Claims, so the caller can persist the jti/expiry
// pair to the allowlist in the same transaction as returning it to the
// client.
func IssueToken(secret string, username string, ttl time.Duration, jti string) (string, *Claims, error) {
	if secret == "" {
		return "", nil, fmt.Errorf("jwt secret is required")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		Username: username,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	return signed, claims, err
}

// ParseToken verifies the signature and standard claims (including
// expiry) of tokenString, without consulting the allowlist.
func ParseToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AllowlistLookup resolves a jti to whether it is still a live, unexpired
// allowlist entry. It is a function rather than an interface bound to
// repository.TokenRepository so this package never has to import
// internal/repository; callers adapt their token store to it.
type AllowlistLookup func(ctx context.Context, jti string) (expired bool, err error)

// ValidateToken parses tokenString and additionally requires its jti to be
// present and unexpired in the allowlist: a syntactically valid, correctly
// signed token that was never issued (or was already revoked) is rejected.
func ValidateToken(ctx context.Context, secret, tokenString string, lookup AllowlistLookup) (*Claims, error) {
	claims, err := ParseToken(secret, tokenString)
	if err != nil {
		return nil, err
	}
	expired, err := lookup(ctx, claims.ID)
	if err != nil {
		return nil, ErrTokenNotAllowed
	}
	if expired {
		return nil, ErrExpiredToken
	}
	return claims, nil
}
