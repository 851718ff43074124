// README: Bearer token verification (HS256 JWT) used by the auth middleware.
package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token holds the verified caller identity used by downstream middleware.
type Token struct {
	UID  string
	Role string
}

// TokenVerifier verifies a raw bearer token string and returns the caller.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Token, error)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &jwtVerifier{secret: []byte(secret)}, nil
}

func (v *jwtVerifier) VerifyToken(_ context.Context, raw string) (*Token, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if c.Subject == "" {
		return nil, errors.New("verify token: missing subject")
	}
	return &Token{UID: c.Subject, Role: c.Role}, nil
}

// SignToken issues an HS256 token for uid/role. Used by local tooling and tests.
func SignToken(secret, uid, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
