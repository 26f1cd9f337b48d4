package utils // package utils provides the token codec and password hashing used by the auth core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/user-management/internal/model"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// AudiencePasswordReset marks access-kind tokens that may only be used to
// reset a password.
const AudiencePasswordReset = "password-reset"

// Claims is the signed token payload.  The principal fields are flat keys
// next to the registered claims (exp, iat, jti, aud).
type Claims struct {
	UserID    string     `json:"user_id"`
	Role      model.Role `json:"role"`
	GroupID   string     `json:"group_id"`
	IsBlocked bool       `json:"is_blocked"`
	TokenType TokenType  `json:"token_type"`
	jwt.RegisteredClaims
}

// NewClaims builds unsigned claims of the given kind for p.
func NewClaims(p model.Principal, kind TokenType) Claims {
	return Claims{
		UserID:    p.UserID,
		Role:      p.Role,
		GroupID:   p.GroupID,
		IsBlocked: p.IsBlocked,
		TokenType: kind,
	}
}

// Principal returns the identity snapshot carried by c.
func (c Claims) Principal() model.Principal {
	return model.Principal{
		UserID:    c.UserID,
		Role:      c.Role,
		GroupID:   c.GroupID,
		IsBlocked: c.IsBlocked,
	}
}

// IsPasswordReset reports whether c was issued for the password reset flow.
func (c Claims) IsPasswordReset() bool {
	return slices.Contains(c.Audience, AudiencePasswordReset)
}

// ExpiresIn returns the remaining lifetime of c relative to now.
func (c Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenCodec signs and verifies Claims with one process-wide secret and
// algorithm.  It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenCodec returns a codec for the HMAC algorithm named by algorithm
// (HS256, HS384 or HS512).
func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	method, ok := signingMethods[strings.ToUpper(strings.TrimSpace(algorithm))]
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	return &TokenCodec{secret: []byte(secret), method: method, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// Now returns the codec's current time.
func (c *TokenCodec) Now() time.Time { return c.now() }

// Encode signs claims with an expiry ttl from now.  A random jti is added when
// claims carry none so that two tokens issued in the same second differ.
// It returns the compact token and its expiry (second precision).
func (c *TokenCodec) Encode(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Decode verifies raw and returns its claims.  Every failure (bad structure,
// signature, algorithm, missing or past exp, unknown kind) is reported as
// model.ErrInvalidToken.
func (c *TokenCodec) Decode(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	var claims Claims
	tok, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, model.ErrInvalidToken
	}
	if claims.TokenType != TokenAccess && claims.TokenType != TokenRefresh {
		return Claims{}, model.ErrInvalidToken
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return Claims{}, model.ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token.  Stores keep only the
// digest so that a dump of the revocation list leaks no usable tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
