package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/utils"
)

// Token is one signed token and its expiry.
type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// TokenPair is the access/refresh pair handed out on login and refresh.
type TokenPair struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

// TokenIssuer mints tokens from a principal.  Issuing persists nothing.
type TokenIssuer struct {
	codec      *utils.TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

func NewTokenIssuer(codec *utils.TokenCodec, cfg config.Config) *TokenIssuer {
	return &TokenIssuer{
		codec:      codec,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.PasswordResetTTL,
	}
}

// Codec returns the codec the issuer signs with.
func (i *TokenIssuer) Codec() *utils.TokenCodec { return i.codec }

// IssuePair signs an access and a refresh token carrying the same principal.
func (i *TokenIssuer) IssuePair(p model.Principal) (TokenPair, error) {
	access, accessExp, err := i.codec.Encode(utils.NewClaims(p, utils.TokenAccess), i.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := i.codec.Encode(utils.NewClaims(p, utils.TokenRefresh), i.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{
		Access:  Token{Token: access, Expires: accessExp},
		Refresh: Token{Token: refresh, Expires: refreshExp},
	}, nil
}

// IssueResetToken signs a short-lived access-kind token restricted to the
// password reset audience.
func (i *TokenIssuer) IssueResetToken(p model.Principal) (Token, error) {
	claims := utils.NewClaims(p, utils.TokenAccess)
	claims.Audience = jwt.ClaimStrings{utils.AudiencePasswordReset}
	raw, exp, err := i.codec.Encode(claims, i.resetTTL)
	if err != nil {
		return Token{}, fmt.Errorf("issue reset token: %w", err)
	}
	return Token{Token: raw, Expires: exp}, nil
}
