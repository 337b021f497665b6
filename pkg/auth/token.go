// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/classware-labs/gavel/pkg/model"
)

// Claims is the payload both access and refresh tokens carry. Expiry
// lives in the custom expire field rather than the registered exp claim
// because refresh validation must decode tokens that are already past
// their lifetime.
type Claims struct {
	Sub    string   `json:"sub"`
	Login  int64    `json:"login"`
	Expire int64    `json:"expire"`
	Scopes []string `json:"scopes"`
	Role   string   `json:"role"`
	JTI    string   `json:"jti"`
}

// The jwt.Claims interface. Expiry is enforced by the caller through
// ExpiredAt, so GetExpirationTime reports none.
func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                   { return "", nil }
func (c Claims) GetSubject() (string, error)                  { return c.Sub, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// ExpiredAt reports whether the token is past its lifetime at now. The
// interval is half-open: a token checked exactly at its expire instant
// is expired.
func (c Claims) ExpiredAt(now time.Time) bool {
	return !now.Before(time.Unix(c.Expire, 0))
}

// LoginTime returns the instant of the login that minted this token.
func (c Claims) LoginTime() time.Time {
	return time.Unix(c.Login, 0)
}

// SamePair reports whether two tokens were minted for the same login:
// matching subject, login instant, role, and scope set.
func (c Claims) SamePair(o Claims) bool {
	if c.Sub != o.Sub || c.Login != o.Login || c.Role != o.Role {
		return false
	}
	if len(c.Scopes) != len(o.Scopes) {
		return false
	}
	for i := range c.Scopes {
		if c.Scopes[i] != o.Scopes[i] {
			return false
		}
	}
	return true
}

// HasScope reports whether the token grants the scope.
func (c Claims) HasScope(s model.Scope) bool {
	for _, have := range c.Scopes {
		if have == string(s) {
			return true
		}
	}
	return false
}

// TokenManager mints and decodes HS256-signed tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Default token lifetimes.
const (
	DefaultAccessTTL  = 60 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// NewTokenManager builds a manager for the given signing secret. Zero
// lifetimes fall back to the defaults.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// AccessTTL returns the access-token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh-token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// Mint signs a token for the claims, assigning a fresh token id.
func (m *TokenManager) Mint(c Claims) (string, error) {
	c.JTI = uuid.New().String()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. Expiry is not
// enforced here; callers check ExpiredAt where it matters.
func (m *TokenManager) Decode(token string) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return c, nil
}
