// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

// Error kinds the HTTP layer maps to 401 and 403.
var (
	// ErrUnauthenticated marks a missing, malformed, expired, or
	// revoked credential. Recoverable by logging in again.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden marks a credential that is valid but lacks the
	// required scope or ownership.
	ErrForbidden = errors.New("forbidden")
)

// Token is the response of the login and refresh operations. The
// refresh token travels only in the HttpOnly cookie, never in the body.
type Token struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	LoginTime   time.Time  `json:"login_time"`
	UserID      string     `json:"user_id"`
	Role        model.Role `json:"role"`

	RefreshToken  string    `json:"-"`
	RefreshExpire time.Time `json:"-"`
}

// Service implements the token lifecycle over the entity store.
type Service struct {
	store  *store.Store
	tokens *TokenManager
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the token manager to the store.
func NewService(st *store.Store, tokens *TokenManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, tokens: tokens, logger: logger, now: time.Now}
}

// Tokens exposes the manager for callers that only need decoding.
func (s *Service) Tokens() *TokenManager { return s.tokens }

// Login verifies the credentials, asserts the requested scopes against
// the role's grant, mints the token pair, and records the login. An
// empty scope request grants the role's full scope set.
func (s *Service) Login(ctx context.Context, userID, password string, requested []model.Scope) (Token, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
		}
		return Token{}, err
	}
	if !VerifyPassword(password, user.HashedPassword) {
		return Token{}, fmt.Errorf("%w: wrong password", ErrUnauthenticated)
	}

	now := s.now().Truncate(time.Second)
	if !user.IsActive(now) {
		return Token{}, fmt.Errorf("%w: account is not active", ErrUnauthenticated)
	}

	if len(requested) == 0 {
		requested = model.ScopesForRole(user.Role)
	} else if !model.RoleAllows(user.Role, requested...) {
		return Token{}, fmt.Errorf("%w: requested scope not granted to role %s", ErrForbidden, user.Role)
	}
	scopes := make([]string, len(requested))
	for i, sc := range requested {
		scopes[i] = string(sc)
	}

	accessExpire := now.Add(s.tokens.AccessTTL())
	refreshExpire := now.Add(s.tokens.RefreshTTL())
	base := Claims{Sub: user.UserID, Login: now.Unix(), Scopes: scopes, Role: string(user.Role)}

	access := base
	access.Expire = accessExpire.Unix()
	accessToken, err := s.tokens.Mint(access)
	if err != nil {
		return Token{}, err
	}
	refresh := base
	refresh.Expire = refreshExpire.Unix()
	refreshToken, err := s.tokens.Mint(refresh)
	if err != nil {
		return Token{}, err
	}

	_, err = s.store.CreateLoginHistory(ctx, model.LoginHistory{
		UserID:              user.UserID,
		LoginAt:             now,
		LogoutAt:            accessExpire,
		RefreshCount:        0,
		CurrentAccessToken:  accessToken,
		CurrentRefreshToken: refreshToken,
	})
	if err != nil {
		return Token{}, err
	}

	s.logger.Info("login", zap.String("user_id", user.UserID), zap.String("role", string(user.Role)))
	return Token{
		AccessToken:   accessToken,
		TokenType:     "bearer",
		LoginTime:     now,
		UserID:        user.UserID,
		Role:          user.Role,
		RefreshToken:  refreshToken,
		RefreshExpire: refreshExpire,
	}, nil
}

// Refresh rotates an expired access token using the refresh cookie.
// A still-valid access token comes back unchanged. The new access
// expiry advances from the previous expiry, never from now, so a chain
// of refreshes cannot compound lifetime.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (Token, error) {
	access, err := s.tokens.Decode(accessToken)
	if err != nil {
		return Token{}, err
	}

	now := s.now()
	if !access.ExpiredAt(now) {
		lh, err := s.store.GetLoginHistory(ctx, access.Sub, access.LoginTime())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Token{}, fmt.Errorf("%w: login is no longer active", ErrUnauthenticated)
			}
			return Token{}, err
		}
		return Token{
			AccessToken:   accessToken,
			TokenType:     "bearer",
			LoginTime:     access.LoginTime(),
			UserID:        access.Sub,
			Role:          model.Role(access.Role),
			RefreshToken:  lh.CurrentRefreshToken,
			RefreshExpire: lh.LogoutAt.Add(s.tokens.RefreshTTL()),
		}, nil
	}

	if refreshToken == "" {
		return Token{}, fmt.Errorf("%w: no refresh token", ErrUnauthenticated)
	}
	refresh, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return Token{}, err
	}
	if refresh.ExpiredAt(now) {
		return Token{}, fmt.Errorf("%w: refresh token expired", ErrUnauthenticated)
	}
	if !access.SamePair(refresh) {
		return Token{}, fmt.Errorf("%w: token pair mismatch", ErrUnauthenticated)
	}

	lh, err := s.store.GetLoginHistory(ctx, access.Sub, access.LoginTime())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, fmt.Errorf("%w: login is no longer active", ErrUnauthenticated)
		}
		return Token{}, err
	}
	if lh.CurrentRefreshToken != refreshToken {
		return Token{}, fmt.Errorf("%w: refresh token was rotated", ErrUnauthenticated)
	}
	if lh.RefreshCount >= model.MaxRefreshCount {
		if err := s.store.DeleteLoginHistory(ctx, lh.UserID, lh.LoginAt); err != nil {
			s.logger.Warn("failed to delete exhausted login", zap.Error(err))
		}
		return Token{}, fmt.Errorf("%w: refresh count exhausted", ErrUnauthenticated)
	}

	oldExpire := time.Unix(access.Expire, 0)
	newAccessExpire := oldExpire.Add(s.tokens.AccessTTL())
	newRefreshExpire := oldExpire.Add(s.tokens.RefreshTTL())

	newAccess := access
	newAccess.Expire = newAccessExpire.Unix()
	newAccessToken, err := s.tokens.Mint(newAccess)
	if err != nil {
		return Token{}, err
	}
	newRefresh := refresh
	newRefresh.Expire = newRefreshExpire.Unix()
	newRefreshToken, err := s.tokens.Mint(newRefresh)
	if err != nil {
		return Token{}, err
	}

	lh.LogoutAt = newAccessExpire
	lh.RefreshCount++
	lh.CurrentAccessToken = newAccessToken
	lh.CurrentRefreshToken = newRefreshToken
	if _, err := s.store.UpdateLoginHistory(ctx, lh); err != nil {
		return Token{}, err
	}

	s.logger.Info("token refreshed",
		zap.String("user_id", access.Sub), zap.Int("refresh_count", lh.RefreshCount))
	return Token{
		AccessToken:   newAccessToken,
		TokenType:     "bearer",
		LoginTime:     access.LoginTime(),
		UserID:        access.Sub,
		Role:          model.Role(access.Role),
		RefreshToken:  newRefreshToken,
		RefreshExpire: newRefreshExpire,
	}, nil
}

// Validate reports whether the access token decodes and is not past
// its expiry.
func (s *Service) Validate(token string) bool {
	c, err := s.tokens.Decode(token)
	if err != nil {
		return false
	}
	return !c.ExpiredAt(s.now())
}

// Logout deletes the login's history row. Idempotent; a bad token is
// still Unauthenticated.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	c, err := s.tokens.Decode(accessToken)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLoginHistory(ctx, c.Sub, c.LoginTime()); err != nil {
		return err
	}
	s.logger.Info("logout", zap.String("user_id", c.Sub))
	return nil
}

// CurrentUser resolves the bearer token to an active account and
// enforces the required scopes. The token must be unexpired, still the
// login's current access token, and every required scope must be both
// carried by the token and granted to the account's role.
func (s *Service) CurrentUser(ctx context.Context, bearer string, required ...model.Scope) (model.User, Claims, error) {
	c, err := s.tokens.Decode(bearer)
	if err != nil {
		return model.User{}, Claims{}, err
	}
	now := s.now()
	if c.ExpiredAt(now) {
		return model.User{}, Claims{}, fmt.Errorf("%w: access token expired", ErrUnauthenticated)
	}

	lh, err := s.store.GetLoginHistory(ctx, c.Sub, c.LoginTime())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, Claims{}, fmt.Errorf("%w: login is no longer active", ErrUnauthenticated)
		}
		return model.User{}, Claims{}, err
	}
	if lh.CurrentAccessToken != bearer {
		return model.User{}, Claims{}, fmt.Errorf("%w: access token was rotated", ErrUnauthenticated)
	}

	user, err := s.store.GetUser(ctx, c.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, Claims{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
		}
		return model.User{}, Claims{}, err
	}
	if !user.IsActive(now) {
		return model.User{}, Claims{}, fmt.Errorf("%w: account is not active", ErrUnauthenticated)
	}

	for _, want := range required {
		if !c.HasScope(want) || !model.RoleAllows(user.Role, want) {
			return model.User{}, Claims{}, fmt.Errorf("%w: scope %s required", ErrForbidden, want)
		}
	}
	return user, c, nil
}
