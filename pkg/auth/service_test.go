// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

const (
	testAccessTTL  = 60 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

// testPasswordHash is "secret-password" at the service cost, hashed
// once because bcrypt is deliberately slow.
var testPasswordHash string

func passwordHash(t *testing.T) string {
	t.Helper()
	if testPasswordHash == "" {
		h, err := HashPassword("secret-password")
		require.NoError(t, err)
		testPasswordHash = h
	}
	return testPasswordHash
}

// testClock is a settable now() for the service under test.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *store.Store, *testClock) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "auth.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	_, err = st.CreateUser(ctx, model.User{
		UserID:          "123456789",
		Username:        "studentA",
		Email:           "a@example.org",
		HashedPassword:  passwordHash(t),
		Role:            model.RoleStudent,
		ActiveStartDate: now.Add(-24 * time.Hour),
		ActiveEndDate:   now.Add(365 * 24 * time.Hour),
	})
	require.NoError(t, err)

	tokens, err := NewTokenManager("test-secret", testAccessTTL, testRefreshTTL)
	require.NoError(t, err)

	clock := &testClock{now: now}
	svc := NewService(st, tokens, zaptest.NewLogger(t))
	svc.now = clock.Now
	return svc, st, clock
}

func TestLoginAndCurrentUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, "123456789", tok.UserID)
	assert.Equal(t, model.RoleStudent, tok.Role)
	assert.NotEmpty(t, tok.RefreshToken)

	assert.True(t, svc.Validate(tok.AccessToken))

	user, claims, err := svc.CurrentUser(ctx, tok.AccessToken, model.ScopeMe)
	require.NoError(t, err)
	assert.Equal(t, "123456789", user.UserID)
	assert.True(t, claims.HasScope(model.ScopeMe))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "123456789", "wrong", nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Login(ctx, "nobody", "secret-password", nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLoginRejectsUngrantedScope(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "123456789", "secret-password",
		[]model.Scope{model.ScopeAccount})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLoginRejectsOutsideActiveWindow(t *testing.T) {
	svc, _, clock := newTestService(t)
	clock.Advance(366 * 24 * time.Hour)

	_, err := svc.Login(context.Background(), "123456789", "secret-password", nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCurrentUserScopeNotCarried(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)

	// Students never hold the batch scope.
	_, _, err = svc.CurrentUser(ctx, tok.AccessToken, model.ScopeBatch)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRefreshUnexpiredTokenUnchanged(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	again, err := svc.Refresh(ctx, tok.AccessToken, tok.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, again.AccessToken)
	assert.Equal(t, tok.RefreshToken, again.RefreshToken)
}

// A login may be refreshed three times, each advancing the expiry from
// the previous expiry rather than from the refresh instant, so the
// final access token expires exactly at login + 4 lifetimes.
func TestRefreshChainAndExhaustion(t *testing.T) {
	svc, st, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)
	loginAt := tok.LoginTime

	access, refresh := tok.AccessToken, tok.RefreshToken
	for i := 1; i <= model.MaxRefreshCount; i++ {
		clock.Advance(testAccessTTL + time.Minute)
		rotated, err := svc.Refresh(ctx, access, refresh)
		require.NoError(t, err, "refresh %d", i)
		assert.NotEqual(t, access, rotated.AccessToken)

		claims, err := svc.Tokens().Decode(rotated.AccessToken)
		require.NoError(t, err)
		wantExpire := loginAt.Add(time.Duration(i+1) * testAccessTTL)
		assert.Equal(t, wantExpire.Unix(), claims.Expire, "refresh %d", i)

		access, refresh = rotated.AccessToken, rotated.RefreshToken
	}

	// The fourth refresh is refused and the login record removed.
	clock.Advance(testAccessTTL + time.Minute)
	_, err = svc.Refresh(ctx, access, refresh)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = st.GetLoginHistory(ctx, "123456789", loginAt)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshRejectsMismatchedPair(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)

	clock.Advance(testAccessTTL + time.Minute)
	_, err = svc.Refresh(ctx, first.AccessToken, second.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRefreshRejectsRotatedRefreshToken(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)

	clock.Advance(testAccessTTL + time.Minute)
	rotated, err := svc.Refresh(ctx, tok.AccessToken, tok.RefreshToken)
	require.NoError(t, err)

	// Replaying the superseded pair fails; the rotated one still works
	// once its access token expires.
	clock.Advance(testAccessTTL + time.Minute)
	_, err = svc.Refresh(ctx, tok.AccessToken, tok.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Refresh(ctx, rotated.AccessToken, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestExpiryIsHalfOpen(t *testing.T) {
	expire := time.Date(2026, 7, 1, 11, 0, 0, 0, time.UTC)
	c := Claims{Expire: expire.Unix()}

	assert.False(t, c.ExpiredAt(expire.Add(-time.Second)))
	assert.True(t, c.ExpiredAt(expire), "a token checked exactly at its expiry is expired")
	assert.True(t, c.ExpiredAt(expire.Add(time.Second)))
}

func TestCurrentUserRejectsSupersededAccessToken(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)

	clock.Advance(testAccessTTL + time.Minute)
	rotated, err := svc.Refresh(ctx, tok.AccessToken, tok.RefreshToken)
	require.NoError(t, err)

	_, _, err = svc.CurrentUser(ctx, tok.AccessToken, model.ScopeMe)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, err = svc.CurrentUser(ctx, rotated.AccessToken, model.ScopeMe)
	require.NoError(t, err)
}

func TestLogoutEndsTheLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "123456789", "secret-password", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tok.AccessToken))

	_, _, err = svc.CurrentUser(ctx, tok.AccessToken, model.ScopeMe)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Logout is idempotent.
	assert.NoError(t, svc.Logout(ctx, tok.AccessToken))
}

func TestTokenDecodeRejectsTampering(t *testing.T) {
	good, err := NewTokenManager("secret-a", 0, 0)
	require.NoError(t, err)
	evil, err := NewTokenManager("secret-b", 0, 0)
	require.NoError(t, err)

	signed, err := good.Mint(Claims{Sub: "123456789", Role: "student"})
	require.NoError(t, err)

	c, err := good.Decode(signed)
	require.NoError(t, err)
	assert.Equal(t, "123456789", c.Sub)
	assert.NotEmpty(t, c.JTI)

	_, err = evil.Decode(signed)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = good.Decode(signed + "x")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyPassword(t *testing.T) {
	hash := passwordHash(t)
	assert.True(t, VerifyPassword("secret-password", hash))
	assert.False(t, VerifyPassword("Secret-password", hash))
}
