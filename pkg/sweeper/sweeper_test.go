// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sweeper

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

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "gavel.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestConfigValidate(t *testing.T) {
	st := newTestStore(t)

	cfg := Config{Store: st}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultSchedule, cfg.Schedule)

	cfg = Config{Store: st, Schedule: "not a cron line"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Schedule: DefaultSchedule}
	assert.Error(t, cfg.Validate())
}

func TestSweepPrunesExpiredLogins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	_, err := st.CreateUser(ctx, model.User{
		UserID: "123456789", Username: "a", Email: "a@example.org", HashedPassword: "x",
		Role:            model.RoleStudent,
		ActiveStartDate: now.Add(-time.Hour), ActiveEndDate: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	logouts := []time.Time{
		now.Add(-2 * RetentionAfterLogout), // prunable
		now.Add(-RetentionAfterLogout - time.Minute),
		now.Add(-time.Hour), // still retained
		now.Add(time.Hour),  // live login
	}
	for i, logoutAt := range logouts {
		_, err := st.CreateLoginHistory(ctx, model.LoginHistory{
			UserID: "123456789", LoginAt: now.Add(time.Duration(i) * time.Second),
			LogoutAt:           logoutAt,
			CurrentAccessToken: "a", CurrentRefreshToken: "r",
		})
		require.NoError(t, err)
	}

	sweep, err := New(Config{Store: st, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	require.NoError(t, sweep.Sweep(ctx))

	for i, logoutAt := range logouts {
		_, err := st.GetLoginHistory(ctx, "123456789", now.Add(time.Duration(i)*time.Second))
		if logoutAt.Before(now.Add(-RetentionAfterLogout)) {
			assert.ErrorIs(t, err, store.ErrNotFound, "row %d should be pruned", i)
		} else {
			assert.NoError(t, err, "row %d should survive", i)
		}
	}

	// A second sweep finds nothing left to do.
	require.NoError(t, sweep.Sweep(ctx))
}

func TestNewRejectsBadSchedule(t *testing.T) {
	st := newTestStore(t)
	_, err := New(Config{Store: st, Schedule: "every day at dawn"})
	assert.Error(t, err)
}
