// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/classware-labs/gavel/pkg/model"
)

// CreateLoginHistory inserts the live-token row of a fresh login. A
// second login at the same (user_id, login_at) second collides on the
// primary key and surfaces as ErrConflict.
func (s *Store) CreateLoginHistory(ctx context.Context, lh model.LoginHistory) (model.LoginHistory, error) {
	query := `INSERT INTO login_history (user_id, login_at, logout_at, refresh_count,
		current_access_token, current_refresh_token) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		lh.UserID, lh.LoginAt.Unix(), lh.LogoutAt.Unix(), lh.RefreshCount,
		lh.CurrentAccessToken, lh.CurrentRefreshToken)
	if err != nil {
		return model.LoginHistory{}, s.wrapWriteErr(err)
	}
	return lh, nil
}

// GetLoginHistory fetches the live-token row for one login.
func (s *Store) GetLoginHistory(ctx context.Context, userID string, loginAt time.Time) (model.LoginHistory, error) {
	query := `SELECT user_id, login_at, logout_at, refresh_count,
		current_access_token, current_refresh_token
		FROM login_history WHERE user_id = ? AND login_at = ?`
	var (
		lh              model.LoginHistory
		loginU, logoutU int64
	)
	err := s.db.QueryRowContext(ctx, s.q(query), userID, loginAt.Unix()).Scan(
		&lh.UserID, &loginU, &logoutU, &lh.RefreshCount,
		&lh.CurrentAccessToken, &lh.CurrentRefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LoginHistory{}, fmt.Errorf("login history %s@%d: %w", userID, loginAt.Unix(), ErrNotFound)
	}
	if err != nil {
		return model.LoginHistory{}, fmt.Errorf("failed to query login history: %w", err)
	}
	lh.LoginAt, lh.LogoutAt = unixToTime(loginU), unixToTime(logoutU)
	return lh, nil
}

// UpdateLoginHistory rewrites the row in place after a token rotation.
func (s *Store) UpdateLoginHistory(ctx context.Context, lh model.LoginHistory) (model.LoginHistory, error) {
	query := `UPDATE login_history SET logout_at = ?, refresh_count = ?,
		current_access_token = ?, current_refresh_token = ?
		WHERE user_id = ? AND login_at = ?`
	res, err := s.db.ExecContext(ctx, s.q(query),
		lh.LogoutAt.Unix(), lh.RefreshCount, lh.CurrentAccessToken, lh.CurrentRefreshToken,
		lh.UserID, lh.LoginAt.Unix())
	if err != nil {
		return model.LoginHistory{}, s.wrapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.LoginHistory{}, fmt.Errorf("login history %s@%d: %w", lh.UserID, lh.LoginAt.Unix(), ErrNotFound)
	}
	return lh, nil
}

// DeleteLoginHistory removes one login's row. Deleting an absent row is
// not an error; logout is idempotent.
func (s *Store) DeleteLoginHistory(ctx context.Context, userID string, loginAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM login_history WHERE user_id = ? AND login_at = ?`),
		userID, loginAt.Unix())
	if err != nil {
		return s.wrapWriteErr(err)
	}
	return nil
}

// DeleteExpiredLoginHistory prunes rows whose logout_at is before the
// cutoff. Returns the number of rows removed.
func (s *Store) DeleteExpiredLoginHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM login_history WHERE logout_at < ?`), cutoff.Unix())
	if err != nil {
		return 0, s.wrapWriteErr(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
