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

// CreateUser inserts an account. CreatedAt/UpdatedAt are assigned here.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	query := `INSERT INTO users (user_id, username, email, hashed_password, role, disabled,
		created_at, updated_at, active_start_date, active_end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		u.UserID, u.Username, u.Email, u.HashedPassword, string(u.Role), boolToInt(u.Disabled),
		u.CreatedAt.Unix(), u.UpdatedAt.Unix(), u.ActiveStartDate.Unix(), u.ActiveEndDate.Unix())
	if err != nil {
		return model.User{}, s.wrapWriteErr(err)
	}
	return u, nil
}

const userColumns = `user_id, username, email, hashed_password, role, disabled,
	created_at, updated_at, active_start_date, active_end_date`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u                    model.User
		role                 string
		disabled             int64
		created, updated     int64
		activeFrom, activeTo int64
	)
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.HashedPassword, &role, &disabled,
		&created, &updated, &activeFrom, &activeTo)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.Disabled = disabled != 0
	u.CreatedAt = unixToTime(created)
	u.UpdatedAt = unixToTime(updated)
	u.ActiveStartDate = unixToTime(activeFrom)
	u.ActiveEndDate = unixToTime(activeTo)
	return u, nil
}

// GetUser fetches one account by user id.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ?`
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(query), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account ordered by user id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUsers removes the named accounts in one transaction. Unknown ids
// are not an error; callers report the affected count.
func (s *Store) DeleteUsers(ctx context.Context, userIDs []string) (int64, error) {
	var deleted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range userIDs {
			res, err := tx.ExecContext(ctx, s.q(`DELETE FROM users WHERE user_id = ?`), id)
			if err != nil {
				return s.wrapWriteErr(err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
