// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package store persists the judging service's entities in a relational
// database. It speaks plain database/sql so the same store runs on
// sqlite (default), sqlcipher, mysql, and postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Sentinel errors callers map to response codes.
var (
	// ErrNotFound marks a read of an absent entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a unique-key collision.
	ErrConflict = errors.New("conflict")
	// ErrIntegrity marks a foreign-key violation.
	ErrIntegrity = errors.New("integrity violation")
)

// PageSize is the number of rows returned by paginated list reads.
const PageSize = 20

// Config selects and addresses the backing database.
type Config struct {
	// Driver is one of sqlite, sqlcipher, mysql, postgres.
	Driver string
	// DSN is the driver-specific data source. For the sqlite family this
	// is a file path, optionally with query parameters.
	DSN string
}

type dialect struct {
	driverName string
	// autoIncPK is the column fragment declaring an auto-assigned
	// integer primary key.
	autoIncPK string
	// rebind rewrites ? placeholders to $n.
	rebind bool
	// sqliteFamily enables the WAL and foreign-key pragmas.
	sqliteFamily bool
}

var dialects = map[string]dialect{
	"sqlite":    {driverName: "sqlite", autoIncPK: "INTEGER PRIMARY KEY AUTOINCREMENT", sqliteFamily: true},
	"sqlcipher": {driverName: "sqlite3", autoIncPK: "INTEGER PRIMARY KEY AUTOINCREMENT", sqliteFamily: true},
	"mysql":     {driverName: "mysql", autoIncPK: "BIGINT PRIMARY KEY AUTO_INCREMENT"},
	"postgres":  {driverName: "postgres", autoIncPK: "BIGSERIAL PRIMARY KEY", rebind: true},
}

// Store is the entity store. All methods are safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// Open connects to the configured database, applies connection pragmas,
// and creates any missing tables.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if d.sqliteFamily {
		// Single writer at a time; WAL keeps readers unblocked.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 10000",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	s := &Store{db: db, dialect: d, logger: logger}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("store opened", zap.String("driver", cfg.Driver))
	return s, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// q rewrites placeholders for the active dialect.
func (s *Store) q(query string) string {
	if !s.dialect.rebind {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// execer abstracts *sql.DB and *sql.Tx for methods that run inside and
// outside transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertID runs an INSERT and returns the assigned id. Postgres has no
// LastInsertId, so the query gains a RETURNING clause there.
func (s *Store) insertID(ctx context.Context, e execer, query string, args ...any) (int64, error) {
	if s.dialect.rebind {
		var id int64
		err := e.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, s.wrapWriteErr(err)
		}
		return id, nil
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.wrapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// wrapWriteErr maps driver violations onto the store sentinels.
func (s *Store) wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return err
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func unixToTime(n int64) time.Time {
	return time.Unix(n, 0)
}

// nullTime converts a nullable unix-seconds column.
func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

func nullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
