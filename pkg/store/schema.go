// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package store

import (
	"context"
	"fmt"
	"strings"
)

// Timestamps are stored as unix seconds and booleans as 0/1 integers so
// one schema text serves every supported dialect. Only the auto-assigned
// primary key fragment differs per dialect.
func (s *Store) tableDDL() []string {
	pk := s.dialect.autoIncPK
	return []string{
		`CREATE TABLE IF NOT EXISTS lecture (
			id BIGINT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			start_date INTEGER NOT NULL,
			end_date INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS problem (
			lecture_id BIGINT NOT NULL,
			assignment_id BIGINT NOT NULL,
			title VARCHAR(255) NOT NULL,
			description_path VARCHAR(512) NOT NULL,
			time_ms BIGINT NOT NULL DEFAULT 0,
			memory_mb BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (lecture_id, assignment_id),
			FOREIGN KEY (lecture_id) REFERENCES lecture(id) ON DELETE CASCADE
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS required_files (
			id %s,
			lecture_id BIGINT NOT NULL,
			assignment_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			FOREIGN KEY (lecture_id, assignment_id) REFERENCES problem(lecture_id, assignment_id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS arranged_files (
			id %s,
			lecture_id BIGINT NOT NULL,
			assignment_id BIGINT NOT NULL,
			eval INTEGER NOT NULL DEFAULT 0,
			name VARCHAR(255) NOT NULL,
			path VARCHAR(512) NOT NULL,
			FOREIGN KEY (lecture_id, assignment_id) REFERENCES problem(lecture_id, assignment_id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS executables (
			id %s,
			lecture_id BIGINT NOT NULL,
			assignment_id BIGINT NOT NULL,
			eval INTEGER NOT NULL DEFAULT 0,
			name VARCHAR(255) NOT NULL,
			FOREIGN KEY (lecture_id, assignment_id) REFERENCES problem(lecture_id, assignment_id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS test_cases (
			id %s,
			lecture_id BIGINT NOT NULL,
			assignment_id BIGINT NOT NULL,
			eval INTEGER NOT NULL DEFAULT 0,
			type VARCHAR(16) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			command VARCHAR(512) NOT NULL,
			args VARCHAR(512),
			stdin_path VARCHAR(512),
			stdout_path VARCHAR(512),
			stderr_path VARCHAR(512),
			exit_code BIGINT NOT NULL DEFAULT 0,
			FOREIGN KEY (lecture_id, assignment_id) REFERENCES problem(lecture_id, assignment_id) ON DELETE CASCADE
		)`, pk),
		`CREATE TABLE IF NOT EXISTS users (
			user_id VARCHAR(255) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			disabled INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			active_start_date INTEGER NOT NULL,
			active_end_date INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS login_history (
			user_id VARCHAR(255) NOT NULL,
			login_at INTEGER NOT NULL,
			logout_at INTEGER NOT NULL,
			refresh_count INTEGER NOT NULL DEFAULT 0,
			current_access_token TEXT NOT NULL,
			current_refresh_token TEXT NOT NULL,
			PRIMARY KEY (user_id, login_at),
			FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS batch_submission (
			id %s,
			ts INTEGER NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			lecture_id BIGINT NOT NULL,
			message TEXT NOT NULL,
			complete_judge BIGINT,
			total_judge BIGINT
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS evaluation_status (
			id %s,
			batch_id BIGINT NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			result VARCHAR(8),
			upload_dir VARCHAR(512),
			report_path VARCHAR(512),
			submit_date INTEGER,
			UNIQUE (batch_id, user_id),
			FOREIGN KEY (batch_id) REFERENCES batch_submission(id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS submission (
			id %s,
			ts INTEGER NOT NULL,
			evaluation_status_id BIGINT,
			user_id VARCHAR(255) NOT NULL,
			lecture_id BIGINT NOT NULL,
			assignment_id BIGINT NOT NULL,
			eval INTEGER NOT NULL DEFAULT 0,
			progress VARCHAR(16) NOT NULL,
			total_task BIGINT NOT NULL DEFAULT 0,
			completed_task BIGINT NOT NULL DEFAULT 0,
			result VARCHAR(8),
			message TEXT,
			detail TEXT,
			score BIGINT,
			time_ms BIGINT,
			memory_kb BIGINT,
			FOREIGN KEY (evaluation_status_id) REFERENCES evaluation_status(id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS uploaded_files (
			id %s,
			ts INTEGER NOT NULL,
			submission_id BIGINT NOT NULL,
			path VARCHAR(512) NOT NULL,
			FOREIGN KEY (submission_id) REFERENCES submission(id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS judge_results (
			id %s,
			ts INTEGER NOT NULL,
			submission_id BIGINT NOT NULL,
			testcase_id BIGINT NOT NULL,
			result VARCHAR(8) NOT NULL,
			time_ms BIGINT NOT NULL DEFAULT 0,
			memory_kb BIGINT NOT NULL DEFAULT 0,
			exit_code BIGINT NOT NULL DEFAULT 0,
			stdout TEXT NOT NULL,
			stderr TEXT NOT NULL,
			expected_stdin TEXT,
			expected_stdout TEXT,
			expected_stderr TEXT,
			expected_exit_code BIGINT NOT NULL DEFAULT 0,
			FOREIGN KEY (submission_id) REFERENCES submission(id) ON DELETE CASCADE
		)`, pk),
	}
}

func (s *Store) indexDDL() []string {
	return []string{
		`CREATE INDEX idx_submission_user ON submission(user_id)`,
		`CREATE INDEX idx_submission_eval_status ON submission(evaluation_status_id)`,
		`CREATE INDEX idx_eval_status_batch ON evaluation_status(batch_id)`,
		`CREATE INDEX idx_uploaded_files_submission ON uploaded_files(submission_id)`,
		`CREATE INDEX idx_judge_results_submission ON judge_results(submission_id)`,
		`CREATE INDEX idx_login_history_logout ON login_history(logout_at)`,
	}
}

// initSchema creates the tables and indexes if they don't exist.
// Statements run one at a time because the mysql driver rejects
// multi-statement execs.
func (s *Store) initSchema(ctx context.Context) error {
	for _, ddl := range s.tableDDL() {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, ddl := range s.indexDDL() {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil && !indexExists(err) {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// indexExists recognises the per-driver "index already there" errors;
// mysql has no CREATE INDEX IF NOT EXISTS.
func indexExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate key name")
}
