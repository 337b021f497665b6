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

const submissionColumns = `id, ts, evaluation_status_id, user_id, lecture_id, assignment_id,
	eval, progress, total_task, completed_task, result, message, detail, score, time_ms, memory_kb`

func scanSubmission(row interface{ Scan(...any) error }) (model.Submission, error) {
	var (
		sub                     model.Submission
		ts                      int64
		evalStatusID            sql.NullInt64
		evalInt                 int64
		progress                string
		result, message, detail sql.NullString
		score, timeMS, memoryKB sql.NullInt64
	)
	err := row.Scan(&sub.ID, &ts, &evalStatusID, &sub.UserID, &sub.LectureID, &sub.AssignmentID,
		&evalInt, &progress, &sub.TotalTask, &sub.CompletedTask,
		&result, &message, &detail, &score, &timeMS, &memoryKB)
	if err != nil {
		return model.Submission{}, err
	}
	sub.TS = unixToTime(ts)
	sub.EvaluationStatusID = nullInt(evalStatusID)
	sub.Eval = evalInt != 0
	sub.Progress = model.Progress(progress)
	if result.Valid {
		v := model.Verdict(result.String)
		sub.Result = &v
	}
	sub.Message = nullString(message)
	sub.Detail = nullString(detail)
	sub.Score = nullInt(score)
	sub.TimeMS = nullInt(timeMS)
	sub.MemoryKB = nullInt(memoryKB)
	return sub, nil
}

func submissionArgs(sub model.Submission) []any {
	var result *string
	if sub.Result != nil {
		v := string(*sub.Result)
		result = &v
	}
	return []any{
		sub.EvaluationStatusID, sub.UserID, sub.LectureID, sub.AssignmentID,
		boolToInt(sub.Eval), string(sub.Progress), sub.TotalTask, sub.CompletedTask,
		result, sub.Message, sub.Detail, sub.Score, sub.TimeMS, sub.MemoryKB,
	}
}

// CreateSubmission inserts a judge request and returns it with id and ts
// assigned.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	sub.TS = time.Now()
	query := `INSERT INTO submission (ts, evaluation_status_id, user_id, lecture_id, assignment_id,
		eval, progress, total_task, completed_task, result, message, detail, score, time_ms, memory_kb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := append([]any{sub.TS.Unix()}, submissionArgs(sub)...)
	id, err := s.insertID(ctx, s.db, query, args...)
	if err != nil {
		return model.Submission{}, err
	}
	sub.ID = id
	return sub, nil
}

// GetSubmission fetches one judge request without children.
func (s *Store) GetSubmission(ctx context.Context, id int64) (model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submission WHERE id = ?`
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Submission{}, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("failed to query submission: %w", err)
	}
	return sub, nil
}

// UpdateSubmission rewrites every mutable column. Progress transitions
// and worker write-backs both come through here; last writer wins.
func (s *Store) UpdateSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	query := `UPDATE submission SET evaluation_status_id = ?, user_id = ?, lecture_id = ?,
		assignment_id = ?, eval = ?, progress = ?, total_task = ?, completed_task = ?,
		result = ?, message = ?, detail = ?, score = ?, time_ms = ?, memory_kb = ?
		WHERE id = ?`
	args := append(submissionArgs(sub), sub.ID)
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return model.Submission{}, s.wrapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Submission{}, fmt.Errorf("submission %d: %w", sub.ID, ErrNotFound)
	}
	return sub, nil
}

// SubmissionFilter narrows paginated submission lists.
type SubmissionFilter struct {
	// UserID restricts to one owner when non-empty.
	UserID string
	// IncludeEval keeps eval submissions in the list.
	IncludeEval bool
}

// ListSubmissions returns one page of submissions, newest first.
// Page numbering starts at 1.
func (s *Store) ListSubmissions(ctx context.Context, page int, f SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submission WHERE 1=1`
	var args []any
	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if !f.IncludeEval {
		query += ` AND eval = 0`
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, PageSize, (page-1)*PageSize)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListSubmissionsByEvaluationStatus returns a batch slot's fanned-out
// submissions ordered by assignment.
func (s *Store) ListSubmissionsByEvaluationStatus(ctx context.Context, evalStatusID int64) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submission
		WHERE evaluation_status_id = ? ORDER BY assignment_id`
	rows, err := s.db.QueryContext(ctx, s.q(query), evalStatusID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// CountBatchSubmissions returns the batch's child-submission totals:
// how many exist and how many have reached the terminal state. The
// counts are derived fresh so progress reads never trust stale columns.
func (s *Store) CountBatchSubmissions(ctx context.Context, batchID int64) (total, done int64, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN sub.progress = ? THEN 1 ELSE 0 END), 0)
		FROM submission sub
		JOIN evaluation_status es ON es.id = sub.evaluation_status_id
		WHERE es.batch_id = ?`
	err = s.db.QueryRowContext(ctx, s.q(query), string(model.ProgressDone), batchID).Scan(&total, &done)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count batch submissions: %w", err)
	}
	return total, done, nil
}

// AddUploadedFile records one uploaded file, path relative to the
// upload root.
func (s *Store) AddUploadedFile(ctx context.Context, uf model.UploadedFile) (model.UploadedFile, error) {
	uf.TS = time.Now()
	query := `INSERT INTO uploaded_files (ts, submission_id, path) VALUES (?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query, uf.TS.Unix(), uf.SubmissionID, uf.Path)
	if err != nil {
		return model.UploadedFile{}, err
	}
	uf.ID = id
	return uf, nil
}

// ListUploadedFiles returns a submission's uploaded files in insert
// order.
func (s *Store) ListUploadedFiles(ctx context.Context, submissionID int64) ([]model.UploadedFile, error) {
	query := `SELECT id, ts, submission_id, path FROM uploaded_files
		WHERE submission_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, s.q(query), submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploaded files: %w", err)
	}
	defer rows.Close()

	var out []model.UploadedFile
	for rows.Next() {
		var (
			uf model.UploadedFile
			ts int64
		)
		if err := rows.Scan(&uf.ID, &ts, &uf.SubmissionID, &uf.Path); err != nil {
			return nil, fmt.Errorf("failed to scan uploaded file: %w", err)
		}
		uf.TS = unixToTime(ts)
		out = append(out, uf)
	}
	return out, rows.Err()
}

// AddJudgeResult records the worker's verdict for one test case. FN is
// a submission-level outcome only and is rejected here.
func (s *Store) AddJudgeResult(ctx context.Context, jr model.JudgeResult) (model.JudgeResult, error) {
	if !jr.Result.ValidForTestcase() {
		return model.JudgeResult{}, fmt.Errorf("verdict %q not allowed on a judge result: %w", jr.Result, ErrIntegrity)
	}
	jr.TS = time.Now()
	query := `INSERT INTO judge_results (ts, submission_id, testcase_id, result, time_ms, memory_kb,
		exit_code, stdout, stderr, expected_stdin, expected_stdout, expected_stderr, expected_exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query,
		jr.TS.Unix(), jr.SubmissionID, jr.TestCaseID, string(jr.Result), jr.TimeMS, jr.MemoryKB,
		jr.ExitCode, jr.Stdout, jr.Stderr, jr.ExpectedStdin, jr.ExpectedStdout, jr.ExpectedStderr,
		jr.ExpectedExitCode)
	if err != nil {
		return model.JudgeResult{}, err
	}
	jr.ID = id
	return jr, nil
}

// ListJudgeResults returns a submission's per-testcase records in
// testcase order.
func (s *Store) ListJudgeResults(ctx context.Context, submissionID int64) ([]model.JudgeResult, error) {
	query := `SELECT id, ts, submission_id, testcase_id, result, time_ms, memory_kb, exit_code,
		stdout, stderr, expected_stdin, expected_stdout, expected_stderr, expected_exit_code
		FROM judge_results WHERE submission_id = ? ORDER BY testcase_id`
	rows, err := s.db.QueryContext(ctx, s.q(query), submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query judge results: %w", err)
	}
	defer rows.Close()

	var out []model.JudgeResult
	for rows.Next() {
		var (
			jr model.JudgeResult
			ts int64

			result                         string
			expStdin, expStdout, expStderr sql.NullString
		)
		if err := rows.Scan(&jr.ID, &ts, &jr.SubmissionID, &jr.TestCaseID, &result,
			&jr.TimeMS, &jr.MemoryKB, &jr.ExitCode, &jr.Stdout, &jr.Stderr,
			&expStdin, &expStdout, &expStderr, &jr.ExpectedExitCode); err != nil {
			return nil, fmt.Errorf("failed to scan judge result: %w", err)
		}
		jr.TS = unixToTime(ts)
		jr.Result = model.Verdict(result)
		jr.ExpectedStdin = expStdin.String
		jr.ExpectedStdout = expStdout.String
		jr.ExpectedStderr = expStderr.String
		out = append(out, jr)
	}
	return out, rows.Err()
}
