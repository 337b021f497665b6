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

const batchColumns = `id, ts, user_id, lecture_id, message, complete_judge, total_judge`

func scanBatch(row interface{ Scan(...any) error }) (model.BatchSubmission, error) {
	var (
		b               model.BatchSubmission
		ts              int64
		complete, total sql.NullInt64
	)
	err := row.Scan(&b.ID, &ts, &b.UserID, &b.LectureID, &b.Message, &complete, &total)
	if err != nil {
		return model.BatchSubmission{}, err
	}
	b.TS = unixToTime(ts)
	b.CompleteJudge = nullInt(complete)
	b.TotalJudge = nullInt(total)
	return b, nil
}

// CreateBatchSubmission registers a bulk job with null judge counters
// so callers can begin polling while expansion runs.
func (s *Store) CreateBatchSubmission(ctx context.Context, b model.BatchSubmission) (model.BatchSubmission, error) {
	b.TS = time.Now()
	query := `INSERT INTO batch_submission (ts, user_id, lecture_id, message, complete_judge, total_judge)
		VALUES (?, ?, ?, ?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query,
		b.TS.Unix(), b.UserID, b.LectureID, b.Message, b.CompleteJudge, b.TotalJudge)
	if err != nil {
		return model.BatchSubmission{}, err
	}
	b.ID = id
	return b, nil
}

// GetBatchSubmission fetches one bulk job.
func (s *Store) GetBatchSubmission(ctx context.Context, id int64) (model.BatchSubmission, error) {
	query := `SELECT ` + batchColumns + ` FROM batch_submission WHERE id = ?`
	b, err := scanBatch(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.BatchSubmission{}, fmt.Errorf("batch %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.BatchSubmission{}, fmt.Errorf("failed to query batch: %w", err)
	}
	return b, nil
}

// ListBatchSubmissions returns one page of bulk jobs, newest first.
func (s *Store) ListBatchSubmissions(ctx context.Context, page int) ([]model.BatchSubmission, error) {
	query := `SELECT ` + batchColumns + ` FROM batch_submission ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.q(query), PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []model.BatchSubmission
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBatchSubmission rewrites the message and judge counters.
func (s *Store) UpdateBatchSubmission(ctx context.Context, b model.BatchSubmission) (model.BatchSubmission, error) {
	query := `UPDATE batch_submission SET message = ?, complete_judge = ?, total_judge = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, s.q(query), b.Message, b.CompleteJudge, b.TotalJudge, b.ID)
	if err != nil {
		return model.BatchSubmission{}, s.wrapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.BatchSubmission{}, fmt.Errorf("batch %d: %w", b.ID, ErrNotFound)
	}
	return b, nil
}

const evalStatusColumns = `id, batch_id, user_id, status, result, upload_dir, report_path, submit_date`

func scanEvaluationStatus(row interface{ Scan(...any) error }) (model.EvaluationStatus, error) {
	var (
		es                    model.EvaluationStatus
		status                string
		result                sql.NullString
		uploadDir, reportPath sql.NullString
		submitDate            sql.NullInt64
	)
	err := row.Scan(&es.ID, &es.BatchID, &es.UserID, &status, &result, &uploadDir, &reportPath, &submitDate)
	if err != nil {
		return model.EvaluationStatus{}, err
	}
	es.Status = model.EvaluationState(status)
	if result.Valid {
		v := model.Verdict(result.String)
		es.Result = &v
	}
	es.UploadDir = nullString(uploadDir)
	es.ReportPath = nullString(reportPath)
	es.SubmitDate = nullTime(submitDate)
	return es, nil
}

func evalStatusArgs(es model.EvaluationStatus) []any {
	var result *string
	if es.Result != nil {
		v := string(*es.Result)
		result = &v
	}
	var submitDate *int64
	if es.SubmitDate != nil {
		u := es.SubmitDate.Unix()
		submitDate = &u
	}
	return []any{es.BatchID, es.UserID, string(es.Status), result, es.UploadDir, es.ReportPath, submitDate}
}

// CreateEvaluationStatus inserts a per-student slot. A second slot for
// the same (batch_id, user_id) collides and surfaces as ErrConflict.
func (s *Store) CreateEvaluationStatus(ctx context.Context, es model.EvaluationStatus) (model.EvaluationStatus, error) {
	query := `INSERT INTO evaluation_status (batch_id, user_id, status, result, upload_dir, report_path, submit_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query, evalStatusArgs(es)...)
	if err != nil {
		return model.EvaluationStatus{}, err
	}
	es.ID = id
	return es, nil
}

// GetEvaluationStatus fetches one slot by id.
func (s *Store) GetEvaluationStatus(ctx context.Context, id int64) (model.EvaluationStatus, error) {
	query := `SELECT ` + evalStatusColumns + ` FROM evaluation_status WHERE id = ?`
	es, err := scanEvaluationStatus(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.EvaluationStatus{}, fmt.Errorf("evaluation status %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.EvaluationStatus{}, fmt.Errorf("failed to query evaluation status: %w", err)
	}
	return es, nil
}

// GetEvaluationStatusByUser fetches one student's slot within a batch.
func (s *Store) GetEvaluationStatusByUser(ctx context.Context, batchID int64, userID string) (model.EvaluationStatus, error) {
	query := `SELECT ` + evalStatusColumns + ` FROM evaluation_status WHERE batch_id = ? AND user_id = ?`
	es, err := scanEvaluationStatus(s.db.QueryRowContext(ctx, s.q(query), batchID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.EvaluationStatus{}, fmt.Errorf("evaluation status %d/%s: %w", batchID, userID, ErrNotFound)
	}
	if err != nil {
		return model.EvaluationStatus{}, fmt.Errorf("failed to query evaluation status: %w", err)
	}
	return es, nil
}

// ListEvaluationStatuses returns a batch's slots ordered by student id.
func (s *Store) ListEvaluationStatuses(ctx context.Context, batchID int64) ([]model.EvaluationStatus, error) {
	query := `SELECT ` + evalStatusColumns + ` FROM evaluation_status WHERE batch_id = ? ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, s.q(query), batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation statuses: %w", err)
	}
	defer rows.Close()

	var out []model.EvaluationStatus
	for rows.Next() {
		es, err := scanEvaluationStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation status: %w", err)
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

// UpdateEvaluationStatus rewrites every mutable column of a slot.
func (s *Store) UpdateEvaluationStatus(ctx context.Context, es model.EvaluationStatus) (model.EvaluationStatus, error) {
	query := `UPDATE evaluation_status SET batch_id = ?, user_id = ?, status = ?, result = ?,
		upload_dir = ?, report_path = ?, submit_date = ? WHERE id = ?`
	args := append(evalStatusArgs(es), es.ID)
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return model.EvaluationStatus{}, s.wrapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.EvaluationStatus{}, fmt.Errorf("evaluation status %d: %w", es.ID, ErrNotFound)
	}
	return es, nil
}
