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

	"github.com/classware-labs/gavel/pkg/model"
)

// CreateLecture inserts a lecture. The id is caller-assigned because
// lecture numbering is part of the course material.
func (s *Store) CreateLecture(ctx context.Context, l model.Lecture) (model.Lecture, error) {
	query := `INSERT INTO lecture (id, title, start_date, end_date) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		l.ID, l.Title, l.StartDate.Unix(), l.EndDate.Unix())
	if err != nil {
		return model.Lecture{}, s.wrapWriteErr(err)
	}
	return l, nil
}

// GetLecture fetches one lecture by id.
func (s *Store) GetLecture(ctx context.Context, id int64) (model.Lecture, error) {
	query := `SELECT id, title, start_date, end_date FROM lecture WHERE id = ?`
	var (
		l          model.Lecture
		start, end int64
	)
	err := s.db.QueryRowContext(ctx, s.q(query), id).Scan(&l.ID, &l.Title, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lecture{}, fmt.Errorf("lecture %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Lecture{}, fmt.Errorf("failed to query lecture: %w", err)
	}
	l.StartDate, l.EndDate = unixToTime(start), unixToTime(end)
	return l, nil
}

// ListLectures returns every lecture ordered by id.
func (s *Store) ListLectures(ctx context.Context) ([]model.Lecture, error) {
	query := `SELECT id, title, start_date, end_date FROM lecture ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lectures: %w", err)
	}
	defer rows.Close()

	var out []model.Lecture
	for rows.Next() {
		var (
			l          model.Lecture
			start, end int64
		)
		if err := rows.Scan(&l.ID, &l.Title, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan lecture: %w", err)
		}
		l.StartDate, l.EndDate = unixToTime(start), unixToTime(end)
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLecture removes a lecture and, through the cascades, its
// problems and their children.
func (s *Store) DeleteLecture(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM lecture WHERE id = ?`), id)
	if err != nil {
		return s.wrapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lecture %d: %w", id, ErrNotFound)
	}
	return nil
}

// CreateProblem inserts a problem under an existing lecture.
func (s *Store) CreateProblem(ctx context.Context, p model.Problem) (model.Problem, error) {
	query := `INSERT INTO problem (lecture_id, assignment_id, title, description_path, time_ms, memory_mb)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.q(query),
		p.LectureID, p.AssignmentID, p.Title, p.DescriptionPath, p.TimeMS, p.MemoryMB)
	if err != nil {
		return model.Problem{}, s.wrapWriteErr(err)
	}
	return p, nil
}

// GetProblem fetches one problem. When withChildren is set the required
// files, arranged files, executables, and test cases are loaded too;
// includeEval=false filters grader-only children out.
func (s *Store) GetProblem(ctx context.Context, lectureID, assignmentID int64, includeEval, withChildren bool) (model.Problem, error) {
	query := `SELECT lecture_id, assignment_id, title, description_path, time_ms, memory_mb
		FROM problem WHERE lecture_id = ? AND assignment_id = ?`
	var p model.Problem
	err := s.db.QueryRowContext(ctx, s.q(query), lectureID, assignmentID).Scan(
		&p.LectureID, &p.AssignmentID, &p.Title, &p.DescriptionPath, &p.TimeMS, &p.MemoryMB)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Problem{}, fmt.Errorf("problem %d/%d: %w", lectureID, assignmentID, ErrNotFound)
	}
	if err != nil {
		return model.Problem{}, fmt.Errorf("failed to query problem: %w", err)
	}
	if withChildren {
		if err := s.loadProblemChildren(ctx, &p, includeEval); err != nil {
			return model.Problem{}, err
		}
	}
	return p, nil
}

// ListProblems returns the lecture's problems without children.
func (s *Store) ListProblems(ctx context.Context, lectureID int64) ([]model.Problem, error) {
	query := `SELECT lecture_id, assignment_id, title, description_path, time_ms, memory_mb
		FROM problem WHERE lecture_id = ? ORDER BY assignment_id`
	rows, err := s.db.QueryContext(ctx, s.q(query), lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	var out []model.Problem
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.LectureID, &p.AssignmentID, &p.Title, &p.DescriptionPath, &p.TimeMS, &p.MemoryMB); err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListProblemDetails returns the lecture's problems with children
// loaded, for fan-out flows that need the required file lists.
func (s *Store) ListProblemDetails(ctx context.Context, lectureID int64, includeEval bool) ([]model.Problem, error) {
	problems, err := s.ListProblems(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		if err := s.loadProblemChildren(ctx, &problems[i], includeEval); err != nil {
			return nil, err
		}
	}
	return problems, nil
}

func (s *Store) loadProblemChildren(ctx context.Context, p *model.Problem, includeEval bool) error {
	var err error
	if p.RequiredFiles, err = s.ListRequiredFiles(ctx, p.LectureID, p.AssignmentID); err != nil {
		return err
	}
	if p.ArrangedFiles, err = s.listArrangedFiles(ctx, p.LectureID, p.AssignmentID, includeEval); err != nil {
		return err
	}
	if p.Executables, err = s.listExecutables(ctx, p.LectureID, p.AssignmentID, includeEval); err != nil {
		return err
	}
	if p.TestCases, err = s.listTestCases(ctx, p.LectureID, p.AssignmentID, includeEval); err != nil {
		return err
	}
	return nil
}

// AddRequiredFile registers a filename the submitter must provide.
func (s *Store) AddRequiredFile(ctx context.Context, rf model.RequiredFile) (model.RequiredFile, error) {
	query := `INSERT INTO required_files (lecture_id, assignment_id, name) VALUES (?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query, rf.LectureID, rf.AssignmentID, rf.Name)
	if err != nil {
		return model.RequiredFile{}, err
	}
	rf.ID = id
	return rf, nil
}

// ListRequiredFiles returns the problem's required filenames. Required
// files carry no eval flag; every caller sees all of them.
func (s *Store) ListRequiredFiles(ctx context.Context, lectureID, assignmentID int64) ([]model.RequiredFile, error) {
	query := `SELECT id, lecture_id, assignment_id, name FROM required_files
		WHERE lecture_id = ? AND assignment_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, s.q(query), lectureID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query required files: %w", err)
	}
	defer rows.Close()

	var out []model.RequiredFile
	for rows.Next() {
		var rf model.RequiredFile
		if err := rows.Scan(&rf.ID, &rf.LectureID, &rf.AssignmentID, &rf.Name); err != nil {
			return nil, fmt.Errorf("failed to scan required file: %w", err)
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

// AddArrangedFile registers a prepositioned worker file.
func (s *Store) AddArrangedFile(ctx context.Context, af model.ArrangedFile) (model.ArrangedFile, error) {
	query := `INSERT INTO arranged_files (lecture_id, assignment_id, eval, name, path) VALUES (?, ?, ?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query,
		af.LectureID, af.AssignmentID, boolToInt(af.Eval), af.Name, af.Path)
	if err != nil {
		return model.ArrangedFile{}, err
	}
	af.ID = id
	return af, nil
}

func (s *Store) listArrangedFiles(ctx context.Context, lectureID, assignmentID int64, includeEval bool) ([]model.ArrangedFile, error) {
	query := `SELECT id, lecture_id, assignment_id, eval, name, path FROM arranged_files
		WHERE lecture_id = ? AND assignment_id = ?`
	if !includeEval {
		query += ` AND eval = 0`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, s.q(query), lectureID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arranged files: %w", err)
	}
	defer rows.Close()

	var out []model.ArrangedFile
	for rows.Next() {
		var (
			af      model.ArrangedFile
			evalInt int64
		)
		if err := rows.Scan(&af.ID, &af.LectureID, &af.AssignmentID, &evalInt, &af.Name, &af.Path); err != nil {
			return nil, fmt.Errorf("failed to scan arranged file: %w", err)
		}
		af.Eval = evalInt != 0
		out = append(out, af)
	}
	return out, rows.Err()
}

// AddExecutable registers an expected build artefact.
func (s *Store) AddExecutable(ctx context.Context, ex model.Executable) (model.Executable, error) {
	query := `INSERT INTO executables (lecture_id, assignment_id, eval, name) VALUES (?, ?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query,
		ex.LectureID, ex.AssignmentID, boolToInt(ex.Eval), ex.Name)
	if err != nil {
		return model.Executable{}, err
	}
	ex.ID = id
	return ex, nil
}

func (s *Store) listExecutables(ctx context.Context, lectureID, assignmentID int64, includeEval bool) ([]model.Executable, error) {
	query := `SELECT id, lecture_id, assignment_id, eval, name FROM executables
		WHERE lecture_id = ? AND assignment_id = ?`
	if !includeEval {
		query += ` AND eval = 0`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, s.q(query), lectureID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executables: %w", err)
	}
	defer rows.Close()

	var out []model.Executable
	for rows.Next() {
		var (
			ex      model.Executable
			evalInt int64
		)
		if err := rows.Scan(&ex.ID, &ex.LectureID, &ex.AssignmentID, &evalInt, &ex.Name); err != nil {
			return nil, fmt.Errorf("failed to scan executable: %w", err)
		}
		ex.Eval = evalInt != 0
		out = append(out, ex)
	}
	return out, rows.Err()
}

// AddTestCase registers one check for the worker to run.
func (s *Store) AddTestCase(ctx context.Context, tc model.TestCase) (model.TestCase, error) {
	query := `INSERT INTO test_cases (lecture_id, assignment_id, eval, type, score, title, description,
		command, args, stdin_path, stdout_path, stderr_path, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := s.insertID(ctx, s.db, query,
		tc.LectureID, tc.AssignmentID, boolToInt(tc.Eval), string(tc.Type), tc.Score, tc.Title,
		tc.Description, tc.Command, tc.Args, tc.StdinPath, tc.StdoutPath, tc.StderrPath, tc.ExitCode)
	if err != nil {
		return model.TestCase{}, err
	}
	tc.ID = id
	return tc, nil
}

func (s *Store) listTestCases(ctx context.Context, lectureID, assignmentID int64, includeEval bool) ([]model.TestCase, error) {
	query := `SELECT id, lecture_id, assignment_id, eval, type, score, title, description,
		command, args, stdin_path, stdout_path, stderr_path, exit_code
		FROM test_cases WHERE lecture_id = ? AND assignment_id = ?`
	if !includeEval {
		query += ` AND eval = 0`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, s.q(query), lectureID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query test cases: %w", err)
	}
	defer rows.Close()

	var out []model.TestCase
	for rows.Next() {
		var (
			tc      model.TestCase
			evalInt int64
			tcType  string

			description, args                 sql.NullString
			stdinPath, stdoutPath, stderrPath sql.NullString
		)
		if err := rows.Scan(&tc.ID, &tc.LectureID, &tc.AssignmentID, &evalInt, &tcType, &tc.Score,
			&tc.Title, &description, &tc.Command, &args, &stdinPath, &stdoutPath, &stderrPath, &tc.ExitCode); err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		tc.Eval = evalInt != 0
		tc.Type = model.TestCaseType(tcType)
		tc.Description = description.String
		tc.Args = args.String
		tc.StdinPath = stdinPath.String
		tc.StdoutPath = stdoutPath.String
		tc.StderrPath = stderrPath.String
		out = append(out, tc)
	}
	return out, rows.Err()
}
