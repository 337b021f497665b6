// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package model defines the judging service's entities and the
// enumerated vocabularies they carry on the wire.
package model

import "time"

// TimestampLayout names upload directories and batch workspaces.
const TimestampLayout = "2006-01-02-15-04-05"

// Lecture is one class meeting's assignment bundle with a public window.
type Lecture struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// IsPublic reports whether the lecture is visible to non-privileged
// roles at t. The window is half-open: [start, end).
func (l Lecture) IsPublic(t time.Time) bool {
	return !t.Before(l.StartDate) && t.Before(l.EndDate)
}

// Problem is one exercise within a lecture, keyed by
// (lecture_id, assignment_id).
type Problem struct {
	LectureID       int64  `json:"lecture_id"`
	AssignmentID    int64  `json:"assignment_id"`
	Title           string `json:"title"`
	DescriptionPath string `json:"description_path"`
	TimeMS          int64  `json:"timeMS"`
	MemoryMB        int64  `json:"memoryMB"`

	// Children, populated by detail reads. Eval-only entries are
	// filtered out for non-privileged callers.
	RequiredFiles []RequiredFile `json:"required_files,omitempty"`
	ArrangedFiles []ArrangedFile `json:"arranged_files,omitempty"`
	Executables   []Executable   `json:"executables,omitempty"`
	TestCases     []TestCase     `json:"test_cases,omitempty"`

	// Description text, loaded from DescriptionPath on detail reads.
	Description string `json:"description,omitempty"`
}

// RequiredFile names a file the submitter must provide.
type RequiredFile struct {
	ID           int64  `json:"id"`
	LectureID    int64  `json:"lecture_id"`
	AssignmentID int64  `json:"assignment_id"`
	Name         string `json:"name"`
}

// ArrangedFile is prepositioned into the worker workspace.
type ArrangedFile struct {
	ID           int64  `json:"id"`
	LectureID    int64  `json:"lecture_id"`
	AssignmentID int64  `json:"assignment_id"`
	Eval         bool   `json:"eval"`
	Name         string `json:"name"`
	Path         string `json:"path"`
}

// Executable names a build artefact expected after compilation.
type Executable struct {
	ID           int64  `json:"id"`
	LectureID    int64  `json:"lecture_id"`
	AssignmentID int64  `json:"assignment_id"`
	Eval         bool   `json:"eval"`
	Name         string `json:"name"`
}

// TestCase is one check the worker runs against a submission.
type TestCase struct {
	ID           int64        `json:"id"`
	LectureID    int64        `json:"lecture_id"`
	AssignmentID int64        `json:"assignment_id"`
	Eval         bool         `json:"eval"`
	Type         TestCaseType `json:"type"`
	Score        int64        `json:"score"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Command      string       `json:"command"`
	Args         string       `json:"args,omitempty"`
	StdinPath    string       `json:"stdin_path,omitempty"`
	StdoutPath   string       `json:"stdout_path,omitempty"`
	StderrPath   string       `json:"stderr_path,omitempty"`
	ExitCode     int64        `json:"exit_code"`
}

// User is an account in the user directory. UserID is a student-number
// style string and the primary key.
type User struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	HashedPassword  string    `json:"-"`
	Role            Role      `json:"role"`
	Disabled        bool      `json:"disabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ActiveStartDate time.Time `json:"active_start_date"`
	ActiveEndDate   time.Time `json:"active_end_date"`
}

// IsActive reports whether the account may log in at t.
func (u User) IsActive(t time.Time) bool {
	if u.Disabled {
		return false
	}
	return !t.Before(u.ActiveStartDate) && t.Before(u.ActiveEndDate)
}

// LoginHistory tracks the live tokens of a single login, keyed by
// (user_id, login_at). LogoutAt always equals the current access-token
// expiry; RefreshCount never exceeds MaxRefreshCount.
type LoginHistory struct {
	UserID              string    `json:"user_id"`
	LoginAt             time.Time `json:"login_at"`
	LogoutAt            time.Time `json:"logout_at"`
	RefreshCount        int       `json:"refresh_count"`
	CurrentAccessToken  string    `json:"-"`
	CurrentRefreshToken string    `json:"-"`
}

// MaxRefreshCount bounds how many times one login may rotate its
// tokens before a fresh login is required.
const MaxRefreshCount = 3

// BatchSubmission is a grader-initiated bulk job over one lecture.
// CompleteJudge/TotalJudge are null until orchestration finishes
// expanding the batch.
type BatchSubmission struct {
	ID            int64     `json:"id"`
	TS            time.Time `json:"ts"`
	UserID        string    `json:"user_id"`
	LectureID     int64     `json:"lecture_id"`
	Message       string    `json:"message"`
	CompleteJudge *int64    `json:"complete_judge"`
	TotalJudge    *int64    `json:"total_judge"`
}

// State derives the batch's lifecycle position from its counters.
func (b BatchSubmission) State() BatchState {
	if b.CompleteJudge == nil || b.TotalJudge == nil {
		return BatchQueued
	}
	if *b.CompleteJudge < *b.TotalJudge {
		return BatchRunning
	}
	return BatchDone
}

// EvaluationStatus is the per-student slot within a batch. UploadDir and
// ReportPath are relative to the upload root.
type EvaluationStatus struct {
	ID         int64           `json:"id"`
	BatchID    int64           `json:"batch_id"`
	UserID     string          `json:"user_id"`
	Status     EvaluationState `json:"status"`
	Result     *Verdict        `json:"result"`
	UploadDir  *string         `json:"upload_dir"`
	ReportPath *string         `json:"report_path"`
	SubmitDate *time.Time      `json:"submit_date"`

	// Submissions fanned out for this slot, populated by result reads.
	Submissions []Submission `json:"submissions,omitempty"`
}

// Submission is one judge request for one problem by one user.
// EvaluationStatusID is null exactly when the submission is individual
// rather than batched.
type Submission struct {
	ID                 int64     `json:"id"`
	TS                 time.Time `json:"ts"`
	EvaluationStatusID *int64    `json:"evaluation_status_id"`
	UserID             string    `json:"user_id"`
	LectureID          int64     `json:"lecture_id"`
	AssignmentID       int64     `json:"assignment_id"`
	Eval               bool      `json:"eval"`
	Progress           Progress  `json:"progress"`
	TotalTask          int64     `json:"total_task"`
	CompletedTask      int64     `json:"completed_task"`
	Result             *Verdict  `json:"result"`
	Message            *string   `json:"message"`
	Detail             *string   `json:"detail"`
	Score              *int64    `json:"score"`
	TimeMS             *int64    `json:"timeMS"`
	MemoryKB           *int64    `json:"memoryKB"`

	UploadedFiles []UploadedFile `json:"uploaded_files,omitempty"`
	JudgeResults  []JudgeResult  `json:"judge_results,omitempty"`
}

// Batched reports whether the submission belongs to a batch.
func (s Submission) Batched() bool {
	return s.EvaluationStatusID != nil
}

// UploadedFile records one file a submission brought in, as a path
// relative to the upload root.
type UploadedFile struct {
	ID           int64     `json:"id"`
	TS           time.Time `json:"ts"`
	SubmissionID int64     `json:"submission_id"`
	Path         string    `json:"path"`
}

// JudgeResult is the worker's per-testcase record. The expected_* fields
// snapshot the testcase at judging time so results stay meaningful when
// the problem definition later changes.
type JudgeResult struct {
	ID               int64     `json:"id"`
	TS               time.Time `json:"ts"`
	SubmissionID     int64     `json:"submission_id"`
	TestCaseID       int64     `json:"testcase_id"`
	Result           Verdict   `json:"result"`
	TimeMS           int64     `json:"timeMS"`
	MemoryKB         int64     `json:"memoryKB"`
	ExitCode         int64     `json:"exit_code"`
	Stdout           string    `json:"stdout"`
	Stderr           string    `json:"stderr"`
	ExpectedStdin    string    `json:"expected_stdin,omitempty"`
	ExpectedStdout   string    `json:"expected_stdout,omitempty"`
	ExpectedStderr   string    `json:"expected_stderr,omitempty"`
	ExpectedExitCode int64     `json:"expected_exit_code"`

	// StdoutDiff is derived on result reads for WA outcomes; it is
	// never persisted.
	StdoutDiff string `json:"stdout_diff,omitempty"`
}
