// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

// SubmitSingle accepts one (lecture, assignment) submission for user.
// Non-privileged callers may not set eval and may only submit to public
// lectures. The returned submission is queued; its files live under
// {upload}/{user_id}/{ts}-{submission_id}/.
func (s *Service) SubmitSingle(ctx context.Context, user model.User, lectureID, assignmentID int64, eval bool, files []File) (model.Submission, error) {
	lecture, err := s.store.GetLecture(ctx, lectureID)
	if err != nil {
		return model.Submission{}, err
	}
	if !user.Role.Privileged() {
		if eval {
			return model.Submission{}, fmt.Errorf("%w: grading resources need admin or manager", ErrForbidden)
		}
		if !lecture.IsPublic(s.now()) {
			return model.Submission{}, fmt.Errorf("lecture %d: %w", lectureID, store.ErrNotFound)
		}
	}

	if _, err := s.store.GetProblem(ctx, lectureID, assignmentID, eval, false); err != nil {
		return model.Submission{}, err
	}

	sub, err := s.store.CreateSubmission(ctx, model.Submission{
		UserID:       user.UserID,
		LectureID:    lectureID,
		AssignmentID: assignmentID,
		Eval:         eval,
		Progress:     model.ProgressPending,
	})
	if err != nil {
		return model.Submission{}, err
	}

	dir := filepath.Join(s.uploadDir, user.UserID,
		fmt.Sprintf("%s-%d", sub.TS.Format(model.TimestampLayout), sub.ID))
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return model.Submission{}, fmt.Errorf("failed to clear %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.Submission{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	// Files land outside any transaction; a failure here leaves an
	// orphaned pending submission the worker reports as missing files.
	for _, f := range files {
		path := filepath.Join(dir, filepath.Base(f.Name))
		if err := writeFile(path, f.Content); err != nil {
			return model.Submission{}, err
		}
		rel, err := s.relToUpload(path)
		if err != nil {
			return model.Submission{}, err
		}
		uf, err := s.store.AddUploadedFile(ctx, model.UploadedFile{SubmissionID: sub.ID, Path: rel})
		if err != nil {
			return model.Submission{}, err
		}
		sub.UploadedFiles = append(sub.UploadedFiles, uf)
	}

	sub.Progress = model.ProgressQueued
	if _, err := s.store.UpdateSubmission(ctx, sub); err != nil {
		return model.Submission{}, err
	}

	s.logger.Info("submission queued",
		zap.Int64("submission_id", sub.ID),
		zap.String("user_id", user.UserID),
		zap.Int64("lecture_id", lectureID),
		zap.Int64("assignment_id", assignmentID),
		zap.Int("files", len(files)))
	return sub, nil
}
