// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/archive"
	"github.com/classware-labs/gavel/pkg/model"
)

// SubmitSelfCheck expands a whole-lecture archive from a grader and
// derives one submission per problem. When the report PDF is missing
// the flow short-circuits: a single already-done submission with the
// file-not-found verdict on the lecture's first problem.
func (s *Service) SubmitSelfCheck(ctx context.Context, user model.User, lectureID int64, eval bool, filename string, zipContent io.Reader) ([]model.Submission, error) {
	if !user.Role.Privileged() {
		return nil, fmt.Errorf("%w: the format check needs admin or manager", ErrForbidden)
	}
	if _, err := s.store.GetLecture(ctx, lectureID); err != nil {
		return nil, err
	}

	wantName := fmt.Sprintf("class%d.zip", lectureID)
	if filename != wantName {
		return nil, fmt.Errorf("%w: the archive must be named %s", ErrBadRequest, wantName)
	}

	stageDir := filepath.Join(s.uploadDir, user.UserID, "format-check",
		fmt.Sprintf("%d", lectureID), s.now().Format(model.TimestampLayout))
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", stageDir, err)
	}

	// The archive is staged next to the extraction directory, never
	// inside it, so the layout checks see only its contents.
	zipPath := stageDir + ".zip"
	if err := writeFile(zipPath, zipContent); err != nil {
		return nil, err
	}
	reason, err := archive.Unfold(zipPath, stageDir)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove staged archive", zap.Error(err))
	}
	if reason != "" {
		if err := os.RemoveAll(stageDir); err != nil {
			s.logger.Warn("failed to remove rejected stage dir", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, reason)
	}

	problems, err := s.store.ListProblemDetails(ctx, lectureID, eval)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return nil, fmt.Errorf("%w: lecture %d has no problems", ErrBadRequest, lectureID)
	}

	reportName := fmt.Sprintf("report%d.pdf", lectureID)
	reportPath := filepath.Join(stageDir, reportName)
	if _, err := os.Stat(reportPath); err != nil {
		sub, err := s.missingReportSubmission(ctx, user, problems[0], eval, reportName)
		if err != nil {
			return nil, err
		}
		return []model.Submission{sub}, nil
	}

	var out []model.Submission
	for _, p := range problems {
		sub, err := s.store.CreateSubmission(ctx, model.Submission{
			UserID:       user.UserID,
			LectureID:    p.LectureID,
			AssignmentID: p.AssignmentID,
			Eval:         eval,
			Progress:     model.ProgressPending,
		})
		if err != nil {
			return nil, err
		}

		// Missing required files are not an error here; the worker
		// reports them per problem.
		for _, rf := range p.RequiredFiles {
			path := filepath.Join(stageDir, rf.Name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := s.registerUpload(ctx, &sub, path); err != nil {
				return nil, err
			}
		}
		if err := s.registerUpload(ctx, &sub, reportPath); err != nil {
			return nil, err
		}

		sub.Progress = model.ProgressQueued
		if _, err := s.store.UpdateSubmission(ctx, sub); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	s.logger.Info("format check queued",
		zap.String("user_id", user.UserID),
		zap.Int64("lecture_id", lectureID),
		zap.Int("submissions", len(out)))
	return out, nil
}

// missingReportSubmission records the short-circuit outcome: one
// terminal submission carrying the file-not-found verdict.
func (s *Service) missingReportSubmission(ctx context.Context, user model.User, first model.Problem, eval bool, reportName string) (model.Submission, error) {
	sub, err := s.store.CreateSubmission(ctx, model.Submission{
		UserID:       user.UserID,
		LectureID:    first.LectureID,
		AssignmentID: first.AssignmentID,
		Eval:         eval,
		Progress:     model.ProgressPending,
	})
	if err != nil {
		return model.Submission{}, err
	}

	verdict := model.VerdictFN
	message := fmt.Sprintf("%s is missing from the archive", reportName)
	detail := reportName
	zero := int64(0)
	sub.Progress = model.ProgressDone
	sub.Result = &verdict
	sub.Message = &message
	sub.Detail = &detail
	sub.Score = &zero
	sub.TimeMS = &zero
	sub.MemoryKB = &zero
	if _, err := s.store.UpdateSubmission(ctx, sub); err != nil {
		return model.Submission{}, err
	}

	s.logger.Info("format check rejected, report missing",
		zap.String("user_id", user.UserID),
		zap.Int64("lecture_id", first.LectureID),
		zap.Int64("submission_id", sub.ID))
	return sub, nil
}

// registerUpload records an on-disk file as one of sub's uploads.
func (s *Service) registerUpload(ctx context.Context, sub *model.Submission, path string) error {
	rel, err := s.relToUpload(path)
	if err != nil {
		return err
	}
	uf, err := s.store.AddUploadedFile(ctx, model.UploadedFile{SubmissionID: sub.ID, Path: rel})
	if err != nil {
		return err
	}
	sub.UploadedFiles = append(sub.UploadedFiles, uf)
	return nil
}
