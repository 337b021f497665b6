// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/archive"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/roster"
	"github.com/classware-labs/gavel/pkg/store"
)

// studentFolderPattern matches the per-student export folders:
// {9-digit student number}@{13-digit internal id}.
var studentFolderPattern = regexp.MustCompile(`^\d{9}@\d{13}$`)

// batchDiagnostics accumulates the per-student warning lines that end
// up in BatchSubmission.message. Per-student trouble never aborts the
// batch.
type batchDiagnostics struct {
	lines []string
}

func (d *batchDiagnostics) addf(format string, args ...any) {
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

func (d *batchDiagnostics) String() string {
	if len(d.lines) == 0 {
		return ""
	}
	return strings.Join(d.lines, "\n") + "\n"
}

// SubmitBatch accepts a grader's ZIP-of-ZIPs for one lecture, expands
// it into the batch upload tree, correlates the roster with the
// per-student folders, and fans out one queued submission per
// (student, problem). The batch row is registered before expansion so
// callers can begin polling immediately.
func (s *Service) SubmitBatch(ctx context.Context, grader model.User, lectureID int64, eval bool, filename string, zipContent io.Reader) (model.BatchSubmission, error) {
	lecture, err := s.store.GetLecture(ctx, lectureID)
	if err != nil {
		return model.BatchSubmission{}, err
	}
	if !grader.Role.Privileged() && !lecture.IsPublic(s.now()) {
		return model.BatchSubmission{}, fmt.Errorf("lecture %d: %w", lectureID, store.ErrNotFound)
	}

	problems, err := s.store.ListProblemDetails(ctx, lectureID, eval)
	if err != nil {
		return model.BatchSubmission{}, err
	}

	batch, err := s.store.CreateBatchSubmission(ctx, model.BatchSubmission{
		UserID:    grader.UserID,
		LectureID: lectureID,
	})
	if err != nil {
		return model.BatchSubmission{}, err
	}

	batchDir := filepath.Join(s.uploadDir, "batch",
		fmt.Sprintf("%s-%d", batch.TS.Format(model.TimestampLayout), batch.ID))
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return model.BatchSubmission{}, fmt.Errorf("failed to create %s: %w", batchDir, err)
	}

	var diag batchDiagnostics
	rosterPath, err := s.expandBatchWorkspace(ctx, lectureID, filename, zipContent, batchDir, &diag)
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			if rmErr := os.RemoveAll(batchDir); rmErr != nil {
				s.logger.Warn("failed to remove batch dir", zap.Error(rmErr))
			}
		}
		return model.BatchSubmission{}, err
	}

	rows := roster.Parse(rosterPath)
	if rows == nil {
		if rmErr := os.RemoveAll(batchDir); rmErr != nil {
			s.logger.Warn("failed to remove batch dir", zap.Error(rmErr))
		}
		return model.BatchSubmission{}, fmt.Errorf("%w: reportlist.xlsx or reportlist.xls is missing", ErrBadRequest)
	}

	statuses := s.walkRoster(ctx, rows, batch.ID, lectureID, batchDir, &diag)
	if len(statuses) == 0 {
		return model.BatchSubmission{}, fmt.Errorf("%w: no student could be read from the roster", ErrBadRequest)
	}

	totalJudge, err := s.fanOut(ctx, statuses, problems, eval, &diag)
	if err != nil {
		return model.BatchSubmission{}, err
	}

	zeroComplete := int64(0)
	batch.Message = diag.String()
	batch.CompleteJudge = &zeroComplete
	batch.TotalJudge = &totalJudge
	if _, err := s.store.UpdateBatchSubmission(ctx, batch); err != nil {
		return model.BatchSubmission{}, err
	}

	s.logger.Info("batch queued",
		zap.Int64("batch_id", batch.ID),
		zap.Int64("lecture_id", lectureID),
		zap.Int64("total_judge", totalJudge),
		zap.Int("diagnostics", len(diag.lines)))
	return batch, nil
}

// expandBatchWorkspace extracts the grader archive to a temp workspace,
// locates the roster, copies it into batchDir, and unfolds each known
// student's inner archive into batchDir/{user_id}. Returns the copied
// roster's path.
func (s *Service) expandBatchWorkspace(ctx context.Context, lectureID int64, filename string, zipContent io.Reader, batchDir string, diag *batchDiagnostics) (string, error) {
	workspace, err := os.MkdirTemp("", "gavel-batch-*")
	if err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	zipPath := filepath.Join(workspace, "upload.zip")
	if err := writeFile(zipPath, zipContent); err != nil {
		return "", err
	}
	extractDir := filepath.Join(workspace, "extracted")
	if err := archive.Extract(zipPath, extractDir); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	currentDir, err := descendWorkspace(extractDir, filename)
	if err != nil {
		return "", err
	}

	// The roster must exist; everything else degrades to diagnostics.
	var rosterSrc string
	for _, name := range []string{"reportlist.xlsx", "reportlist.xls"} {
		candidate := filepath.Join(currentDir, name)
		if _, err := os.Stat(candidate); err == nil {
			rosterSrc = candidate
			break
		}
	}
	if rosterSrc == "" {
		return "", fmt.Errorf("%w: reportlist.xlsx or reportlist.xls is missing", ErrBadRequest)
	}
	rosterDst := filepath.Join(batchDir, filepath.Base(rosterSrc))
	if err := copyFile(rosterSrc, rosterDst); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(currentDir)
	if err != nil {
		return "", fmt.Errorf("failed to read workspace: %w", err)
	}
	innerName := fmt.Sprintf("class%d.zip", lectureID)
	for _, e := range entries {
		if !e.IsDir() || !studentFolderPattern.MatchString(e.Name()) {
			continue
		}
		userID := strings.SplitN(e.Name(), "@", 2)[0]

		if _, err := s.store.GetUser(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				diag.addf("%s is not registered in the user directory", userID)
				continue
			}
			return "", err
		}

		innerZip := filepath.Join(currentDir, e.Name(), innerName)
		if _, err := os.Stat(innerZip); err != nil {
			diag.addf("%s is marked submitted but did not provide %s", userID, innerName)
			continue
		}

		dest := filepath.Join(batchDir, userID)
		reason, err := archive.Unfold(innerZip, dest)
		if err != nil {
			return "", err
		}
		if reason != "" {
			diag.addf("failed to expand %s's archive: %s", userID, reason)
			if rmErr := os.RemoveAll(dest); rmErr != nil {
				s.logger.Warn("failed to remove rejected student dir", zap.Error(rmErr))
			}
			continue
		}

		s.checkReport(lectureID, userID, dest, diag)
	}
	return rosterDst, nil
}

// checkReport opens the student's report PDF when present; an
// unreadable file is worth a warning line but never fatal.
func (s *Service) checkReport(lectureID int64, userID, dir string, diag *batchDiagnostics) {
	reportPath := filepath.Join(dir, fmt.Sprintf("report%d.pdf", lectureID))
	if _, err := os.Stat(reportPath); err != nil {
		return
	}
	f, _, err := pdf.Open(reportPath)
	if err != nil {
		diag.addf("%s's report PDF cannot be read: %v", userID, err)
		return
	}
	f.Close()
}

// descendWorkspace applies the export-shape rules: descend a single
// top-level directory, or descend the archive-named folder when
// metadata siblings such as __MACOSX appear next to it.
func descendWorkspace(extractDir, filename string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("failed to read workspace: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extractDir, entries[0].Name()), nil
	}
	if len(entries) > 1 {
		stem := strings.TrimSuffix(filename, filepath.Ext(filename))
		named := filepath.Join(extractDir, stem)
		if info, err := os.Stat(named); err == nil && info.IsDir() {
			return named, nil
		}
	}
	return extractDir, nil
}

// walkRoster materialises one EvaluationStatus per enrolled roster row.
// Rows that cannot become a judgeable slot record a diagnostic line and
// are skipped.
func (s *Service) walkRoster(ctx context.Context, rows []roster.Row, batchID, lectureID int64, batchDir string, diag *batchDiagnostics) []model.EvaluationStatus {
	reportName := fmt.Sprintf("report%d.pdf", lectureID)
	var out []model.EvaluationStatus
	for i, row := range rows {
		if row.Role != roster.RoleEnrolled {
			continue
		}
		if row.StudentID == "" {
			diag.addf("roster row %d has an empty student number", i)
			continue
		}
		if _, err := s.store.GetUser(ctx, row.StudentID); err != nil {
			diag.addf("roster row %d names an unregistered user: %s", i, row.StudentID)
			continue
		}

		status := model.EvaluationNonSubmitted
		switch row.Submission {
		case roster.StatusSubmitted:
			status = model.EvaluationSubmitted
		case roster.StatusLateSubmitted:
			status = model.EvaluationDelay
		}
		if status.Judgeable() && row.SubmitDate == nil {
			diag.addf("%s is marked submitted but the roster has no submit date", row.StudentID)
			continue
		}

		es := model.EvaluationStatus{
			BatchID: batchID,
			UserID:  row.StudentID,
			Status:  status,
		}
		if status.Judgeable() {
			uploadDir := filepath.Join(batchDir, row.StudentID)
			if _, err := os.Stat(uploadDir); err == nil {
				if rel, err := s.relToUpload(uploadDir); err == nil {
					es.UploadDir = &rel
				}
				reportPath := filepath.Join(uploadDir, reportName)
				if _, err := os.Stat(reportPath); err == nil {
					if rel, err := s.relToUpload(reportPath); err == nil {
						es.ReportPath = &rel
					}
				}
			}
			es.SubmitDate = row.SubmitDate
		}

		created, err := s.store.CreateEvaluationStatus(ctx, es)
		if err != nil {
			diag.addf("failed to record %s's evaluation slot: %v", row.StudentID, err)
			continue
		}
		out = append(out, created)
	}
	return out
}

// fanOut expands judgeable slots into one queued submission per
// problem. Each (student, problem) tuple commits on its own so a crash
// mid-batch leaves a partial total the progress read reconciles later.
func (s *Service) fanOut(ctx context.Context, statuses []model.EvaluationStatus, problems []model.Problem, eval bool, diag *batchDiagnostics) (int64, error) {
	var total int64
	for _, es := range statuses {
		if !es.Status.Judgeable() {
			continue
		}
		if es.UploadDir == nil {
			diag.addf("%s's submission folder is missing", es.UserID)
			es.Status = model.EvaluationNonSubmitted
			if _, err := s.store.UpdateEvaluationStatus(ctx, es); err != nil {
				return 0, err
			}
			continue
		}

		for _, p := range problems {
			esID := es.ID
			sub, err := s.store.CreateSubmission(ctx, model.Submission{
				EvaluationStatusID: &esID,
				UserID:             es.UserID,
				LectureID:          p.LectureID,
				AssignmentID:       p.AssignmentID,
				Eval:               eval,
				Progress:           model.ProgressPending,
			})
			if err != nil {
				return 0, err
			}
			total++

			for _, rf := range p.RequiredFiles {
				path := filepath.Join(s.uploadDir, *es.UploadDir, rf.Name)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				if err := s.registerUpload(ctx, &sub, path); err != nil {
					return 0, err
				}
			}

			sub.Progress = model.ProgressQueued
			if _, err := s.store.UpdateSubmission(ctx, sub); err != nil {
				return 0, err
			}
		}
	}
	return total, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	return writeFile(dst, in)
}
