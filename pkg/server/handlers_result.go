// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/classware-labs/gavel/pkg/archive"
	"github.com/classware-labs/gavel/pkg/ingest"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

// serveZip streams a flat zip of upload-root-relative paths.
func (s *Server) serveZip(c echo.Context, filename string, paths []string) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/zip")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	res.WriteHeader(http.StatusOK)
	return archive.Bundle(res, s.uploadDir, paths)
}

// handleSubmissionResult returns the full judge record of one
// submission, with the wrong-answer stdout diff attached.
func (s *Server) handleSubmissionResult(c echo.Context) error {
	user := currentUser(c)
	id, err := paramInt64(c, "id")
	if err != nil {
		return err
	}

	sub, err := s.results.SubmissionDetail(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := ownedOrPrivileged(user, sub.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sub)
}

// batchResultResponse is the full result tree of one batch.
type batchResultResponse struct {
	Batch              model.BatchSubmission    `json:"batch"`
	EvaluationStatuses []model.EvaluationStatus `json:"evaluation_statuses"`
}

// handleBatchResult returns every evaluation slot of a batch with its
// child submissions, rolling up verdicts for completed batches.
func (s *Server) handleBatchResult(c echo.Context) error {
	batchID, err := paramInt64(c, "batch_id")
	if err != nil {
		return err
	}
	batch, err := s.store.GetBatchSubmission(c.Request().Context(), batchID)
	if err != nil {
		return err
	}
	batch, err = s.results.RefreshBatchProgress(c.Request().Context(), batch)
	if err != nil {
		return err
	}
	statuses, err := s.results.AggregateBatchResults(c.Request().Context(), batch)
	if err != nil {
		return err
	}
	if statuses == nil {
		statuses = []model.EvaluationStatus{}
	}
	return c.JSON(http.StatusOK, batchResultResponse{
		Batch:              batch,
		EvaluationStatuses: statuses,
	})
}

// handleBatchUserResult returns one student's slot within a batch.
func (s *Server) handleBatchUserResult(c echo.Context) error {
	batchID, err := paramInt64(c, "batch_id")
	if err != nil {
		return err
	}
	userID := c.Param("user_id")

	es, err := s.store.GetEvaluationStatusByUser(c.Request().Context(), batchID, userID)
	if err != nil {
		return err
	}
	es.Submissions, err = s.store.ListSubmissionsByEvaluationStatus(c.Request().Context(), es.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, es)
}

// handleBatchFiles downloads one student's batch artefacts: the files
// they uploaded as a zip, or their report PDF.
func (s *Server) handleBatchFiles(c echo.Context) error {
	batchID, err := paramInt64(c, "batch_id")
	if err != nil {
		return err
	}
	userID := c.Param("user_id")

	es, err := s.store.GetEvaluationStatusByUser(c.Request().Context(), batchID, userID)
	if err != nil {
		return err
	}

	switch kind := c.Param("kind"); kind {
	case "uploaded":
		subs, err := s.store.ListSubmissionsByEvaluationStatus(c.Request().Context(), es.ID)
		if err != nil {
			return err
		}
		var paths []string
		seen := map[string]bool{}
		for _, sub := range subs {
			files, err := s.store.ListUploadedFiles(c.Request().Context(), sub.ID)
			if err != nil {
				return err
			}
			for _, f := range files {
				if seen[f.Path] {
					continue
				}
				seen[f.Path] = true
				paths = append(paths, f.Path)
			}
		}
		name := fmt.Sprintf("batch-%d-%s-uploaded.zip", batchID, userID)
		return s.serveZip(c, name, paths)
	case "report":
		if es.ReportPath == nil {
			return fmt.Errorf("report for user %s: %w", userID, store.ErrNotFound)
		}
		full := filepath.Join(s.uploadDir, *es.ReportPath)
		return c.Attachment(full, filepath.Base(*es.ReportPath))
	default:
		return fmt.Errorf("%w: kind must be uploaded or report", ingest.ErrBadRequest)
	}
}
