// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/r3labs/sse/v2"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/ingest"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

func queryPage(c echo.Context) (int, error) {
	raw := c.QueryParam("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: page must be a positive integer", ingest.ErrBadRequest)
	}
	return page, nil
}

// handleSubmissionList returns one page of submissions. Students see
// only their own, non-eval rows; all=true widens to every user for
// privileged callers.
func (s *Server) handleSubmissionList(c echo.Context) error {
	user := currentUser(c)
	page, err := queryPage(c)
	if err != nil {
		return err
	}

	includeEval := queryBool(c, "include_eval")
	all := queryBool(c, "all")
	if (includeEval || all) && !user.Role.Privileged() {
		return fmt.Errorf("%w: listing other users' submissions needs admin or manager", auth.ErrForbidden)
	}

	filter := store.SubmissionFilter{IncludeEval: includeEval}
	if !all {
		filter.UserID = user.UserID
	}
	subs, err := s.store.ListSubmissions(c.Request().Context(), page, filter)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return c.JSON(http.StatusOK, subs)
}

// handleSubmissionStatus returns one submission's progress, refreshing
// the owning batch's counters when it is part of one.
func (s *Server) handleSubmissionStatus(c echo.Context) error {
	user := currentUser(c)
	id, err := paramInt64(c, "id")
	if err != nil {
		return err
	}

	sub, err := s.store.GetSubmission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := ownedOrPrivileged(user, sub.UserID); err != nil {
		return err
	}

	if sub.Batched() {
		es, err := s.store.GetEvaluationStatus(c.Request().Context(), *sub.EvaluationStatusID)
		if err != nil {
			return err
		}
		batch, err := s.store.GetBatchSubmission(c.Request().Context(), es.BatchID)
		if err != nil {
			return err
		}
		if _, err := s.results.RefreshBatchProgress(c.Request().Context(), batch); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, sub)
}

// handleSubmissionFilesZip streams the uploaded or arranged file set of
// a submission as an on-demand zip.
func (s *Server) handleSubmissionFilesZip(c echo.Context) error {
	user := currentUser(c)
	id, err := paramInt64(c, "id")
	if err != nil {
		return err
	}

	sub, err := s.store.GetSubmission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := ownedOrPrivileged(user, sub.UserID); err != nil {
		return err
	}

	kind := c.QueryParam("type")
	var paths []string
	switch kind {
	case "uploaded":
		files, err := s.store.ListUploadedFiles(c.Request().Context(), id)
		if err != nil {
			return err
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	case "arranged":
		problem, err := s.store.GetProblem(c.Request().Context(),
			sub.LectureID, sub.AssignmentID, user.Role.Privileged(), true)
		if err != nil {
			return err
		}
		for _, af := range problem.ArrangedFiles {
			paths = append(paths, af.Path)
		}
	default:
		return fmt.Errorf("%w: type must be uploaded or arranged", ingest.ErrBadRequest)
	}

	return s.serveZip(c, fmt.Sprintf("submission-%d-%s.zip", id, kind), paths)
}

// handleBatchList returns one page of batch jobs.
func (s *Server) handleBatchList(c echo.Context) error {
	page, err := queryPage(c)
	if err != nil {
		return err
	}
	batches, err := s.store.ListBatchSubmissions(c.Request().Context(), page)
	if err != nil {
		return err
	}
	out := make([]model.BatchSubmission, 0, len(batches))
	for _, b := range batches {
		refreshed, err := s.results.RefreshBatchProgress(c.Request().Context(), b)
		if err != nil {
			return err
		}
		out = append(out, refreshed)
	}
	return c.JSON(http.StatusOK, out)
}

// handleBatchStatus returns one batch with freshly derived counters.
func (s *Server) handleBatchStatus(c echo.Context) error {
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
	return c.JSON(http.StatusOK, batch)
}

// batchProgressEvent is the SSE payload of the progress stream.
type batchProgressEvent struct {
	BatchID       int64            `json:"batch_id"`
	State         model.BatchState `json:"state"`
	CompleteJudge *int64           `json:"complete_judge"`
	TotalJudge    *int64           `json:"total_judge"`
}

// handleBatchStream pushes progress events every second until the
// batch completes or the client disconnects.
func (s *Server) handleBatchStream(c echo.Context) error {
	batchID, err := paramInt64(c, "batch_id")
	if err != nil {
		return err
	}
	batch, err := s.store.GetBatchSubmission(c.Request().Context(), batchID)
	if err != nil {
		return err
	}

	streamID := fmt.Sprintf("batch-%d", batch.ID)
	s.events.CreateStream(streamID)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		ctx := c.Request().Context()
		for {
			fresh, err := s.store.GetBatchSubmission(ctx, batchID)
			if err == nil {
				fresh, err = s.results.RefreshBatchProgress(ctx, fresh)
			}
			if err != nil {
				return
			}
			payload, _ := json.Marshal(batchProgressEvent{
				BatchID:       fresh.ID,
				State:         fresh.State(),
				CompleteJudge: fresh.CompleteJudge,
				TotalJudge:    fresh.TotalJudge,
			})
			s.events.Publish(streamID, &sse.Event{Data: payload})
			if fresh.State() == model.BatchDone {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// The sse server multiplexes on the stream query parameter.
	q := c.Request().URL.Query()
	q.Set("stream", streamID)
	c.Request().URL.RawQuery = q.Encode()
	s.events.ServeHTTP(c.Response(), c.Request())
	return nil
}
