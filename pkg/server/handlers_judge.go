// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/classware-labs/gavel/pkg/ingest"
)

// openUpload opens one multipart file for streaming.
func openUpload(fh *multipart.FileHeader) (ingest.File, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.File{}, nil, fmt.Errorf("%w: cannot read uploaded file %s", ingest.ErrBadRequest, fh.Filename)
	}
	return ingest.File{Name: fh.Filename, Content: f}, func() { f.Close() }, nil
}

// handleSingleJudge accepts the file_list multipart set for one
// (lecture, assignment) and queues a submission.
func (s *Server) handleSingleJudge(c echo.Context) error {
	user := currentUser(c)
	lectureID, err := paramInt64(c, "lecture_id")
	if err != nil {
		return err
	}
	assignmentID, err := paramInt64(c, "assignment_id")
	if err != nil {
		return err
	}
	eval := queryBool(c, "eval")

	form, err := c.MultipartForm()
	if err != nil {
		return fmt.Errorf("%w: multipart form required", ingest.ErrBadRequest)
	}
	headers := form.File["file_list"]
	if len(headers) == 0 {
		return fmt.Errorf("%w: file_list is empty", ingest.ErrBadRequest)
	}

	var (
		files   []ingest.File
		closers []func()
	)
	defer func() {
		for _, close := range closers {
			close()
		}
	}()
	for _, fh := range headers {
		f, close, err := openUpload(fh)
		if err != nil {
			return err
		}
		files = append(files, f)
		closers = append(closers, close)
	}

	sub, err := s.ingest.SubmitSingle(c.Request().Context(), user, lectureID, assignmentID, eval, files)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sub)
}

// handleSelfCheck accepts the whole-lecture archive and fans out one
// submission per problem.
func (s *Server) handleSelfCheck(c echo.Context) error {
	user := currentUser(c)
	lectureID, err := paramInt64(c, "lecture_id")
	if err != nil {
		return err
	}
	eval := queryBool(c, "eval")

	fh, err := c.FormFile("uploaded_zip_file")
	if err != nil {
		return fmt.Errorf("%w: uploaded_zip_file is required", ingest.ErrBadRequest)
	}
	f, close, err := openUpload(fh)
	if err != nil {
		return err
	}
	defer close()

	subs, err := s.ingest.SubmitSelfCheck(c.Request().Context(), user, lectureID, eval, fh.Filename, f.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subs)
}

// handleBatchJudge accepts the grader's ZIP-of-ZIPs and registers the
// batch.
func (s *Server) handleBatchJudge(c echo.Context) error {
	user := currentUser(c)
	lectureID, err := paramInt64(c, "lecture_id")
	if err != nil {
		return err
	}
	eval := queryBool(c, "eval")

	fh, err := c.FormFile("uploaded_zip_file")
	if err != nil {
		return fmt.Errorf("%w: uploaded_zip_file is required", ingest.ErrBadRequest)
	}
	f, close, err := openUpload(fh)
	if err != nil {
		return err
	}
	defer close()

	batch, err := s.ingest.SubmitBatch(c.Request().Context(), user, lectureID, eval, fh.Filename, f.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, batch)
}
