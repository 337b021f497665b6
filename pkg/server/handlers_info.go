// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

func paramInt64(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return v, nil
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

// handleLectureList returns the lectures the caller may see: the public
// ones, or all of them for privileged callers asking all=true.
func (s *Server) handleLectureList(c echo.Context) error {
	user := currentUser(c)
	all := queryBool(c, "all")
	if all && !user.Role.Privileged() {
		return fmt.Errorf("%w: listing all lectures needs admin or manager", auth.ErrForbidden)
	}

	lectures, err := s.store.ListLectures(c.Request().Context())
	if err != nil {
		return err
	}
	if !all {
		now := time.Now()
		visible := lectures[:0]
		for _, l := range lectures {
			if l.IsPublic(now) {
				visible = append(visible, l)
			}
		}
		lectures = visible
	}
	return c.JSON(http.StatusOK, lectures)
}

// handleProblemDetail returns one problem with its children and the
// description text read from disk. eval=true needs a privileged role;
// students cannot see non-public lectures at all.
func (s *Server) handleProblemDetail(c echo.Context) error {
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

	if eval && !user.Role.Privileged() {
		return fmt.Errorf("%w: grading resources need admin or manager", auth.ErrForbidden)
	}

	lecture, err := s.store.GetLecture(c.Request().Context(), lectureID)
	if err != nil {
		return err
	}
	if !user.Role.Privileged() && !lecture.IsPublic(time.Now()) {
		return fmt.Errorf("lecture %d: %w", lectureID, store.ErrNotFound)
	}

	problem, err := s.store.GetProblem(c.Request().Context(), lectureID, assignmentID, eval, true)
	if err != nil {
		return err
	}
	if text, err := os.ReadFile(filepath.Join(s.uploadDir, problem.DescriptionPath)); err == nil {
		problem.Description = string(text)
	}
	return c.JSON(http.StatusOK, problem)
}

// ownedOrPrivileged rejects access to another user's submission unless
// the caller is privileged.
func ownedOrPrivileged(user model.User, ownerID string) error {
	if user.UserID == ownerID || user.Role.Privileged() {
		return nil
	}
	return fmt.Errorf("%w: not the submission owner", auth.ErrForbidden)
}
