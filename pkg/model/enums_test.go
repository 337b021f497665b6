// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScopeMatrix(t *testing.T) {
	assert.True(t, RoleAllows(RoleAdmin, ScopeMe, ScopeAccount, ScopeViewUsers, ScopeViewAllProblems, ScopeBatch))

	assert.True(t, RoleAllows(RoleManager, ScopeMe, ScopeViewUsers, ScopeViewAllProblems, ScopeBatch))
	assert.False(t, RoleAllows(RoleManager, ScopeAccount))

	assert.True(t, RoleAllows(RoleStudent, ScopeMe))
	assert.False(t, RoleAllows(RoleStudent, ScopeBatch))
	assert.False(t, RoleAllows(RoleStudent, ScopeViewAllProblems))
}

func TestScopesForRoleCopies(t *testing.T) {
	scopes := ScopesForRole(RoleStudent)
	assert.Equal(t, []Scope{ScopeMe}, scopes)

	scopes[0] = ScopeAccount
	assert.True(t, RoleAllows(RoleStudent, ScopeMe), "mutating the returned slice must not change the matrix")
}

func TestRolePrivileged(t *testing.T) {
	assert.True(t, RoleAdmin.Privileged())
	assert.True(t, RoleManager.Privileged())
	assert.False(t, RoleStudent.Privileged())
}

func TestLecturePublicWindow(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)
	lec := Lecture{ID: 1, Title: "week 1", StartDate: start, EndDate: end}

	assert.False(t, lec.IsPublic(start.Add(-time.Second)))
	assert.True(t, lec.IsPublic(start), "window start is inclusive")
	assert.True(t, lec.IsPublic(start.AddDate(0, 1, 0)))
	assert.False(t, lec.IsPublic(end), "window end is exclusive")
}

func TestUserActiveWindow(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	u := User{UserID: "100000001", Role: RoleStudent, ActiveStartDate: start, ActiveEndDate: end}

	assert.True(t, u.IsActive(start))
	assert.False(t, u.IsActive(end))

	u.Disabled = true
	assert.False(t, u.IsActive(start))
}

func TestBatchState(t *testing.T) {
	var b BatchSubmission
	assert.Equal(t, BatchQueued, b.State())

	complete, total := int64(2), int64(6)
	b.CompleteJudge, b.TotalJudge = &complete, &total
	assert.Equal(t, BatchRunning, b.State())

	complete = 6
	assert.Equal(t, BatchDone, b.State())
}

func TestEvaluationStateJudgeable(t *testing.T) {
	assert.True(t, EvaluationSubmitted.Judgeable())
	assert.True(t, EvaluationDelay.Judgeable())
	assert.False(t, EvaluationNonSubmitted.Judgeable())
}
