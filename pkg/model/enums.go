// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package model

// Role is a user's access level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStudent:
		return true
	}
	return false
}

// Privileged reports whether r may access eval resources and
// non-public lectures.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// Scope is a capability string required by protected operations.
type Scope string

const (
	ScopeMe              Scope = "me"
	ScopeAccount         Scope = "account"
	ScopeViewUsers       Scope = "view_users"
	ScopeViewAllProblems Scope = "view_all_problems"
	ScopeBatch           Scope = "batch"
)

// scopeMatrix maps each role to the scopes it is granted. Loaded once,
// never mutated.
var scopeMatrix = map[Role][]Scope{
	RoleAdmin:   {ScopeMe, ScopeAccount, ScopeViewUsers, ScopeViewAllProblems, ScopeBatch},
	RoleManager: {ScopeMe, ScopeViewUsers, ScopeViewAllProblems, ScopeBatch},
	RoleStudent: {ScopeMe},
}

// ScopesForRole returns a copy of the scopes granted to r.
func ScopesForRole(r Role) []Scope {
	granted := scopeMatrix[r]
	out := make([]Scope, len(granted))
	copy(out, granted)
	return out
}

// RoleAllows reports whether every requested scope is granted to r.
func RoleAllows(r Role, requested ...Scope) bool {
	granted := scopeMatrix[r]
	for _, want := range requested {
		found := false
		for _, have := range granted {
			if want == have {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Progress is a submission's position in its state machine.
type Progress string

const (
	ProgressPending Progress = "pending"
	ProgressQueued  Progress = "queued"
	ProgressRunning Progress = "running"
	ProgressDone    Progress = "done"
)

// Valid reports whether p is a known progress state.
func (p Progress) Valid() bool {
	switch p {
	case ProgressPending, ProgressQueued, ProgressRunning, ProgressDone:
		return true
	}
	return false
}

// Terminal reports whether p is the final state.
func (p Progress) Terminal() bool {
	return p == ProgressDone
}

// EvaluationState is a student's slot status within a batch.
type EvaluationState string

const (
	EvaluationSubmitted    EvaluationState = "submitted"
	EvaluationDelay        EvaluationState = "delay"
	EvaluationNonSubmitted EvaluationState = "non-submitted"
)

// Valid reports whether s is a known evaluation state.
func (s EvaluationState) Valid() bool {
	switch s {
	case EvaluationSubmitted, EvaluationDelay, EvaluationNonSubmitted:
		return true
	}
	return false
}

// Judgeable reports whether the slot produces submissions.
func (s EvaluationState) Judgeable() bool {
	return s == EvaluationSubmitted || s == EvaluationDelay
}

// TestCaseType distinguishes build checks from run checks.
type TestCaseType string

const (
	TestCaseBuilt TestCaseType = "Built"
	TestCaseJudge TestCaseType = "Judge"
)

// BatchState is derived from a batch's judge counters.
type BatchState string

const (
	BatchQueued  BatchState = "queued"
	BatchRunning BatchState = "running"
	BatchDone    BatchState = "done"
)
