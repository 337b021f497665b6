// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "gavel.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st, zaptest.NewLogger(t)), st
}

func seedUser(t *testing.T, st *store.Store, userID string, role model.Role) {
	t.Helper()
	now := time.Now()
	_, err := st.CreateUser(context.Background(), model.User{
		UserID:          userID,
		Username:        "user-" + userID,
		Email:           userID + "@example.org",
		HashedPassword:  "x",
		Role:            role,
		ActiveStartDate: now.Add(-time.Hour),
		ActiveEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
}

// seedBatchSlot creates a batch with one slot and n child submissions,
// the first done of which carry the given verdicts.
func seedBatchSlot(t *testing.T, st *store.Store, verdicts []*model.Verdict) (model.BatchSubmission, model.EvaluationStatus) {
	t.Helper()
	ctx := context.Background()

	batch, err := st.CreateBatchSubmission(ctx, model.BatchSubmission{UserID: "900000001", LectureID: 1})
	require.NoError(t, err)
	es, err := st.CreateEvaluationStatus(ctx, model.EvaluationStatus{
		BatchID: batch.ID, UserID: "123456789", Status: model.EvaluationSubmitted,
	})
	require.NoError(t, err)

	for i, v := range verdicts {
		progress := model.ProgressRunning
		if v != nil {
			progress = model.ProgressDone
		}
		_, err := st.CreateSubmission(ctx, model.Submission{
			EvaluationStatusID: &es.ID, UserID: es.UserID,
			LectureID: 1, AssignmentID: int64(i + 1),
			Progress: progress, Result: v,
		})
		require.NoError(t, err)
	}
	return batch, es
}

func verdictPtr(v model.Verdict) *model.Verdict { return &v }

func TestRefreshBatchProgress(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "900000001", model.RoleManager)
	seedUser(t, st, "123456789", model.RoleStudent)

	batch, _ := seedBatchSlot(t, st, []*model.Verdict{
		verdictPtr(model.VerdictAC), nil,
	})

	refreshed, err := svc.RefreshBatchProgress(ctx, batch)
	require.NoError(t, err)
	require.NotNil(t, refreshed.TotalJudge)
	assert.Equal(t, int64(2), *refreshed.TotalJudge)
	assert.Equal(t, int64(1), *refreshed.CompleteJudge)
	assert.Equal(t, model.BatchRunning, refreshed.State())

	// The counters are persisted.
	got, err := st.GetBatchSubmission(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompleteJudge)
	assert.Equal(t, int64(1), *got.CompleteJudge)

	// Refreshing again after the second submission lands converges.
	subs, err := st.ListSubmissionsByEvaluationStatus(ctx, mustSlotID(t, st, batch.ID))
	require.NoError(t, err)
	pending := subs[1]
	v := model.VerdictWA
	pending.Progress = model.ProgressDone
	pending.Result = &v
	_, err = st.UpdateSubmission(ctx, pending)
	require.NoError(t, err)

	refreshed, err = svc.RefreshBatchProgress(ctx, refreshed)
	require.NoError(t, err)
	assert.Equal(t, model.BatchDone, refreshed.State())
}

func mustSlotID(t *testing.T, st *store.Store, batchID int64) int64 {
	t.Helper()
	statuses, err := st.ListEvaluationStatuses(context.Background(), batchID)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	return statuses[0].ID
}

func TestRefreshBatchProgressSkipsCompletedBatch(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "900000001", model.RoleManager)
	seedUser(t, st, "123456789", model.RoleStudent)

	batch, es := seedBatchSlot(t, st, []*model.Verdict{verdictPtr(model.VerdictAC)})

	done := int64(1)
	batch.CompleteJudge = &done
	batch.TotalJudge = &done
	batch, err := st.UpdateBatchSubmission(ctx, batch)
	require.NoError(t, err)

	// A late extra submission must not disturb a completed batch.
	_, err = st.CreateSubmission(ctx, model.Submission{
		EvaluationStatusID: &es.ID, UserID: es.UserID,
		LectureID: 1, AssignmentID: 2, Progress: model.ProgressQueued,
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshBatchProgress(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *refreshed.TotalJudge)
	assert.Equal(t, model.BatchDone, refreshed.State())
}

func TestAggregateBatchResults(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "900000001", model.RoleManager)
	seedUser(t, st, "123456789", model.RoleStudent)

	batch, es := seedBatchSlot(t, st, []*model.Verdict{
		verdictPtr(model.VerdictAC), verdictPtr(model.VerdictTLE), verdictPtr(model.VerdictWA),
	})

	n := int64(3)
	batch.CompleteJudge = &n
	batch.TotalJudge = &n
	batch, err := st.UpdateBatchSubmission(ctx, batch)
	require.NoError(t, err)

	statuses, err := svc.AggregateBatchResults(ctx, batch)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].Result)
	assert.Equal(t, model.VerdictTLE, *statuses[0].Result, "the most severe child verdict wins")
	assert.Len(t, statuses[0].Submissions, 3)

	// Persisted for later reads.
	got, err := st.GetEvaluationStatus(ctx, es.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, model.VerdictTLE, *got.Result)
}

func TestAggregateBatchResultsWaitsForCompletion(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "900000001", model.RoleManager)
	seedUser(t, st, "123456789", model.RoleStudent)

	batch, es := seedBatchSlot(t, st, []*model.Verdict{
		verdictPtr(model.VerdictAC), nil,
	})

	done, total := int64(1), int64(2)
	batch.CompleteJudge = &done
	batch.TotalJudge = &total
	batch, err := st.UpdateBatchSubmission(ctx, batch)
	require.NoError(t, err)

	statuses, err := svc.AggregateBatchResults(ctx, batch)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Nil(t, statuses[0].Result, "no roll-up before the batch finishes")
	assert.Len(t, statuses[0].Submissions, 2)

	got, err := st.GetEvaluationStatus(ctx, es.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Result)
}

func TestAggregateBatchResultsLeavesEmptySlotNull(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "900000001", model.RoleManager)
	seedUser(t, st, "123456789", model.RoleStudent)

	batch, err := st.CreateBatchSubmission(ctx, model.BatchSubmission{UserID: "900000001", LectureID: 1})
	require.NoError(t, err)
	_, err = st.CreateEvaluationStatus(ctx, model.EvaluationStatus{
		BatchID: batch.ID, UserID: "123456789", Status: model.EvaluationNonSubmitted,
	})
	require.NoError(t, err)

	zero := int64(0)
	batch.CompleteJudge = &zero
	batch.TotalJudge = &zero
	batch, err = st.UpdateBatchSubmission(ctx, batch)
	require.NoError(t, err)

	statuses, err := svc.AggregateBatchResults(ctx, batch)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Nil(t, statuses[0].Result)
}

func TestSubmissionDetail(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "123456789", model.RoleStudent)

	sub, err := st.CreateSubmission(ctx, model.Submission{
		UserID: "123456789", LectureID: 1, AssignmentID: 1, Progress: model.ProgressDone,
	})
	require.NoError(t, err)
	_, err = st.AddUploadedFile(ctx, model.UploadedFile{SubmissionID: sub.ID, Path: "123456789/x/main.c"})
	require.NoError(t, err)

	_, err = st.AddJudgeResult(ctx, model.JudgeResult{
		SubmissionID: sub.ID, TestCaseID: 1, Result: model.VerdictAC,
		Stdout: "fizz\n", ExpectedStdout: "fizz\n",
	})
	require.NoError(t, err)
	_, err = st.AddJudgeResult(ctx, model.JudgeResult{
		SubmissionID: sub.ID, TestCaseID: 2, Result: model.VerdictWA,
		Stdout: "fizz\nbuzz\n", ExpectedStdout: "fizz\nfizzbuzz\n",
	})
	require.NoError(t, err)

	detail, err := svc.SubmissionDetail(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, detail.UploadedFiles, 1)
	require.Len(t, detail.JudgeResults, 2)

	// Only the wrong answer gets a diff, and only on the read side.
	assert.Empty(t, detail.JudgeResults[0].StdoutDiff)
	assert.NotEmpty(t, detail.JudgeResults[1].StdoutDiff)

	raw, err := st.ListJudgeResults(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, raw[1].StdoutDiff)
}

func TestSubmissionDetailNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SubmissionDetail(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
