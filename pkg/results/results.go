// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package results derives the read models: eventually-consistent batch
// progress, roll-up verdicts, and decorated submission detail.
package results

import (
	"context"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

// Service computes and persists the derived read models.
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService wires the read models to the store.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// RefreshBatchProgress recomputes the batch's judge counters from a
// fresh count of its child submissions and persists them when the
// batch has not yet completed. Idempotent; the worker never maintains
// these columns.
func (s *Service) RefreshBatchProgress(ctx context.Context, batch model.BatchSubmission) (model.BatchSubmission, error) {
	if batch.CompleteJudge != nil && batch.TotalJudge != nil && *batch.CompleteJudge == *batch.TotalJudge {
		return batch, nil
	}

	total, done, err := s.store.CountBatchSubmissions(ctx, batch.ID)
	if err != nil {
		return model.BatchSubmission{}, err
	}
	batch.CompleteJudge = &done
	batch.TotalJudge = &total
	if _, err := s.store.UpdateBatchSubmission(ctx, batch); err != nil {
		return model.BatchSubmission{}, err
	}
	return batch, nil
}

// AggregateBatchResults fills the null roll-up verdicts of a completed
// batch's evaluation slots: the most severe child-submission verdict,
// or null when a slot has no children. Persists what it computes and
// returns the slots with children attached.
func (s *Service) AggregateBatchResults(ctx context.Context, batch model.BatchSubmission) ([]model.EvaluationStatus, error) {
	statuses, err := s.store.ListEvaluationStatuses(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	completed := batch.State() == model.BatchDone
	for i := range statuses {
		es := &statuses[i]
		subs, err := s.store.ListSubmissionsByEvaluationStatus(ctx, es.ID)
		if err != nil {
			return nil, err
		}
		es.Submissions = subs

		if !completed || es.Result != nil {
			continue
		}
		verdicts := make([]model.Verdict, 0, len(subs))
		for _, sub := range subs {
			if sub.Result != nil {
				verdicts = append(verdicts, *sub.Result)
			}
		}
		agg, ok := model.AggregateVerdicts(verdicts)
		if !ok {
			continue
		}
		es.Result = &agg
		if _, err := s.store.UpdateEvaluationStatus(ctx, *es); err != nil {
			return nil, err
		}
		s.logger.Debug("evaluation result aggregated",
			zap.Int64("evaluation_status_id", es.ID),
			zap.String("result", string(agg)))
	}
	return statuses, nil
}

// SubmissionDetail loads a submission with its uploaded files and judge
// results, decorating wrong-answer results with an expected-vs-actual
// stdout diff. The diff is derived per read and never persisted.
func (s *Service) SubmissionDetail(ctx context.Context, id int64) (model.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, err
	}
	if sub.UploadedFiles, err = s.store.ListUploadedFiles(ctx, id); err != nil {
		return model.Submission{}, err
	}
	if sub.JudgeResults, err = s.store.ListJudgeResults(ctx, id); err != nil {
		return model.Submission{}, err
	}

	dmp := diffmatchpatch.New()
	for i := range sub.JudgeResults {
		jr := &sub.JudgeResults[i]
		if jr.Result != model.VerdictWA || jr.ExpectedStdout == jr.Stdout {
			continue
		}
		diffs := dmp.DiffMain(jr.ExpectedStdout, jr.Stdout, false)
		jr.StdoutDiff = dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
	}
	return sub, nil
}
