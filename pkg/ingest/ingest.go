// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package ingest accepts judge requests: single submissions, the
// whole-lecture self check, and grader batches. It materialises uploads
// on disk under the stable naming scheme and creates submission rows
// that a worker later consumes.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/store"
)

// ErrBadRequest marks input the submitter can fix: a bad filename, a
// rejected archive, an unusable roster.
var ErrBadRequest = errors.New("bad request")

// ErrForbidden marks a role/eval combination the caller may not use.
var ErrForbidden = errors.New("forbidden")

// File is one uploaded file streamed from the request body.
type File struct {
	Name    string
	Content io.Reader
}

// Service implements the ingestion flows over the store and the upload
// tree rooted at uploadDir.
type Service struct {
	store     *store.Store
	uploadDir string
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires ingestion to the store and the upload root.
func NewService(st *store.Store, uploadDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, uploadDir: uploadDir, logger: logger, now: time.Now}
}

// UploadDir returns the upload tree root.
func (s *Service) UploadDir() string { return s.uploadDir }

// relToUpload converts an absolute path under the upload root to the
// relative form every stored path uses. Readers join with the root at
// access time.
func (s *Service) relToUpload(abs string) (string, error) {
	rel, err := filepath.Rel(s.uploadDir, abs)
	if err != nil {
		return "", fmt.Errorf("path %s is outside the upload root: %w", abs, err)
	}
	return rel, nil
}

// writeFile streams content to path, creating parent directories.
func writeFile(path string, content io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
