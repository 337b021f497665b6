// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sweeper runs the timer-driven maintenance jobs. The only job
// today prunes login-history rows long past their logout.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/store"
)

// RetentionAfterLogout is how long an expired login row stays around
// before the sweep removes it.
const RetentionAfterLogout = 24 * time.Hour

// DefaultSchedule runs the sweep once a day, off-peak.
const DefaultSchedule = "0 4 * * *"

// Config configures the sweeper.
type Config struct {
	// Schedule is a standard 5-field cron expression. Empty means
	// DefaultSchedule.
	Schedule string
	Store    *store.Store
	Logger   *zap.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", c.Schedule, err)
	}
	return nil
}

// Sweeper owns the cron engine and the sweep job.
type Sweeper struct {
	mu      sync.Mutex
	running bool

	engine *cron.Cron
	store  *store.Store
	logger *zap.Logger
}

// New builds a sweeper from the validated config.
func New(cfg Config) (*Sweeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		engine: cron.New(),
		store:  cfg.Store,
		logger: logger,
	}
	if _, err := s.engine.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("failed to schedule sweep: %w", err)
	}
	return s, nil
}

// Start launches the cron engine.
func (s *Sweeper) Start() {
	s.engine.Start()
	s.logger.Info("login-history sweeper started")
}

// Stop halts the engine and waits for a running sweep to finish, up to
// the context deadline.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
		s.logger.Info("login-history sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("sweeper shutdown timeout, a sweep may still be running")
	}
}

// run executes one sweep. Overlapping runs are skipped.
func (s *Sweeper) run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("sweep skipped, previous still running")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.Sweep(context.Background()); err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
}

// Sweep deletes login-history rows whose logout is more than the
// retention window in the past.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-RetentionAfterLogout)
	n, err := s.store.DeleteExpiredLoginHistory(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune login history: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned expired logins", zap.Int64("rows", n))
	}
	return nil
}
