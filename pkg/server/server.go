// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package server exposes the judging backend as a JSON HTTP API under
// /api/v1, gated by the bearer-token auth model.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/ingest"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/results"
	"github.com/classware-labs/gavel/pkg/store"
)

// Config configures the HTTP server.
type Config struct {
	// Listen is the host:port to bind.
	Listen string
	// UploadDir roots the on-disk submission tree.
	UploadDir string
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}
	return nil
}

// Server is the HTTP application.
type Server struct {
	echo      *echo.Echo
	store     *store.Store
	auth      *auth.Service
	ingest    *ingest.Service
	results   *results.Service
	events    *sse.Server
	uploadDir string
	logger    *zap.Logger
}

// New assembles the application: middleware, routes, and the SSE event
// server for batch progress streams.
func New(cfg Config, st *store.Store, authSvc *auth.Service, ingestSvc *ingest.Service, resultsSvc *results.Service, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	events := sse.New()
	events.AutoReplay = false

	s := &Server{
		echo:      echo.New(),
		store:     st,
		auth:      authSvc,
		ingest:    ingestSvc,
		results:   resultsSvc,
		events:    events,
		uploadDir: cfg.UploadDir,
		logger:    logger,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
		AllowOriginFunc:  func(string) (bool, error) { return true, nil },
	}))
	e.Use(s.requestLogger)

	s.routes()
	e.Server.Addr = cfg.Listen
	e.Server.ReadHeaderTimeout = 10 * time.Second
	return s, nil
}

// routes wires every endpoint under /api/v1.
func (s *Server) routes() {
	api := s.echo.Group("/api/v1")

	az := api.Group("/authorize")
	az.POST("/token", s.handleLogin)
	az.GET("/token/update", s.handleTokenUpdate)
	az.POST("/token/validate", s.handleTokenValidate)
	az.POST("/logout", s.handleLogout)

	asg := api.Group("/assignments")
	asg.GET("/info", s.handleLectureList, s.requireScopes(model.ScopeMe))
	asg.GET("/info/:lecture_id/:assignment_id/detail", s.handleProblemDetail, s.requireScopes(model.ScopeMe))
	asg.POST("/judge/:lecture_id/:assignment_id", s.handleSingleJudge, s.requireScopes(model.ScopeMe))
	asg.POST("/judge/:lecture_id", s.handleSelfCheck, s.requireScopes(model.ScopeMe))
	asg.POST("/batch/:lecture_id", s.handleBatchJudge, s.requireScopes(model.ScopeBatch))

	asg.GET("/status/submissions/view", s.handleSubmissionList, s.requireScopes(model.ScopeMe))
	asg.GET("/status/submissions/id/:id", s.handleSubmissionStatus, s.requireScopes(model.ScopeMe))
	asg.GET("/status/submissions/id/:id/files/zip", s.handleSubmissionFilesZip, s.requireScopes(model.ScopeMe))
	asg.GET("/status/batch/all", s.handleBatchList, s.requireScopes(model.ScopeBatch))
	asg.GET("/status/batch/id/:batch_id", s.handleBatchStatus, s.requireScopes(model.ScopeBatch))
	asg.GET("/status/batch/id/:batch_id/stream", s.handleBatchStream, s.requireScopes(model.ScopeBatch))

	asg.GET("/result/submissions/id/:id", s.handleSubmissionResult, s.requireScopes(model.ScopeMe))
	asg.GET("/result/batch/id/:batch_id", s.handleBatchResult, s.requireScopes(model.ScopeBatch))
	asg.GET("/result/batch/id/:batch_id/user/:user_id", s.handleBatchUserResult, s.requireScopes(model.ScopeBatch))
	asg.GET("/result/batch/:batch_id/files/:kind/:user_id", s.handleBatchFiles, s.requireScopes(model.ScopeBatch))

	us := api.Group("/users")
	us.POST("/register", s.handleUserRegister, s.requireScopes(model.ScopeAccount))
	us.POST("/register/multiple", s.handleUserRegisterMultiple, s.requireScopes(model.ScopeAccount))
	us.GET("/all", s.handleUserList, s.requireScopes(model.ScopeViewUsers))
	us.POST("/delete", s.handleUserDelete, s.requireScopes(model.ScopeAccount))
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.echo.Server.Addr))
	if err := s.echo.StartServer(s.echo.Server); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.Close()
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for handler-level tests.
func (s *Server) Handler() http.Handler { return s.echo }

// requestLogger writes one line per request through the zap logger.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info("request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
		return nil
	}
}
