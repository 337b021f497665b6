// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/classware-labs/gavel/internal/log"
	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/ingest"
	"github.com/classware-labs/gavel/pkg/results"
	"github.com/classware-labs/gavel/pkg/server"
	"github.com/classware-labs/gavel/pkg/store"
	"github.com/classware-labs/gavel/pkg/sweeper"
)

// shutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the judging API server",
	Long: heredoc.Doc(`
		Serve the judging API: submission intake, batch orchestration,
		result reads, and the user directory. Runs until interrupted,
		then drains in-flight requests.
	`),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Validate(); err != nil {
		return err
	}

	logger, err := log.Build(config.Logging.Level, config.Logging.Format, config.Logging.File)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	log.SetLogger(logger)

	if err := os.MkdirAll(config.Storage.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, store.Config{
		Driver: config.Database.Driver,
		DSN:    config.Database.DSN,
	}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tokens, err := auth.NewTokenManager(config.Auth.Secret,
		time.Duration(config.Auth.AccessTokenMinutes)*time.Minute,
		time.Duration(config.Auth.RefreshTokenMinutes)*time.Minute)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(st, tokens, logger)
	ingestSvc := ingest.NewService(st, config.Storage.UploadDir, logger)
	resultsSvc := results.NewService(st, logger)

	sweep, err := sweeper.New(sweeper.Config{
		Schedule: config.Sweep.Schedule,
		Store:    st,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Listen:    config.Server.Listen,
		UploadDir: config.Storage.UploadDir,
	}, st, authSvc, ingestSvc, resultsSvc, logger)
	if err != nil {
		return err
	}

	sweep.Start()

	errch := make(chan error, 1)
	go func() { errch <- srv.Start() }()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errch:
		return err
	case sig := <-sigch:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	sweep.Stop(shutdownCtx)
	logger.Info("shutdown complete")
	return nil
}
