// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the gavel configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Long: heredoc.Doc(`
		Write an example configuration to the given path (default:
		gavel.yaml). Refuses to overwrite an existing file.
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// exampleConfig mirrors Config with yaml tags for scaffolding.
type exampleConfig struct {
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Auth struct {
		Secret              string `yaml:"secret"`
		AccessTokenMinutes  int    `yaml:"access_token_minutes"`
		RefreshTokenMinutes int    `yaml:"refresh_token_minutes"`
	} `yaml:"auth"`
	Storage struct {
		UploadDir string `yaml:"upload_dir"`
	} `yaml:"storage"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"logging"`
	Sweep struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"sweep"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "gavel.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	var example exampleConfig
	example.Server.Listen = ":8080"
	example.Database.Driver = "sqlite"
	example.Database.DSN = "gavel.db"
	example.Auth.Secret = "change-me"
	example.Auth.AccessTokenMinutes = 60
	example.Auth.RefreshTokenMinutes = 1440
	example.Storage.UploadDir = "upload"
	example.Logging.Level = "info"
	example.Logging.Format = "json"
	example.Sweep.Schedule = "0 4 * * *"

	out, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
