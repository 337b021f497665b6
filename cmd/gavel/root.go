// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Command gavel runs the programming-assignment judging backend: the
// HTTP API, the config scaffolder, and the admin bootstrap.
package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is stamped by the release build.
var version = "dev"

var (
	cfgFile string
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:   "gavel",
	Short: "Gavel - programming assignment judging backend",
	Long: heredoc.Doc(`
		Gavel accepts student submissions over HTTP, stages them for the
		sandboxed judge workers, and serves progress and verdicts back to
		the course tooling.
	`),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gavel.yaml)")

	rootCmd.PersistentFlags().String("listen", ":8080", "HTTP listen address")
	rootCmd.PersistentFlags().String("db-driver", "sqlite", "database driver (sqlite, sqlcipher, mysql, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "gavel.db", "database data source name")
	rootCmd.PersistentFlags().String("auth-secret", "", "token signing secret")
	rootCmd.PersistentFlags().String("upload-dir", "upload", "root of the on-disk submission tree")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("log-file", "", "append logs to a file instead of stderr")
	rootCmd.PersistentFlags().String("sweep-schedule", "0 4 * * *", "cron schedule of the login-history prune")

	_ = viper.BindPFlag("server.listen", rootCmd.PersistentFlags().Lookup("listen"))
	_ = viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	_ = viper.BindPFlag("auth.secret", rootCmd.PersistentFlags().Lookup("auth-secret"))
	_ = viper.BindPFlag("storage.upload_dir", rootCmd.PersistentFlags().Lookup("upload-dir"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("sweep.schedule", rootCmd.PersistentFlags().Lookup("sweep-schedule"))
}

// initConfig loads the merged configuration before any command runs.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
