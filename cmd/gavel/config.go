// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the config file searched for when --config
// is not given.
const DefaultConfigFileName = "gavel"

// Config holds all server configuration.
// Priority: CLI flags > config file > env vars > defaults.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	// Listen is the host:port the API binds.
	Listen string `mapstructure:"listen"`
}

// DatabaseConfig selects the backing database.
type DatabaseConfig struct {
	// Driver is one of sqlite, sqlcipher, mysql, postgres.
	Driver string `mapstructure:"driver"`
	// DSN is the driver-specific data source. For the sqlite family
	// this is a file path.
	DSN string `mapstructure:"dsn"`
}

// AuthConfig holds the token signing configuration.
type AuthConfig struct {
	// Secret signs access and refresh tokens. Required to serve.
	Secret string `mapstructure:"secret"`
	// AccessTokenMinutes is the access-token lifetime (default: 60).
	AccessTokenMinutes int `mapstructure:"access_token_minutes"`
	// RefreshTokenMinutes is the refresh-token lifetime (default: 1440).
	RefreshTokenMinutes int `mapstructure:"refresh_token_minutes"`
}

// StorageConfig roots the on-disk submission tree.
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error (default: info).
	Level string `mapstructure:"level"`
	// Format is json or console (default: json).
	Format string `mapstructure:"format"`
	// File appends all output to a file instead of stderr.
	File string `mapstructure:"file"`
}

// SweepConfig schedules the login-history prune.
type SweepConfig struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string `mapstructure:"schedule"`
}

func setDefaults() {
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "gavel.db")
	viper.SetDefault("auth.access_token_minutes", 60)
	viper.SetDefault("auth.refresh_token_minutes", 1440)
	viper.SetDefault("storage.upload_dir", "upload")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("sweep.schedule", "0 4 * * *")

	// Keys without a meaningful default still need registering so the
	// environment can supply them through Unmarshal.
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("logging.file", "")
}

// LoadConfig reads the config file, environment, and bound flags.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/gavel/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// No config file; defaults + env vars + flags apply.
	}

	viper.SetEnvPrefix("GAVEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// Validate checks the fields the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Database.Driver == "" || c.Database.DSN == "" {
		return fmt.Errorf("database.driver and database.dsn are required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (flag --auth-secret or GAVEL_AUTH_SECRET)")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}
	return nil
}
