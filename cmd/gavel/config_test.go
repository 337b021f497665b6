// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// Point the search path at an empty directory so a developer's
	// gavel.yaml cannot leak in.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gavel.db", cfg.Database.DSN)
	assert.Equal(t, 60, cfg.Auth.AccessTokenMinutes)
	assert.Equal(t, 1440, cfg.Auth.RefreshTokenMinutes)
	assert.Equal(t, "upload", cfg.Storage.UploadDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "0 4 * * *", cfg.Sweep.Schedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "gavel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9090"
database:
  driver: postgres
  dsn: "postgres://gavel@localhost/gavel"
auth:
  secret: file-secret
logging:
  level: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 60, cfg.Auth.AccessTokenMinutes)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("GAVEL_AUTH_SECRET", "env-secret")
	t.Setenv("GAVEL_SERVER_LISTEN", ":7070")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "gavel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Listen: ":8080"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "gavel.db"},
		Auth:     AuthConfig{Secret: "s"},
		Storage:  StorageConfig{UploadDir: "upload"},
	}
	require.NoError(t, valid.Validate())

	noSecret := valid
	noSecret.Auth.Secret = ""
	assert.ErrorContains(t, noSecret.Validate(), "auth.secret")

	noDSN := valid
	noDSN.Database.DSN = ""
	assert.ErrorContains(t, noDSN.Validate(), "database")

	noListen := valid
	noListen.Server.Listen = ""
	assert.Error(t, noListen.Validate())

	noUpload := valid
	noUpload.Storage.UploadDir = ""
	assert.ErrorContains(t, noUpload.Validate(), "upload_dir")
}
