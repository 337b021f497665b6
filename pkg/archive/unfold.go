// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package archive validates and expands submission ZIPs and assembles
// result bundles. The judging protocol assumes a flat source tree, so
// anything nested survives only one level of flattening.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// MaxUncompressedSize bounds the total expanded size of one archive.
const MaxUncompressedSize = 30 << 20 // 30 MiB

// Unfold extracts zipPath into destDir and normalises the layout.
// A non-empty reason reports a validation rejection the submitter can
// act on; err reports an environment failure. On rejection the caller
// is expected to remove destDir.
func Unfold(zipPath, destDir string) (reason string, err error) {
	if !strings.HasSuffix(strings.ToLower(filepath.Base(zipPath)), ".zip") {
		return fmt.Sprintf("%s is not a zip file", filepath.Base(zipPath)), nil
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Sprintf("cannot open %s as a zip archive", filepath.Base(zipPath)), nil
	}
	defer r.Close()

	var total uint64
	for _, f := range r.File {
		total += f.UncompressedSize64
	}
	if total > MaxUncompressedSize {
		return fmt.Sprintf("archive expands to %d bytes, exceeding the %d byte limit", total, MaxUncompressedSize), nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", destDir, err)
	}
	if len(entries) == 0 {
		return "the archive is empty", nil
	}

	// A single top-level directory is the common export shape; flatten
	// its contents up one level and drop the shell.
	if len(entries) == 1 && entries[0].IsDir() {
		if err := flatten(destDir, entries[0].Name()); err != nil {
			return "", err
		}
		if entries, err = os.ReadDir(destDir); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", destDir, err)
		}
		if len(entries) == 0 {
			return "the archive is empty", nil
		}
	}

	for _, e := range entries {
		if e.IsDir() {
			return fmt.Sprintf("the archive contains a subdirectory: %s", e.Name()), nil
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			return fmt.Sprintf("the archive contains a nested zip file: %s", e.Name()), nil
		}
	}
	return "", nil
}

// extractEntry writes one archive member under destDir, refusing paths
// that escape it.
func extractEntry(f *zip.File, destDir string) error {
	name := filepath.FromSlash(f.Name)
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %q escapes the extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	// The size check above bounds the archive total; the per-entry
	// limit stops a lying header from expanding past it.
	if _, err := io.Copy(dst, io.LimitReader(src, MaxUncompressedSize+1)); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// flatten moves the contents of destDir/shell up into destDir and
// removes the emptied shell.
func flatten(destDir, shell string) error {
	shellDir := filepath.Join(destDir, shell)
	inner, err := os.ReadDir(shellDir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", shellDir, err)
	}
	for _, e := range inner {
		if err := os.Rename(filepath.Join(shellDir, e.Name()), filepath.Join(destDir, e.Name())); err != nil {
			return fmt.Errorf("failed to flatten %s: %w", e.Name(), err)
		}
	}
	if err := os.Remove(shellDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", shellDir, err)
	}
	return nil
}
