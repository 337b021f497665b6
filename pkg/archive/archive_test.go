// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeZip builds a zip at path from name -> content entries. Names
// ending in / become directory entries.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		if name[len(name)-1] == '/' {
			_, err := zw.Create(name)
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestUnfoldFlatArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "class1.zip")
	writeZip(t, zipPath, map[string]string{
		"main.c":      "int main(void) { return 0; }\n",
		"report1.pdf": "%PDF-1.4",
	})

	dest := filepath.Join(dir, "out")
	reason, err := Unfold(zipPath, dest)
	require.NoError(t, err)
	assert.Empty(t, reason)

	data, err := os.ReadFile(filepath.Join(dest, "main.c"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "int main")
}

func TestUnfoldFlattensSingleRoot(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "class1.zip")
	writeZip(t, zipPath, map[string]string{
		"class1/":       "",
		"class1/main.c": "content",
	})

	dest := filepath.Join(dir, "out")
	reason, err := Unfold(zipPath, dest)
	require.NoError(t, err)
	assert.Empty(t, reason)

	// The shell directory is gone, its contents live at the top.
	_, err = os.Stat(filepath.Join(dest, "main.c"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "class1"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnfoldRejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		entries map[string]string
		want    string
	}{
		{
			name: "not a zip name",
			file: "class1.tar.gz",
			want: "not a zip file",
		},
		{
			name: "unreadable archive",
			file: "class1.zip",
			want: "cannot open",
		},
		{
			name: "subdirectory after flatten",
			file: "class1.zip",
			entries: map[string]string{
				"class1/":           "",
				"class1/src/":       "",
				"class1/src/main.c": "content",
			},
			want: "subdirectory",
		},
		{
			name: "nested zip",
			file: "class1.zip",
			entries: map[string]string{
				"main.c":    "content",
				"inner.zip": "PK",
			},
			want: "nested zip",
		},
		{
			name:    "empty archive",
			file:    "class1.zip",
			entries: map[string]string{},
			want:    "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			zipPath := filepath.Join(dir, tt.file)
			if tt.entries != nil {
				writeZip(t, zipPath, tt.entries)
			} else {
				require.NoError(t, os.WriteFile(zipPath, []byte("not an archive"), 0o644))
			}

			reason, err := Unfold(zipPath, filepath.Join(dir, "out"))
			require.NoError(t, err)
			assert.Contains(t, reason, tt.want)
		})
	}
}

func TestUnfoldRejectsOversizedArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "class1.zip")
	// Highly compressible content blows the uncompressed limit without
	// a large file on disk.
	writeZip(t, zipPath, map[string]string{
		"big.txt": string(bytes.Repeat([]byte{'a'}, MaxUncompressedSize+1)),
	})

	reason, err := Unfold(zipPath, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Contains(t, reason, "exceeding")
}

func TestUnfoldRefusesEscapingEntry(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "class1.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("outside"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0o644))

	_, err = Unfold(zipPath, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractKeepsStructure(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "batch.zip")
	writeZip(t, zipPath, map[string]string{
		"export/reportlist.xlsx":                     "sheet",
		"export/123456789@1234567890123/class1.zip":  "PK",
		"export/123456789@1234567890123/report1.pdf": "%PDF",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(zipPath, dest))

	// Extract keeps subdirectories and nested zips as-is.
	_, err := os.Stat(filepath.Join(dest, "export", "123456789@1234567890123", "class1.zip"))
	assert.NoError(t, err)
}

func TestBundleRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "user", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "user", "sub", "main.c"), []byte("content"), 0o644))

	var buf bytes.Buffer
	err := Bundle(&buf, root, []string{
		filepath.Join("user", "sub", "main.c"),
		filepath.Join("user", "sub", "absent.c"),
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "main.c", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}
