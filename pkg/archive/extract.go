// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package archive

import (
	"fmt"

	"github.com/klauspost/compress/zip"
)

// Extract expands zipPath into destDir as-is, keeping directories and
// nested archives. The batch workspace needs the raw layout; only the
// per-student inner archives go through Unfold's validation.
func Extract(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", zipPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}
