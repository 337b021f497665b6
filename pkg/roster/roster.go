// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package roster reads the grading-roster spreadsheet that course
// management systems export alongside the per-student submission
// archives. The sheet carries a preamble, a header row beginning with
// the course-ID marker, the per-student rows, and an end marker.
package roster

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"
)

// Markers and column names as the course export writes them. Column
// headers carry a "# " prefix in the source sheet.
const (
	startMarker = "# 内部コースID"
	endMarker   = "#end"

	colStudentID  = "学籍番号"
	colRole       = "ロール"
	colSubmission = "提出"
	colSubmitDate = "提出日時"
)

// Role and submission-state vocabulary used by the export.
const (
	RoleEnrolled        = "履修生"
	StatusSubmitted     = "提出済"
	StatusLateSubmitted = "受付終了後提出"
	StatusNotSubmitted  = "未提出"
)

// submitDateLayout matches the export's timestamp cells.
const submitDateLayout = "2006-01-02 15:04:05"

// Row is one student line of the roster, restricted to the columns the
// batch orchestrator consumes.
type Row struct {
	StudentID  string
	Role       string
	Submission string
	SubmitDate *time.Time
}

// Parse reads the roster spreadsheet at path. It returns nil when the
// file does not exist or is not a spreadsheet; malformed sheets surface
// as an empty table.
func Parse(path string) []Row {
	ext := strings.ToLower(path)
	if !strings.HasSuffix(ext, ".xlsx") && !strings.HasSuffix(ext, ".xls") {
		return nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		// Absent file: the caller falls back to the other extension.
		// Unreadable file (legacy binary .xls): malformed, empty table.
		if strings.Contains(err.Error(), "no such file") {
			return nil
		}
		return []Row{}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Row{}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return []Row{}
	}
	return extract(rows)
}

// extract locates the header and end markers and maps the named
// columns. Anything that cannot be located yields an empty table.
func extract(rows [][]string) []Row {
	headerIdx := -1
	for i, row := range rows {
		if len(row) > 0 && strings.HasPrefix(normalize(row[0]), startMarker) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return []Row{}
	}

	cols := mapColumns(rows[headerIdx])
	if cols == nil {
		return []Row{}
	}

	var out []Row
	for _, row := range rows[headerIdx+1:] {
		if len(row) > 0 && strings.HasPrefix(normalize(row[0]), endMarker) {
			break
		}
		r := Row{
			StudentID:  cell(row, cols[colStudentID]),
			Role:       cell(row, cols[colRole]),
			Submission: cell(row, cols[colSubmission]),
		}
		if raw := cell(row, cols[colSubmitDate]); raw != "" {
			if t, err := time.ParseInLocation(submitDateLayout, raw, time.Local); err == nil {
				r.SubmitDate = &t
			}
		}
		out = append(out, r)
	}
	if out == nil {
		out = []Row{}
	}
	return out
}

// mapColumns resolves the four consumed column names to their indexes
// in the header row. Returns nil when any is missing.
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, 4)
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(normalize(h), "#"))
		switch name {
		case colStudentID, colRole, colSubmission, colSubmitDate:
			cols[name] = i
		}
	}
	for _, want := range []string{colStudentID, colRole, colSubmission, colSubmitDate} {
		if _, ok := cols[want]; !ok {
			return nil
		}
	}
	return cols
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return normalize(row[idx])
}

// normalize folds full-width digits and spaces that sneak into manually
// edited sheets, then trims surrounding whitespace.
func normalize(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}
