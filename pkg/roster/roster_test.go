// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package roster

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeRoster builds an xlsx at path with the export's preamble, header
// markers, and the given student rows.
func writeRoster(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	all := [][]string{
		{"授業名", "プログラミング演習"},
		{},
		{"# 内部コースID", "# 学籍番号", "# 氏名", "# ロール", "# 提出", "# 提出日時"},
	}
	all = append(all, rows...)
	all = append(all, []string{"#end"})

	for i, row := range all {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestParseRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportlist.xlsx")
	writeRoster(t, path, [][]string{
		{"C001", "123456789", "山田太郎", "履修生", "提出済", "2026-07-01 12:30:00"},
		{"C001", "234567890", "鈴木花子", "履修生", "未提出", ""},
		{"C001", "999999999", "担当教員", "担当教員", "", ""},
	})

	rows := Parse(path)
	require.Len(t, rows, 3)

	assert.Equal(t, "123456789", rows[0].StudentID)
	assert.Equal(t, RoleEnrolled, rows[0].Role)
	assert.Equal(t, StatusSubmitted, rows[0].Submission)
	require.NotNil(t, rows[0].SubmitDate)
	want := time.Date(2026, 7, 1, 12, 30, 0, 0, time.Local)
	assert.True(t, rows[0].SubmitDate.Equal(want))

	assert.Equal(t, StatusNotSubmitted, rows[1].Submission)
	assert.Nil(t, rows[1].SubmitDate)

	// Rows after the header are kept regardless of role; filtering is
	// the orchestrator's job.
	assert.Equal(t, "担当教員", rows[2].Role)
}

func TestParseFoldsFullWidthDigits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportlist.xlsx")
	writeRoster(t, path, [][]string{
		{"C001", "１２３４５６７８９", "山田太郎", "履修生", "提出済", "2026-07-01 12:30:00"},
	})

	rows := Parse(path)
	require.Len(t, rows, 1)
	assert.Equal(t, "123456789", rows[0].StudentID)
}

func TestParseStopsAtEndMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportlist.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	data := [][]string{
		{"# 内部コースID", "# 学籍番号", "# ロール", "# 提出", "# 提出日時"},
		{"C001", "123456789", "履修生", "提出済", "2026-07-01 12:30:00"},
		{"#end"},
		{"C001", "555555555", "履修生", "提出済", "2026-07-01 12:30:00"},
	}
	for i, row := range data {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows := Parse(path)
	require.Len(t, rows, 1)
	assert.Equal(t, "123456789", rows[0].StudentID)
}

func TestParseMissingFile(t *testing.T) {
	assert.Nil(t, Parse(filepath.Join(t.TempDir(), "reportlist.xlsx")))
}

func TestParseWrongExtension(t *testing.T) {
	assert.Nil(t, Parse(filepath.Join(t.TempDir(), "reportlist.csv")))
}

func TestParseMissingHeaderMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportlist.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "学籍番号"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "123456789"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows := Parse(path)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestParseMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportlist.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	// Header marker present but the submit-date column is gone.
	for j, val := range []string{"# 内部コースID", "# 学籍番号", "# ロール", "# 提出"} {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, val))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows := Parse(path)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}
