// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package export turns day logs into spreadsheet workbooks for the office.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the fixes.
const SheetName = "Fixes"

// DayLogPattern matches the files written by the logger.
const DayLogPattern = "GPS_Data_*.csv"

// ToXLSX converts one day log to a workbook at xlsxPath and returns the
// number of data rows written. Numeric cells are stored as numbers and
// placeholders as text.
func ToXLSX(fs afero.Fs, csvPath, xlsxPath string) (int, error) {
	in, err := fs.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("export: open %s: %w", csvPath, err)
	}
	defer in.Close()

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	xlsx := excelize.NewFile()
	defer xlsx.Close()
	if err := xlsx.SetSheetName("Sheet1", SheetName); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	rows := 0
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("export: read %s: %w", csvPath, err)
		}
		cells := make([]interface{}, len(record))
		for i, field := range record {
			cells[i] = cellValue(line, i, field)
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return 0, fmt.Errorf("export: %w", err)
		}
		if err := xlsx.SetSheetRow(SheetName, cell, &cells); err != nil {
			return 0, fmt.Errorf("export: row %d: %w", line, err)
		}
		if line > 1 {
			rows++
		}
	}

	if err := xlsx.SetColWidth(SheetName, "A", "H", 16); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := xlsx.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	out, err := fs.Create(xlsxPath)
	if err != nil {
		return 0, fmt.Errorf("export: create %s: %w", xlsxPath, err)
	}
	if _, err := xlsx.WriteTo(out); err != nil {
		out.Close()
		return 0, fmt.Errorf("export: write %s: %w", xlsxPath, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("export: close %s: %w", xlsxPath, err)
	}
	return rows, nil
}

// cellValue keeps date, time and header text as strings.
func cellValue(line, col int, field string) interface{} {
	if line == 1 || col < 2 {
		return field
	}
	if n, err := strconv.ParseFloat(field, 64); err == nil {
		return n
	}
	return field
}

// Dir converts every day log in dir and writes the workbooks to outDir,
// replacing the .csv extension with .xlsx. It returns the workbook paths.
func Dir(fs afero.Fs, dir, outDir string) ([]string, error) {
	matches, err := afero.Glob(fs, filepath.Join(dir, DayLogPattern))
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	var written []string
	for _, src := range matches {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".xlsx"
		dst := filepath.Join(outDir, name)
		rows, err := ToXLSX(fs, src, dst)
		if err != nil {
			return written, err
		}
		log.Printf("export: %s -> %s (%d rows)", src, dst, rows)
		written = append(written, dst)
	}
	return written, nil
}
