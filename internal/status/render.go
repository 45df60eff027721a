// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import "fmt"

// Display is a text-only frame buffer. Lines are not retained between
// frames; every refresh must redraw everything.
type Display interface {
	Clear()
	DrawLine(text string, x, y int)
	Present() error
}

// Lines are the three summary strings the logger keeps between refreshes.
type Lines [3]string

// Row is one positioned piece of text.
type Row struct {
	Text string
	X, Y int
}

// Geometry describes the character grid of a display.
type Geometry struct {
	Width     int // pixels
	Height    int // pixels
	CharWidth int // pixels per glyph advance
	RowPitch  int // pixels between rows
}

// DefaultGeometry is a 128x64 SSD1306 with a 6x13 character cell.
var DefaultGeometry = Geometry{Width: 128, Height: 64, CharWidth: 6, RowPitch: 13}

// Renderer lays the summary lines and battery level out on the grid.
type Renderer struct {
	geo Geometry
}

// NewRenderer returns a renderer for geo. Zero fields take the defaults.
func NewRenderer(geo Geometry) *Renderer {
	if geo.Width <= 0 {
		geo.Width = DefaultGeometry.Width
	}
	if geo.Height <= 0 {
		geo.Height = DefaultGeometry.Height
	}
	if geo.CharWidth <= 0 {
		geo.CharWidth = DefaultGeometry.CharWidth
	}
	if geo.RowPitch <= 0 {
		geo.RowPitch = DefaultGeometry.RowPitch
	}
	return &Renderer{geo: geo}
}

// Geometry returns the grid the renderer lays out for.
func (r *Renderer) Geometry() Geometry {
	return r.geo
}

// Columns is the number of glyphs that fit across the display.
func (r *Renderer) Columns() int {
	return r.geo.Width / r.geo.CharWidth
}

// Render produces the rows for one frame: the three summary lines top to
// bottom, then the battery level. When the display has no fourth row the
// battery level shares row 0, right aligned, and lines[0] is cut short.
func (r *Renderer) Render(lines Lines, batteryPct float64) []Row {
	cols := r.Columns()
	bat := truncate(fmt.Sprintf("Bat:%.2f%%", batteryPct), cols)
	rowsAvail := r.geo.Height / r.geo.RowPitch

	var rows []Row
	leftCols := cols
	if rowsAvail > len(lines) {
		rows = append(rows, Row{Text: bat, X: 0, Y: len(lines) * r.geo.RowPitch})
	} else {
		batCol := cols - len(bat)
		rows = append(rows, Row{Text: bat, X: batCol * r.geo.CharWidth, Y: 0})
		// one blank column between the summary and the battery text
		leftCols = batCol - 1
	}

	for i, line := range lines {
		if i >= rowsAvail {
			break
		}
		n := cols
		if i == 0 {
			n = leftCols
		}
		if text := truncate(line, n); text != "" {
			rows = append(rows, Row{Text: text, X: 0, Y: i * r.geo.RowPitch})
		}
	}
	return rows
}

// Show clears d, draws rows and presents the frame.
func Show(d Display, rows []Row) error {
	d.Clear()
	for _, row := range rows {
		d.DrawLine(row.Text, row.X, row.Y)
	}
	return d.Present()
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
