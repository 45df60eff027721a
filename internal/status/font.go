// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
)

// MinColumns fits the longest fixed text shown on the panel: the storage
// diagnostic and a full "-dd.dddddd,-ddd.dddddd" coordinate line.
const MinColumns = 21

// MinRows is three summary lines plus the battery row.
const MinRows = 4

// Font is a monospaced face together with the grid it produces on a panel.
type Font struct {
	Face     font.Face
	Geometry Geometry
	Ascent   int // pixels from the top of a row to the baseline
}

// fontSizes are tried largest first.
var fontSizes = []float64{12, 11, 10, 9, 8, 7, 6, 5}

// FontFor picks the largest Go Mono size that gives at least MinColumns
// by MinRows on a width x height panel.
func FontFor(width, height int) (Font, error) {
	ttf, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return Font{}, fmt.Errorf("display: parse font: %w", err)
	}
	for _, size := range fontSizes {
		face, err := opentype.NewFace(ttf, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return Font{}, fmt.Errorf("display: font size %v: %w", size, err)
		}

		adv, ok := face.GlyphAdvance('0')
		if !ok {
			face.Close()
			continue
		}
		m := face.Metrics()
		geo := Geometry{
			Width:     width,
			Height:    height,
			CharWidth: adv.Ceil(),
			RowPitch:  m.Ascent.Ceil() + m.Descent.Ceil(),
		}
		if geo.CharWidth > 0 && width/geo.CharWidth >= MinColumns && height/geo.RowPitch >= MinRows {
			return Font{Face: face, Geometry: geo, Ascent: m.Ascent.Ceil()}, nil
		}
		face.Close()
	}
	return Font{}, fmt.Errorf("display: %dx%d panel cannot show %d rows of %d columns", width, height, MinRows, MinColumns)
}
