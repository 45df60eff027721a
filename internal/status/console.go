// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ConsoleDisplay logs each presented frame. It is used when no panel is
// attached, and in tests, which read Frames.
type ConsoleDisplay struct {
	// Quiet suppresses logging; frames are still recorded.
	Quiet bool

	rows   []Row
	Frames [][]Row
}

func (c *ConsoleDisplay) Clear() {
	c.rows = c.rows[:0]
}

func (c *ConsoleDisplay) DrawLine(text string, x, y int) {
	c.rows = append(c.rows, Row{Text: text, X: x, Y: y})
}

func (c *ConsoleDisplay) Present() error {
	frame := make([]Row, len(c.rows))
	copy(frame, c.rows)
	sort.SliceStable(frame, func(i, j int) bool {
		if frame[i].Y != frame[j].Y {
			return frame[i].Y < frame[j].Y
		}
		return frame[i].X < frame[j].X
	})
	c.Frames = append(c.Frames, frame)

	if !c.Quiet {
		texts := make([]string, 0, len(frame))
		for _, r := range frame {
			texts = append(texts, r.Text)
		}
		log.Infof("display: %s", strings.Join(texts, " | "))
	}
	return nil
}

// Last returns the texts of the most recent frame, in reading order.
func (c *ConsoleDisplay) Last() []string {
	if len(c.Frames) == 0 {
		return nil
	}
	frame := c.Frames[len(c.Frames)-1]
	out := make([]string, 0, len(frame))
	for _, r := range frame {
		out = append(out, r.Text)
	}
	return out
}
