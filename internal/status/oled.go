// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// OLED draws text on an SSD1306 panel.
type OLED struct {
	dev    *ssd1306.Dev
	img    *image1bit.VerticalLSB
	drawer *font.Drawer
	ascent int
}

// defaultAddr is the address the ssd1306 driver always uses.
const defaultAddr = 0x3C

// addrBus redirects every transaction to addr, so panels strapped to 0x3D
// work with the driver's fixed address.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b *addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// NewOLED initializes an SSD1306 at addr on bus, sized and drawn per f.
func NewOLED(bus i2c.Bus, addr uint16, f Font) (*OLED, error) {
	opts := ssd1306.DefaultOpts
	opts.W = f.Geometry.Width
	opts.H = f.Geometry.Height

	if addr != 0 && addr != defaultAddr {
		bus = &addrBus{Bus: bus, addr: addr}
	}
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("display: ssd1306 init at 0x%02X: %w", addr, err)
	}

	img := image1bit.NewVerticalLSB(dev.Bounds())
	return &OLED{
		dev: dev,
		img: img,
		drawer: &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{image1bit.On},
			Face: f.Face,
		},
		ascent: f.Ascent,
	}, nil
}

// Clear blanks the frame buffer.
func (o *OLED) Clear() {
	for i := range o.img.Pix {
		o.img.Pix[i] = 0
	}
}

// DrawLine draws text with its top-left corner at (x, y).
func (o *OLED) DrawLine(text string, x, y int) {
	o.drawer.Dot = fixed.P(x, y+o.ascent)
	o.drawer.DrawString(text)
}

// Present pushes the frame buffer to the panel.
func (o *OLED) Present() error {
	return o.dev.Draw(o.dev.Bounds(), o.img, image.Point{})
}

// Halt turns the panel off.
func (o *OLED) Halt() error {
	return o.dev.Halt()
}
