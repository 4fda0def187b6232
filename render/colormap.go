package render

import (
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
)

// coolMap is the "cool" colour map: cyan at the minimum to magenta at the
// maximum. It implements palette.ColorMap.
type coolMap struct {
	min, max float64
	alpha    float64
}

func newCoolMap() *coolMap {
	return &coolMap{min: 0, max: 1, alpha: 1}
}

// At implements palette.ColorMap.
func (c *coolMap) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, palette.ErrNaN
	case v < c.min:
		return nil, palette.ErrUnderflow
	case v > c.max:
		return nil, palette.ErrOverflow
	}
	return c.color(v), nil
}

// clamped is At with v clamped into [Min, Max].
func (c *coolMap) clamped(v float64) color.Color {
	if math.IsNaN(v) {
		v = c.min
	}
	return c.color(math.Max(c.min, math.Min(c.max, v)))
}

func (c *coolMap) color(v float64) color.Color {
	t := 0.0
	if c.max > c.min {
		t = (v - c.min) / (c.max - c.min)
	}
	return color.NRGBA{
		R: uint8(math.Round(255 * t)),
		G: uint8(math.Round(255 * (1 - t))),
		B: 255,
		A: uint8(math.Round(255 * c.alpha)),
	}
}

// Max implements palette.ColorMap.
func (c *coolMap) Max() float64 { return c.max }

// Min implements palette.ColorMap.
func (c *coolMap) Min() float64 { return c.min }

// SetMax implements palette.ColorMap.
func (c *coolMap) SetMax(v float64) { c.max = v }

// SetMin implements palette.ColorMap.
func (c *coolMap) SetMin(v float64) { c.min = v }

// Alpha implements palette.ColorMap.
func (c *coolMap) Alpha() float64 { return c.alpha }

// SetAlpha implements palette.ColorMap.
func (c *coolMap) SetAlpha(a float64) { c.alpha = a }

// Palette implements palette.ColorMap.
func (c *coolMap) Palette(colors int) palette.Palette {
	out := make(coolPalette, colors)
	for i := range out {
		v := c.min
		if colors > 1 {
			v += (c.max - c.min) * float64(i) / float64(colors-1)
		}
		out[i] = c.color(v)
	}
	return out
}

type coolPalette []color.Color

func (p coolPalette) Colors() []color.Color { return p }
