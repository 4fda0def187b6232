package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Patch is an axis-aligned rectangle of the map in global coordinates.
type Patch struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the x extent of the patch.
func (p Patch) Width() float64 { return p.MaxX - p.MinX }

// Height returns the y extent of the patch.
func (p Patch) Height() float64 { return p.MaxY - p.MinY }

// Center returns the middle of the patch.
func (p Patch) Center() r2.Vec {
	return r2.Vec{X: (p.MinX + p.MaxX) / 2, Y: (p.MinY + p.MaxY) / 2}
}

// Contains reports whether v lies inside the patch (edges included).
func (p Patch) Contains(v r2.Vec) bool {
	return v.X >= p.MinX && v.X <= p.MaxX && v.Y >= p.MinY && v.Y <= p.MaxY
}

// Intersects reports whether the two patches overlap.
func (p Patch) Intersects(o Patch) bool {
	return p.MinX <= o.MaxX && o.MinX <= p.MaxX && p.MinY <= o.MaxY && o.MinY <= p.MaxY
}

// PatchAround returns the map patch rendered around center: the floor/ceil
// of center -/+ margin, widened about its middle so that neither side is
// shorter than minDiff.
func PatchAround(center r2.Vec, margin, minDiff float64) Patch {
	p := Patch{
		MinX: math.Floor(center.X - margin),
		MinY: math.Floor(center.Y - margin),
		MaxX: math.Ceil(center.X + margin),
		MaxY: math.Ceil(center.Y + margin),
	}
	if p.Width() >= minDiff && p.Height() >= minDiff {
		return p
	}
	c := p.Center()
	w := math.Max(p.Width(), minDiff)
	h := math.Max(p.Height(), minDiff)
	return Patch{
		MinX: c.X - w/2,
		MinY: c.Y - h/2,
		MaxX: c.X + w/2,
		MaxY: c.Y + h/2,
	}
}

// Bounds returns the smallest patch containing every point. ok is false when
// pts is empty.
func Bounds(pts []r2.Vec) (p Patch, ok bool) {
	if len(pts) == 0 {
		return Patch{}, false
	}
	p = Patch{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, v := range pts {
		p.MinX = math.Min(p.MinX, v.X)
		p.MinY = math.Min(p.MinY, v.Y)
		p.MaxX = math.Max(p.MaxX, v.X)
		p.MaxY = math.Max(p.MaxY, v.Y)
	}
	return p, true
}
