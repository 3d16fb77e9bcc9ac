// Package labels fits survey geometry into a viewport and places point
// labels so they stay inside it and do not crowd each other.
//
// Placement is greedy and order dependent: label i only sees labels
// 1..i-1 of the same call. When no candidate in the search fan fits, the
// label falls back to the base direction clamped into the viewport and may
// overlap.
package labels

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// degenerateDir is the centroid distance below which a point has no
// direction of its own.
const degenerateDir = 1e-6

// Options controls label placement.
type Options struct {
	Width   float64
	Height  float64
	Margin  float64
	Radius  float64
	Spacing float64
	// Steps is the number of 15° steps tried on each side of the base angle.
	Steps int
	// StartIndex is the number of labels already issued; the first label
	// of this call is Prefix + (StartIndex+1).
	StartIndex int
	Prefix     string
}

// DefaultOptions returns the standard 500x500 viewport settings.
func DefaultOptions() Options {
	return Options{
		Width:   500,
		Height:  500,
		Margin:  18,
		Radius:  26,
		Spacing: 20,
		Steps:   8,
		Prefix:  "P",
	}
}

// angleStep is the spacing between candidate angles.
const angleStep = s1.Angle(math.Pi / 12)

// candidates returns the fan offsets 0, +1, -1, +2, -2 ... in steps.
func candidates(steps int) []s1.Angle {
	out := make([]s1.Angle, 0, 2*steps+1)
	out = append(out, 0)
	for n := 1; n <= steps; n++ {
		out = append(out, s1.Angle(n)*angleStep, -s1.Angle(n)*angleStep)
	}
	return out
}

func (o Options) viewport() r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: o.Margin, Hi: o.Width - o.Margin},
		Y: r1.Interval{Lo: o.Margin, Hi: o.Height - o.Margin},
	}
}

// Place computes a label for every point, in order. Points are in view
// coordinates and centroid is the fan centre.
func Place(points []domain.PlanarPoint, centroid domain.PlanarPoint, opts Options) []domain.LabelPlacement {
	if len(points) == 0 {
		return nil
	}
	view := opts.viewport()
	fan := candidates(opts.Steps)
	c := r2.Point{X: centroid.X, Y: centroid.Y}

	placed := make([]r2.Point, 0, len(points))
	tooClose := func(p r2.Point) bool {
		for _, q := range placed {
			if p.Sub(q).Norm() < opts.Spacing {
				return true
			}
		}
		return false
	}

	out := make([]domain.LabelPlacement, 0, len(points))
	for i, pt := range points {
		p := r2.Point{X: pt.X, Y: pt.Y}
		dir := p.Sub(c)
		if math.Abs(dir.X) < degenerateDir && math.Abs(dir.Y) < degenerateDir {
			dir = r2.Point{X: 0, Y: -1}
		}
		base := s1.Angle(math.Atan2(dir.Y, dir.X))

		var pos r2.Point
		found := false
		for _, delta := range fan {
			trial := offset(p, base+delta, opts.Radius)
			if !view.ContainsPoint(trial) || tooClose(trial) {
				continue
			}
			pos, found = trial, true
			break
		}
		if !found {
			pos = clamp(view, offset(p, base, opts.Radius))
		}
		placed = append(placed, pos)

		out = append(out, domain.LabelPlacement{
			Index:    opts.StartIndex + i + 1,
			Text:     fmt.Sprintf("%s%d", opts.Prefix, opts.StartIndex+i+1),
			Anchor:   pt,
			Position: domain.PlanarPoint{X: pos.X, Y: pos.Y},
			Fallback: !found,
		})
	}
	return out
}

func offset(p r2.Point, angle s1.Angle, radius float64) r2.Point {
	return r2.Point{
		X: p.X + math.Cos(angle.Radians())*radius,
		Y: p.Y + math.Sin(angle.Radians())*radius,
	}
}

// clamp pulls p into the viewport. An empty viewport (margin wider than
// half the view) clamps each axis to its far edge.
func clamp(view r2.Rect, p r2.Point) r2.Point {
	if !view.IsEmpty() {
		return view.ClampPoint(p)
	}
	return r2.Point{
		X: math.Min(view.X.Hi, math.Max(view.X.Lo, p.X)),
		Y: math.Min(view.Y.Hi, math.Max(view.Y.Lo, p.Y)),
	}
}
