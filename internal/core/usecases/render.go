package usecases

import (
	"fmt"
	"math"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/labels"
	"github.com/samirrijal/surveyplot/internal/pkg/traverse"
)

// Gaps in view units: a fitted ring whose ends are further apart than
// closedGap is drawn open, and a manual end point within closingPoint of
// the start duplicates it.
const (
	closedGap    = 0.5
	closingPoint = 1e-3
)

// RenderRequest is everything shown on the plot.
type RenderRequest struct {
	Manual    *domain.TraverseResult `json:"manual,omitempty"`
	Workspace *domain.Workspace      `json:"workspace,omitempty"`
	AutoClose bool                   `json:"auto_close"`
}

// RenderedRing is one ring fitted into the viewport.
type RenderedRing struct {
	Source      string                  `json:"source"` // "manual" | "imported"
	Layer       int                     `json:"layer,omitempty"`
	Points      []domain.PlanarPoint    `json:"points"`
	Fill        bool                    `json:"fill"`
	ClosureLine bool                    `json:"closure_line"`
	Centroid    domain.PlanarPoint      `json:"centroid"`
	Labels      []domain.LabelPlacement `json:"labels"`
	AreaLabel   string                  `json:"area_label,omitempty"`
}

// RenderResult is the fitted view of every visible ring.
type RenderResult struct {
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	View   labels.View       `json:"view"`
	Rings  []RenderedRing    `json:"rings"`
	Table  []domain.TableRow `json:"table"`
	Totals Totals            `json:"totals"`
}

// Render fits the manual traverse and imported layers into one viewport
// and places their point labels. Numbering continues across rings.
func (s *SurveyService) Render(req RenderRequest) *RenderResult {
	opts := s.opts.Labels
	out := &RenderResult{
		Width:  opts.Width,
		Height: opts.Height,
		Table:  BuildTable(req.Manual, req.Workspace, req.AutoClose),
		Totals: WorkspaceTotals(req.Workspace, req.AutoClose),
	}

	showManual := ManualVisible(req.Manual, req.Workspace)
	var combined []domain.PlanarPoint
	if showManual {
		combined = append(combined, req.Manual.Coords...)
	}
	if HasLayers(req.Workspace) {
		for _, l := range req.Workspace.Layers {
			combined = append(combined, l.ProjectedCoords...)
		}
	}
	if len(combined) == 0 {
		combined = []domain.PlanarPoint{{}}
	}
	out.View = labels.FitView(combined, opts.Width, opts.Height, s.opts.ViewPadding)

	next := 0
	if showManual {
		ring := s.renderManual(out.View, req.Manual, req.AutoClose, next)
		next += len(ring.Points)
		out.Rings = append(out.Rings, ring)
	}
	if HasLayers(req.Workspace) {
		for i, l := range req.Workspace.Layers {
			if len(l.ProjectedCoords) == 0 {
				continue
			}
			ring := s.renderLayer(out.View, l, i+1, req.AutoClose, next)
			next += len(ring.Points)
			out.Rings = append(out.Rings, ring)
		}
	}
	return out
}

func (s *SurveyService) renderManual(v labels.View, res *domain.TraverseResult, autoClose bool, start int) RenderedRing {
	pts := v.Apply(res.Coords)
	gap := endGap(pts)

	polygon := pts
	if len(pts) > 1 && gap < closingPoint {
		polygon = pts[:len(pts)-1]
	}
	ring := RenderedRing{
		Source:      "manual",
		Points:      pts,
		Fill:        autoClose && len(pts) >= 3,
		ClosureLine: autoClose && len(pts) > 1 && gap > closedGap,
		Centroid:    traverse.Centroid(polygon),
	}
	ring.Labels = labels.Place(pts, ring.Centroid, s.labelOptions(start))
	if autoClose && len(polygon) >= 3 {
		ring.AreaLabel = fmt.Sprintf("Area: %.2f sqm", res.Area)
	}
	return ring
}

func (s *SurveyService) renderLayer(v labels.View, l *domain.Layer, n int, autoClose bool, start int) RenderedRing {
	pts := v.Apply(l.ProjectedCoords)
	if l.Closed && len(pts) > 2 {
		pts = append(pts, pts[0])
	}
	closed := len(pts) > 2 && endGap(pts) <= closedGap

	polygon := pts
	if closed {
		polygon = pts[:len(pts)-1]
	}
	source := pts
	if len(polygon) >= 3 {
		source = polygon
	}
	ring := RenderedRing{
		Source:      "imported",
		Layer:       n,
		Points:      pts,
		Fill:        autoClose && len(polygon) >= 3,
		ClosureLine: autoClose && len(pts) > 1 && !closed,
		Centroid:    traverse.Centroid(source),
	}
	ring.Labels = labels.Place(pts, ring.Centroid, s.labelOptions(start))
	if area := l.GeodesicArea(); autoClose && len(source) >= 3 && area > 0 {
		ring.AreaLabel = fmt.Sprintf("%.2f sqm", area)
	}
	return ring
}

func (s *SurveyService) labelOptions(start int) labels.Options {
	o := s.opts.Labels
	o.StartIndex = start
	return o
}

func endGap(pts []domain.PlanarPoint) float64 {
	if len(pts) < 2 {
		return 0
	}
	first, last := pts[0], pts[len(pts)-1]
	return math.Hypot(first.X-last.X, first.Y-last.Y)
}
