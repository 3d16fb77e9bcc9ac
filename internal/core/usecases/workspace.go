package usecases

import (
	"fmt"
	"math"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/bearing"
	"github.com/samirrijal/surveyplot/internal/pkg/geospatial"
	"github.com/samirrijal/surveyplot/internal/pkg/traverse"
)

// Table thresholds: a manual closure row appears above a micrometre, an
// imported one above a centimetre.
const (
	manualClosureRow = 1e-6
	layerClosureRow  = 0.01
)

// RestoreWorkspace rebuilds a workspace from geographic rings. Projected
// data and memoized areas are derived afresh.
func RestoreWorkspace(rings [][]domain.GeoPoint, sourceName string) *domain.Workspace {
	return &domain.Workspace{
		Layers:     geospatial.BuildLayers(rings),
		SourceName: sourceName,
	}
}

// HasLayers reports whether ws holds any imported layer.
func HasLayers(ws *domain.Workspace) bool {
	return ws != nil && len(ws.Layers) > 0
}

// ManualVisible reports whether the manual traverse should be drawn and
// tabulated. It is hidden while it only mirrors an imported layer.
func ManualVisible(manual *domain.TraverseResult, ws *domain.Workspace) bool {
	if manual == nil || len(manual.Coords) < 2 {
		return false
	}
	return !(HasLayers(ws) && ws.ManualMirrorsImport)
}

// MirrorLayer converts a layer's sides back into segment records
// and marks the workspace as mirrored. The index is clamped to the
// available layers.
func MirrorLayer(ws *domain.Workspace, index int) ([]domain.SegmentInput, error) {
	if !HasLayers(ws) {
		return nil, &domain.EmptyInputError{What: "imported layers"}
	}
	if index >= len(ws.Layers) {
		index = len(ws.Layers) - 1
	}
	if index < 0 {
		index = 0
	}
	layer := ws.Layers[index]
	legs := layer.Legs()
	if len(legs) == 0 {
		return nil, &domain.EmptyInputError{What: "layer segments"}
	}

	inputs := make([]domain.SegmentInput, 0, len(legs))
	for _, seg := range legs {
		q, err := bearing.ParseFields(seg.Bearing)
		if err != nil {
			q = bearing.ToQuadrant(seg.Azimuth)
		}
		inputs = append(inputs, q.Input(math.Round(seg.DistanceMeters*1000)/1000))
	}
	ws.ManualMirrorsImport = true
	return inputs, nil
}

// BuildTable lays out the combined bearing/distance table: the manual
// traverse first, then every imported layer.
func BuildTable(manual *domain.TraverseResult, ws *domain.Workspace, autoClose bool) []domain.TableRow {
	var rows []domain.TableRow

	if ManualVisible(manual, ws) {
		rows = append(rows, domain.TableRow{Type: "section", Label: "Manual traverse"})
		for _, s := range manual.Segments {
			rows = append(rows, domain.TableRow{
				Type:     "row",
				Line:     s.Line,
				Bearing:  s.Bearing,
				Distance: s.Distance,
				Source:   "manual",
			})
		}
		if c := manual.Closure; autoClose && c.Distance > manualClosureRow {
			rows = append(rows, domain.TableRow{
				Type:     "row",
				Line:     "Closure (Manual)",
				Bearing:  bearing.Format(c.Azimuth),
				Distance: c.Distance,
				Source:   "manual",
			})
		}
	}

	if !HasLayers(ws) {
		return rows
	}
	for i, layer := range ws.Layers {
		n := i + 1
		title := "Imported traverse"
		if len(ws.Layers) > 1 {
			title = fmt.Sprintf("Imported group %d", n)
		}
		if i == 0 && ws.SourceName != "" {
			title += " - " + ws.SourceName
		}
		rows = append(rows, domain.TableRow{Type: "section", Label: title})
		for j, s := range layer.Legs() {
			rows = append(rows, domain.TableRow{
				Type:     "row",
				Line:     fmt.Sprintf("G%d-%d", n, j+1),
				Bearing:  s.Bearing,
				Distance: s.DistanceMeters,
				Source:   "imported",
			})
		}
		if c := layer.Gap(); autoClose && c != nil && c.DistanceMeters > layerClosureRow {
			rows = append(rows, domain.TableRow{
				Type:     "row",
				Line:     fmt.Sprintf("Closure (G%d)", n),
				Bearing:  c.Bearing,
				Distance: c.DistanceMeters,
				Source:   "imported",
			})
		}
	}
	return rows
}

// Totals summarizes the imported layers.
type Totals struct {
	Layers       int     `json:"layers"`
	Points       int     `json:"points"`
	GeodesicArea float64 `json:"geodesic_area"`
	AreaText     string  `json:"area_text,omitempty"`
}

// WorkspaceTotals counts imported points and, with auto-close on, sums the
// positive geodesic areas.
func WorkspaceTotals(ws *domain.Workspace, autoClose bool) Totals {
	var t Totals
	if ws == nil {
		return t
	}
	t.Layers = len(ws.Layers)
	for _, l := range ws.Layers {
		t.Points += len(l.ProjectedCoords)
		if autoClose {
			if a := l.GeodesicArea(); a > 0 {
				t.GeodesicArea += a
			}
		}
	}
	if autoClose && t.GeodesicArea > 0 {
		t.AreaText = fmt.Sprintf("%.2f sqm", t.GeodesicArea)
	}
	return t
}

// LayerClosure analyzes the misclosure of an imported layer.
func LayerClosure(l *domain.Layer, threshold float64) domain.ClosureResult {
	if l == nil {
		return domain.ClosureResult{}
	}
	return traverse.GeoClosure(l.Ring(), threshold)
}
