package usecases

import (
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/cadscript"
)

// ExportScript writes the manual traverse and every imported layer as CAD
// polylines. With autoClose set, closures become a final leg.
func ExportScript(w io.Writer, manual *domain.TraverseResult, ws *domain.Workspace, autoClose bool) error {
	var rings [][]domain.ScriptSegment
	if manual != nil {
		rings = append(rings, cadscript.FromTraverse(manual, autoClose))
	}
	if ws != nil {
		for _, l := range ws.Layers {
			rings = append(rings, cadscript.FromLayer(l, autoClose))
		}
	}
	wrote, err := cadscript.Write(w, rings)
	if err != nil {
		return err
	}
	if !wrote {
		return &domain.EmptyInputError{What: "plot or import data"}
	}
	return nil
}

// ExportGeoJSON encodes the imported layers as a feature collection. Closed
// layers become polygons when autoClose is set; everything else is a line.
func ExportGeoJSON(ws *domain.Workspace, autoClose bool) ([]byte, error) {
	if !HasLayers(ws) {
		return nil, &domain.EmptyInputError{What: "imported layers"}
	}
	fc := geojson.NewFeatureCollection()
	for i, l := range ws.Layers {
		line := make(orb.LineString, 0, len(l.GeoCoords)+1)
		for _, p := range l.GeoCoords {
			line = append(line, orb.Point{p.Lon, p.Lat})
		}

		var g orb.Geometry = line
		if (autoClose || l.Closed) && len(line) >= 3 {
			ring := orb.Ring(append(line, line[0]))
			g = orb.Polygon{ring}
		}
		f := geojson.NewFeature(g)
		f.Properties["layer"] = i + 1
		f.Properties["points"] = len(l.GeoCoords)
		var perimeter float64
		for _, s := range l.Legs() {
			perimeter += s.DistanceMeters
		}
		if c := l.Gap(); autoClose && c != nil {
			perimeter += c.DistanceMeters
		}
		if (autoClose || l.Closed) && len(line) >= 3 {
			f.Properties["geodesic_area"] = l.GeodesicArea()
		}
		f.Properties["perimeter_m"] = perimeter
		if i == 0 && ws.SourceName != "" {
			f.Properties["source"] = ws.SourceName
		}
		fc.Append(f)
	}
	return fc.MarshalJSON()
}
