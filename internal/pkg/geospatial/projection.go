package geospatial

import (
	"math"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// Meters per degree used by the local projection.
const (
	MetersPerDegreeLon = 111320.0
	MetersPerDegreeLat = 110540.0
)

// minCosLat keeps the longitude scale finite near the poles.
const minCosLat = 1e-6

// Project maps geographic points onto a local tangent plane anchored at
// origin. This is an equirectangular approximation: it is accurate for
// survey-sized extents (a few kilometers) and degrades with extent and
// latitude. The origin itself maps to exactly (0, 0).
func Project(points []domain.GeoPoint, origin domain.GeoPoint) []domain.PlanarPoint {
	cosLat0 := math.Cos(toRad(origin.Lat))
	if math.Abs(cosLat0) < minCosLat {
		cosLat0 = math.Copysign(minCosLat, cosLat0)
	}
	out := make([]domain.PlanarPoint, len(points))
	for i, p := range points {
		out[i] = domain.PlanarPoint{
			X: (p.Lon - origin.Lon) * MetersPerDegreeLon * cosLat0,
			Y: -(p.Lat - origin.Lat) * MetersPerDegreeLat,
		}
	}
	return out
}

// ProjectRings projects every ring into one shared frame anchored at the
// first point of the first ring, so layers stay aligned with each other.
func ProjectRings(rings [][]domain.GeoPoint) [][]domain.PlanarPoint {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return nil
	}
	origin := rings[0][0]
	out := make([][]domain.PlanarPoint, len(rings))
	for i, ring := range rings {
		out[i] = Project(ring, origin)
	}
	return out
}

// BuildLayers derives layers for a set of rings. An explicit closing vertex
// is dropped and recorded on the layer as Closed. Rings with fewer than two
// distinct points are skipped.
func BuildLayers(rings [][]domain.GeoPoint) []*domain.Layer {
	var (
		kept   [][]domain.GeoPoint
		closed []bool
	)
	for _, r := range rings {
		ring := NormalizeRing(r)
		if len(ring) < 2 {
			continue
		}
		kept = append(kept, ring)
		closed = append(closed, len(ring) >= 3 && len(ring) < len(r))
	}
	projected := ProjectRings(kept)
	layers := make([]*domain.Layer, 0, len(kept))
	for i, ring := range kept {
		l := domain.NewLayer(
			ring,
			projected[i],
			GeodesicSegments(ring),
			ClosureSegment(ring),
			GeodesicPolygonArea,
		)
		l.Closed = closed[i]
		layers = append(layers, l)
	}
	return layers
}
