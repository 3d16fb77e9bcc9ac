package geospatial

import (
	"math"

	"github.com/golang/geo/s1"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/bearing"
)

// EarthRadiusMeters is the mean Earth radius used for all spherical math.
const EarthRadiusMeters = 6371000.0

// coincidenceDeg is the tolerance for treating two vertices as the same point.
const coincidenceDeg = 1e-9

// Stats is the great-circle distance and initial bearing between two points.
type Stats struct {
	DistanceMeters float64 `json:"distance_meters"`
	Azimuth        float64 `json:"azimuth"`
	Bearing        string  `json:"bearing"`
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return EarthRadiusMeters * centralAngle(toRad(lat1), toRad(lon1), toRad(lat2), toRad(lon2)).Radians()
}

func centralAngle(lat1, lon1, lat2, lon2 float64) s1.Angle {
	sinHalfDLat := math.Sin((lat2 - lat1) / 2)
	sinHalfDLon := math.Sin((lon2 - lon1) / 2)
	h := sinHalfDLat*sinHalfDLat + math.Cos(lat1)*math.Cos(lat2)*sinHalfDLon*sinHalfDLon
	return s1.Angle(2 * math.Atan2(math.Sqrt(h), math.Sqrt(math.Max(0, 1-h))))
}

// GeodesicStats returns distance and initial azimuth from a to b. Degenerate
// inputs yield an azimuth of 0.
func GeodesicStats(a, b domain.GeoPoint) Stats {
	lat1, lon1 := toRad(a.Lat), toRad(a.Lon)
	lat2, lon2 := toRad(b.Lat), toRad(b.Lon)
	dLon := lon2 - lon1

	dist := EarthRadiusMeters * centralAngle(lat1, lon1, lat2, lon2).Radians()

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	az := s1.Angle(math.Atan2(y, x)).Degrees()
	if math.IsNaN(az) || math.IsInf(az, 0) {
		az = 0
	}
	az = bearing.Normalize(az)

	return Stats{DistanceMeters: dist, Azimuth: az, Bearing: bearing.Format(az)}
}

// Coincident reports whether two points match within 1e-9 degrees.
func Coincident(a, b domain.GeoPoint) bool {
	return math.Abs(a.Lat-b.Lat) < coincidenceDeg && math.Abs(a.Lon-b.Lon) < coincidenceDeg
}

// NormalizeRing drops an explicit closing vertex. The input is not modified.
func NormalizeRing(points []domain.GeoPoint) []domain.GeoPoint {
	ring := append([]domain.GeoPoint(nil), points...)
	if len(ring) > 1 && Coincident(ring[0], ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	return ring
}

// GeodesicPolygonArea returns the spherical polygon area in square meters.
// Longitude steps are wrapped into (-π, π] so rings may cross the
// antimeridian. Rings with fewer than 3 distinct vertices have no area.
func GeodesicPolygonArea(points []domain.GeoPoint) float64 {
	ring := NormalizeRing(points)
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i := range ring {
		cur := ring[i]
		next := ring[(i+1)%len(ring)]
		dLon := s1.Angle(toRad(next.Lon) - toRad(cur.Lon))
		if dLon > math.Pi {
			dLon -= 2 * math.Pi
		} else if dLon <= -math.Pi {
			dLon += 2 * math.Pi
		}
		sum += dLon.Radians() * (math.Sin(toRad(cur.Lat)) + math.Sin(toRad(next.Lat)))
	}
	return math.Abs(sum) * EarthRadiusMeters * EarthRadiusMeters / 2
}

// GeodesicSegments returns the great-circle legs between consecutive vertices.
func GeodesicSegments(points []domain.GeoPoint) []domain.GeodesicSegment {
	if len(points) < 2 {
		return nil
	}
	segs := make([]domain.GeodesicSegment, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		st := GeodesicStats(points[i], points[i+1])
		segs = append(segs, domain.GeodesicSegment{
			Index:          i,
			From:           i + 1,
			To:             i + 2,
			DistanceMeters: st.DistanceMeters,
			Azimuth:        st.Azimuth,
			Bearing:        st.Bearing,
			FromCoord:      points[i],
			ToCoord:        points[i+1],
		})
	}
	return segs
}

// ClosureSegment returns the leg from the last vertex back to the first, or
// nil when the ring is already closed or too short.
func ClosureSegment(points []domain.GeoPoint) *domain.GeodesicSegment {
	if len(points) < 2 {
		return nil
	}
	first, last := points[0], points[len(points)-1]
	if Coincident(first, last) {
		return nil
	}
	st := GeodesicStats(last, first)
	return &domain.GeodesicSegment{
		Index:          len(points) - 1,
		From:           len(points),
		To:             1,
		DistanceMeters: st.DistanceMeters,
		Azimuth:        st.Azimuth,
		Bearing:        st.Bearing,
		FromCoord:      last,
		ToCoord:        first,
		IsClosure:      true,
	}
}

// RingBounds returns the bounding box of a ring.
func RingBounds(points []domain.GeoPoint) domain.Bounds {
	if len(points) == 0 {
		return domain.Bounds{}
	}
	b := domain.Bounds{MinLat: points[0].Lat, MinLon: points[0].Lon, MaxLat: points[0].Lat, MaxLon: points[0].Lon}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
