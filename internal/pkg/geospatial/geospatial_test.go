package geospatial_test

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/geospatial"
)

var square = []domain.GeoPoint{
	{Lat: 37.1, Lon: -122.1},
	{Lat: 37.101, Lon: -122.1},
	{Lat: 37.101, Lon: -122.099},
	{Lat: 37.1, Lon: -122.099},
}

func TestGeodesicStats_SamePoint(t *testing.T) {
	p := domain.GeoPoint{Lat: 43.263, Lon: -2.935}
	st := geospatial.GeodesicStats(p, p)
	if st.DistanceMeters != 0 {
		t.Errorf("expected 0 distance, got %v", st.DistanceMeters)
	}
	if st.Azimuth != 0 {
		t.Errorf("expected azimuth fallback 0, got %v", st.Azimuth)
	}
}

func TestGeodesicStats_MatchesS2(t *testing.T) {
	a := domain.GeoPoint{Lat: 43.263, Lon: -2.935}
	b := domain.GeoPoint{Lat: 43.2701, Lon: -2.9212}

	st := geospatial.GeodesicStats(a, b)
	ref := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon)).Radians() * geospatial.EarthRadiusMeters
	if math.Abs(st.DistanceMeters-ref) > 1e-6 {
		t.Errorf("distance %v differs from s2 reference %v", st.DistanceMeters, ref)
	}
	if got := geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon); math.Abs(got-ref) > 1e-6 {
		t.Errorf("Haversine %v differs from s2 reference %v", got, ref)
	}
}

func TestGeodesicStats_Symmetry(t *testing.T) {
	a := domain.GeoPoint{Lat: 37.1, Lon: -122.1}
	b := domain.GeoPoint{Lat: 37.108, Lon: -122.093}

	ab := geospatial.GeodesicStats(a, b)
	ba := geospatial.GeodesicStats(b, a)
	if ab.DistanceMeters != ba.DistanceMeters {
		t.Errorf("distance not symmetric: %v vs %v", ab.DistanceMeters, ba.DistanceMeters)
	}
	diff := math.Mod(math.Abs(ab.Azimuth-ba.Azimuth), 360)
	if math.Abs(diff-180) > 0.01 {
		t.Errorf("expected reverse azimuth to differ by 180, got %v (%v vs %v)", diff, ab.Azimuth, ba.Azimuth)
	}
}

func TestGeodesicStats_DueNorthAndEast(t *testing.T) {
	o := domain.GeoPoint{Lat: 10, Lon: 20}
	north := geospatial.GeodesicStats(o, domain.GeoPoint{Lat: 10.01, Lon: 20})
	if north.Azimuth > 1e-9 && north.Azimuth < 360-1e-9 {
		t.Errorf("expected azimuth 0, got %v", north.Azimuth)
	}
	if north.Bearing != "N 0° 0' E" {
		t.Errorf("unexpected bearing %q", north.Bearing)
	}
	east := geospatial.GeodesicStats(o, domain.GeoPoint{Lat: 10, Lon: 20.01})
	if math.Abs(east.Azimuth-90) > 0.01 {
		t.Errorf("expected azimuth ~90, got %v", east.Azimuth)
	}
}

func TestNormalizeRing(t *testing.T) {
	closed := append(append([]domain.GeoPoint(nil), square...), square[0])
	got := geospatial.NormalizeRing(closed)
	if diff := cmp.Diff(square, got); diff != "" {
		t.Errorf("NormalizeRing mismatch (-want +got):\n%s", diff)
	}
	if len(closed) != 5 {
		t.Error("input was modified")
	}
}

func TestGeodesicPolygonArea(t *testing.T) {
	area := geospatial.GeodesicPolygonArea(square)
	projected := geospatial.Project(square, square[0])
	var planar float64
	for i := range projected {
		j := (i + 1) % len(projected)
		planar += projected[i].X*projected[j].Y - projected[j].X*projected[i].Y
	}
	planar = math.Abs(planar) / 2

	if area <= 0 {
		t.Fatalf("expected positive area, got %v", area)
	}
	if math.Abs(area-planar)/planar > 0.02 {
		t.Errorf("geodesic area %v too far from projected area %v", area, planar)
	}

	closed := append(append([]domain.GeoPoint(nil), square...), square[0])
	if got := geospatial.GeodesicPolygonArea(closed); got != area {
		t.Errorf("closing vertex changed area: %v vs %v", got, area)
	}
}

func TestGeodesicPolygonArea_Degenerate(t *testing.T) {
	if got := geospatial.GeodesicPolygonArea(square[:2]); got != 0 {
		t.Errorf("expected 0 for two vertices, got %v", got)
	}
	tri := []domain.GeoPoint{square[0], square[1], square[0]}
	if got := geospatial.GeodesicPolygonArea(tri); got != 0 {
		t.Errorf("expected 0 for closed two-vertex ring, got %v", got)
	}
}

func TestGeodesicPolygonArea_Antimeridian(t *testing.T) {
	crossing := []domain.GeoPoint{
		{Lat: 0, Lon: 179.999},
		{Lat: 0, Lon: -179.999},
		{Lat: 0.002, Lon: -179.999},
		{Lat: 0.002, Lon: 179.999},
	}
	plain := []domain.GeoPoint{
		{Lat: 0, Lon: -0.001},
		{Lat: 0, Lon: 0.001},
		{Lat: 0.002, Lon: 0.001},
		{Lat: 0.002, Lon: -0.001},
	}
	a := geospatial.GeodesicPolygonArea(crossing)
	b := geospatial.GeodesicPolygonArea(plain)
	if !cmp.Equal(a, b, cmpopts.EquateApprox(1e-6, 0)) {
		t.Errorf("antimeridian ring area %v, expected %v", a, b)
	}
}

func TestProject_OriginAtZero(t *testing.T) {
	for _, origin := range []domain.GeoPoint{square[0], {Lat: -33.9, Lon: 151.2}, {Lat: 90, Lon: 0}} {
		ring := []domain.GeoPoint{origin, {Lat: origin.Lat - 0.001, Lon: origin.Lon + 0.001}}
		got := geospatial.Project(ring, ring[0])
		if got[0] != (domain.PlanarPoint{}) {
			t.Errorf("origin %+v projected to %+v", origin, got[0])
		}
		if math.IsInf(got[1].X, 0) || math.IsNaN(got[1].X) {
			t.Errorf("non-finite projection near %+v: %+v", origin, got[1])
		}
	}
}

func TestProject_Axes(t *testing.T) {
	origin := domain.GeoPoint{Lat: 0, Lon: 0}
	got := geospatial.Project([]domain.GeoPoint{{Lat: 0.001, Lon: 0}, {Lat: 0, Lon: 0.001}}, origin)
	want := []domain.PlanarPoint{{X: 0, Y: -110.54}, {X: 111.32, Y: 0}}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Project mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLayers(t *testing.T) {
	second := []domain.GeoPoint{{Lat: 37.102, Lon: -122.1}, {Lat: 37.103, Lon: -122.1}}
	layers := geospatial.BuildLayers([][]domain.GeoPoint{square, {{Lat: 1, Lon: 1}}, second})
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	if layers[0].ProjectedCoords[0] != (domain.PlanarPoint{}) {
		t.Errorf("first layer should start at the origin")
	}
	// Layers share the first ring's origin.
	if layers[1].ProjectedCoords[0].Y >= 0 {
		t.Errorf("second layer should be north of the origin, got %+v", layers[1].ProjectedCoords[0])
	}
	if len(layers[0].GeodesicSegments) != 3 || layers[0].ClosureSegment == nil {
		t.Fatalf("expected 3 segments and a closure leg, got %d / %v", len(layers[0].GeodesicSegments), layers[0].ClosureSegment)
	}
	if c := layers[0].ClosureSegment; c.From != 4 || c.To != 1 || !c.IsClosure {
		t.Errorf("unexpected closure segment %+v", c)
	}
	if layers[0].GeodesicArea() <= 0 {
		t.Error("expected memoized area > 0")
	}
	if layers[0].GeodesicArea() != geospatial.GeodesicPolygonArea(square) {
		t.Error("memoized area differs from direct computation")
	}
}

func TestBuildLayers_ClosedRing(t *testing.T) {
	closedRing := append(append([]domain.GeoPoint(nil), square...), square[0])
	layers := geospatial.BuildLayers([][]domain.GeoPoint{closedRing, square})
	closed, open := layers[0], layers[1]

	if !closed.Closed || open.Closed {
		t.Fatalf("closed flags: got %v and %v", closed.Closed, open.Closed)
	}
	if len(closed.GeoCoords) != len(square) {
		t.Errorf("closing vertex should be dropped, got %d points", len(closed.GeoCoords))
	}
	if legs := closed.Legs(); len(legs) != 4 || !legs[3].IsClosure {
		t.Errorf("closed ring should have the closing side last, got %+v", legs)
	}
	if closed.Gap() != nil {
		t.Error("closed ring has no misclosure")
	}
	if len(open.Legs()) != 3 || open.Gap() == nil {
		t.Errorf("open ring: %d legs, gap %v", len(open.Legs()), open.Gap())
	}
	if got := closed.Ring(); len(got) != len(square)+1 || got[len(got)-1] != square[0] {
		t.Errorf("Ring should repeat the first vertex, got %+v", got)
	}
	if closed.GeodesicArea() != open.GeodesicArea() {
		t.Error("closing vertex should not change the area")
	}
}

func TestRingBounds(t *testing.T) {
	b := geospatial.RingBounds(square)
	want := domain.Bounds{MinLat: 37.1, MinLon: -122.1, MaxLat: 37.101, MaxLon: -122.099}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}
