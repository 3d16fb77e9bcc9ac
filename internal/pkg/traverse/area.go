package traverse

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// degenerateArea is the signed area below which a polygon centroid falls
// back to the vertex mean.
const degenerateArea = 1e-6

func point(p domain.PlanarPoint) r2.Point { return r2.Point{X: p.X, Y: p.Y} }

// signedArea2 returns twice the signed shoelace area.
func signedArea2(points []domain.PlanarPoint) float64 {
	var sum float64
	for i := range points {
		sum += point(points[i]).Cross(point(points[(i+1)%len(points)]))
	}
	return sum
}

// ShoelaceArea returns the planar polygon area. Fewer than three points
// enclose nothing.
func ShoelaceArea(points []domain.PlanarPoint) float64 {
	if len(points) < 3 {
		return 0
	}
	return math.Abs(signedArea2(points)) / 2
}

// Centroid returns the area-weighted centroid of a polygon, or the mean of
// its vertices when the polygon has no area.
func Centroid(points []domain.PlanarPoint) domain.PlanarPoint {
	n := len(points)
	if n == 0 {
		return domain.PlanarPoint{}
	}
	var c r2.Point
	var area2 float64
	for i := range points {
		p0, p1 := point(points[i]), point(points[(i+1)%n])
		cross := p0.Cross(p1)
		area2 += cross
		c = c.Add(p0.Add(p1).Mul(cross))
	}
	if math.Abs(area2/2) < degenerateArea {
		var mean r2.Point
		for _, p := range points {
			mean = mean.Add(point(p))
		}
		mean = mean.Mul(1 / float64(n))
		return domain.PlanarPoint{X: mean.X, Y: mean.Y}
	}
	c = c.Mul(1 / (3 * area2))
	return domain.PlanarPoint{X: c.X, Y: c.Y}
}
