package traverse

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/bearing"
	"github.com/samirrijal/surveyplot/internal/pkg/geospatial"
)

// perfectClosure is the closure distance at or below which a traverse is
// treated as exactly closed.
const perfectClosure = 1e-9

// PerfectClosureText is shown instead of a bearing for a closed traverse.
const PerfectClosureText = "Perfect closure"

var ratioPrinter = message.NewPrinter(language.English)

// Closure measures the vector from the last coordinate back to the first.
func Closure(coords []domain.PlanarPoint, totalDistance, threshold float64) domain.ClosureResult {
	if len(coords) == 0 {
		return Analyze(0, 0, totalDistance, threshold)
	}
	first, last := coords[0], coords[len(coords)-1]
	dx := first.X - last.X
	dy := first.Y - last.Y
	dist := math.Hypot(dx, dy)
	var az float64
	if dist > perfectClosure {
		az = AzimuthFromDelta(dx, -dy)
	}
	return Analyze(dist, az, totalDistance, threshold)
}

// GeoClosure measures the great-circle leg from the last vertex of a ring
// back to its first, against the ring's total perimeter.
func GeoClosure(ring []domain.GeoPoint, threshold float64) domain.ClosureResult {
	var total float64
	for _, s := range geospatial.GeodesicSegments(ring) {
		total += s.DistanceMeters
	}
	leg := geospatial.ClosureSegment(ring)
	if leg == nil {
		return Analyze(0, 0, total, threshold)
	}
	return Analyze(leg.DistanceMeters, leg.Azimuth, total, threshold)
}

// Analyze derives the ratio, display text and warning flag for a closure
// distance. A non-positive threshold uses DefaultPrecisionThreshold.
func Analyze(distance, azimuth, totalDistance, threshold float64) domain.ClosureResult {
	if threshold <= 0 {
		threshold = DefaultPrecisionThreshold
	}
	if distance <= perfectClosure {
		return domain.ClosureResult{
			Bearing:   PerfectClosureText,
			Ratio:     domain.Ratio(math.Inf(1)),
			RatioText: "1:∞",
			Perfect:   true,
		}
	}
	ratio := totalDistance / distance
	return domain.ClosureResult{
		Distance:  distance,
		Azimuth:   azimuth,
		Bearing:   bearing.Format(azimuth),
		Ratio:     domain.Ratio(ratio),
		RatioText: ratioPrinter.Sprintf("1:%d", int64(math.Round(ratio))),
		Warning:   ratio < threshold,
	}
}
