// Package traverse integrates bearing and distance records into planar
// coordinates and derives the segment table, area and closure of the
// resulting polyline.
package traverse

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/bearing"
)

// DefaultPrecisionThreshold is the closure ratio below which a traverse is
// flagged as imprecise (1:5000).
const DefaultPrecisionThreshold = 5000.0

// Builder builds traverses with a configurable precision threshold.
type Builder struct {
	PrecisionThreshold float64
}

// NewBuilder returns a Builder. A non-positive threshold falls back to
// DefaultPrecisionThreshold.
func NewBuilder(threshold float64) *Builder {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultPrecisionThreshold
	}
	return &Builder{PrecisionThreshold: threshold}
}

// Build validates every record and integrates them starting at (0, 0).
// The first invalid record aborts the build; no partial result is returned.
func Build(inputs []domain.SegmentInput) (*domain.TraverseResult, error) {
	return NewBuilder(DefaultPrecisionThreshold).Build(inputs)
}

// Build is the threshold-aware variant of the package-level Build.
func (b *Builder) Build(inputs []domain.SegmentInput) (*domain.TraverseResult, error) {
	if len(inputs) == 0 {
		return nil, &domain.EmptyInputError{What: "traverse data"}
	}

	azimuths := make([]float64, len(inputs))
	for i, in := range inputs {
		az, err := Azimuth(in, i+1)
		if err != nil {
			return nil, err
		}
		azimuths[i] = az
	}

	coords := make([]domain.PlanarPoint, 1, len(inputs)+1)
	var pos r2.Point
	var total float64
	for i, in := range inputs {
		angle := s1.Angle(azimuths[i]) * s1.Degree
		pos.X += in.Length * math.Sin(angle.Radians())
		pos.Y -= in.Length * math.Cos(angle.Radians())
		coords = append(coords, domain.PlanarPoint{X: pos.X, Y: pos.Y})
		total += in.Length
	}

	return &domain.TraverseResult{
		Coords:        coords,
		Segments:      SegmentsFromCoords(coords),
		Area:          ShoelaceArea(coords),
		TotalDistance: total,
		Closure:       Closure(coords, total, b.PrecisionThreshold),
	}, nil
}

// Azimuth validates a single record and resolves its direction. line is
// the 1-based position reported in a ValidationError.
//
// A bearing string wins over an explicit azimuth, which wins over the
// hemisphere/degree/minute fields. The length is checked last.
func Azimuth(in domain.SegmentInput, line int) (float64, error) {
	var az float64
	switch {
	case strings.TrimSpace(in.Bearing) != "":
		v, err := bearing.Parse(in.Bearing)
		if err != nil {
			return 0, &domain.ValidationError{Kind: domain.InvalidBearing, Line: line, Err: err}
		}
		az = v
	case in.Azimuth != nil:
		if !finite(*in.Azimuth) {
			return 0, &domain.ValidationError{Kind: domain.InvalidAzimuth, Line: line}
		}
		az = bearing.Normalize(*in.Azimuth)
	default:
		v, err := fromFields(in, line)
		if err != nil {
			return 0, err
		}
		az = v
	}
	if !finite(in.Length) || in.Length <= 0 {
		return 0, &domain.ValidationError{Kind: domain.InvalidLength, Line: line}
	}
	return az, nil
}

func fromFields(in domain.SegmentInput, line int) (float64, error) {
	ns := strings.ToUpper(strings.TrimSpace(in.NS))
	ew := strings.ToUpper(strings.TrimSpace(in.EW))
	if (ns != "N" && ns != "S") || (ew != "E" && ew != "W") {
		return 0, &domain.ValidationError{Kind: domain.InvalidHemisphere, Line: line, Err: domain.ErrInvalidHemisphere}
	}
	if !finite(in.Degrees) || in.Degrees < 0 || in.Degrees > 90 {
		return 0, &domain.ValidationError{Kind: domain.InvalidDegrees, Line: line}
	}
	if !finite(in.Minutes) || in.Minutes < 0 || in.Minutes >= 60 {
		return 0, &domain.ValidationError{Kind: domain.InvalidMinutes, Line: line}
	}
	if in.Degrees+in.Minutes/60 > 90 {
		return 0, &domain.ValidationError{Kind: domain.InvalidDegrees, Line: line,
			Err: fmt.Errorf("%v° %v' exceeds 90°", in.Degrees, in.Minutes)}
	}
	az, err := bearing.FromFields(ns, in.Degrees, in.Minutes, ew)
	if err != nil {
		return 0, &domain.ValidationError{Kind: domain.InvalidHemisphere, Line: line, Err: err}
	}
	return az, nil
}

// AzimuthFromDelta returns atan2(dx, dy) in degrees, normalized to [0, 360).
// dy is measured towards north.
func AzimuthFromDelta(dx, dy float64) float64 {
	return bearing.Normalize(s1.Angle(math.Atan2(dx, dy)).Degrees())
}

// SegmentsFromCoords recomputes bearing and distance for every leg from
// the coordinate deltas, labelled P1-P2, P2-P3 and so on.
func SegmentsFromCoords(coords []domain.PlanarPoint) []domain.SegmentResult {
	if len(coords) < 2 {
		return nil
	}
	out := make([]domain.SegmentResult, 0, len(coords)-1)
	for i := 0; i < len(coords)-1; i++ {
		a, b := coords[i], coords[i+1]
		dx := b.X - a.X
		dy := a.Y - b.Y
		az := AzimuthFromDelta(dx, dy)
		out = append(out, domain.SegmentResult{
			From:     i + 1,
			To:       i + 2,
			Line:     fmt.Sprintf("P%d-P%d", i+1, i+2),
			Azimuth:  az,
			Bearing:  bearing.Format(az),
			Distance: math.Hypot(dx, dy),
		})
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
