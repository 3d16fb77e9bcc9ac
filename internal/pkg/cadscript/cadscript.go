// Package cadscript writes traverses as a CAD command script: one
// polyline per ring, drawn from the origin with relative polar moves.
//
//	_.pline
//	0,0
//	@100<N45d00'E
//	@12.5<S10d30'W
//	(blank line)
package cadscript

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/bearing"
)

// minDistance is the shortest segment worth a polar move.
const minDistance = 1e-6

// FormatDistance prints a distance with at most three decimals and no
// trailing zeros.
func FormatDistance(d float64) string {
	if math.IsNaN(d) || math.IsInf(d, 0) || math.Abs(d) < 1e-9 {
		return "0"
	}
	s := strconv.FormatFloat(d, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}

// FormatBearing is the compact CAD token for a bearing string.
func FormatBearing(b string) string {
	return bearing.CompactToken(b)
}

// Usable drops segments that cannot be drawn: non-finite or zero length,
// or no bearing.
func Usable(segments []domain.ScriptSegment) []domain.ScriptSegment {
	var out []domain.ScriptSegment
	for _, s := range segments {
		if math.IsNaN(s.Distance) || math.IsInf(s.Distance, 0) || math.Abs(s.Distance) <= minDistance {
			continue
		}
		if strings.TrimSpace(s.Bearing) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Write emits one polyline block per ring. Rings with no usable segments
// are skipped. It reports whether anything was written.
func Write(w io.Writer, rings [][]domain.ScriptSegment) (bool, error) {
	bw := bufio.NewWriter(w)
	wrote := false
	for _, ring := range rings {
		segs := Usable(ring)
		if len(segs) == 0 {
			continue
		}
		wrote = true
		if _, err := bw.WriteString("_.pline\n0,0\n"); err != nil {
			return wrote, fmt.Errorf("write script: %w", err)
		}
		for _, s := range segs {
			if _, err := fmt.Fprintf(bw, "@%s<%s\n", FormatDistance(s.Distance), FormatBearing(s.Bearing)); err != nil {
				return wrote, fmt.Errorf("write script: %w", err)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return wrote, fmt.Errorf("write script: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return wrote, fmt.Errorf("flush script: %w", err)
	}
	return wrote, nil
}

// FromTraverse returns the script segments of a traverse. With autoClose
// set, a non-trivial closure becomes a final segment.
func FromTraverse(res *domain.TraverseResult, autoClose bool) []domain.ScriptSegment {
	if res == nil {
		return nil
	}
	out := make([]domain.ScriptSegment, 0, len(res.Segments)+1)
	for _, s := range res.Segments {
		out = append(out, domain.ScriptSegment{Distance: s.Distance, Bearing: s.Bearing})
	}
	if autoClose && res.Closure.Distance > minDistance {
		out = append(out, domain.ScriptSegment{
			Distance: res.Closure.Distance,
			Bearing:  bearing.Format(res.Closure.Azimuth),
		})
	}
	return out
}

// FromLayer returns the script segments of an imported layer.
func FromLayer(l *domain.Layer, autoClose bool) []domain.ScriptSegment {
	if l == nil {
		return nil
	}
	legs := l.Legs()
	out := make([]domain.ScriptSegment, 0, len(legs)+1)
	for _, s := range legs {
		out = append(out, domain.ScriptSegment{Distance: s.DistanceMeters, Bearing: s.Bearing})
	}
	if c := l.Gap(); autoClose && c != nil && c.DistanceMeters > minDistance {
		out = append(out, domain.ScriptSegment{Distance: c.DistanceMeters, Bearing: c.Bearing})
	}
	return out
}
