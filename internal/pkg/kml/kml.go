// Package kml extracts boundary rings from KML documents.
package kml

import (
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/geospatial"
)

// duplicateDeg is the tolerance for collapsing repeated vertices.
const duplicateDeg = 1e-9

// ParseCoordinates parses the text of a <coordinates> element: whitespace
// separated "lon,lat[,alt]" tuples. Malformed or non-finite tuples are
// skipped, consecutive duplicates collapse, and an explicit closing vertex
// is dropped so the ring comes back open.
func ParseCoordinates(text string) []domain.GeoPoint {
	return geospatial.NormalizeRing(parseTuples(text))
}

// parseTuples is ParseCoordinates without dropping the closing vertex.
func parseTuples(text string) []domain.GeoPoint {
	var out []domain.GeoPoint
	for _, tok := range strings.Fields(text) {
		parts := strings.Split(tok, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || math.IsInf(lon, 0) || math.IsNaN(lon) {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || math.IsInf(lat, 0) || math.IsNaN(lat) {
			continue
		}
		p := domain.GeoPoint{Lat: lat, Lon: lon}
		if n := len(out); n > 0 && math.Abs(out[n-1].Lat-lat) < duplicateDeg && math.Abs(out[n-1].Lon-lon) < duplicateDeg {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ExtractRings reads a KML document and returns one ring per <coordinates>
// element, in document order. A closed ring keeps its closing vertex so
// layers built from it know the last side is real. Rings with fewer than
// two distinct points are discarded.
func ExtractRings(r io.Reader) ([][]domain.GeoPoint, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var rings [][]domain.GeoPoint
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Reason: "malformed KML document: " + err.Error()}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "coordinates" {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return nil, &domain.ParseError{Fragment: "coordinates", Reason: "malformed KML document: " + err.Error()}
		}
		if ring := parseTuples(text); len(geospatial.NormalizeRing(ring)) >= 2 {
			rings = append(rings, ring)
		}
	}
	if len(rings) == 0 {
		return nil, &domain.EmptyInputError{What: "coordinate data"}
	}
	return rings, nil
}
