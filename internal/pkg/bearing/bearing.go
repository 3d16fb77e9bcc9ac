// Package bearing converts between quadrant bearings ("N 45° 30' E") and
// azimuths in degrees clockwise from north.
//
// Azimuth to bearing is a canonicalization, not an inverse: azimuths that
// fall exactly on a quadrant boundary map to a fixed hemisphere pair, and
// minutes are rounded to whole numbers.
package bearing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

var (
	bearingRe = regexp.MustCompile(`(?i)^\s*([NS])\s*([0-9]+(?:\.[0-9]+)?)°?\s*(?:([0-9]+(?:\.[0-9]+)?)['′]?)?\s*([EW])\s*$`)
	fieldsRe  = regexp.MustCompile(`(?i)^([NS])\s*([0-9]+)°?\s*([0-9]+)?['′]?\s*([EW])$`)
)

// Quadrant is the hemisphere/degree/minute breakdown of an azimuth.
type Quadrant struct {
	NS      string `json:"ns"`
	Degrees int    `json:"degrees"`
	Minutes int    `json:"minutes"`
	EW      string `json:"ew"`
}

func (q Quadrant) String() string {
	return fmt.Sprintf("%s %d° %d' %s", q.NS, q.Degrees, q.Minutes, q.EW)
}

// Parse converts a quadrant bearing string to an azimuth in [0, 360).
func Parse(text string) (float64, error) {
	m := bearingRe.FindStringSubmatch(text)
	if m == nil {
		return 0, &domain.ParseError{Fragment: text, Reason: "malformed bearing"}
	}
	deg, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, &domain.ParseError{Fragment: m[2], Reason: "bad degrees"}
	}
	var min float64
	if m[3] != "" {
		if strings.Contains(m[2], ".") {
			return 0, &domain.ParseError{Fragment: text, Reason: "fractional degrees with minutes"}
		}
		if min, err = strconv.ParseFloat(m[3], 64); err != nil {
			return 0, &domain.ParseError{Fragment: m[3], Reason: "bad minutes"}
		}
	}
	if min >= 60 {
		return 0, &domain.ParseError{Fragment: text, Reason: "minutes out of range"}
	}
	if deg+min/60 > 90 {
		return 0, &domain.ParseError{Fragment: text, Reason: "angle exceeds 90 degrees"}
	}
	return FromFields(m[1], deg, min, m[4])
}

// FromFields applies the quadrant rule to a hemisphere pair and angle.
// Ranges are not checked here.
func FromFields(ns string, degrees, minutes float64, ew string) (float64, error) {
	theta := degrees + minutes/60
	var az float64
	switch strings.ToUpper(ns) + strings.ToUpper(ew) {
	case "NE":
		az = theta
	case "NW":
		az = 360 - theta
	case "SE":
		az = 180 - theta
	case "SW":
		az = 180 + theta
	default:
		return 0, domain.ErrInvalidHemisphere
	}
	return Normalize(az), nil
}

// Normalize wraps an azimuth in degrees into [0, 360).
func Normalize(az float64) float64 {
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		az = 0
	}
	return az
}

// ToQuadrant canonicalizes an azimuth. Boundaries resolve as
// [0,90] N/E, (90,180] S/E, (180,270] S/W, (270,360) N/W.
func ToQuadrant(az float64) Quadrant {
	az = Normalize(az)
	var q Quadrant
	var theta float64
	switch {
	case az <= 90:
		q.NS, q.EW, theta = "N", "E", az
	case az <= 180:
		q.NS, q.EW, theta = "S", "E", 180-az
	case az <= 270:
		q.NS, q.EW, theta = "S", "W", az-180
	default:
		q.NS, q.EW, theta = "N", "W", 360-az
	}
	deg := math.Floor(theta + 1e-8)
	min := math.Round((theta - deg) * 60)
	if min >= 60 {
		deg++
		min = 0
	}
	if min < 0 {
		min = 0
	}
	q.Degrees = int(deg)
	q.Minutes = int(min)
	return q
}

// Format returns the canonical display string for an azimuth.
func Format(az float64) string {
	return ToQuadrant(az).String()
}

// ParseFields is the strict parser used to put a canonical bearing back
// into input fields: integer degrees and minutes only.
func ParseFields(text string) (Quadrant, error) {
	m := fieldsRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Quadrant{}, &domain.ParseError{Fragment: text, Reason: "malformed bearing fields"}
	}
	q := Quadrant{NS: strings.ToUpper(m[1]), EW: strings.ToUpper(m[4])}
	q.Degrees, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		q.Minutes, _ = strconv.Atoi(m[3])
	}
	if q.Degrees > 90 {
		return Quadrant{}, &domain.ParseError{Fragment: text, Reason: "degrees out of range"}
	}
	if q.Minutes >= 60 {
		return Quadrant{}, &domain.ParseError{Fragment: text, Reason: "minutes out of range"}
	}
	if q.Degrees == 90 {
		q.Minutes = 0
	}
	return q, nil
}

// Input turns a quadrant and distance back into a segment record.
func (q Quadrant) Input(length float64) domain.SegmentInput {
	return domain.SegmentInput{
		NS:      q.NS,
		Degrees: float64(q.Degrees),
		Minutes: float64(q.Minutes),
		EW:      q.EW,
		Length:  length,
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CompactToken rewrites a bearing into the compact form used by CAD polar
// input, e.g. "N 45° 5' E" becomes "N45d05'E". Text that is not a whole
// degree/minute bearing is returned with its whitespace removed.
func CompactToken(text string) string {
	clean := strings.TrimSpace(text)
	m := fieldsRe.FindStringSubmatch(clean)
	if m == nil {
		return whitespaceRe.ReplaceAllString(clean, "")
	}
	deg, _ := strconv.Atoi(m[2])
	var min int
	if m[3] != "" {
		min, _ = strconv.Atoi(m[3])
	}
	return fmt.Sprintf("%s%dd%02d'%s", strings.ToUpper(m[1]), deg, min, strings.ToUpper(m[4]))
}
