package domain

import (
	"encoding/json"
	"math"
	"sync"
	"time"
)

// SegmentInput is one traverse record as entered by a user or caller.
// Either Bearing (a quadrant bearing string), Azimuth, or the NS/Degrees/
// Minutes/EW fields describe the direction.
type SegmentInput struct {
	NS      string   `json:"ns,omitempty"`
	Degrees float64  `json:"degrees"`
	Minutes float64  `json:"minutes"`
	EW      string   `json:"ew,omitempty"`
	Bearing string   `json:"bearing,omitempty"`
	Azimuth *float64 `json:"azimuth,omitempty"`
	Length  float64  `json:"length"`
}

// SegmentResult is one row of the traverse table, recomputed from the
// coordinate deltas rather than copied from the input.
type SegmentResult struct {
	From     int     `json:"from"`
	To       int     `json:"to"`
	Line     string  `json:"line"`
	Azimuth  float64 `json:"azimuth"`
	Bearing  string  `json:"bearing"`
	Distance float64 `json:"distance"`
}

// Ratio is a closure precision ratio. A perfect closure is +Inf, which is
// encoded as the JSON string "Infinity".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(r), 1) {
		return []byte(`"Infinity"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == `"Infinity"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// ClosureResult describes the misclosure between the last and first vertex.
type ClosureResult struct {
	Distance  float64 `json:"distance"`
	Azimuth   float64 `json:"azimuth"`
	Bearing   string  `json:"bearing"`
	Ratio     Ratio   `json:"ratio"`
	RatioText string  `json:"ratio_text"`
	Perfect   bool    `json:"perfect"`
	Warning   bool    `json:"warning"`
}

// TraverseResult is the full derived result of a traverse build.
type TraverseResult struct {
	Coords        []PlanarPoint   `json:"coords"`
	Segments      []SegmentResult `json:"segments"`
	Area          float64         `json:"area"`
	TotalDistance float64         `json:"total_distance"`
	Closure       ClosureResult   `json:"closure"`
}

// GeodesicSegment is a great-circle leg between two geographic vertices.
type GeodesicSegment struct {
	Index          int      `json:"index"`
	From           int      `json:"from"`
	To             int      `json:"to"`
	DistanceMeters float64  `json:"distance_meters"`
	Azimuth        float64  `json:"azimuth"`
	Bearing        string   `json:"bearing"`
	FromCoord      GeoPoint `json:"from_coord"`
	ToCoord        GeoPoint `json:"to_coord"`
	IsClosure      bool     `json:"is_closure,omitempty"`
}

// Layer is an imported ring with its derived data. The geodesic area is
// computed on first use and cached; a new ring means a new Layer.
type Layer struct {
	GeoCoords        []GeoPoint        `json:"geo_coords"`
	ProjectedCoords  []PlanarPoint     `json:"projected_coords"`
	GeodesicSegments []GeodesicSegment `json:"geodesic_segments"`
	ClosureSegment   *GeodesicSegment  `json:"closure_segment,omitempty"`
	// Closed is set when the source ring repeated its first vertex, so the
	// closing leg is a real side rather than a misclosure.
	Closed bool `json:"closed,omitempty"`

	areaOnce sync.Once
	area     float64
	areaFn   func([]GeoPoint) float64
}

// NewLayer builds a layer whose area is computed lazily with areaFn.
func NewLayer(geo []GeoPoint, projected []PlanarPoint, segments []GeodesicSegment, closure *GeodesicSegment, areaFn func([]GeoPoint) float64) *Layer {
	return &Layer{
		GeoCoords:        geo,
		ProjectedCoords:  projected,
		GeodesicSegments: segments,
		ClosureSegment:   closure,
		areaFn:           areaFn,
	}
}

// GeodesicArea returns the memoized geodesic area in square meters.
func (l *Layer) GeodesicArea() float64 {
	l.areaOnce.Do(func() {
		if l.areaFn != nil {
			l.area = l.areaFn(l.GeoCoords)
		}
	})
	return l.area
}

func (l *Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		GeoCoords        []GeoPoint        `json:"geo_coords"`
		ProjectedCoords  []PlanarPoint     `json:"projected_coords"`
		GeodesicSegments []GeodesicSegment `json:"geodesic_segments"`
		ClosureSegment   *GeodesicSegment  `json:"closure_segment,omitempty"`
		Closed           bool              `json:"closed,omitempty"`
		GeodesicArea     float64           `json:"geodesic_area"`
	}{l.GeoCoords, l.ProjectedCoords, l.GeodesicSegments, l.ClosureSegment, l.Closed, l.GeodesicArea()})
}

// Legs returns the sides of the layer. For a closed ring the closing leg
// is the last side.
func (l *Layer) Legs() []GeodesicSegment {
	if !l.Closed || l.ClosureSegment == nil {
		return l.GeodesicSegments
	}
	legs := make([]GeodesicSegment, 0, len(l.GeodesicSegments)+1)
	legs = append(legs, l.GeodesicSegments...)
	return append(legs, *l.ClosureSegment)
}

// Gap returns the closing leg when it is a misclosure, nil for closed rings.
func (l *Layer) Gap() *GeodesicSegment {
	if l.Closed {
		return nil
	}
	return l.ClosureSegment
}

// Ring returns the geographic ring as imported, repeating the first vertex
// when the ring was closed.
func (l *Layer) Ring() []GeoPoint {
	if !l.Closed || len(l.GeoCoords) == 0 {
		return l.GeoCoords
	}
	ring := make([]GeoPoint, 0, len(l.GeoCoords)+1)
	ring = append(ring, l.GeoCoords...)
	return append(ring, l.GeoCoords[0])
}

// Workspace is the caller-owned import state: the current layers, where
// they came from, and whether the manual inputs were filled from a layer.
type Workspace struct {
	Layers              []*Layer `json:"layers"`
	SourceName          string   `json:"source_name"`
	ManualMirrorsImport bool     `json:"manual_mirrors_import"`
}

// ScriptSegment is a bearing/distance pair fed to the CAD script writer.
type ScriptSegment struct {
	Distance float64 `json:"distance"`
	Bearing  string  `json:"bearing"`
}

// TableRow is a row of the combined bearing/distance table. Section rows
// only carry a Label.
type TableRow struct {
	Type     string  `json:"type"` // "section" | "row"
	Label    string  `json:"label,omitempty"`
	Line     string  `json:"line,omitempty"`
	Bearing  string  `json:"bearing,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Source   string  `json:"source,omitempty"` // "manual" | "imported"
}

// LabelPlacement is the computed position of a point annotation.
type LabelPlacement struct {
	Index    int         `json:"index"`
	Text     string      `json:"text"`
	Anchor   PlanarPoint `json:"anchor"`
	Position PlanarPoint `json:"position"`
	Fallback bool        `json:"fallback,omitempty"`
}

// Plot is a saved survey: manual inputs plus imported rings in geographic
// coordinates. Projected data is rebuilt when the plot is loaded.
type Plot struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Segments      []SegmentInput `json:"segments,omitempty"`
	ImportedRings [][]GeoPoint   `json:"imported_rings,omitempty"`
	SourceName    string         `json:"source_name,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Tags lists which kinds of data a saved plot holds.
func (p *Plot) Tags() []string {
	var tags []string
	if len(p.Segments) > 0 {
		tags = append(tags, "manual")
	}
	if len(p.ImportedRings) > 0 {
		tags = append(tags, "imported")
	}
	return tags
}

// PlotEvent is published when saved plots change.
type PlotEvent struct {
	Type   string    `json:"type"` // "saved" | "deleted"
	PlotID string    `json:"plot_id"`
	Name   string    `json:"name,omitempty"`
	Time   time.Time `json:"time"`
}

// ImportRequest asks the worker to import a KML document asynchronously.
type ImportRequest struct {
	RequestID  string `json:"request_id"`
	SourceName string `json:"source_name"`
	Document   string `json:"document"`
	SaveAs     string `json:"save_as"`
}

// ImportEvent is published once an asynchronous import has been stored.
type ImportEvent struct {
	RequestID    string    `json:"request_id"`
	PlotID       string    `json:"plot_id"`
	SourceName   string    `json:"source_name"`
	Layers       int       `json:"layers"`
	Points       int       `json:"points"`
	GeodesicArea float64   `json:"geodesic_area"`
	Time         time.Time `json:"time"`
}
