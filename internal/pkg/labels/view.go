package labels

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// View is a uniform scale plus translation from survey coordinates into a
// viewport.
type View struct {
	Scale float64 `json:"scale"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
}

// FitView scales points to fill a width x height viewport minus padding on
// every side, centred on both axes. A zero extent on either axis is treated
// as 1 so single points and straight lines still fit.
func FitView(points []domain.PlanarPoint, width, height, padding float64) View {
	identity := View{Scale: 1, TX: padding, TY: padding}
	if len(points) == 0 {
		return identity
	}
	rp := make([]r2.Point, len(points))
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return identity
		}
		rp[i] = r2.Point{X: p.X, Y: p.Y}
	}
	bounds := r2.RectFromPoints(rp...)

	w, h := bounds.X.Length(), bounds.Y.Length()
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	scale := math.Min((width-2*padding)/w, (height-2*padding)/h)
	return View{
		Scale: scale,
		TX:    -bounds.X.Lo*scale + (width-w*scale)/2,
		TY:    -bounds.Y.Lo*scale + (height-h*scale)/2,
	}
}

// ApplyPoint maps a single point into the viewport.
func (v View) ApplyPoint(p domain.PlanarPoint) domain.PlanarPoint {
	return domain.PlanarPoint{X: p.X*v.Scale + v.TX, Y: p.Y*v.Scale + v.TY}
}

// Apply maps points into the viewport.
func (v View) Apply(points []domain.PlanarPoint) []domain.PlanarPoint {
	out := make([]domain.PlanarPoint, len(points))
	for i, p := range points {
		out[i] = v.ApplyPoint(p)
	}
	return out
}
