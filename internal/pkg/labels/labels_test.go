package labels_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/pkg/labels"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func dist(a, b domain.PlanarPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestFitView(t *testing.T) {
	sq := []domain.PlanarPoint{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	v := labels.FitView(sq, 500, 500, 20)
	if diff := cmp.Diff(labels.View{Scale: 4.6, TX: 20, TY: 20}, v, approx); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}
	got := v.Apply(sq)
	want := []domain.PlanarPoint{{X: 20, Y: 20}, {X: 480, Y: 20}, {X: 480, Y: 480}, {X: 20, Y: 480}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("applied mismatch (-want +got):\n%s", diff)
	}
}

func TestFitView_CentresShortAxis(t *testing.T) {
	wide := []domain.PlanarPoint{{X: -50, Y: 0}, {X: 50, Y: 10}}
	v := labels.FitView(wide, 500, 500, 20)
	got := v.Apply(wide)
	// Width fills the padded viewport; height is centred.
	if math.Abs(got[0].X-20) > 1e-9 || math.Abs(got[1].X-480) > 1e-9 {
		t.Errorf("x extent not fitted: %+v", got)
	}
	if mid := (got[0].Y + got[1].Y) / 2; math.Abs(mid-250) > 1e-9 {
		t.Errorf("y extent not centred, mid %v", mid)
	}
}

func TestFitView_Degenerate(t *testing.T) {
	if v := labels.FitView(nil, 500, 500, 20); v != (labels.View{Scale: 1, TX: 20, TY: 20}) {
		t.Errorf("expected identity with padding, got %+v", v)
	}
	v := labels.FitView([]domain.PlanarPoint{{X: 5, Y: 5}}, 500, 500, 20)
	if math.IsInf(v.Scale, 0) || math.IsNaN(v.Scale) {
		t.Fatalf("single point produced scale %v", v.Scale)
	}
	p := v.ApplyPoint(domain.PlanarPoint{X: 5, Y: 5})
	if diff := cmp.Diff(domain.PlanarPoint{X: 20, Y: 20}, p, approx); diff != "" {
		t.Errorf("single point (-want +got):\n%s", diff)
	}
}

func TestPlace_OutwardFromCentroid(t *testing.T) {
	pts := []domain.PlanarPoint{{X: 100, Y: 100}, {X: 400, Y: 100}, {X: 400, Y: 400}, {X: 100, Y: 400}}
	got := labels.Place(pts, domain.PlanarPoint{X: 250, Y: 250}, labels.DefaultOptions())
	if len(got) != 4 {
		t.Fatalf("expected 4 labels, got %d", len(got))
	}
	off := 26 / math.Sqrt2
	want := domain.PlanarPoint{X: 100 - off, Y: 100 - off}
	if diff := cmp.Diff(want, got[0].Position, approx); diff != "" {
		t.Errorf("first label (-want +got):\n%s", diff)
	}
	for i, l := range got {
		if l.Fallback {
			t.Errorf("label %d fell back", i)
		}
		if l.Text != []string{"P1", "P2", "P3", "P4"}[i] || l.Index != i+1 {
			t.Errorf("label %d = %q (%d)", i, l.Text, l.Index)
		}
		if math.Abs(dist(l.Position, l.Anchor)-26) > 1e-9 {
			t.Errorf("label %d not on the radius", i)
		}
	}
}

func TestPlace_DegenerateDirectionPointsUp(t *testing.T) {
	c := domain.PlanarPoint{X: 250, Y: 250}
	got := labels.Place([]domain.PlanarPoint{c}, c, labels.DefaultOptions())
	if diff := cmp.Diff(domain.PlanarPoint{X: 250, Y: 224}, got[0].Position, approx); diff != "" {
		t.Errorf("label (-want +got):\n%s", diff)
	}
}

func TestPlace_Spacing(t *testing.T) {
	p := domain.PlanarPoint{X: 250, Y: 100}
	got := labels.Place([]domain.PlanarPoint{p, p}, domain.PlanarPoint{X: 250, Y: 250}, labels.DefaultOptions())
	if d := dist(got[0].Position, got[1].Position); d < 20 {
		t.Errorf("labels %v apart, want >= 20", d)
	}
	// ±15°, ±30° and ±45° are too close; +60° is the first to clear.
	angle := -math.Pi/2 + 4*math.Pi/12
	want := domain.PlanarPoint{X: 250 + 26*math.Cos(angle), Y: 100 + 26*math.Sin(angle)}
	if diff := cmp.Diff(want, got[1].Position, approx); diff != "" {
		t.Errorf("second label (-want +got):\n%s", diff)
	}
	if got[1].Fallback {
		t.Error("second label should not fall back")
	}
}

func TestPlace_FallbackClamps(t *testing.T) {
	opts := labels.DefaultOptions()
	opts.Width, opts.Height = 40, 40
	got := labels.Place([]domain.PlanarPoint{{X: 20, Y: 20}}, domain.PlanarPoint{}, opts)
	if !got[0].Fallback {
		t.Fatal("expected fallback placement")
	}
	if diff := cmp.Diff(domain.PlanarPoint{X: 22, Y: 22}, got[0].Position, approx); diff != "" {
		t.Errorf("clamped label (-want +got):\n%s", diff)
	}
}

func TestPlace_ContinuesNumbering(t *testing.T) {
	opts := labels.DefaultOptions()
	opts.StartIndex = 4
	got := labels.Place([]domain.PlanarPoint{{X: 100, Y: 100}, {X: 300, Y: 300}}, domain.PlanarPoint{X: 200, Y: 200}, opts)
	if got[0].Text != "P5" || got[1].Text != "P6" {
		t.Errorf("unexpected labels %q %q", got[0].Text, got[1].Text)
	}
	if labels.Place(nil, domain.PlanarPoint{}, opts) != nil {
		t.Error("expected nil for no points")
	}
}
