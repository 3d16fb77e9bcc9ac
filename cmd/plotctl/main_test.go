package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

const squareJSON = `[
  {"ns": "N", "degrees": 0, "minutes": 0, "ew": "E", "length": 100},
  {"bearing": "N 90 E", "length": 100},
  {"azimuth": 180, "length": 100},
  {"ns": "S", "degrees": 90, "minutes": 0, "ew": "W", "length": 100}
]`

const lotKML = `<kml xmlns="http://www.opengis.net/kml/2.2"><Document><Placemark><Polygon>
<outerBoundaryIs><LinearRing><coordinates>
-122.1,37.1 -122.1,37.101 -122.099,37.101 -122.099,37.1 -122.1,37.1
</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Traverse(t *testing.T) {
	path := writeFile(t, "square.json", squareJSON)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"traverse", path}, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[Manual traverse]", "P1-P2", "Area: 10000.00 sqm", "Perfect closure"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestRun_TraverseInvalid(t *testing.T) {
	path := writeFile(t, "bad.json", `[{"ns": "N", "degrees": 10, "minutes": 75, "ew": "E", "length": 5}]`)
	err := run(context.Background(), []string{"traverse", "-json", path}, &bytes.Buffer{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRun_KML(t *testing.T) {
	path := writeFile(t, "lot.kml", lotKML)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"kml", path}, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Imported traverse - lot.kml", "G1-1", "Layers: 1", "Points: 4", "Geodesic area:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestRun_Script(t *testing.T) {
	path := writeFile(t, "square.json", squareJSON)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"script", path}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "_.pline\n0,0\n@100<N0d00'E\n") {
		t.Errorf("unexpected script:\n%s", out.String())
	}

	kml := writeFile(t, "lot.kml", lotKML)
	target := filepath.Join(t.TempDir(), "lot.scr")
	if err := run(context.Background(), []string{"script", "-o", target, kml}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "@") != 4 {
		t.Errorf("expected three legs plus the closure, got:\n%s", data)
	}
}

func TestRun_Usage(t *testing.T) {
	if err := run(context.Background(), nil, &bytes.Buffer{}); err == nil {
		t.Error("expected usage error")
	}
	if err := run(context.Background(), []string{"render", "x"}, &bytes.Buffer{}); err == nil {
		t.Error("expected unknown command error")
	}
	if err := run(context.Background(), []string{"traverse"}, &bytes.Buffer{}); err == nil {
		t.Error("expected missing file error")
	}
}
