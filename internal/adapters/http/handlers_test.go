package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/surveyplot/internal/adapters/http"
	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
)

// ---- Mocks ----

type mockPlotRepo struct {
	createFn  func(ctx context.Context, plot *domain.Plot) error
	getByIDFn func(ctx context.Context, id string) (*domain.Plot, error)
	listFn    func(ctx context.Context, limit, offset int) ([]domain.Plot, error)
	countFn   func(ctx context.Context) (int, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockPlotRepo) Create(ctx context.Context, plot *domain.Plot) error {
	if m.createFn != nil {
		return m.createFn(ctx, plot)
	}
	plot.ID = "p-1"
	plot.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return nil
}
func (m *mockPlotRepo) GetByID(ctx context.Context, id string) (*domain.Plot, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrPlotNotFound
}
func (m *mockPlotRepo) List(ctx context.Context, limit, offset int) ([]domain.Plot, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}
func (m *mockPlotRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}
func (m *mockPlotRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockPublisher struct {
	requested []*domain.ImportRequest
}

func (m *mockPublisher) PublishPlotSaved(ctx context.Context, e *domain.PlotEvent) error   { return nil }
func (m *mockPublisher) PublishPlotDeleted(ctx context.Context, e *domain.PlotEvent) error { return nil }
func (m *mockPublisher) PublishImportRequested(ctx context.Context, r *domain.ImportRequest) error {
	m.requested = append(m.requested, r)
	return nil
}
func (m *mockPublisher) PublishImportCompleted(ctx context.Context, e *domain.ImportEvent) error {
	return nil
}

// ---- Test helpers ----

const squareBody = `{"segments":[
	{"ns":"N","degrees":0,"minutes":0,"ew":"E","length":100},
	{"ns":"N","degrees":90,"minutes":0,"ew":"E","length":100},
	{"ns":"S","degrees":0,"minutes":0,"ew":"E","length":100},
	{"ns":"S","degrees":90,"minutes":0,"ew":"W","length":100}]}`

const lotKML = `<kml xmlns="http://www.opengis.net/kml/2.2"><Document><Placemark><Polygon>
<outerBoundaryIs><LinearRing><coordinates>
-122.1,37.1 -122.1,37.101 -122.099,37.101 -122.099,37.1 -122.1,37.1
</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`

const lotRings = `[[{"lat":37.1,"lon":-122.1},{"lat":37.101,"lon":-122.1},{"lat":37.101,"lon":-122.099},{"lat":37.1,"lon":-122.099}]]`

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	survey := usecases.NewSurveyService(nil, usecases.DefaultSurveyOptions())
	d := &handler.Dependencies{
		Survey: survey,
		Plots:  usecases.NewPlotService(&mockPlotRepo{}, nil, survey),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withPlots(repo *mockPlotRepo, pub *mockPublisher) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		if pub == nil {
			d.Plots = usecases.NewPlotService(repo, nil, d.Survey)
			return
		}
		d.Plots = usecases.NewPlotService(repo, pub, d.Survey)
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) *httptestResponse {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return &httptestResponse{Status: resp.StatusCode, Header: resp.Header.Get, Body: b}
}

type httptestResponse struct {
	Status int
	Header func(string) string
	Body   []byte
}

func (r *httptestResponse) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode %s: %v", r.Body, err)
	}
}

// ---- Traverse ----

func TestTraverse_Success(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/traverses", squareBody)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}

	var result struct {
		Area    float64 `json:"area"`
		Closure struct {
			Ratio     json.RawMessage `json:"ratio"`
			RatioText string          `json:"ratio_text"`
			Bearing   string          `json:"bearing"`
		} `json:"closure"`
		Table     []domain.TableRow       `json:"table"`
		Labels    []domain.LabelPlacement `json:"labels"`
		AreaLabel string                  `json:"area_label"`
	}
	resp.decode(t, &result)
	if result.Area < 9999.999 || result.Area > 10000.001 {
		t.Errorf("expected area 10000, got %v", result.Area)
	}
	if string(result.Closure.Ratio) != `"Infinity"` || result.Closure.Bearing != "Perfect closure" {
		t.Errorf("unexpected closure %+v", result.Closure)
	}
	if len(result.Labels) != 5 || result.AreaLabel != "Area: 10000.00 sqm" {
		t.Errorf("unexpected labels %d / %q", len(result.Labels), result.AreaLabel)
	}
	if len(result.Table) != 5 || result.Table[0].Label != "Manual traverse" {
		t.Errorf("unexpected table %+v", result.Table)
	}
}

func TestTraverse_ValidationError(t *testing.T) {
	app := setupApp(makeDeps())
	body := `{"segments":[{"ns":"N","ew":"E","length":10},{"ns":"N","degrees":10,"minutes":75,"ew":"E","length":10}]}`
	resp := doJSON(t, app, "POST", "/v1/traverses", body)
	if resp.Status != 422 {
		t.Fatalf("expected 422, got %d", resp.Status)
	}
	var apiErr struct {
		Code    string `json:"code"`
		Details struct {
			Kind string `json:"kind"`
			Line int    `json:"line"`
		} `json:"details"`
	}
	resp.decode(t, &apiErr)
	if apiErr.Code != "invalid_segment" || apiErr.Details.Kind != "minutes" || apiErr.Details.Line != 2 {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestTraverse_Empty(t *testing.T) {
	app := setupApp(makeDeps())
	if resp := doJSON(t, app, "POST", "/v1/traverses", `{"segments":[]}`); resp.Status != 422 {
		t.Errorf("expected 422 for empty input, got %d", resp.Status)
	}
	if resp := doJSON(t, app, "POST", "/v1/traverses", `{"segments":[],"auto":true}`); resp.Status != 204 {
		t.Errorf("expected 204 for suppressed background recompute, got %d", resp.Status)
	}
}

func TestLegacyPlotAlias_Deprecated(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/plot", squareBody)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if resp.Header("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if !strings.Contains(resp.Header("Link"), "/v1/traverses") {
		t.Errorf("expected successor link, got %q", resp.Header("Link"))
	}
}

// ---- Bearings & geodesic ----

func TestFormatBearing(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "GET", "/v1/bearings/format?azimuth=225", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var info usecases.BearingInfo
	resp.decode(t, &info)
	if info.Bearing != "S 45° 0' W" || info.Compact != "S45d00'W" {
		t.Errorf("unexpected bearing %+v", info)
	}
	if cc := resp.Header("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
	if resp.Header("ETag") == "" {
		t.Error("expected ETag")
	}

	if resp := doJSON(t, app, "GET", "/v1/bearings/format", ""); resp.Status != 400 {
		t.Errorf("expected 400 without azimuth, got %d", resp.Status)
	}
	if resp := doJSON(t, app, "GET", "/v1/bearings/format?azimuth=abc", ""); resp.Status != 400 {
		t.Errorf("expected 400 for bad azimuth, got %d", resp.Status)
	}
}

func TestParseBearing(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/bearings/parse", `{"bearing":"s 10 30 w"}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	var info usecases.BearingInfo
	resp.decode(t, &info)
	if info.Azimuth != 190.5 || info.Bearing != "S 10° 30' W" {
		t.Errorf("unexpected bearing %+v", info)
	}

	resp = doJSON(t, app, "POST", "/v1/bearings/parse", `{"bearing":"E 10 N"}`)
	var apiErr handler.APIError
	resp.decode(t, &apiErr)
	if resp.Status != 400 || apiErr.Code != "parse_error" {
		t.Errorf("expected parse_error, got %d %+v", resp.Status, apiErr)
	}
}

func TestGeodesic(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/geodesic", `{"from":{"lat":0,"lon":0},"to":{"lat":1,"lon":0}}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var st struct {
		Distance float64 `json:"distance_meters"`
		Bearing  string  `json:"bearing"`
	}
	resp.decode(t, &st)
	if st.Distance < 111194 || st.Distance > 111196 || st.Bearing != "N 0° 0' E" {
		t.Errorf("unexpected stats %+v", st)
	}

	if resp := doJSON(t, app, "POST", "/v1/geodesic", `{"from":{"lat":0,"lon":0}}`); resp.Status != 400 {
		t.Errorf("expected 400 without destination, got %d", resp.Status)
	}
}

// ---- Imports & exports ----

func TestImportKML(t *testing.T) {
	app := setupApp(makeDeps())
	req := httptest.NewRequest("POST", "/v1/imports/kml?source=lot.kml", strings.NewReader(lotKML))
	req.Header.Set("Content-Type", "application/vnd.google-earth.kml+xml")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Workspace struct {
			Layers              []json.RawMessage `json:"layers"`
			SourceName          string            `json:"source_name"`
			ManualMirrorsImport bool              `json:"manual_mirrors_import"`
		} `json:"workspace"`
		Inputs []domain.SegmentInput `json:"inputs"`
		Totals usecases.Totals       `json:"totals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Workspace.Layers) != 1 || result.Workspace.SourceName != "lot.kml" || !result.Workspace.ManualMirrorsImport {
		t.Errorf("unexpected workspace %+v", result.Workspace)
	}
	if len(result.Inputs) != 4 || result.Totals.Points != 4 {
		t.Errorf("unexpected inputs %d / totals %+v", len(result.Inputs), result.Totals)
	}
}

func TestImportKML_Invalid(t *testing.T) {
	app := setupApp(makeDeps())
	req := httptest.NewRequest("POST", "/v1/imports/kml", strings.NewReader("<kml><Document></Document></kml>"))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 422 {
		t.Errorf("expected 422 for KML without coordinates, got %d", resp.StatusCode)
	}
}

func TestImportKML_Async(t *testing.T) {
	pub := &mockPublisher{}
	app := setupApp(makeDeps(withPlots(&mockPlotRepo{}, pub)))
	req := httptest.NewRequest("POST", "/v1/imports/kml?async=true&source=lot.kml", strings.NewReader(lotKML))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(pub.requested) != 1 || pub.requested[0].SaveAs != "lot.kml" {
		t.Errorf("expected queued import, got %+v", pub.requested)
	}
}

func TestMirrorLayer(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/imports/mirror", `{"rings":`+lotRings+`,"layer":5}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Segments []domain.SegmentInput `json:"segments"`
		Mirrored bool                  `json:"manual_mirrors_import"`
	}
	resp.decode(t, &result)
	if len(result.Segments) != 3 || !result.Mirrored {
		t.Errorf("unexpected mirror %+v", result)
	}
}

func TestRender(t *testing.T) {
	app := setupApp(makeDeps())
	body := `{"segments":` + strings.TrimPrefix(strings.TrimSuffix(squareBody, "}"), `{"segments":`) +
		`,"rings":` + lotRings + `,"source_name":"lot.kml"}`
	resp := doJSON(t, app, "POST", "/v1/plots/render", body)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	var out usecases.RenderResult
	resp.decode(t, &out)
	if len(out.Rings) != 2 || out.Rings[1].Labels[0].Text != "P6" {
		t.Errorf("unexpected render %+v", out.Rings)
	}
}

func TestExportScript(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/exports/script", squareBody)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if !strings.HasPrefix(string(resp.Body), "_.pline\n0,0\n@100<") {
		t.Errorf("unexpected script %q", resp.Body)
	}
	if !strings.Contains(resp.Header("Content-Disposition"), "traverse.scr") {
		t.Errorf("expected attachment, got %q", resp.Header("Content-Disposition"))
	}

	if resp := doJSON(t, app, "POST", "/v1/exports/script", `{}`); resp.Status != 422 {
		t.Errorf("expected 422 with nothing to export, got %d", resp.Status)
	}
}

func TestExportGeoJSON(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/v1/exports/geojson", `{"rings":`+lotRings+`}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if ct := resp.Header("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	resp.decode(t, &fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Errorf("unexpected collection %+v", fc)
	}
}

// ---- Saved plots ----

func TestCreatePlot(t *testing.T) {
	app := setupApp(makeDeps())
	body := `{"name":"Lot 7","rings":` + lotRings + `,"source_name":"lot.kml"}`
	resp := doJSON(t, app, "POST", "/v1/plots", body)
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.Status, resp.Body)
	}
	if resp.Header("Location") != "/v1/plots/p-1" {
		t.Errorf("unexpected Location %q", resp.Header("Location"))
	}

	if resp := doJSON(t, app, "POST", "/v1/plots", `{"rings":`+lotRings+`}`); resp.Status != 400 {
		t.Errorf("expected 400 without a name, got %d", resp.Status)
	}
}

func TestListPlots(t *testing.T) {
	repo := &mockPlotRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]domain.Plot, error) {
			if limit != 2 || offset != 2 {
				t.Errorf("expected limit 2 offset 2, got %d %d", limit, offset)
			}
			return []domain.Plot{
				{ID: "c", Name: "C", Segments: []domain.SegmentInput{{}}},
				{ID: "d", Name: "D", ImportedRings: [][]domain.GeoPoint{{{}, {}}}},
			}, nil
		},
		countFn: func(ctx context.Context) (int, error) { return 5, nil },
	}
	app := setupApp(makeDeps(withPlots(repo, nil)))

	resp := doJSON(t, app, "GET", "/v1/plots?offset=2&limit=2", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data []struct {
			ID   string   `json:"id"`
			Tags []string `json:"tags"`
		} `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	resp.decode(t, &result)
	if result.Pagination.Total != 5 || len(result.Data) != 2 {
		t.Errorf("unexpected page %+v", result)
	}
	if result.Data[0].Tags[0] != "manual" || result.Data[1].Tags[0] != "imported" {
		t.Errorf("unexpected tags %+v", result.Data)
	}
	if link := resp.Header("Link"); !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected prev and next links, got %q", link)
	}
}

func TestGetPlot(t *testing.T) {
	repo := &mockPlotRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Plot, error) {
			if id != "abc" {
				return nil, domain.ErrPlotNotFound
			}
			var rings [][]domain.GeoPoint
			if err := json.Unmarshal([]byte(lotRings), &rings); err != nil {
				t.Fatal(err)
			}
			return &domain.Plot{ID: id, Name: "Lot", ImportedRings: rings}, nil
		},
	}
	app := setupApp(makeDeps(withPlots(repo, nil)))

	resp := doJSON(t, app, "GET", "/v1/plots/abc", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Totals usecases.Totals `json:"totals"`
	}
	resp.decode(t, &result)
	if result.Totals.Layers != 1 || result.Totals.GeodesicArea <= 0 {
		t.Errorf("unexpected totals %+v", result.Totals)
	}

	if resp := doJSON(t, app, "GET", "/v1/plots/missing", ""); resp.Status != 404 {
		t.Errorf("expected 404, got %d", resp.Status)
	}
}

func TestDeletePlot(t *testing.T) {
	app := setupApp(makeDeps())
	if resp := doJSON(t, app, "DELETE", "/v1/plots/abc", ""); resp.Status != 204 {
		t.Errorf("expected 204, got %d", resp.Status)
	}
}

func TestPlots_NoStorage(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Plots = nil }))
	if resp := doJSON(t, app, "GET", "/v1/plots", ""); resp.Status != 503 {
		t.Errorf("expected 503, got %d", resp.Status)
	}
}

// ---- GraphQL ----

func TestGraphQL_FormatBearing(t *testing.T) {
	app := setupApp(makeDeps())
	resp := doJSON(t, app, "POST", "/graphql", `{"query":"{ formatBearing(azimuth: 315.5) { bearing compact quadrant { ns degrees minutes ew } } }"}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data struct {
			FormatBearing struct {
				Bearing  string `json:"bearing"`
				Compact  string `json:"compact"`
				Quadrant struct {
					Degrees int `json:"degrees"`
				} `json:"quadrant"`
			} `json:"formatBearing"`
		} `json:"data"`
	}
	resp.decode(t, &result)
	fb := result.Data.FormatBearing
	if fb.Bearing != "N 44° 30' W" || fb.Compact != "N44d30'W" || fb.Quadrant.Degrees != 44 {
		t.Errorf("unexpected result %s", resp.Body)
	}
}

func TestGraphQL_Plots(t *testing.T) {
	repo := &mockPlotRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]domain.Plot, error) {
			return []domain.Plot{{ID: "a", Name: "A", Segments: []domain.SegmentInput{{}, {}}}}, nil
		},
	}
	app := setupApp(makeDeps(withPlots(repo, nil)))
	resp := doJSON(t, app, "POST", "/graphql", `{"query":"{ plots(limit: 5) { id name segment_count tags } }"}`)
	if !strings.Contains(string(resp.Body), `"segment_count":2`) || !strings.Contains(string(resp.Body), `"manual"`) {
		t.Errorf("unexpected result %s", resp.Body)
	}
}

// ---- Health ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())
	if resp := doJSON(t, app, "GET", "/v1/health", ""); resp.Status != 200 {
		t.Errorf("expected 200, got %d", resp.Status)
	}
}

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps())
	if resp := doJSON(t, app, "GET", "/v1/ready", ""); resp.Status != 503 {
		t.Errorf("expected 503 without database, got %d", resp.Status)
	}
}
