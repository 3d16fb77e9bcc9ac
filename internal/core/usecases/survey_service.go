package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/ports"
	"github.com/samirrijal/surveyplot/internal/pkg/bearing"
	"github.com/samirrijal/surveyplot/internal/pkg/geospatial"
	"github.com/samirrijal/surveyplot/internal/pkg/kml"
	"github.com/samirrijal/surveyplot/internal/pkg/labels"
	"github.com/samirrijal/surveyplot/internal/pkg/metrics"
	"github.com/samirrijal/surveyplot/internal/pkg/telemetry"
	"github.com/samirrijal/surveyplot/internal/pkg/traverse"
)

// DefaultSourceName labels imports that arrive without a file name.
const DefaultSourceName = "KML import"

// SurveyOptions tunes the survey engine.
type SurveyOptions struct {
	PrecisionThreshold float64
	Labels             labels.Options
	ViewPadding        float64
	CacheTTLSeconds    int
}

// DefaultSurveyOptions returns the standard engine settings.
func DefaultSurveyOptions() SurveyOptions {
	return SurveyOptions{
		PrecisionThreshold: traverse.DefaultPrecisionThreshold,
		Labels:             labels.DefaultOptions(),
		ViewPadding:        20,
		CacheTTLSeconds:    600,
	}
}

// TraverseRequest is a set of segment records to build. Auto marks a
// background recompute whose empty-input failures may be hidden.
type TraverseRequest struct {
	Segments []domain.SegmentInput `json:"segments"`
	Auto     bool                  `json:"auto,omitempty"`
}

// BearingInfo describes one bearing in every representation.
type BearingInfo struct {
	Azimuth  float64          `json:"azimuth"`
	Bearing  string           `json:"bearing"`
	Compact  string           `json:"compact"`
	Quadrant bearing.Quadrant `json:"quadrant"`
}

// SurveyService runs the survey engine.
type SurveyService struct {
	builder *traverse.Builder
	cache   ports.CacheService
	opts    SurveyOptions
}

// NewSurveyService creates a new SurveyService. cache may be nil.
func NewSurveyService(cache ports.CacheService, opts SurveyOptions) *SurveyService {
	return &SurveyService{
		builder: traverse.NewBuilder(opts.PrecisionThreshold),
		cache:   cache,
		opts:    opts,
	}
}

// Options returns the engine settings in use.
func (s *SurveyService) Options() SurveyOptions { return s.opts }

// ComputeTraverse builds a traverse, reading through the cache.
func (s *SurveyService) ComputeTraverse(ctx context.Context, req TraverseRequest) (*domain.TraverseResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "SurveyService.ComputeTraverse")
	defer span.End()
	span.SetAttributes(attribute.Int(telemetry.AttrSegments, len(req.Segments)))

	cacheKey, keyErr := s.traverseKey(req.Segments)
	if s.cache != nil && keyErr == nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var res domain.TraverseResult
			if err := json.Unmarshal(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("traverse").Inc()
				return &res, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("traverse").Inc()
	}

	res, err := s.builder.Build(req.Segments)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.traverseFailure(ctx, err, req.Auto)
	}

	metrics.TraversesComputed.WithLabelValues("ok").Inc()
	c := res.Closure
	if !c.Perfect {
		metrics.ClosureRatio.Observe(float64(c.Ratio))
		span.SetAttributes(attribute.Float64(telemetry.AttrClosureRatio, float64(c.Ratio)))
	}
	if c.Warning {
		slog.WarnContext(ctx, "poor closure accuracy",
			"ratio", c.RatioText, "threshold", s.builder.PrecisionThreshold, "closure_m", c.Distance)
	}
	slog.DebugContext(ctx, "traverse computed",
		"segments", len(req.Segments), "area", res.Area, "total_distance", res.TotalDistance)

	if s.cache != nil && keyErr == nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.opts.CacheTTLSeconds)
		}
	}
	return res, nil
}

func (s *SurveyService) traverseFailure(ctx context.Context, err error, auto bool) error {
	var verr *domain.ValidationError
	var empty *domain.EmptyInputError
	switch {
	case errors.As(err, &verr):
		metrics.TraversesComputed.WithLabelValues("invalid").Inc()
		metrics.ValidationFailures.WithLabelValues(string(verr.Kind)).Inc()
		slog.DebugContext(ctx, "traverse rejected", "kind", verr.Kind, "line", verr.Line)
	case errors.As(err, &empty):
		metrics.TraversesComputed.WithLabelValues("empty").Inc()
		empty.Suppressible = auto
	}
	return err
}

// traverseKey hashes the canonical request. Inputs that cannot be encoded
// (NaN lengths) are not cached.
func (s *SurveyService) traverseKey(segments []domain.SegmentInput) (string, error) {
	data, err := json.Marshal(struct {
		Segments  []domain.SegmentInput `json:"s"`
		Threshold float64               `json:"t"`
	}{segments, s.builder.PrecisionThreshold})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "traverse:" + hex.EncodeToString(sum[:]), nil
}

// ParseBearing parses a quadrant bearing.
func (s *SurveyService) ParseBearing(text string) (*BearingInfo, error) {
	az, err := bearing.Parse(text)
	if err != nil {
		return nil, err
	}
	return describe(az), nil
}

// FormatBearing canonicalizes an azimuth in degrees.
func (s *SurveyService) FormatBearing(azimuth float64) (*BearingInfo, error) {
	if math.IsNaN(azimuth) || math.IsInf(azimuth, 0) {
		return nil, &domain.ParseError{Fragment: fmt.Sprint(azimuth), Reason: "azimuth must be finite"}
	}
	return describe(bearing.Normalize(azimuth)), nil
}

func describe(az float64) *BearingInfo {
	q := bearing.ToQuadrant(az)
	return &BearingInfo{
		Azimuth:  az,
		Bearing:  q.String(),
		Compact:  bearing.CompactToken(q.String()),
		Quadrant: q,
	}
}

// Geodesic returns the great-circle distance and initial bearing from a to b.
func (s *SurveyService) Geodesic(a, b domain.GeoPoint) (*geospatial.Stats, error) {
	for _, p := range []domain.GeoPoint{a, b} {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.Abs(p.Lat) > 90 || math.Abs(p.Lon) > 180 {
			return nil, &domain.ParseError{Fragment: fmt.Sprintf("%v,%v", p.Lat, p.Lon), Reason: "coordinate out of range"}
		}
	}
	st := geospatial.GeodesicStats(a, b)
	return &st, nil
}

// ImportResult is a freshly imported workspace plus the first layer
// mirrored into segment records.
type ImportResult struct {
	Workspace *domain.Workspace     `json:"workspace"`
	Inputs    []domain.SegmentInput `json:"inputs,omitempty"`
	Totals    Totals                `json:"totals"`
}

// ImportKML parses a KML document into a new workspace. The first layer is
// mirrored into segment records, as an interactive import does.
func (s *SurveyService) ImportKML(ctx context.Context, r io.Reader, sourceName string) (*ImportResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "SurveyService.ImportKML")
	defer span.End()

	rings, err := kml.ExtractRings(r)
	if err != nil {
		metrics.KMLImports.WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if sourceName == "" {
		sourceName = DefaultSourceName
	}
	ws := RestoreWorkspace(rings, sourceName)
	inputs, err := MirrorLayer(ws, 0)
	if err != nil {
		// A layer without legs still imports; there is just nothing to mirror.
		inputs = nil
	}
	metrics.KMLImports.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int(telemetry.AttrLayers, len(ws.Layers)))
	slog.InfoContext(ctx, "kml imported", "source", sourceName, "layers", len(ws.Layers))

	return &ImportResult{Workspace: ws, Inputs: inputs, Totals: WorkspaceTotals(ws, true)}, nil
}
