package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/ports"
	"github.com/samirrijal/surveyplot/internal/pkg/metrics"
	"github.com/samirrijal/surveyplot/internal/pkg/telemetry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	savedSourceName = "Saved import"
)

// SavePlotRequest is a snapshot of the manual inputs and imported layers.
type SavePlotRequest struct {
	Name      string                `json:"name"`
	Segments  []domain.SegmentInput `json:"segments,omitempty"`
	Workspace *domain.Workspace     `json:"workspace,omitempty"`
	// Rings may be given instead of a workspace.
	Rings      [][]domain.GeoPoint `json:"rings,omitempty"`
	SourceName string              `json:"source_name,omitempty"`
}

// LoadedPlot is a saved plot with its derived data rebuilt.
type LoadedPlot struct {
	Plot      *domain.Plot           `json:"plot"`
	Traverse  *domain.TraverseResult `json:"traverse,omitempty"`
	Workspace *domain.Workspace      `json:"workspace"`
	Totals    Totals                 `json:"totals"`
}

// PlotService stores and restores plots.
type PlotService struct {
	plots     ports.PlotRepository
	publisher ports.EventPublisher
	survey    *SurveyService
}

// NewPlotService creates a new PlotService. publisher may be nil.
func NewPlotService(plots ports.PlotRepository, publisher ports.EventPublisher, survey *SurveyService) *PlotService {
	return &PlotService{plots: plots, publisher: publisher, survey: survey}
}

// Save validates and stores a plot. Imported layers are kept as
// geographic rings only.
func (s *PlotService) Save(ctx context.Context, req SavePlotRequest) (*domain.Plot, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "PlotService.Save")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrPlotNameRequired
	}

	plot := &domain.Plot{
		Name:       name,
		Segments:   req.Segments,
		SourceName: req.SourceName,
	}
	if req.Workspace != nil {
		for _, l := range req.Workspace.Layers {
			if len(l.GeoCoords) > 0 {
				plot.ImportedRings = append(plot.ImportedRings, l.Ring())
			}
		}
		if plot.SourceName == "" {
			plot.SourceName = req.Workspace.SourceName
		}
	} else {
		for _, r := range req.Rings {
			if len(r) >= 2 {
				plot.ImportedRings = append(plot.ImportedRings, r)
			}
		}
	}
	if len(plot.Segments) == 0 && len(plot.ImportedRings) == 0 {
		return nil, &domain.EmptyInputError{What: "plot data"}
	}
	if len(plot.Segments) > 0 {
		if _, err := s.survey.builder.Build(plot.Segments); err != nil {
			return nil, err
		}
	}

	if err := s.plots.Create(ctx, plot); err != nil {
		return nil, fmt.Errorf("save plot: %w", err)
	}
	metrics.PlotsSaved.Inc()
	span.SetAttributes(attribute.String(telemetry.AttrPlotID, plot.ID))

	if s.publisher != nil {
		event := &domain.PlotEvent{Type: "saved", PlotID: plot.ID, Name: plot.Name, Time: plot.CreatedAt}
		if err := s.publisher.PublishPlotSaved(ctx, event); err != nil {
			slog.WarnContext(ctx, "publish plot saved", "plot_id", plot.ID, "error", err)
		}
	}
	return plot, nil
}

// List returns a page of saved plots, newest first, and the total count.
func (s *PlotService) List(ctx context.Context, limit, offset int) ([]domain.Plot, int, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	plots, err := s.plots.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list plots: %w", err)
	}
	total, err := s.plots.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count plots: %w", err)
	}
	return plots, total, nil
}

// Get loads a plot and rebuilds its traverse and imported layers.
func (s *PlotService) Get(ctx context.Context, id string) (*LoadedPlot, error) {
	plot, err := s.plots.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get plot: %w", err)
	}

	source := plot.SourceName
	if source == "" {
		source = savedSourceName
	}
	out := &LoadedPlot{
		Plot:      plot,
		Workspace: RestoreWorkspace(plot.ImportedRings, source),
	}
	out.Totals = WorkspaceTotals(out.Workspace, true)

	if len(plot.Segments) > 0 {
		res, err := s.survey.ComputeTraverse(ctx, TraverseRequest{Segments: plot.Segments, Auto: true})
		if err != nil {
			slog.WarnContext(ctx, "saved traverse no longer builds", "plot_id", id, "error", err)
		} else {
			out.Traverse = res
		}
	}
	return out, nil
}

// Delete removes a saved plot.
func (s *PlotService) Delete(ctx context.Context, id string) error {
	if err := s.plots.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete plot: %w", err)
	}
	if s.publisher != nil {
		event := &domain.PlotEvent{Type: "deleted", PlotID: id, Time: time.Now().UTC()}
		if err := s.publisher.PublishPlotDeleted(ctx, event); err != nil {
			slog.WarnContext(ctx, "publish plot deleted", "plot_id", id, "error", err)
		}
	}
	return nil
}

// RequestImport queues a KML document for the import worker.
func (s *PlotService) RequestImport(ctx context.Context, document, sourceName, saveAs string) (*domain.ImportRequest, error) {
	if strings.TrimSpace(document) == "" {
		return nil, &domain.EmptyInputError{What: "KML document"}
	}
	if s.publisher == nil {
		return nil, fmt.Errorf("request import: no event publisher configured")
	}
	if sourceName == "" {
		sourceName = DefaultSourceName
	}
	if strings.TrimSpace(saveAs) == "" {
		saveAs = sourceName
	}
	req := &domain.ImportRequest{
		RequestID:  uuid.NewString(),
		SourceName: sourceName,
		Document:   document,
		SaveAs:     saveAs,
	}
	ctx, span := telemetry.Tracer().Start(ctx, "PlotService.RequestImport")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrRequestID, req.RequestID))

	if err := s.publisher.PublishImportRequested(ctx, req); err != nil {
		return nil, fmt.Errorf("request import: %w", err)
	}
	return req, nil
}
