package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/ports"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
	"github.com/samirrijal/surveyplot/internal/pkg/kml"
)

// Error types that the import workflow must not retry.
const (
	errTypeParse = "ParseError"
	errTypeEmpty = "EmptyInputError"
)

// LayerSummary is what BuildLayers reports about an imported workspace.
type LayerSummary struct {
	Layers       int     `json:"layers"`
	Points       int     `json:"points"`
	GeodesicArea float64 `json:"geodesic_area"`
}

// SaveImportInput carries the rings of an import to the SavePlot activity.
type SaveImportInput struct {
	Name       string              `json:"name"`
	SourceName string              `json:"source_name"`
	Rings      [][]domain.GeoPoint `json:"rings"`
}

// ImportActivities holds the activity implementations for the import workflow.
type ImportActivities struct {
	Plots     *usecases.PlotService
	Publisher ports.EventPublisher
}

// ParseKML extracts the boundary rings of a KML document.
func (a *ImportActivities) ParseKML(ctx context.Context, document string) ([][]domain.GeoPoint, error) {
	rings, err := kml.ExtractRings(strings.NewReader(document))
	if err != nil {
		return nil, nonRetryable(err)
	}
	return rings, nil
}

// BuildLayers projects the rings and measures the resulting workspace.
func (a *ImportActivities) BuildLayers(ctx context.Context, rings [][]domain.GeoPoint, sourceName string) (*LayerSummary, error) {
	ws := usecases.RestoreWorkspace(rings, sourceName)
	if !usecases.HasLayers(ws) {
		return nil, nonRetryable(&domain.EmptyInputError{What: "imported layers"})
	}
	totals := usecases.WorkspaceTotals(ws, true)
	return &LayerSummary{
		Layers:       totals.Layers,
		Points:       totals.Points,
		GeodesicArea: totals.GeodesicArea,
	}, nil
}

// SavePlot stores the imported rings as a plot and returns its ID.
func (a *ImportActivities) SavePlot(ctx context.Context, in SaveImportInput) (string, error) {
	plot, err := a.Plots.Save(ctx, usecases.SavePlotRequest{
		Name:       in.Name,
		Rings:      in.Rings,
		SourceName: in.SourceName,
	})
	if err != nil {
		var empty *domain.EmptyInputError
		if errors.Is(err, domain.ErrPlotNameRequired) || errors.As(err, &empty) {
			return "", nonRetryable(err)
		}
		return "", err
	}
	return plot.ID, nil
}

// PublishImported announces a completed import.
func (a *ImportActivities) PublishImported(ctx context.Context, event *domain.ImportEvent) error {
	if a.Publisher == nil {
		slog.InfoContext(ctx, "import completed (no publisher)", "request_id", event.RequestID, "plot_id", event.PlotID)
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if err := a.Publisher.PublishImportCompleted(ctx, event); err != nil {
		return fmt.Errorf("publish import completed: %w", err)
	}
	return nil
}

// DeletePlot removes a plot saved earlier in the workflow (saga compensation).
func (a *ImportActivities) DeletePlot(ctx context.Context, plotID string) error {
	if err := a.Plots.Delete(ctx, plotID); err != nil {
		if errors.Is(err, domain.ErrPlotNotFound) {
			return nil
		}
		return fmt.Errorf("delete plot %s: %w", plotID, err)
	}
	slog.InfoContext(ctx, "plot deleted (saga compensation)", "plot_id", plotID)
	return nil
}

func nonRetryable(err error) error {
	var perr *domain.ParseError
	if errors.As(err, &perr) {
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeParse, err)
	}
	var empty *domain.EmptyInputError
	if errors.As(err, &empty) {
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeEmpty, err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), "", err)
}
