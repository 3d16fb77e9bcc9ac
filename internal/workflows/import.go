package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// WorkflowIDPrefix prefixes the workflow ID of every import so a redelivered
// request maps onto the same execution.
const WorkflowIDPrefix = "kml-import-"

// ImportInput is the input for the import workflow.
type ImportInput struct {
	RequestID  string
	SourceName string
	Document   string
	SaveAs     string
}

// ImportOutput reports what an import stored.
type ImportOutput struct {
	PlotID       string
	Layers       int
	Points       int
	GeodesicArea float64
}

// NewImportInput converts a queued import request into workflow input.
func NewImportInput(req *domain.ImportRequest) ImportInput {
	return ImportInput{
		RequestID:  req.RequestID,
		SourceName: req.SourceName,
		Document:   req.Document,
		SaveAs:     req.SaveAs,
	}
}

// ImportWorkflow parses a KML document, builds its layers, saves them as a
// plot and publishes the result. If publishing fails the saved plot is
// deleted (saga compensation).
func ImportWorkflow(ctx workflow.Context, input ImportInput) (*ImportOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting import workflow", "requestID", input.RequestID, "source", input.SourceName)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeParse, errTypeEmpty},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Parse KML
	var rings [][]domain.GeoPoint
	if err := workflow.ExecuteActivity(ctx, "ParseKML", input.Document).Get(ctx, &rings); err != nil {
		return nil, err
	}

	// Step 2: Build layers
	var summary LayerSummary
	if err := workflow.ExecuteActivity(ctx, "BuildLayers", rings, input.SourceName).Get(ctx, &summary); err != nil {
		return nil, err
	}

	// Step 3: Save plot
	name := input.SaveAs
	if name == "" {
		name = input.SourceName
	}
	var plotID string
	save := SaveImportInput{Name: name, SourceName: input.SourceName, Rings: rings}
	if err := workflow.ExecuteActivity(ctx, "SavePlot", save).Get(ctx, &plotID); err != nil {
		return nil, err
	}

	// Step 4: Publish
	event := &domain.ImportEvent{
		RequestID:    input.RequestID,
		PlotID:       plotID,
		SourceName:   input.SourceName,
		Layers:       summary.Layers,
		Points:       summary.Points,
		GeodesicArea: summary.GeodesicArea,
		Time:         workflow.Now(ctx).UTC(),
	}
	if err := workflow.ExecuteActivity(ctx, "PublishImported", event).Get(ctx, nil); err != nil {
		logger.Warn("publish failed, compensating", "error", err, "plotID", plotID)
		// Compensate: delete the plot
		_ = workflow.ExecuteActivity(ctx, "DeletePlot", plotID).Get(ctx, nil)
		return nil, err
	}

	logger.Info("Import stored", "plotID", plotID, "layers", summary.Layers)
	return &ImportOutput{
		PlotID:       plotID,
		Layers:       summary.Layers,
		Points:       summary.Points,
		GeodesicArea: summary.GeodesicArea,
	}, nil
}
