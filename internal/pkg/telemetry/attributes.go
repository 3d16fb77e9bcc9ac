package telemetry

// Span attribute keys.
const (
	AttrSegments     = "survey.segments"
	AttrClosureRatio = "survey.closure_ratio"
	AttrLayers       = "survey.layers"
	AttrPlotID       = "survey.plot_id"
	AttrRequestID    = "survey.import_request_id"
)
