package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/surveyplot/internal/adapters/postgres"
	"github.com/samirrijal/surveyplot/internal/adapters/valkey"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. Plots, NATS,
// DB and Cache are optional; the engine endpoints work without them.
type Dependencies struct {
	Survey *usecases.SurveyService
	Plots  *usecases.PlotService
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  *valkey.Cache
}
