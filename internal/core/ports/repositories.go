package ports

import (
	"context"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// PlotRepository persists saved plots.
type PlotRepository interface {
	Create(ctx context.Context, plot *domain.Plot) error
	GetByID(ctx context.Context, id string) (*domain.Plot, error)
	// List returns plots newest first.
	List(ctx context.Context, limit, offset int) ([]domain.Plot, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
