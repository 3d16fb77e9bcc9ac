package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

// PlotRepo implements ports.PlotRepository with pgx. Manual segments and
// imported rings are stored as JSONB; imported rings hold geographic
// coordinates only.
type PlotRepo struct {
	db *DB
}

// NewPlotRepo creates a new PlotRepo.
func NewPlotRepo(db *DB) *PlotRepo {
	return &PlotRepo{db: db}
}

// Create inserts a plot and fills in its ID and creation time.
func (r *PlotRepo) Create(ctx context.Context, p *domain.Plot) error {
	segments, err := json.Marshal(p.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	rings, err := json.Marshal(p.ImportedRings)
	if err != nil {
		return fmt.Errorf("marshal rings: %w", err)
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO plots (name, segments, imported_rings, source_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, p.Name, segments, rings, p.SourceName).Scan(&p.ID, &p.CreatedAt)
}

// GetByID returns a plot, or domain.ErrPlotNotFound.
func (r *PlotRepo) GetByID(ctx context.Context, id string) (*domain.Plot, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, segments, imported_rings, COALESCE(source_name, ''), created_at
		FROM plots WHERE id = $1
	`, id)
	p, err := scanPlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns plots newest first.
func (r *PlotRepo) List(ctx context.Context, limit, offset int) ([]domain.Plot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, segments, imported_rings, COALESCE(source_name, ''), created_at
		FROM plots
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plots []domain.Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		plots = append(plots, *p)
	}
	return plots, rows.Err()
}

// Count returns the number of saved plots.
func (r *PlotRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM plots`).Scan(&n)
	return n, err
}

// Delete removes a plot. Deleting a missing plot returns domain.ErrPlotNotFound.
func (r *PlotRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM plots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlotNotFound
	}
	return nil
}

func scanPlot(row pgx.Row) (*domain.Plot, error) {
	var (
		p        domain.Plot
		segments []byte
		rings    []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &segments, &rings, &p.SourceName, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &p.Segments); err != nil {
			return nil, fmt.Errorf("decode segments of plot %s: %w", p.ID, err)
		}
	}
	if len(rings) > 0 {
		if err := json.Unmarshal(rings, &p.ImportedRings); err != nil {
			return nil, fmt.Errorf("decode rings of plot %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
