package prompt

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

// Service reads the prompt template battery. Templates are reference data and
// are never written by the pipeline.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// ListActive returns the active templates in battery order.
func (s *Service) ListActive(ctx context.Context) ([]models.PromptTemplate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, intent, template, active, sort_order
		 FROM prompt_templates WHERE active
		 ORDER BY sort_order, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.PromptTemplate
	for rows.Next() {
		var t models.PromptTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Intent, &t.Template, &t.Active, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}
