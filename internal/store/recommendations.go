package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

const recommendationColumns = `id, audit_id, category, title, description, why_it_matters, impact, effort, status, created_at`

// SaveRecommendations inserts recs unless the audit already has
// recommendations. It returns the number of rows written.
func (s *Store) SaveRecommendations(ctx context.Context, auditID uuid.UUID, recs []models.Recommendation) (int, error) {
	written := 0
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		// Serializes concurrent writers for the same audit.
		if _, err := tx.Exec(ctx, "SELECT id FROM audits WHERE id = $1 FOR UPDATE", auditID); err != nil {
			return fmt.Errorf("lock audit: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM recommendations WHERE audit_id = $1)", auditID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check recommendations: %w", err)
		}
		if exists {
			return nil
		}

		rows := make([][]any, 0, len(recs))
		for _, r := range recs {
			if r.ID == uuid.Nil {
				r.ID = uuid.New()
			}
			if r.Status == "" {
				r.Status = models.RecommendationPending
			}
			rows = append(rows, []any{r.ID, auditID, r.Category, r.Title, r.Description, r.Rationale, r.Impact, r.Effort, r.Status})
		}
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"recommendations"},
			[]string{"id", "audit_id", "category", "title", "description", "why_it_matters", "impact", "effort", "status"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
		written = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (s *Store) ListRecommendations(ctx context.Context, auditID uuid.UUID) ([]models.Recommendation, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+recommendationColumns+" FROM recommendations WHERE audit_id = $1 ORDER BY created_at, title",
		auditID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	recs := []models.Recommendation{}
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, *r)
	}
	return recs, rows.Err()
}

// UpdateRecommendationStatus changes the status of a recommendation on one of
// the user's audits. Recommendations of other users are reported as not found.
func (s *Store) UpdateRecommendationStatus(ctx context.Context, userID, id uuid.UUID, status models.RecommendationStatus) (*models.Recommendation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("update recommendation %q: %w", status, models.ErrInvalidStatus)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE recommendations r
		 SET status = $3
		 FROM audits a
		 WHERE r.id = $1 AND a.id = r.audit_id AND a.user_id = $2
		 RETURNING r.id, r.audit_id, r.category, r.title, r.description, r.why_it_matters, r.impact, r.effort, r.status, r.created_at`,
		id, userID, status,
	)
	r, err := scanRecommendation(row)
	if err != nil {
		return nil, fmt.Errorf("update recommendation: %w", err)
	}
	return r, nil
}

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var r models.Recommendation
	err := row.Scan(&r.ID, &r.AuditID, &r.Category, &r.Title, &r.Description, &r.Rationale,
		&r.Impact, &r.Effort, &r.Status, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
