// Package store persists audits, their runs and recommendations in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const auditColumns = `id, user_id, brand_name, category, primary_domain, brand_variants, competitors, status, created_at, completed_at`

func (s *Store) CreateAudit(ctx context.Context, a *models.Audit) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = models.AuditStatusPending
	}
	variants, err := json.Marshal(nonNil(a.BrandVariants))
	if err != nil {
		return fmt.Errorf("encode brand variants: %w", err)
	}
	competitors, err := json.Marshal(nonNil(a.Competitors))
	if err != nil {
		return fmt.Errorf("encode competitors: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO audits (id, user_id, brand_name, category, primary_domain, brand_variants, competitors, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		a.ID, a.UserID, a.BrandName, a.Category, a.PrimaryDomain, variants, competitors, a.Status,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit: %w", err)
	}
	return nil
}

func (s *Store) GetAudit(ctx context.Context, id uuid.UUID) (*models.Audit, error) {
	row := s.db.QueryRow(ctx, "SELECT "+auditColumns+" FROM audits WHERE id = $1", id)
	a, err := scanAudit(row)
	if err != nil {
		return nil, fmt.Errorf("get audit: %w", err)
	}
	return a, nil
}

// ListAudits returns the user's audits, newest first.
func (s *Store) ListAudits(ctx context.Context, userID uuid.UUID, limit int) ([]models.Audit, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+auditColumns+" FROM audits WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var audits []models.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		audits = append(audits, *a)
	}
	return audits, rows.Err()
}

// RecentAuditIDs returns the ids of the user's most recent audits of a brand,
// newest first.
func (s *Store) RecentAuditIDs(ctx context.Context, userID uuid.UUID, brandName string, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM audits
		 WHERE user_id = $1 AND brand_name = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, brandName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent audits: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan recent audits: %w", err)
	}
	return ids, nil
}

// UpdateAuditStatus moves an audit to status. Terminal statuses stamp
// completed_at.
func (s *Store) UpdateAuditStatus(ctx context.Context, id uuid.UUID, status models.AuditStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE audits
		 SET status = $2,
		     completed_at = CASE WHEN $3 THEN now() ELSE NULL END
		 WHERE id = $1`,
		id, status, status.Terminal(),
	)
	if err != nil {
		return fmt.Errorf("update audit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update audit status: %w", models.ErrNotFound)
	}
	return nil
}

// SaveRun writes a run and everything derived from it in one transaction.
func (s *Store) SaveRun(ctx context.Context, res *models.RunResult) error {
	raw, err := json.Marshal(res.Run.RawResponse)
	if err != nil {
		return fmt.Errorf("encode raw response: %w", err)
	}
	analysis, err := json.Marshal(res.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO prompt_runs (id, audit_id, prompt_id, executed_at, raw_response)
			 VALUES ($1, $2, $3, $4, $5)`,
			res.Run.ID, res.Run.AuditID, res.Run.PromptID, res.Run.ExecutedAt, raw,
		); err != nil {
			return fmt.Errorf("insert prompt run: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO prompt_analysis (prompt_run_id, analysis) VALUES ($1, $2)",
			res.Run.ID, analysis,
		); err != nil {
			return fmt.Errorf("insert prompt analysis: %w", err)
		}

		p := res.Presence
		if _, err := tx.Exec(ctx,
			`INSERT INTO brand_presence (prompt_run_id, brand_detected, mention_type, citation_present, confidence, reasoning)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			res.Run.ID, p.BrandDetected, p.MentionType, p.CitationPresent, p.Confidence, p.Reasoning,
		); err != nil {
			return fmt.Errorf("insert brand presence: %w", err)
		}

		batch := &pgx.Batch{}
		for _, m := range res.Mentions {
			batch.Queue(
				`INSERT INTO brand_mentions (prompt_run_id, brand, match_type, position, confidence, context, is_target, is_cited)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				res.Run.ID, m.Brand, m.MatchType, m.Position, m.Confidence, m.Context, m.IsTarget, m.IsCited,
			)
		}
		for _, c := range res.Citations {
			batch.Queue(
				`INSERT INTO citations (prompt_run_id, source_url, source_domain, source_type, authority_score)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (prompt_run_id, source_url) DO NOTHING`,
				res.Run.ID, c.SourceURL, c.SourceDomain, c.SourceType, c.AuthorityScore,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert mentions and citations: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*models.Audit, error) {
	var a models.Audit
	var variants, competitors []byte
	err := row.Scan(&a.ID, &a.UserID, &a.BrandName, &a.Category, &a.PrimaryDomain,
		&variants, &competitors, &a.Status, &a.CreatedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variants, &a.BrandVariants); err != nil {
		return nil, fmt.Errorf("decode brand variants: %w", err)
	}
	if err := json.Unmarshal(competitors, &a.Competitors); err != nil {
		return nil, fmt.Errorf("decode competitors: %w", err)
	}
	return &a, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
