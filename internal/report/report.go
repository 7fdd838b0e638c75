// Package report assembles the read-only dashboard of an audit from
// persisted runs.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/brandaudit/internal/audit"
	"github.com/nikhilbhutani/brandaudit/internal/cache"
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/scoring"
)

// Store is the read side of persistence the dashboard needs.
type Store interface {
	GetAudit(ctx context.Context, id uuid.UUID) (*models.Audit, error)
	RecentAuditIDs(ctx context.Context, userID uuid.UUID, brandName string, limit int) ([]uuid.UUID, error)
	LatestRunScores(ctx context.Context, auditIDs []uuid.UUID) ([]models.RunScore, error)
	PromptResults(ctx context.Context, auditID uuid.UUID) ([]models.PromptResult, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// AuditInfo identifies the audit a dashboard describes.
type AuditInfo struct {
	AuditID    uuid.UUID          `json:"auditId"`
	BrandName  string             `json:"brandName"`
	Category   string             `json:"category"`
	Status     models.AuditStatus `json:"status"`
	ExecutedAt *time.Time         `json:"executedAt"`
}

type Dashboard struct {
	Audit   AuditInfo             `json:"audit"`
	Summary models.Summary        `json:"summary"`
	Trend   []models.TrendPoint   `json:"trend"`
	Results []models.PromptResult `json:"results"`
}

type Service struct {
	store      Store
	cache      Cache
	trendLimit int
	cacheTTL   time.Duration
}

// NewService builds the report service. cache may be nil.
func NewService(store Store, c Cache, trendLimit int, cacheTTL time.Duration) *Service {
	if trendLimit <= 0 {
		trendLimit = 10
	}
	return &Service{store: store, cache: c, trendLimit: trendLimit, cacheTTL: cacheTTL}
}

func dashboardKey(auditID uuid.UUID) string {
	return "dashboard:" + auditID.String()
}

// Dashboard returns the summary, trend and per-prompt results of one of the
// user's audits. Dashboards of finished audits are cached.
func (s *Service) Dashboard(ctx context.Context, auditID, userID uuid.UUID) (*Dashboard, error) {
	a, err := s.ownedAudit(ctx, auditID, userID)
	if err != nil {
		return nil, err
	}

	cacheable := s.cache != nil && a.Status.Terminal() && s.cacheTTL > 0
	if cacheable {
		var d Dashboard
		err := s.cache.Get(ctx, dashboardKey(auditID), &d)
		if err == nil {
			return &d, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("dashboard cache read failed", "audit_id", auditID, "error", err)
		}
	}

	runs, err := s.trendRuns(ctx, a)
	if err != nil {
		return nil, err
	}
	var own []models.RunScore
	var executed *time.Time
	for _, r := range runs {
		if r.AuditID != auditID {
			continue
		}
		own = append(own, r)
		if executed == nil || r.ExecutedAt.After(*executed) {
			t := r.ExecutedAt
			executed = &t
		}
	}

	results, err := s.store.PromptResults(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("load prompt results: %w", err)
	}

	d := &Dashboard{
		Audit: AuditInfo{
			AuditID:    a.ID,
			BrandName:  a.BrandName,
			Category:   a.Category,
			Status:     a.Status,
			ExecutedAt: executed,
		},
		Summary: scoring.Summarize(own),
		Trend:   scoring.Trend(runs),
		Results: results,
	}

	if cacheable {
		if err := s.cache.Set(ctx, dashboardKey(auditID), d, s.cacheTTL); err != nil {
			slog.Warn("dashboard cache write failed", "audit_id", auditID, "error", err)
		}
	}
	return d, nil
}

// Trend returns one visibility point per recent audit of the same brand,
// oldest first.
func (s *Service) Trend(ctx context.Context, auditID, userID uuid.UUID) ([]models.TrendPoint, error) {
	a, err := s.ownedAudit(ctx, auditID, userID)
	if err != nil {
		return nil, err
	}
	runs, err := s.trendRuns(ctx, a)
	if err != nil {
		return nil, err
	}
	return scoring.Trend(runs), nil
}

func (s *Service) ownedAudit(ctx context.Context, auditID, userID uuid.UUID) (*models.Audit, error) {
	a, err := s.store.GetAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("load audit: %w", err)
	}
	if a.UserID != userID {
		return nil, audit.ErrForbidden
	}
	return a, nil
}

func (s *Service) trendRuns(ctx context.Context, a *models.Audit) ([]models.RunScore, error) {
	ids, err := s.store.RecentAuditIDs(ctx, a.UserID, a.BrandName, s.trendLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent audits: %w", err)
	}
	if !containsID(ids, a.ID) {
		ids = append(ids, a.ID)
	}
	runs, err := s.store.LatestRunScores(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load latest runs: %w", err)
	}
	return runs, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
