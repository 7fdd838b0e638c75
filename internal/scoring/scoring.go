// Package scoring turns per-run detections into visibility scores and
// aggregates them across runs and audits.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

// DashboardVisibility answers "is the brand present at all": the plain mean
// of presence, citation and recommendation rates.
func DashboardVisibility(presence, citation, recommendation float64) float64 {
	return (presence + citation + recommendation) / 3
}

// CompositeQuality is the weighted single-prompt score used by ad-hoc
// analysis.
func CompositeQuality(s models.Scores) float64 {
	return s.PresenceRate*0.3 +
		s.RecommendationRate*0.3 +
		s.CitationRate*0.2 +
		s.AuthorityDiversity*0.2
}

// TypeDiversity is the share of source-type categories a run's citations
// cover, capped at 1.
func TypeDiversity(citations []models.Citation) float64 {
	if len(citations) == 0 {
		return 0
	}
	types := make(map[models.SourceType]struct{})
	for _, c := range citations {
		types[c.SourceType] = struct{}{}
	}
	return Clamp(float64(len(types)) / models.SourceTypeCategories)
}

// DomainDiversity is distinct domains over total citations.
func DomainDiversity(domains []string) float64 {
	if len(domains) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		distinct[d] = struct{}{}
	}
	return float64(len(distinct)) / float64(len(domains))
}

// RunScores derives the deterministic sub-scores of one run from the
// analyzer's mentions and the run's citations.
func RunScores(mentions []models.BrandMention, citations []models.Citation) models.Scores {
	var s models.Scores
	for _, m := range mentions {
		if !m.IsTarget {
			continue
		}
		s.PresenceRate = 1
		if m.IsCited {
			s.CitationRate = 1
		}
		if m.HasIndicator {
			s.RecommendationRate = 1
		}
	}
	s.AuthorityDiversity = TypeDiversity(citations)
	return s
}

// ClampScores bounds every sub-score to [0,1].
func ClampScores(s models.Scores) models.Scores {
	return models.Scores{
		PresenceRate:       Clamp(s.PresenceRate),
		CitationRate:       Clamp(s.CitationRate),
		RecommendationRate: Clamp(s.RecommendationRate),
		AuthorityDiversity: Clamp(s.AuthorityDiversity),
	}
}

// Clamp bounds v to [0,1]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Summarize aggregates an audit's latest runs for the dashboard. Rates are
// the mean over runs; authority diversity is computed over every citation
// domain of those runs.
func Summarize(runs []models.RunScore) models.Summary {
	if len(runs) == 0 {
		return models.Summary{}
	}

	var presence, citation, recommendation float64
	var domains []string
	for _, r := range runs {
		s := ClampScores(r.Scores)
		presence += s.PresenceRate
		citation += s.CitationRate
		recommendation += s.RecommendationRate
		domains = append(domains, r.CitationDomains...)
	}
	n := float64(len(runs))
	sum := models.Summary{
		PresenceRate:       presence / n,
		CitationRate:       citation / n,
		RecommendationRate: recommendation / n,
		AuthorityDiversity: DomainDiversity(domains),
		Runs:               len(runs),
	}
	sum.VisibilityScore = DashboardVisibility(sum.PresenceRate, sum.CitationRate, sum.RecommendationRate)
	return sum
}

// Trend groups latest runs by audit and returns one point per audit, ordered
// by execution time ascending. A point's time is its audit's latest run.
func Trend(runs []models.RunScore) []models.TrendPoint {
	byAudit := make(map[uuid.UUID][]models.RunScore)
	var order []uuid.UUID
	for _, r := range runs {
		if _, ok := byAudit[r.AuditID]; !ok {
			order = append(order, r.AuditID)
		}
		byAudit[r.AuditID] = append(byAudit[r.AuditID], r)
	}

	points := make([]models.TrendPoint, 0, len(order))
	for _, id := range order {
		group := byAudit[id]
		var executed time.Time
		for _, r := range group {
			if r.ExecutedAt.After(executed) {
				executed = r.ExecutedAt
			}
		}
		points = append(points, models.TrendPoint{
			AuditID:         id,
			ExecutedAt:      executed,
			VisibilityScore: Summarize(group).VisibilityScore,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].ExecutedAt.Before(points[j].ExecutedAt)
	})
	return points
}
