package models

import (
	"time"

	"github.com/google/uuid"
)

// RunScore is one latest prompt run as seen by the aggregator: its scores
// and the domains it cited.
type RunScore struct {
	AuditID         uuid.UUID
	AuditCreatedAt  time.Time
	RunID           uuid.UUID
	PromptID        uuid.UUID
	ExecutedAt      time.Time
	Scores          Scores
	CitationDomains []string
}

type TrendPoint struct {
	AuditID         uuid.UUID `json:"auditId"`
	ExecutedAt      time.Time `json:"executedAt"`
	VisibilityScore float64   `json:"visibilityScore"`
}

// Summary is the dashboard-level aggregate over an audit's latest runs.
type Summary struct {
	PresenceRate       float64 `json:"presenceRate"`
	CitationRate       float64 `json:"citationRate"`
	RecommendationRate float64 `json:"recommendationRate"`
	VisibilityScore    float64 `json:"visibilityScore"`
	AuthorityDiversity float64 `json:"authorityDiversity"`
	Runs               int     `json:"runs"`
}

// PromptResult is one row of the flattened per-prompt result list.
type PromptResult struct {
	RunID        uuid.UUID     `json:"runId"`
	PromptID     uuid.UUID     `json:"promptId"`
	PromptName   string        `json:"promptName"`
	Intent       Intent        `json:"intent"`
	PromptText   string        `json:"promptText"`
	AnswerText   string        `json:"answerText"`
	ExecutedAt   time.Time     `json:"executedAt"`
	Scores       Scores        `json:"scores"`
	Presence     BrandPresence `json:"presence"`
	Citations    []Citation    `json:"citations"`
	MentionCount int           `json:"mentionCount"`
}
