package models

import (
	"time"

	"github.com/google/uuid"
)

type RecommendationCategory string

const (
	RecommendationContent   RecommendationCategory = "content"
	RecommendationAuthority RecommendationCategory = "authority"
	RecommendationStructure RecommendationCategory = "structure"
)

type RecommendationStatus string

const (
	RecommendationPending    RecommendationStatus = "pending"
	RecommendationInProgress RecommendationStatus = "in_progress"
	RecommendationCompleted  RecommendationStatus = "completed"
	RecommendationDismissed  RecommendationStatus = "dismissed"
)

// Valid reports whether s is one of the known recommendation statuses.
func (s RecommendationStatus) Valid() bool {
	switch s {
	case RecommendationPending, RecommendationInProgress, RecommendationCompleted, RecommendationDismissed:
		return true
	}
	return false
}

// Recommendation is generated once per audit; only Status changes afterwards.
type Recommendation struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	AuditID     uuid.UUID              `json:"auditId" db:"audit_id"`
	Category    RecommendationCategory `json:"category" db:"category"`
	Title       string                 `json:"title" db:"title"`
	Description string                 `json:"description" db:"description"`
	Rationale   string                 `json:"rationale" db:"why_it_matters"`
	Impact      string                 `json:"impact" db:"impact"`
	Effort      string                 `json:"effort" db:"effort"`
	Status      RecommendationStatus   `json:"status" db:"status"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
}
