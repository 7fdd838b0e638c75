package models

import (
	"github.com/google/uuid"
)

type Intent string

const (
	IntentInformational Intent = "informational"
	IntentComparative   Intent = "comparative"
	IntentTransactional Intent = "transactional"
	IntentTrust         Intent = "trust"
)

// PromptTemplate is reference data: one question of the audit battery with
// {brand} and {category} placeholders.
type PromptTemplate struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Intent    Intent    `json:"intent" db:"intent"`
	Template  string    `json:"template" db:"template"`
	Active    bool      `json:"active" db:"active"`
	SortOrder int       `json:"sortOrder" db:"sort_order"`
}
