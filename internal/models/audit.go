package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditStatus string

const (
	AuditStatusPending   AuditStatus = "pending"
	AuditStatusRunning   AuditStatus = "running"
	AuditStatusCompleted AuditStatus = "completed"
	AuditStatusFailed    AuditStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s AuditStatus) Terminal() bool {
	return s == AuditStatusCompleted || s == AuditStatusFailed
}

// Competitor is a rival brand tracked alongside the audited one. Domain is
// optional; without it a competitor mention can never be marked as cited.
type Competitor struct {
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

type Audit struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	UserID        uuid.UUID    `json:"userId" db:"user_id"`
	BrandName     string       `json:"brandName" db:"brand_name"`
	Category      string       `json:"category" db:"category"`
	PrimaryDomain string       `json:"primaryDomain,omitempty" db:"primary_domain"`
	BrandVariants []string     `json:"brandVariants" db:"brand_variants"`
	Competitors   []Competitor `json:"competitors" db:"competitors"`
	Status        AuditStatus  `json:"status" db:"status"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
}

// Brand returns the brand profile the audit is scored against.
func (a *Audit) Brand() Brand {
	return Brand{
		Name:        a.BrandName,
		Domain:      a.PrimaryDomain,
		Variants:    a.BrandVariants,
		Competitors: a.Competitors,
	}
}

// Brand is everything the analyzer needs to recognise a brand and its rivals.
type Brand struct {
	Name        string       `json:"name"`
	Domain      string       `json:"domain,omitempty"`
	Variants    []string     `json:"variants,omitempty"`
	Competitors []Competitor `json:"competitors,omitempty"`
}

// CompetitorDomains returns the non-empty competitor domains in declaration order.
func (b Brand) CompetitorDomains() []string {
	var domains []string
	for _, c := range b.Competitors {
		if c.Domain != "" {
			domains = append(domains, c.Domain)
		}
	}
	return domains
}

type IssueKind string

const (
	IssueProviderError    IssueKind = "provider_error"
	IssueParseError       IssueKind = "parse_error"
	IssuePersistenceError IssueKind = "persistence_error"
	IssueCancelled        IssueKind = "cancelled"
)

// Issue is a per-prompt failure recorded during an audit. It never aborts the
// audit but counts towards the failure ratio.
type Issue struct {
	PromptID   uuid.UUID `json:"promptId"`
	PromptName string    `json:"promptName"`
	Kind       IssueKind `json:"kind"`
	Message    string    `json:"errorMessage"`
}
