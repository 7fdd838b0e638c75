package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchType string

const (
	MatchPrimary   MatchType = "primary"
	MatchSecondary MatchType = "secondary"
	MatchImplied   MatchType = "implied"
	MatchNone      MatchType = "none"
)

// ParseMatchType maps free-form provider output onto a known match type.
func ParseMatchType(s string) MatchType {
	switch MatchType(s) {
	case MatchPrimary, MatchSecondary, MatchImplied:
		return MatchType(s)
	}
	return MatchNone
}

type SourceType string

const (
	SourceBrandOwned SourceType = "brand_owned"
	SourceCompetitor SourceType = "competitor"
	SourceGovernment SourceType = "government"
	SourceWikipedia  SourceType = "wikipedia"
	SourceSocial     SourceType = "social"
	SourcePublisher  SourceType = "publisher"
	SourceUnknown    SourceType = "unknown"
)

// SourceTypeCategories is the divisor used for per-run authority diversity.
const SourceTypeCategories = 6

// PromptRun is one executed template of an audit. Rows are append-only.
type PromptRun struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	AuditID     uuid.UUID   `json:"auditId" db:"audit_id"`
	PromptID    uuid.UUID   `json:"promptId" db:"prompt_id"`
	PromptText  string      `json:"promptText"`
	AnswerText  string      `json:"answerText"`
	ExecutedAt  time.Time   `json:"executedAt" db:"executed_at"`
	RawResponse RawResponse `json:"rawResponse" db:"raw_response"`
}

// RawResponse is the JSON blob persisted on prompt_runs.raw_response.
type RawResponse struct {
	Prompt      string      `json:"prompt"`
	Answer      string      `json:"answer"`
	Citations   []string    `json:"citations"`
	ResponseIDs []string    `json:"responseIds"`
	Usage       []CallUsage `json:"usage,omitempty"`
}

// CallUsage records what a single provider call cost.
type CallUsage struct {
	Kind         string  `json:"kind"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
	LatencyMs    int64   `json:"latencyMs"`
}

type BrandMention struct {
	RunID      uuid.UUID `json:"runId" db:"prompt_run_id"`
	Brand      string    `json:"brand" db:"brand"`
	MatchType  MatchType `json:"matchType" db:"match_type"`
	Position   int       `json:"position" db:"position"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Context    string    `json:"context" db:"context"`
	IsTarget   bool      `json:"isTarget" db:"is_target"`
	IsCited    bool      `json:"isCited" db:"is_cited"`
	// Start and End are byte offsets of the match in the answer text.
	Start int `json:"-"`
	End   int `json:"-"`
	// HasIndicator is set when a recommendation indicator appeared in the context window.
	HasIndicator bool `json:"-"`
}

// BrandPresence is the single per-run verdict on the target brand.
type BrandPresence struct {
	RunID           uuid.UUID `json:"runId" db:"prompt_run_id"`
	BrandDetected   bool      `json:"brandDetected" db:"brand_detected"`
	MentionType     MatchType `json:"mentionType" db:"mention_type"`
	CitationPresent bool      `json:"citationPresent" db:"citation_present"`
	Confidence      float64   `json:"confidence" db:"confidence"`
	Reasoning       string    `json:"reasoning" db:"reasoning"`
}

type Citation struct {
	RunID          uuid.UUID  `json:"runId" db:"prompt_run_id"`
	SourceURL      string     `json:"sourceUrl" db:"source_url"`
	SourceDomain   string     `json:"sourceDomain" db:"source_domain"`
	SourceType     SourceType `json:"sourceType" db:"source_type"`
	AuthorityScore float64    `json:"authorityScore" db:"authority_score"`
}

// Scores are the four per-run sub-scores, each in [0,1].
type Scores struct {
	PresenceRate       float64 `json:"presenceRate"`
	CitationRate       float64 `json:"citationRate"`
	RecommendationRate float64 `json:"recommendationRate"`
	AuthorityDiversity float64 `json:"authorityDiversity"`
}

// Analysis is the JSON document persisted on prompt_analysis.analysis.
type Analysis struct {
	Scores       Scores         `json:"scores"`
	Visibility   float64        `json:"visibility"`
	Mentions     []MentionLabel `json:"mentions"`
	PrimaryBrand BrandPresence  `json:"primaryBrand"`
	// ScoreSources records, per sub-score, whether it came from the
	// annotation or the deterministic fallback.
	ScoreSources map[string]string `json:"scoreSources,omitempty"`
}

// MentionLabel is a brand/type pair as reported by the annotator.
type MentionLabel struct {
	Brand string    `json:"brand"`
	Type  MatchType `json:"type"`
}

// RunResult bundles everything produced for one template so it can be
// persisted atomically.
type RunResult struct {
	Run       PromptRun
	Analysis  Analysis
	Presence  BrandPresence
	Mentions  []BrandMention
	Citations []Citation
}
