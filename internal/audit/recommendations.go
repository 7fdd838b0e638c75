package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nikhilbhutani/brandaudit/internal/generation"
	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/models"
)

const maxRecommendations = 20

// runDigest is what recommendation synthesis sees of one successful run.
type runDigest struct {
	Template models.PromptTemplate
	Scores   models.Scores
	Presence models.BrandPresence
}

type recommendationSet struct {
	Recommendations []struct {
		Category     string `json:"category"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		WhyItMatters string `json:"why_it_matters"`
		Impact       string `json:"impact"`
		Effort       string `json:"effort"`
	} `json:"recommendations"`
}

const recommenderSystemPrompt = `You advise a brand on improving how AI assistants mention and cite it.
From the audit results and the questions that could not be answered, propose
concrete actions. Each action has a category
(content, authority or structure), a short title, a description, why it matters,
and impact and effort rated low, medium or high.`

// recommend synthesizes and stores recommendations for a finished audit from
// its successful runs and its issue list.
func (o *Orchestrator) recommend(ctx context.Context, chat llm.Chatter, opts RunOptions, a *models.Audit, res *Result, digests []runDigest) (int, error) {
	if len(digests) == 0 && len(res.Issues) == 0 {
		return 0, nil
	}

	resp, err := chat.Chat(ctx, llm.ChatRequest{
		Model: opts.AnnotationModel,
		Messages: []llm.Message{
			{Role: "system", Content: recommenderSystemPrompt},
			{Role: "user", Content: recommendationRequest(a, res, digests, opts.MaxRecommendations)},
		},
		Temperature: 0.3,
		Schema:      &llm.ResponseSchema{Name: "recommendations", Definition: recommendationSchema()},
	})
	if err != nil {
		return 0, fmt.Errorf("synthesize recommendations: %w", err)
	}

	var set recommendationSet
	if err := generation.DecodeJSON(resp.Content, &set); err != nil {
		return 0, err
	}

	recs := buildRecommendations(a.ID, set, opts.MaxRecommendations, o.now())
	if len(recs) == 0 {
		return 0, nil
	}

	n, err := o.store.SaveRecommendations(ctx, a.ID, recs)
	if err != nil {
		return 0, fmt.Errorf("save recommendations: %w", err)
	}
	return n, nil
}

func buildRecommendations(auditID uuid.UUID, set recommendationSet, limit int, now time.Time) []models.Recommendation {
	var recs []models.Recommendation
	for _, r := range set.Recommendations {
		if len(recs) == limit {
			break
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		recs = append(recs, models.Recommendation{
			ID:          uuid.New(),
			AuditID:     auditID,
			Category:    parseCategory(r.Category),
			Title:       title,
			Description: strings.TrimSpace(r.Description),
			Rationale:   strings.TrimSpace(r.WhyItMatters),
			Impact:      parseLevel(r.Impact),
			Effort:      parseLevel(r.Effort),
			Status:      models.RecommendationPending,
			CreatedAt:   now,
		})
	}
	return recs
}

func parseCategory(s string) models.RecommendationCategory {
	switch c := models.RecommendationCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case models.RecommendationContent, models.RecommendationAuthority, models.RecommendationStructure:
		return c
	}
	return models.RecommendationContent
}

func parseLevel(s string) string {
	switch l := strings.ToLower(strings.TrimSpace(s)); l {
	case "low", "medium", "high":
		return l
	}
	return "medium"
}

func recommendationRequest(a *models.Audit, res *Result, digests []runDigest, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Brand: %s\nCategory: %s\n", a.BrandName, a.Category)
	if a.PrimaryDomain != "" {
		fmt.Fprintf(&sb, "Domain: %s\n", a.PrimaryDomain)
	}
	s := res.Summary
	fmt.Fprintf(&sb, "\nOverall: presence %.2f, citation %.2f, recommendation %.2f, visibility %.2f, authority diversity %.2f\n",
		s.PresenceRate, s.CitationRate, s.RecommendationRate, s.VisibilityScore, s.AuthorityDiversity)

	fmt.Fprintf(&sb, "Questions answered: %d of %d\n", res.RunCount, res.TemplateCount)

	if len(digests) > 0 {
		sb.WriteString("\nPer question:\n")
	}
	for _, d := range digests {
		fmt.Fprintf(&sb, "- [%s] %s: detected=%t mention=%s cited=%t presence=%.2f citation=%.2f recommendation=%.2f\n",
			d.Template.Intent, d.Template.Name,
			d.Presence.BrandDetected, d.Presence.MentionType, d.Presence.CitationPresent,
			d.Scores.PresenceRate, d.Scores.CitationRate, d.Scores.RecommendationRate)
	}
	if len(res.Issues) > 0 {
		sb.WriteString("\nIssues:\n")
	}
	for _, is := range res.Issues {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", is.PromptName, is.Kind, is.Message)
	}
	fmt.Fprintf(&sb, "\nReturn at most %d recommendations, most impactful first.\n", limit)
	return sb.String()
}

func recommendationSchema() jsonschema.Definition {
	str := jsonschema.Definition{Type: jsonschema.String}
	level := jsonschema.Definition{Type: jsonschema.String, Enum: []string{"low", "medium", "high"}}
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"recommendations": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"category": {
							Type: jsonschema.String,
							Enum: []string{
								string(models.RecommendationContent),
								string(models.RecommendationAuthority),
								string(models.RecommendationStructure),
							},
						},
						"title":          str,
						"description":    str,
						"why_it_matters": str,
						"impact":         level,
						"effort":         level,
					},
					Required:             []string{"category", "title", "description", "why_it_matters", "impact", "effort"},
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"recommendations"},
		AdditionalProperties: false,
	}
}
