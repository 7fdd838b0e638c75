package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/brandaudit/internal/analysis"
	"github.com/nikhilbhutani/brandaudit/internal/generation"
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/scoring"
)

// AnswerGenerator produces an answer when the caller supplies only a prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (*generation.Answer, error)
}

type AnalyzeHandler struct {
	analyzer  *analysis.Analyzer
	generator AnswerGenerator
}

func NewAnalyzeHandler(analyzer *analysis.Analyzer, generator AnswerGenerator) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, generator: generator}
}

type AnalyzeRequest struct {
	Prompt string       `json:"prompt"`
	Answer string       `json:"answer"`
	Brand  models.Brand `json:"brand"`
}

type AnalyzeResponse struct {
	Answer     string                `json:"answer"`
	Mentions   []models.BrandMention `json:"mentions"`
	Citations  []models.Citation     `json:"citations"`
	Presence   models.BrandPresence  `json:"presence"`
	Scores     models.Scores         `json:"scores"`
	Composite  float64               `json:"composite"`
	Visibility float64               `json:"visibility"`
}

// Analyze scores a single answer deterministically. Without an answer the
// prompt is sent to the model first.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Brand.Name = strings.TrimSpace(req.Brand.Name)
	if req.Brand.Name == "" {
		writeError(w, http.StatusBadRequest, "brand.name required")
		return
	}
	if req.Answer == "" && strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "answer or prompt required")
		return
	}

	answer := req.Answer
	if answer == "" {
		if h.generator == nil {
			writeError(w, http.StatusBadRequest, "answer required")
			return
		}
		ans, err := h.generator.Generate(r.Context(), req.Prompt)
		if err != nil {
			slog.Warn("ad-hoc generation failed", "error", err)
			writeError(w, http.StatusBadGateway, "model call failed")
			return
		}
		answer = ans.Text
	}

	res := h.analyzer.Analyze(answer, req.Brand)
	scores := scoring.RunScores(res.Mentions, res.Citations)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Answer:     answer,
		Mentions:   nonNilSlice(res.Mentions),
		Citations:  nonNilSlice(res.Citations),
		Presence:   res.Presence,
		Scores:     scores,
		Composite:  scoring.CompositeQuality(scores),
		Visibility: scoring.DashboardVisibility(scores.PresenceRate, scores.CitationRate, scores.RecommendationRate),
	})
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
