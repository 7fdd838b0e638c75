// Package generation asks a model the audit question and then asks it to
// annotate its own answer.
package generation

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/models"
)

// Generator issues the rendered prompt to the model as a plain question.
type Generator struct {
	llm         llm.Chatter
	model       string
	temperature float64
}

func NewGenerator(c llm.Chatter, model string, temperature float64) *Generator {
	return &Generator{llm: c, model: model, temperature: temperature}
}

// Answer is the raw model answer plus what the call cost.
type Answer struct {
	Text       string
	ResponseID string
	Usage      models.CallUsage
}

// Generate returns the model's answer to prompt. A response without content
// yields an empty answer, not an error.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Answer, error) {
	resp, err := g.llm.Chat(ctx, llm.ChatRequest{
		Model:       g.model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{
		Text:       resp.Content,
		ResponseID: resp.ID,
		Usage:      usageOf("generate", resp),
	}, nil
}

func usageOf(kind string, resp *llm.ChatResponse) models.CallUsage {
	return models.CallUsage{
		Kind:         kind,
		Provider:     resp.Provider,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      resp.CostUSD,
		LatencyMs:    resp.LatencyMs,
	}
}
