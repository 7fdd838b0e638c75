package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/models"
)

const maxRawInError = 2000

// ParseError is returned when structured model output is not valid JSON for
// the expected shape. Raw keeps the model output for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError] + "...(truncated)"
	}
	return fmt.Sprintf("parse structured response: %v; raw response: %q", e.Err, raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Annotation is the model's structured reading of its own answer. Scores and
// primary brand fields are pointers so absent values can be told apart from
// zeros.
type Annotation struct {
	PromptAsked  string           `json:"prompt_asked"`
	AnswerText   string           `json:"answer_text"`
	Citations    []string         `json:"citations"`
	Mentions     []AnnotatedLabel `json:"mentions"`
	Scores       AnnotatedScores  `json:"scores"`
	PrimaryBrand *AnnotatedBrand  `json:"primary_brand"`

	ResponseID string           `json:"-"`
	Usage      models.CallUsage `json:"-"`
}

type AnnotatedLabel struct {
	Brand string `json:"brand"`
	Type  string `json:"type"`
}

type AnnotatedScores struct {
	PresenceRate       *float64 `json:"presence_rate"`
	CitationRate       *float64 `json:"citation_rate"`
	RecommendationRate *float64 `json:"recommendation_rate"`
	AuthorityDiversity *float64 `json:"authority_diversity"`
}

type AnnotatedBrand struct {
	Detected    *bool    `json:"detected"`
	MentionType string   `json:"mention_type"`
	Confidence  *float64 `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
}

// AnnotationInput is everything the annotator shows the model.
type AnnotationInput struct {
	Prompt        string
	Answer        string
	CandidateURLs []string
	Brand         models.Brand
}

// Annotator asks the model for a schema-constrained annotation of an answer.
type Annotator struct {
	llm   llm.Chatter
	model string
}

func NewAnnotator(c llm.Chatter, model string) *Annotator {
	return &Annotator{llm: c, model: model}
}

const annotatorSystemPrompt = `You audit how a brand appears in an AI assistant answer.
Given the question, the answer and the URLs found in it, report:
- citations: every URL the answer cites (include the candidate URLs that appear in it)
- mentions: each brand named in the answer with its prominence (primary, secondary, implied, none)
- scores, each between 0 and 1:
  presence_rate: whether the target brand is present
  citation_rate: whether the target brand's own sources are cited
  recommendation_rate: how strongly the answer recommends the target brand
  authority_diversity: how varied and authoritative the cited sources are
- primary_brand: whether the target brand was detected, its mention type, your confidence (0 to 1) and a one sentence reasoning.
Copy the question into prompt_asked and the answer into answer_text verbatim.`

// Annotate returns the parsed annotation. Malformed output is a *ParseError.
func (a *Annotator) Annotate(ctx context.Context, in AnnotationInput) (*Annotation, error) {
	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: "system", Content: annotatorSystemPrompt},
			{Role: "user", Content: annotationRequest(in)},
		},
		Temperature: 0,
		Schema:      &llm.ResponseSchema{Name: "brand_annotation", Definition: AnnotationSchema()},
	})
	if err != nil {
		return nil, fmt.Errorf("annotate answer: %w", err)
	}

	ann, err := ParseAnnotation(resp.Content)
	if err != nil {
		return nil, err
	}
	ann.ResponseID = resp.ID
	ann.Usage = usageOf("annotate", resp)
	return ann, nil
}

// ParseAnnotation decodes model output into an Annotation. Markdown code
// fences around the JSON are tolerated; anything else invalid is not.
func ParseAnnotation(raw string) (*Annotation, error) {
	var ann Annotation
	if err := DecodeJSON(raw, &ann); err != nil {
		return nil, err
	}
	return &ann, nil
}

// DecodeJSON strictly decodes a JSON object from model output into v. Any
// failure is a *ParseError.
func DecodeJSON(raw string, v any) error {
	content := stripFences(raw)
	if content == "" {
		return &ParseError{Raw: raw, Err: errors.New("empty response")}
	}
	if !strings.HasPrefix(content, "{") {
		return &ParseError{Raw: raw, Err: errors.New("expected a JSON object")}
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func annotationRequest(in AnnotationInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target brand: %s\n", in.Brand.Name)
	if len(in.Brand.Variants) > 0 {
		fmt.Fprintf(&sb, "Also known as: %s\n", strings.Join(in.Brand.Variants, ", "))
	}
	if in.Brand.Domain != "" {
		fmt.Fprintf(&sb, "Brand domain: %s\n", in.Brand.Domain)
	}
	if len(in.Brand.Competitors) > 0 {
		names := make([]string, 0, len(in.Brand.Competitors))
		for _, c := range in.Brand.Competitors {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&sb, "Competitors: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&sb, "\nQuestion:\n%s\n\nAnswer:\n%s\n", in.Prompt, in.Answer)
	if len(in.CandidateURLs) > 0 {
		sb.WriteString("\nURLs found in the answer:\n")
		for _, u := range in.CandidateURLs {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}
	return sb.String()
}

// AnnotationSchema is the strict JSON schema of an Annotation.
func AnnotationSchema() jsonschema.Definition {
	str := jsonschema.Definition{Type: jsonschema.String}
	num := jsonschema.Definition{Type: jsonschema.Number}
	matchType := jsonschema.Definition{
		Type: jsonschema.String,
		Enum: []string{
			string(models.MatchPrimary), string(models.MatchSecondary),
			string(models.MatchImplied), string(models.MatchNone),
		},
	}

	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"prompt_asked": str,
			"answer_text":  str,
			"citations":    {Type: jsonschema.Array, Items: &str},
			"mentions": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"brand": str,
						"type":  matchType,
					},
					Required:             []string{"brand", "type"},
					AdditionalProperties: false,
				},
			},
			"scores": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"presence_rate":       num,
					"citation_rate":       num,
					"recommendation_rate": num,
					"authority_diversity": num,
				},
				Required:             []string{"presence_rate", "citation_rate", "recommendation_rate", "authority_diversity"},
				AdditionalProperties: false,
			},
			"primary_brand": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"detected":     {Type: jsonschema.Boolean},
					"mention_type": matchType,
					"confidence":   num,
					"reasoning":    str,
				},
				Required:             []string{"detected", "mention_type", "confidence", "reasoning"},
				AdditionalProperties: false,
			},
		},
		Required:             []string{"prompt_asked", "answer_text", "citations", "mentions", "scores", "primary_brand"},
		AdditionalProperties: false,
	}
}
