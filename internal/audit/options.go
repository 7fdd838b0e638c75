package audit

import (
	"time"

	"github.com/nikhilbhutani/brandaudit/internal/config"
	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/retry"
)

// RunOptions tune a single audit run. Zero fields take the orchestrator's
// defaults.
type RunOptions struct {
	GenerationModel    string        `json:"generation_model,omitempty"`
	AnnotationModel    string        `json:"annotation_model,omitempty"`
	Temperature        float64       `json:"temperature,omitempty"`
	CallTimeout        time.Duration `json:"call_timeout,omitempty"`
	Retry              retry.Policy  `json:"-"`
	RetryMaxAttempts   int           `json:"retry_max_attempts,omitempty"`
	MaxRecommendations int           `json:"max_recommendations,omitempty"`
}

// DefaultRunOptions builds run options from configuration.
func DefaultRunOptions(cfg config.AuditConfig) RunOptions {
	return RunOptions{
		GenerationModel: cfg.GenerationModel,
		AnnotationModel: cfg.AnnotationModel,
		Temperature:     cfg.Temperature,
		CallTimeout:     cfg.CallTimeout,
		Retry: retry.Policy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   2,
			IsRetryable:  llm.IsRetryable,
		},
		MaxRecommendations: cfg.MaxRecommendations,
	}
}

// merge fills zero fields of o from defaults.
func (o RunOptions) merge(defaults RunOptions) RunOptions {
	if o.GenerationModel == "" {
		o.GenerationModel = defaults.GenerationModel
	}
	if o.AnnotationModel == "" {
		o.AnnotationModel = defaults.AnnotationModel
	}
	if o.AnnotationModel == "" {
		o.AnnotationModel = o.GenerationModel
	}
	if o.Temperature == 0 {
		o.Temperature = defaults.Temperature
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = defaults.CallTimeout
	}
	if o.Retry.MaxAttempts == 0 {
		attempts := o.RetryMaxAttempts
		o.Retry = defaults.Retry
		if attempts > 0 {
			o.Retry.MaxAttempts = attempts
		}
	}
	if o.Retry.IsRetryable == nil {
		o.Retry.IsRetryable = llm.IsRetryable
	}
	if o.MaxRecommendations <= 0 {
		o.MaxRecommendations = defaults.MaxRecommendations
	}
	if o.MaxRecommendations <= 0 || o.MaxRecommendations > maxRecommendations {
		o.MaxRecommendations = maxRecommendations
	}
	return o
}
