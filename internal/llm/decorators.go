package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/brandaudit/internal/retry"
)

// ChatterFunc adapts a function to Chatter.
type ChatterFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

func (f ChatterFunc) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}

// Retrying retries transient failures of next under policy. A policy without
// an IsRetryable func uses IsRetryable from this package.
func Retrying(next Chatter, policy retry.Policy) Chatter {
	if policy.IsRetryable == nil {
		policy.IsRetryable = IsRetryable
	}
	return ChatterFunc(func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		var resp *ChatResponse
		attempt := 0
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			attempt++
			r, err := next.Chat(ctx, req)
			if err != nil {
				if attempt < policy.MaxAttempts && policy.IsRetryable(err) {
					slog.Warn("llm call failed, retrying",
						"attempt", attempt,
						"model", req.Model,
						"error", err,
					)
				}
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// WithTimeout bounds every call to next by d. Zero disables the bound.
func WithTimeout(next Chatter, d time.Duration) Chatter {
	if d <= 0 {
		return next
	}
	return ChatterFunc(func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Chat(ctx, req)
	})
}
