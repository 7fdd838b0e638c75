package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/brandaudit/internal/audit"
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/queue"
)

// AuditRunner executes an audit.
type AuditRunner interface {
	Run(ctx context.Context, auditID, userID uuid.UUID, opts audit.RunOptions) (*audit.Result, error)
}

type AuditWorker struct {
	runner AuditRunner
}

func NewAuditWorker(runner AuditRunner) *AuditWorker {
	return &AuditWorker{runner: runner}
}

// ProcessTask runs the audit named by the task. Errors that another attempt
// cannot fix skip asynq's retries.
func (w *AuditWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AuditRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	auditID, err := uuid.Parse(payload.AuditID)
	if err != nil {
		return fmt.Errorf("parse audit ID: %v: %w", err, asynq.SkipRetry)
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("parse user ID: %v: %w", err, asynq.SkipRetry)
	}

	slog.Info("processing audit", "audit_id", auditID)

	res, err := w.runner.Run(ctx, auditID, userID, audit.RunOptions{
		GenerationModel:  payload.GenerationModel,
		AnnotationModel:  payload.AnnotationModel,
		CallTimeout:      payload.CallTimeout,
		RetryMaxAttempts: payload.RetryMaxAttempts,
	})
	switch {
	case errors.Is(err, audit.ErrForbidden),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, audit.ErrNoTemplates),
		errors.Is(err, audit.ErrAuditInProgress):
		slog.Warn("audit not run", "audit_id", auditID, "error", err)
		return fmt.Errorf("run audit %s: %v: %w", auditID, err, asynq.SkipRetry)
	case res != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// The audit was finalized with the remaining prompts cancelled.
		return fmt.Errorf("run audit %s: %v: %w", auditID, err, asynq.SkipRetry)
	case err != nil:
		return fmt.Errorf("run audit %s: %w", auditID, err)
	}

	slog.Info("audit processed",
		"audit_id", auditID,
		"status", res.Status,
		"runs", res.RunCount,
		"issues", len(res.Issues),
	)
	return nil
}
