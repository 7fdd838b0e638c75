package queue

import (
	"time"

	"github.com/google/uuid"
)

const TypeAuditRun = "audit:run"

// AuditRunPayload asks a worker to execute one audit on behalf of its owner.
// The override fields are optional per-run tuning.
type AuditRunPayload struct {
	AuditID string `json:"audit_id"`
	UserID  string `json:"user_id"`

	GenerationModel  string        `json:"generation_model,omitempty"`
	AnnotationModel  string        `json:"annotation_model,omitempty"`
	CallTimeout      time.Duration `json:"call_timeout,omitempty"`
	RetryMaxAttempts int           `json:"retry_max_attempts,omitempty"`
}

func NewAuditRunPayload(auditID, userID uuid.UUID) AuditRunPayload {
	return AuditRunPayload{AuditID: auditID.String(), UserID: userID.String()}
}
