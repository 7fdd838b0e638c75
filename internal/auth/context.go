package auth

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	userKey   ctxKey = "user_id"
	claimsKey ctxKey = "claims"
)

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// UserIDFromContext returns the authenticated user, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userKey).(uuid.UUID)
	return id
}
