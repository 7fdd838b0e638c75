package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serve(token string) (*httptest.ResponseRecorder, uuid.UUID) {
	var seen uuid.UUID
	h := NewJWTMiddleware(secret).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audits", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthenticate(t *testing.T) {
	user := uuid.New()
	valid := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   user.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	t.Run("valid token", func(t *testing.T) {
		rec, seen := serve(sign(t, jwt.SigningMethodHS256, []byte(secret), valid))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, user, seen)
	})

	t.Run("missing token", func(t *testing.T) {
		rec, _ := serve("")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing authorization token"}`, rec.Body.String())
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec, _ := serve(sign(t, jwt.SigningMethodHS256, []byte("other"), valid))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		expired := valid
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		rec, _ := serve(sign(t, jwt.SigningMethodHS256, []byte(secret), expired))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("subject is not a user id", func(t *testing.T) {
		bad := valid
		bad.Subject = "alice"
		rec, _ := serve(sign(t, jwt.SigningMethodHS256, []byte(secret), bad))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid user ID in token"}`, rec.Body.String())
	})

	t.Run("unsigned token", func(t *testing.T) {
		rec, _ := serve(sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
