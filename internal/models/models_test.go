package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every type that reaches an HTTP response body uses camelCase keys.
func TestJSONKeysAreCamelCase(t *testing.T) {
	types := []any{
		Competitor{}, Audit{}, Brand{}, Issue{}, PromptTemplate{}, Recommendation{},
		TrendPoint{}, Summary{}, PromptResult{},
		PromptRun{}, RawResponse{}, CallUsage{}, BrandMention{}, BrandPresence{},
		Citation{}, Scores{}, Analysis{}, MentionLabel{},
	}
	for _, v := range types {
		typ := reflect.TypeOf(v)
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				continue
			}
			assert.NotContains(t, name, "_", "%s.%s", typ.Name(), f.Name)
			assert.Equal(t, strings.ToLower(name[:1]), name[:1], "%s.%s", typ.Name(), f.Name)
		}
	}
}

func TestAudit_MarshalKeys(t *testing.T) {
	done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Audit{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		BrandName:     "Acme",
		Category:      "crm",
		PrimaryDomain: "acme.com",
		BrandVariants: []string{"Acme Inc"},
		Status:        AuditStatusCompleted,
		CompletedAt:   &done,
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	for _, key := range []string{"userId", "brandName", "primaryDomain", "brandVariants", "createdAt", "completedAt"} {
		assert.Contains(t, out, key)
	}
	assert.Equal(t, "Acme", out["brandName"])
}
