package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "brand and category",
			template: "How does {brand} compare in {category}?",
			vars:     BrandVars("Acme Corp", "Enterprise Software"),
			want:     "How does Acme Corp compare in Enterprise Software?",
		},
		{
			name:     "unknown placeholder left literally",
			template: "Is {brand} better than {foo}?",
			vars:     BrandVars("Acme", "CRM"),
			want:     "Is Acme better than {foo}?",
		},
		{
			name:     "repeated placeholder",
			template: "{brand} vs {brand}",
			vars:     map[string]string{"brand": "Acme"},
			want:     "Acme vs Acme",
		},
		{
			name:     "no placeholders",
			template: "What is the best CRM?",
			vars:     nil,
			want:     "What is the best CRM?",
		},
		{
			name:     "double braces are not a single placeholder",
			template: "{{brand}}",
			vars:     map[string]string{"brand": "Acme"},
			want:     "{Acme}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, tt.vars))
		})
	}
}

func TestExtractVariables(t *testing.T) {
	vars := ExtractVariables("Top {category} tools like {brand}? Why {brand}?")
	assert.Equal(t, []string{"category", "brand"}, vars)
}
