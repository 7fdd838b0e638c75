package handlers

import (
	"context"
	"net/http"

	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/prompt"
)

type TemplateLister interface {
	ListActive(ctx context.Context) ([]models.PromptTemplate, error)
}

type TemplateHandler struct {
	templates TemplateLister
}

func NewTemplateHandler(t TemplateLister) *TemplateHandler {
	return &TemplateHandler{templates: t}
}

type templateView struct {
	models.PromptTemplate
	Variables []string `json:"variables"`
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	ts, err := h.templates.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]templateView, 0, len(ts))
	for _, t := range ts {
		views = append(views, templateView{PromptTemplate: t, Variables: prompt.ExtractVariables(t.Template)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": views, "count": len(views)})
}
