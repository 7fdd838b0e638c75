package handlers

import (
	"net/http"
	"sort"

	"github.com/nikhilbhutani/brandaudit/internal/llm"
)

type ModelLister interface {
	ListModels() []llm.ModelInfo
}

type ModelHandler struct {
	models ModelLister
}

func NewModelHandler(models ModelLister) *ModelHandler {
	return &ModelHandler{models: models}
}

// List returns the models a run may select for generation or annotation.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	models := []llm.ModelInfo{}
	if h.models != nil {
		models = append(models, h.models.ListModels()...)
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	writeJSON(w, http.StatusOK, map[string]any{"models": models, "count": len(models)})
}
