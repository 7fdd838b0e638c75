package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/brandaudit/internal/auth"
	"github.com/nikhilbhutani/brandaudit/internal/models"
)

type RecommendationStore interface {
	UpdateRecommendationStatus(ctx context.Context, userID, id uuid.UUID, status models.RecommendationStatus) (*models.Recommendation, error)
}

type RecommendationHandler struct {
	store RecommendationStore
}

func NewRecommendationHandler(store RecommendationStore) *RecommendationHandler {
	return &RecommendationHandler{store: store}
}

type UpdateRecommendationRequest struct {
	Status models.RecommendationStatus `json:"status"`
}

// UpdateStatus changes only the status of a recommendation.
func (h *RecommendationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid recommendation ID")
		return
	}

	var req UpdateRecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be one of pending, in_progress, completed, dismissed")
		return
	}

	rec, err := h.store.UpdateRecommendationStatus(r.Context(), auth.UserIDFromContext(r.Context()), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
