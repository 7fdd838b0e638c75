package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/brandaudit/internal/analysis"
	"github.com/nikhilbhutani/brandaudit/internal/audit"
	"github.com/nikhilbhutani/brandaudit/internal/auth"
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/queue"
	"github.com/nikhilbhutani/brandaudit/internal/report"
)

type AuditStore interface {
	CreateAudit(ctx context.Context, a *models.Audit) error
	GetAudit(ctx context.Context, id uuid.UUID) (*models.Audit, error)
	ListAudits(ctx context.Context, userID uuid.UUID, limit int) ([]models.Audit, error)
	ListRecommendations(ctx context.Context, auditID uuid.UUID) ([]models.Recommendation, error)
}

type AuditQueue interface {
	EnqueueAuditRun(payload queue.AuditRunPayload) error
}

type Reporter interface {
	Dashboard(ctx context.Context, auditID, userID uuid.UUID) (*report.Dashboard, error)
	Trend(ctx context.Context, auditID, userID uuid.UUID) ([]models.TrendPoint, error)
}

type AuditHandler struct {
	store   AuditStore
	queue   AuditQueue
	reports Reporter
}

func NewAuditHandler(store AuditStore, q AuditQueue, reports Reporter) *AuditHandler {
	return &AuditHandler{store: store, queue: q, reports: reports}
}

type CreateAuditRequest struct {
	BrandName     string              `json:"brandName"`
	Category      string              `json:"category"`
	PrimaryDomain string              `json:"primaryDomain"`
	BrandVariants []string            `json:"brandVariants"`
	Competitors   []models.Competitor `json:"competitors"`
	// Run defaults to true: the audit is queued right away.
	Run *bool `json:"run,omitempty"`
}

func (req *CreateAuditRequest) validate() error {
	req.BrandName = strings.TrimSpace(req.BrandName)
	req.Category = strings.TrimSpace(req.Category)
	if req.BrandName == "" {
		return errors.New("brandName required")
	}
	if req.Category == "" {
		return errors.New("category required")
	}
	if len(req.BrandVariants) > 20 {
		return errors.New("at most 20 brand variants")
	}
	if len(req.Competitors) > 25 {
		return errors.New("at most 25 competitors")
	}

	req.PrimaryDomain = analysis.NormalizeDomain(req.PrimaryDomain)
	variants := req.BrandVariants[:0]
	for _, v := range req.BrandVariants {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}
	req.BrandVariants = variants
	for i, c := range req.Competitors {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return errors.New("competitor name required")
		}
		c.Domain = analysis.NormalizeDomain(c.Domain)
		req.Competitors[i] = c
	}
	return nil
}

// RunAuditRequest carries optional per-run overrides.
type RunAuditRequest struct {
	GenerationModel  string `json:"generationModel,omitempty"`
	AnnotationModel  string `json:"annotationModel,omitempty"`
	CallTimeout      string `json:"callTimeout,omitempty"`
	RetryMaxAttempts int    `json:"retryMaxAttempts,omitempty"`
}

func (req RunAuditRequest) payload(auditID, userID uuid.UUID) (queue.AuditRunPayload, error) {
	p := queue.NewAuditRunPayload(auditID, userID)
	p.GenerationModel = req.GenerationModel
	p.AnnotationModel = req.AnnotationModel
	if req.CallTimeout != "" {
		d, err := time.ParseDuration(req.CallTimeout)
		if err != nil || d <= 0 {
			return p, errors.New("callTimeout must be a positive duration such as 45s")
		}
		p.CallTimeout = d
	}
	// Zero keeps the configured attempt count.
	if req.RetryMaxAttempts < 0 || req.RetryMaxAttempts > 10 {
		return p, errors.New("retryMaxAttempts must be between 0 and 10, 0 keeps the default")
	}
	p.RetryMaxAttempts = req.RetryMaxAttempts
	return p, nil
}

func (h *AuditHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	a := &models.Audit{
		ID:            uuid.New(),
		UserID:        userID,
		BrandName:     req.BrandName,
		Category:      req.Category,
		PrimaryDomain: req.PrimaryDomain,
		BrandVariants: req.BrandVariants,
		Competitors:   req.Competitors,
		Status:        models.AuditStatusPending,
	}
	if err := h.store.CreateAudit(r.Context(), a); err != nil {
		writeServiceError(w, r, err)
		return
	}
	slog.Info("audit created", "audit_id", a.ID, "brand", a.BrandName)

	queued := false
	if req.Run == nil || *req.Run {
		if err := h.queue.EnqueueAuditRun(queue.NewAuditRunPayload(a.ID, userID)); err != nil {
			slog.Error("failed to enqueue audit", "audit_id", a.ID, "error", err)
		} else {
			queued = true
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"audit": a, "queued": queued})
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	audits, err := h.store.ListAudits(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if audits == nil {
		audits = []models.Audit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": audits, "count": len(audits)})
}

func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ownedAudit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Run queues another execution of an audit.
func (h *AuditHandler) Run(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ownedAudit(w, r)
	if !ok {
		return
	}
	if a.Status == models.AuditStatusRunning {
		writeError(w, http.StatusConflict, "audit already queued or running")
		return
	}

	var req RunAuditRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	payload, err := req.payload(a.ID, a.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.queue.EnqueueAuditRun(payload); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"auditId": a.ID, "queued": true})
}

func (h *AuditHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid audit ID")
		return
	}
	d, err := h.reports.Dashboard(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *AuditHandler) Trend(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid audit ID")
		return
	}
	points, err := h.reports.Trend(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": points})
}

func (h *AuditHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ownedAudit(w, r)
	if !ok {
		return
	}
	recs, err := h.store.ListRecommendations(r.Context(), a.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs, "count": len(recs)})
}

func (h *AuditHandler) ownedAudit(w http.ResponseWriter, r *http.Request) (*models.Audit, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid audit ID")
		return nil, false
	}
	a, err := h.store.GetAudit(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	if a.UserID != auth.UserIDFromContext(r.Context()) {
		writeServiceError(w, r, audit.ErrForbidden)
		return nil, false
	}
	return a, true
}
