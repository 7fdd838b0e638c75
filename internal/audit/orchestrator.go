// Package audit drives one audit: it runs every active prompt template against
// the model, persists what it finds and derives the audit's final status from
// the share of prompts that failed.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/brandaudit/internal/analysis"
	"github.com/nikhilbhutani/brandaudit/internal/generation"
	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/metrics"
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/prompt"
	"github.com/nikhilbhutani/brandaudit/internal/scoring"
)

// failureRatio is the share of failed prompts at which an audit fails.
const failureRatio = 0.5

var (
	// ErrForbidden means the audit belongs to another user. Nothing is executed.
	ErrForbidden = errors.New("audit belongs to another user")
	// ErrAuditInProgress means another worker holds the audit's lock.
	ErrAuditInProgress = errors.New("audit already in progress")
	// ErrNoTemplates means there is nothing to run; the audit is marked failed.
	ErrNoTemplates = errors.New("no active prompt templates")
)

// Store persists audits and their runs.
type Store interface {
	GetAudit(ctx context.Context, id uuid.UUID) (*models.Audit, error)
	UpdateAuditStatus(ctx context.Context, id uuid.UUID, status models.AuditStatus) error
	// SaveRun writes a run with its analysis, presence, mentions and
	// citations atomically.
	SaveRun(ctx context.Context, res *models.RunResult) error
	// SaveRecommendations stores recommendations unless the audit already
	// has some, returning how many were written.
	SaveRecommendations(ctx context.Context, auditID uuid.UUID, recs []models.Recommendation) (int, error)
}

// TemplateSource lists the active prompt templates in battery order.
type TemplateSource interface {
	ListActive(ctx context.Context) ([]models.PromptTemplate, error)
}

// Locker serializes runs of the same audit across workers.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// Result is the outcome of one audit run.
type Result struct {
	AuditID         uuid.UUID          `json:"auditId"`
	Status          models.AuditStatus `json:"status"`
	Issues          []models.Issue     `json:"issues"`
	IssueRatio      float64            `json:"issueRatio"`
	RunCount        int                `json:"runCount"`
	TemplateCount   int                `json:"templateCount"`
	Summary         models.Summary     `json:"summary"`
	Recommendations int                `json:"recommendations"`
}

type Orchestrator struct {
	store     Store
	templates TemplateSource
	locker    Locker
	llm       llm.Chatter
	analyzer  *analysis.Analyzer
	defaults  RunOptions
	lockTTL   time.Duration
	now       func() time.Time
}

// NewOrchestrator wires an orchestrator. locker may be nil when only one
// worker runs audits.
func NewOrchestrator(store Store, templates TemplateSource, locker Locker, chat llm.Chatter, analyzer *analysis.Analyzer, defaults RunOptions, lockTTL time.Duration) *Orchestrator {
	if analyzer == nil {
		analyzer = analysis.NewAnalyzer(nil, analysis.AnalyzerOptions{})
	}
	if lockTTL <= 0 {
		lockTTL = 45 * time.Minute
	}
	return &Orchestrator{
		store:     store,
		templates: templates,
		locker:    locker,
		llm:       chat,
		analyzer:  analyzer,
		defaults:  defaults,
		lockTTL:   lockTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LockKey is the advisory lock key of an audit.
func LockKey(auditID uuid.UUID) string {
	return "audit:lock:" + auditID.String()
}

// Run executes every active template of the audit sequentially. A failing
// prompt is recorded as an issue and never aborts the audit. When ctx is
// cancelled the remaining templates are recorded as cancelled, the audit is
// finalized and ctx's error is returned with the result.
func (o *Orchestrator) Run(ctx context.Context, auditID, userID uuid.UUID, opts RunOptions) (*Result, error) {
	start := time.Now()
	opts = opts.merge(o.defaults)

	a, err := o.store.GetAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("load audit: %w", err)
	}
	if a.UserID != userID {
		return nil, ErrForbidden
	}

	if o.locker != nil {
		release, acquired, err := o.locker.TryLock(ctx, LockKey(auditID), o.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire audit lock: %w", err)
		}
		if !acquired {
			return nil, ErrAuditInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release audit lock", "audit_id", auditID, "error", err)
			}
		}()
	}

	if err := o.store.UpdateAuditStatus(ctx, auditID, models.AuditStatusRunning); err != nil {
		return nil, fmt.Errorf("mark audit running: %w", err)
	}
	slog.Info("audit started", "audit_id", auditID, "brand", a.BrandName)

	templates, err := o.templates.ListActive(ctx)
	if err != nil {
		o.finalize(ctx, auditID, models.AuditStatusFailed)
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if len(templates) == 0 {
		o.finalize(ctx, auditID, models.AuditStatusFailed)
		metrics.AuditsTotal.WithLabelValues(string(models.AuditStatusFailed)).Inc()
		return &Result{AuditID: auditID, Status: models.AuditStatusFailed, Issues: []models.Issue{}}, ErrNoTemplates
	}

	chat := llm.Retrying(llm.WithTimeout(o.llm, opts.CallTimeout), opts.Retry)
	p := &pipeline{
		analyzer:  o.analyzer,
		generator: generation.NewGenerator(chat, opts.GenerationModel, opts.Temperature),
		annotator: generation.NewAnnotator(chat, opts.AnnotationModel),
		audit:     a,
		brand:     a.Brand(),
		now:       o.now,
	}

	res := &Result{AuditID: auditID, TemplateCount: len(templates), Issues: []models.Issue{}}
	var runs []models.RunScore
	var digests []runDigest

	for i, t := range templates {
		if ctx.Err() != nil {
			for _, rest := range templates[i:] {
				res.Issues = append(res.Issues, o.issue(rest, models.IssueCancelled, ctx.Err()))
			}
			break
		}

		rr, kind, err := p.run(ctx, t)
		if err == nil {
			if err = o.store.SaveRun(ctx, rr); err != nil {
				kind = models.IssuePersistenceError
				err = fmt.Errorf("save run: %w", err)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				kind = models.IssueCancelled
			}
			res.Issues = append(res.Issues, o.issue(t, kind, err))
			slog.Warn("prompt failed",
				"audit_id", auditID,
				"prompt_id", t.ID,
				"prompt", t.Name,
				"kind", kind,
				"error", err,
			)
			continue
		}

		observeUsage(rr.Run.RawResponse.Usage)
		res.RunCount++
		runs = append(runs, runScore(a, rr))
		digests = append(digests, runDigest{Template: t, Scores: rr.Analysis.Scores, Presence: rr.Presence})
	}

	res.IssueRatio = float64(len(res.Issues)) / float64(len(templates))
	res.Status = models.AuditStatusCompleted
	if res.IssueRatio >= failureRatio {
		res.Status = models.AuditStatusFailed
	}
	res.Summary = scoring.Summarize(runs)

	if err := o.store.UpdateAuditStatus(context.WithoutCancel(ctx), auditID, res.Status); err != nil {
		return res, fmt.Errorf("finalize audit: %w", err)
	}
	metrics.AuditsTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.AuditDuration.Observe(time.Since(start).Seconds())

	slog.Info("audit finished",
		"audit_id", auditID,
		"status", res.Status,
		"runs", res.RunCount,
		"issues", len(res.Issues),
		"issue_ratio", res.IssueRatio,
		"duration", time.Since(start).String(),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	n, err := o.recommend(ctx, chat, opts, a, res, digests)
	if err != nil {
		metrics.RecommendationFailures.Inc()
		slog.Warn("recommendation synthesis failed", "audit_id", auditID, "error", err)
	}
	res.Recommendations = n

	return res, nil
}

func (o *Orchestrator) finalize(ctx context.Context, auditID uuid.UUID, status models.AuditStatus) {
	if err := o.store.UpdateAuditStatus(context.WithoutCancel(ctx), auditID, status); err != nil {
		slog.Error("failed to finalize audit", "audit_id", auditID, "status", status, "error", err)
	}
}

func (o *Orchestrator) issue(t models.PromptTemplate, kind models.IssueKind, err error) models.Issue {
	metrics.PromptIssuesTotal.WithLabelValues(string(kind)).Inc()
	return models.Issue{
		PromptID:   t.ID,
		PromptName: t.Name,
		Kind:       kind,
		Message:    err.Error(),
	}
}

// pipeline runs a single template: render, generate, annotate, cross-check.
type pipeline struct {
	analyzer  *analysis.Analyzer
	generator *generation.Generator
	annotator *generation.Annotator
	audit     *models.Audit
	brand     models.Brand
	now       func() time.Time
}

func (p *pipeline) run(ctx context.Context, t models.PromptTemplate) (*models.RunResult, models.IssueKind, error) {
	rendered := prompt.Render(t.Template, prompt.BrandVars(p.audit.BrandName, p.audit.Category))

	answer, err := p.generator.Generate(ctx, rendered)
	if err != nil {
		return nil, models.IssueProviderError, err
	}

	candidates := analysis.ExtractCitations(answer.Text)
	ann, err := p.annotator.Annotate(ctx, generation.AnnotationInput{
		Prompt:        rendered,
		Answer:        answer.Text,
		CandidateURLs: candidates,
		Brand:         p.brand,
	})
	if err != nil {
		var perr *generation.ParseError
		if errors.As(err, &perr) {
			return nil, models.IssueParseError, err
		}
		return nil, models.IssueProviderError, err
	}

	urls := analysis.MergeCitations(candidates, ann.Citations)
	citations := p.analyzer.ClassifyCitations(urls, p.brand)
	mentions := p.analyzer.DetectMentions(answer.Text, p.brand)
	p.analyzer.MarkCited(mentions, citations, p.brand)

	rec := generation.Reconcile(ann, generation.Fallback{
		Scores:   scoring.RunScores(mentions, citations),
		Presence: analysis.Presence(mentions),
		Mentions: mentions,
	})

	runID := uuid.New()
	for i := range mentions {
		mentions[i].RunID = runID
	}
	for i := range citations {
		citations[i].RunID = runID
	}
	presence := rec.Presence
	presence.RunID = runID

	var cited []string
	for _, c := range citations {
		cited = append(cited, c.SourceURL)
	}

	return &models.RunResult{
		Run: models.PromptRun{
			ID:         runID,
			AuditID:    p.audit.ID,
			PromptID:   t.ID,
			PromptText: rendered,
			AnswerText: answer.Text,
			ExecutedAt: p.now(),
			RawResponse: models.RawResponse{
				Prompt:      rendered,
				Answer:      answer.Text,
				Citations:   cited,
				ResponseIDs: nonEmpty(answer.ResponseID, ann.ResponseID),
				Usage:       []models.CallUsage{answer.Usage, ann.Usage},
			},
		},
		Analysis: models.Analysis{
			Scores:       rec.Scores,
			Visibility:   scoring.DashboardVisibility(rec.Scores.PresenceRate, rec.Scores.CitationRate, rec.Scores.RecommendationRate),
			Mentions:     rec.Mentions,
			PrimaryBrand: presence,
			ScoreSources: rec.Sources,
		},
		Presence:  presence,
		Mentions:  mentions,
		Citations: citations,
	}, "", nil
}

func runScore(a *models.Audit, rr *models.RunResult) models.RunScore {
	domains := make([]string, 0, len(rr.Citations))
	for _, c := range rr.Citations {
		domains = append(domains, c.SourceDomain)
	}
	return models.RunScore{
		AuditID:         a.ID,
		AuditCreatedAt:  a.CreatedAt,
		RunID:           rr.Run.ID,
		PromptID:        rr.Run.PromptID,
		ExecutedAt:      rr.Run.ExecutedAt,
		Scores:          rr.Analysis.Scores,
		CitationDomains: domains,
	}
}

func observeUsage(usage []models.CallUsage) {
	for _, u := range usage {
		metrics.LLMCallDuration.WithLabelValues(u.Kind, u.Provider).Observe(float64(u.LatencyMs) / 1000)
		metrics.LLMCostUSD.WithLabelValues(u.Kind, u.Provider).Add(u.CostUSD)
	}
}

func nonEmpty(ss ...string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
