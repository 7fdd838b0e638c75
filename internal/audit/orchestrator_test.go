package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/brandaudit/internal/llm"
	"github.com/nikhilbhutani/brandaudit/internal/models"
	"github.com/nikhilbhutani/brandaudit/internal/retry"
)

type fakeStore struct {
	mu       sync.Mutex
	audit    *models.Audit
	statuses []models.AuditStatus
	runs     []*models.RunResult
	recs     []models.Recommendation
	onSave   func(*models.RunResult) error
}

func (s *fakeStore) GetAudit(_ context.Context, id uuid.UUID) (*models.Audit, error) {
	if s.audit == nil || s.audit.ID != id {
		return nil, models.ErrNotFound
	}
	a := *s.audit
	return &a, nil
}

func (s *fakeStore) UpdateAuditStatus(ctx context.Context, _ uuid.UUID, status models.AuditStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStore) SaveRun(_ context.Context, res *models.RunResult) error {
	if s.onSave != nil {
		if err := s.onSave(res); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, res)
	return nil
}

func (s *fakeStore) SaveRecommendations(_ context.Context, _ uuid.UUID, recs []models.Recommendation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recs) > 0 {
		return 0, nil
	}
	s.recs = append(s.recs, recs...)
	return len(recs), nil
}

func (s *fakeStore) lastStatus() models.AuditStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type fakeTemplates []models.PromptTemplate

func (f fakeTemplates) ListActive(context.Context) ([]models.PromptTemplate, error) {
	return f, nil
}

type fakeLocker struct {
	held     bool
	released bool
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released = true
		return nil
	}, true, nil
}

const goodAnnotation = `{
  "prompt_asked": "q",
  "answer_text": "a",
  "citations": ["https://acme.com/pricing"],
  "mentions": [{"brand": "Acme Corp", "type": "primary"}],
  "scores": {"presence_rate": 1, "citation_rate": 1, "recommendation_rate": 1, "authority_diversity": 0.2},
  "primary_brand": {"detected": true, "mention_type": "primary", "confidence": 0.9, "reasoning": "named first"}
}`

const goodRecommendations = `{"recommendations": [
  {"category": "authority", "title": "Earn analyst coverage", "description": "d", "why_it_matters": "w", "impact": "high", "effort": "huge"},
  {"category": "unknown", "title": "  ", "description": "", "why_it_matters": "", "impact": "", "effort": ""}
]}`

// scriptedLLM answers by request kind: plain generation, annotation or
// recommendation synthesis.
type scriptedLLM struct {
	mu        sync.Mutex
	calls     int
	generate  func(prompt string) (string, error)
	annotate  func() (string, error)
	recommend func() (string, error)
	// recommendPrompt is the user message of the last recommendation call.
	recommendPrompt string
}

func (s *scriptedLLM) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	var content string
	var err error
	switch {
	case req.Schema == nil:
		content, err = s.generate(req.Messages[len(req.Messages)-1].Content)
	case req.Schema.Name == "brand_annotation":
		content, err = s.annotate()
	default:
		s.mu.Lock()
		s.recommendPrompt = req.Messages[len(req.Messages)-1].Content
		s.mu.Unlock()
		if s.recommend == nil {
			return nil, errors.New("unexpected recommendation call")
		}
		content, err = s.recommend()
	}
	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{ID: "resp", Provider: "openai", Model: req.Model, Content: content}, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func acmeAudit() *models.Audit {
	return &models.Audit{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		BrandName:     "Acme Corp",
		Category:      "project management software",
		PrimaryDomain: "acme.com",
		Competitors:   []models.Competitor{{Name: "Rival", Domain: "rival.io"}},
		Status:        models.AuditStatusPending,
	}
}

func battery(texts ...string) fakeTemplates {
	var ts fakeTemplates
	for i, text := range texts {
		ts = append(ts, models.PromptTemplate{
			ID:        uuid.New(),
			Name:      "template-" + string(rune('a'+i)),
			Intent:    models.IntentInformational,
			Template:  text,
			Active:    true,
			SortOrder: i,
		})
	}
	return ts
}

func testOptions() RunOptions {
	return RunOptions{
		GenerationModel: "gpt-4o",
		AnnotationModel: "gpt-4o-mini",
		Retry:           retry.Policy{MaxAttempts: 1},
	}
}

func answerFor(prompt string) (string, error) {
	if strings.Contains(prompt, "FAIL") {
		return "", errors.New("provider returned 400")
	}
	return "For " + prompt + " I recommend Acme Corp. See https://acme.com/pricing and https://en.wikipedia.org/wiki/Acme.", nil
}

func newTestOrchestrator(store *fakeStore, ts fakeTemplates, locker Locker, chat llm.Chatter) *Orchestrator {
	return NewOrchestrator(store, ts, locker, chat, nil, testOptions(), time.Minute)
}

func TestRun_HalfFailingBatteryFailsAudit(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	ts := battery(
		"Best {category}?", "FAIL 1 {brand}", "Is {brand} good?",
		"FAIL 2 {brand}", "Alternatives to {brand}?", "FAIL 3 {brand}",
	)
	chat := &scriptedLLM{
		generate:  answerFor,
		annotate:  func() (string, error) { return goodAnnotation, nil },
		recommend: func() (string, error) { return goodRecommendations, nil },
	}
	locker := &fakeLocker{}

	res, err := newTestOrchestrator(store, ts, locker, chat).Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusFailed, res.Status)
	assert.Equal(t, 3, res.RunCount)
	assert.Equal(t, 6, res.TemplateCount)
	assert.InDelta(t, 0.5, res.IssueRatio, 1e-9)
	require.Len(t, res.Issues, 3)
	for _, is := range res.Issues {
		assert.Equal(t, models.IssueProviderError, is.Kind)
		assert.Contains(t, is.Message, "provider returned 400")
	}
	assert.Equal(t, ts[1].ID, res.Issues[0].PromptID)

	assert.Len(t, store.runs, 3)
	assert.Equal(t, []models.AuditStatus{models.AuditStatusRunning, models.AuditStatusFailed}, store.statuses)
	assert.True(t, locker.released)
	assert.Equal(t, 1, res.Recommendations)
}

func TestRun_PersistsReconciledRun(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	ts := battery("Is {brand} a good {category}?")
	chat := &scriptedLLM{
		generate:  answerFor,
		annotate:  func() (string, error) { return goodAnnotation, nil },
		recommend: func() (string, error) { return goodRecommendations, nil },
	}

	res, err := newTestOrchestrator(store, ts, nil, chat).Run(context.Background(), a.ID, a.UserID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusCompleted, res.Status)
	require.Len(t, store.runs, 1)

	rr := store.runs[0]
	assert.Equal(t, "Is Acme Corp a good project management software?", rr.Run.PromptText)
	assert.Equal(t, a.ID, rr.Run.AuditID)
	assert.Equal(t, []string{"resp", "resp"}, rr.Run.RawResponse.ResponseIDs)
	require.Len(t, rr.Run.RawResponse.Usage, 2)
	assert.Equal(t, "generate", rr.Run.RawResponse.Usage[0].Kind)
	assert.Equal(t, "gpt-4o", rr.Run.RawResponse.Usage[0].Model)
	assert.Equal(t, "gpt-4o-mini", rr.Run.RawResponse.Usage[1].Model)

	require.Len(t, rr.Citations, 2)
	assert.Equal(t, models.SourceBrandOwned, rr.Citations[0].SourceType)
	assert.Equal(t, models.SourceWikipedia, rr.Citations[1].SourceType)
	for _, c := range rr.Citations {
		assert.Equal(t, rr.Run.ID, c.RunID)
	}

	require.NotEmpty(t, rr.Mentions)
	assert.True(t, rr.Mentions[0].IsTarget)
	assert.True(t, rr.Mentions[0].IsCited)
	assert.Equal(t, rr.Run.ID, rr.Presence.RunID)
	assert.True(t, rr.Presence.BrandDetected)
	assert.True(t, rr.Presence.CitationPresent)
	assert.Equal(t, "named first", rr.Presence.Reasoning)

	assert.Equal(t, 0.2, rr.Analysis.Scores.AuthorityDiversity)
	assert.InDelta(t, 1.0, rr.Analysis.Visibility, 1e-9)
	assert.Equal(t, "annotation", rr.Analysis.ScoreSources["presence_rate"])

	require.Len(t, store.recs, 1)
	assert.Equal(t, "Earn analyst coverage", store.recs[0].Title)
	assert.Equal(t, models.RecommendationAuthority, store.recs[0].Category)
	assert.Equal(t, "high", store.recs[0].Impact)
	assert.Equal(t, "medium", store.recs[0].Effort)
	assert.Equal(t, models.RecommendationPending, store.recs[0].Status)
}

func TestRun_ForbiddenHasNoSideEffects(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	chat := &scriptedLLM{generate: answerFor}
	locker := &fakeLocker{}

	res, err := newTestOrchestrator(store, battery("{brand}?"), locker, chat).Run(context.Background(), a.ID, uuid.New(), RunOptions{})

	require.ErrorIs(t, err, ErrForbidden)
	assert.Nil(t, res)
	assert.Empty(t, store.statuses)
	assert.Empty(t, store.runs)
	assert.Zero(t, chat.callCount())
	assert.False(t, locker.held)
}

func TestRun_UnknownAudit(t *testing.T) {
	store := &fakeStore{audit: acmeAudit()}
	_, err := newTestOrchestrator(store, nil, nil, &scriptedLLM{}).Run(context.Background(), uuid.New(), uuid.New(), RunOptions{})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRun_LockHeld(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	locker := &fakeLocker{held: true}

	_, err := newTestOrchestrator(store, battery("{brand}?"), locker, &scriptedLLM{}).Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.ErrorIs(t, err, ErrAuditInProgress)
	assert.Empty(t, store.statuses)
}

func TestRun_NoTemplates(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}

	res, err := newTestOrchestrator(store, nil, nil, &scriptedLLM{}).Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.ErrorIs(t, err, ErrNoTemplates)
	require.NotNil(t, res)
	assert.Equal(t, models.AuditStatusFailed, res.Status)
	assert.Equal(t, models.AuditStatusFailed, store.lastStatus())
}

func TestRun_MalformedAnnotationIsParseError(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	chat := &scriptedLLM{
		generate: answerFor,
		annotate: func() (string, error) { return "I think Acme is great!", nil },
	}

	res, err := newTestOrchestrator(store, battery("{brand}?", "{brand} vs Rival?"), nil, chat).Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, models.IssueParseError, res.Issues[0].Kind)
	assert.Contains(t, res.Issues[0].Message, "I think Acme is great!")
	assert.Equal(t, models.AuditStatusFailed, res.Status)
	assert.Zero(t, res.Recommendations)
}

func TestRun_PersistenceFailureIsIssue(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a, onSave: func(*models.RunResult) error { return errors.New("connection reset") }}
	chat := &scriptedLLM{
		generate: answerFor,
		annotate: func() (string, error) { return goodAnnotation, nil },
	}

	res, err := newTestOrchestrator(store, battery("{brand}?"), nil, chat).Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, models.IssuePersistenceError, res.Issues[0].Kind)
	assert.Equal(t, models.AuditStatusFailed, res.Status)
}

func TestRun_RecommendationFailureIsNotFatal(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	chat := &scriptedLLM{
		generate:  answerFor,
		annotate:  func() (string, error) { return goodAnnotation, nil },
		recommend: func() (string, error) { return "", errors.New("boom") },
	}

	res, err := newTestOrchestrator(store, battery("{brand}?", "Is {brand} good?"), nil, chat).Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusCompleted, res.Status)
	assert.Zero(t, res.Recommendations)
	assert.Empty(t, store.recs)
}

func TestRun_CancellationRecordsRemainingTemplates(t *testing.T) {
	a := acmeAudit()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{audit: a, onSave: func(*models.RunResult) error {
		cancel()
		return nil
	}}
	chat := &scriptedLLM{
		generate: answerFor,
		annotate: func() (string, error) { return goodAnnotation, nil },
	}

	res, err := newTestOrchestrator(store, battery("{brand}?", "b {brand}", "c {brand}"), nil, chat).Run(ctx, a.ID, a.UserID, RunOptions{})

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.RunCount)
	require.Len(t, res.Issues, 2)
	for _, is := range res.Issues {
		assert.Equal(t, models.IssueCancelled, is.Kind)
	}
	assert.Equal(t, models.AuditStatusFailed, res.Status)
	assert.Equal(t, models.AuditStatusFailed, store.lastStatus(), "finalized despite cancellation")
}

func TestRunOptions_Merge(t *testing.T) {
	defaults := RunOptions{
		GenerationModel:    "gpt-4o",
		Temperature:        0.2,
		CallTimeout:        time.Minute,
		Retry:              retry.Policy{MaxAttempts: 3, InitialDelay: time.Second},
		MaxRecommendations: 50,
	}

	got := RunOptions{RetryMaxAttempts: 5}.merge(defaults)

	assert.Equal(t, "gpt-4o", got.GenerationModel)
	assert.Equal(t, "gpt-4o", got.AnnotationModel)
	assert.Equal(t, 5, got.Retry.MaxAttempts)
	assert.Equal(t, time.Second, got.Retry.InitialDelay)
	assert.NotNil(t, got.Retry.IsRetryable)
	assert.Equal(t, maxRecommendations, got.MaxRecommendations)
}

func TestRun_OverridesDoNotMoveFailureRatio(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	ts := battery(
		"Best {category}?", "FAIL 1 {brand}", "Is {brand} good?",
		"FAIL 2 {brand}", "Alternatives to {brand}?", "FAIL 3 {brand}",
	)
	chat := &scriptedLLM{
		generate:  answerFor,
		annotate:  func() (string, error) { return goodAnnotation, nil },
		recommend: func() (string, error) { return goodRecommendations, nil },
	}
	opts := RunOptions{
		GenerationModel:  "gpt-4o-mini",
		CallTimeout:      30 * time.Second,
		RetryMaxAttempts: 1,
	}

	res, err := newTestOrchestrator(store, ts, nil, chat).Run(context.Background(), a.ID, a.UserID, opts)

	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.IssueRatio, 1e-9)
	assert.Equal(t, models.AuditStatusFailed, res.Status)
	assert.Equal(t, models.AuditStatusFailed, store.lastStatus())
}

func TestRun_OneIssueBelowHalfCompletes(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	chat := &scriptedLLM{
		generate:  answerFor,
		annotate:  func() (string, error) { return goodAnnotation, nil },
		recommend: func() (string, error) { return goodRecommendations, nil },
	}

	res, err := newTestOrchestrator(store, battery("{brand}?", "FAIL {brand}", "{brand} pricing?"), nil, chat).
		Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, res.IssueRatio, 1e-9)
	assert.Equal(t, models.AuditStatusCompleted, res.Status)
}

func TestRun_RecommendationsSeeIssues(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	chat := &scriptedLLM{
		generate:  answerFor,
		annotate:  func() (string, error) { return goodAnnotation, nil },
		recommend: func() (string, error) { return goodRecommendations, nil },
	}

	res, err := newTestOrchestrator(store, battery("{brand}?", "FAIL {brand}"), nil, chat).
		Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Recommendations)
	assert.Contains(t, chat.recommendPrompt, "template-a")
	assert.Contains(t, chat.recommendPrompt, "template-b (provider_error)")
	assert.Contains(t, chat.recommendPrompt, "provider returned 400")
}

func TestRun_RecommendationsWhenEveryPromptFails(t *testing.T) {
	a := acmeAudit()
	store := &fakeStore{audit: a}
	chat := &scriptedLLM{
		generate:  answerFor,
		recommend: func() (string, error) { return goodRecommendations, nil },
	}

	res, err := newTestOrchestrator(store, battery("FAIL 1 {brand}", "FAIL 2 {brand}"), nil, chat).
		Run(context.Background(), a.ID, a.UserID, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusFailed, res.Status)
	assert.Zero(t, res.RunCount)
	assert.Equal(t, 1, res.Recommendations)
	require.Len(t, store.recs, 1)
	assert.Contains(t, chat.recommendPrompt, "Questions answered: 0 of 2")
	assert.Contains(t, chat.recommendPrompt, "template-a (provider_error): generate answer: provider returned 400")
}
