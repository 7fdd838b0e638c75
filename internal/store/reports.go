package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

// LatestRunScores returns the latest run of every (audit, template) pair of
// the given audits with its scores and cited domains.
func (s *Store) LatestRunScores(ctx context.Context, auditIDs []uuid.UUID) ([]models.RunScore, error) {
	if len(auditIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT ON (r.audit_id, r.prompt_id)
		        r.id, r.audit_id, a.created_at, r.prompt_id, r.executed_at, pa.analysis,
		        COALESCE(
		            (SELECT array_agg(c.source_domain ORDER BY c.id) FROM citations c WHERE c.prompt_run_id = r.id),
		            '{}'
		        )
		 FROM prompt_runs r
		 JOIN audits a ON a.id = r.audit_id
		 JOIN prompt_analysis pa ON pa.prompt_run_id = r.id
		 WHERE r.audit_id = ANY($1::uuid[])
		 ORDER BY r.audit_id, r.prompt_id, r.executed_at DESC`,
		uuidStrings(auditIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("query latest runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunScore
	for rows.Next() {
		var rs models.RunScore
		var analysis []byte
		if err := rows.Scan(&rs.RunID, &rs.AuditID, &rs.AuditCreatedAt, &rs.PromptID, &rs.ExecutedAt, &analysis, &rs.CitationDomains); err != nil {
			return nil, fmt.Errorf("scan latest run: %w", err)
		}
		var a models.Analysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, fmt.Errorf("decode analysis of run %s: %w", rs.RunID, err)
		}
		rs.Scores = a.Scores
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// PromptResults flattens the latest run of every template of an audit, in
// battery order.
func (s *Store) PromptResults(ctx context.Context, auditID uuid.UUID) ([]models.PromptResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT * FROM (
		     SELECT DISTINCT ON (r.prompt_id)
		            r.id, r.prompt_id, t.name, t.intent, t.sort_order, r.executed_at, r.raw_response, pa.analysis,
		            bp.brand_detected, bp.mention_type, bp.citation_present, bp.confidence, bp.reasoning,
		            (SELECT count(*) FROM brand_mentions m WHERE m.prompt_run_id = r.id)
		     FROM prompt_runs r
		     JOIN prompt_templates t ON t.id = r.prompt_id
		     JOIN prompt_analysis pa ON pa.prompt_run_id = r.id
		     JOIN brand_presence bp ON bp.prompt_run_id = r.id
		     WHERE r.audit_id = $1
		     ORDER BY r.prompt_id, r.executed_at DESC
		 ) latest
		 ORDER BY sort_order, name`,
		auditID,
	)
	if err != nil {
		return nil, fmt.Errorf("query prompt results: %w", err)
	}
	defer rows.Close()

	results := []models.PromptResult{}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var pr models.PromptResult
		var sortOrder int
		var raw, analysis []byte
		var mentions int64
		p := &pr.Presence
		if err := rows.Scan(&pr.RunID, &pr.PromptID, &pr.PromptName, &pr.Intent, &sortOrder, &pr.ExecutedAt, &raw, &analysis,
			&p.BrandDetected, &p.MentionType, &p.CitationPresent, &p.Confidence, &p.Reasoning, &mentions); err != nil {
			return nil, fmt.Errorf("scan prompt result: %w", err)
		}

		var rr models.RawResponse
		if err := json.Unmarshal(raw, &rr); err != nil {
			return nil, fmt.Errorf("decode raw response of run %s: %w", pr.RunID, err)
		}
		var a models.Analysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, fmt.Errorf("decode analysis of run %s: %w", pr.RunID, err)
		}

		pr.PromptText = rr.Prompt
		pr.AnswerText = rr.Answer
		pr.Scores = a.Scores
		pr.Presence.RunID = pr.RunID
		pr.MentionCount = int(mentions)
		pr.Citations = []models.Citation{}
		index[pr.RunID] = len(results)
		results = append(results, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}

	runIDs := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		runIDs = append(runIDs, r.RunID)
	}
	citations, err := s.citations(ctx, runIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range citations {
		i := index[c.RunID]
		results[i].Citations = append(results[i].Citations, c)
	}
	return results, nil
}

func (s *Store) citations(ctx context.Context, runIDs []uuid.UUID) ([]models.Citation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT prompt_run_id, source_url, source_domain, source_type, authority_score
		 FROM citations
		 WHERE prompt_run_id = ANY($1::uuid[])
		 ORDER BY id`,
		uuidStrings(runIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("query citations: %w", err)
	}
	defer rows.Close()

	var out []models.Citation
	for rows.Next() {
		var c models.Citation
		if err := rows.Scan(&c.RunID, &c.SourceURL, &c.SourceDomain, &c.SourceType, &c.AuthorityScore); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
