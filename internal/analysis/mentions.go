// Package analysis detects brand mentions and cited sources in generated
// answers without calling a model. Its output is the ground truth the
// self-annotation is reconciled against.
package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

const (
	baseConfidence       = 0.70
	indicatorBonus       = 0.15
	firstPositionBonus   = 0.10
	maxConfidence        = 0.98
	competitorConfidence = 0.85
)

// DefaultIndicators is the recommendation vocabulary that promotes a target
// mention to primary.
var DefaultIndicators = []string{
	"recommend", "recommended", "recommends", "recommendation",
	"best", "top", "top-rated", "leading", "excellent", "popular",
	"trusted", "preferred", "ideal", "standout", "outstanding",
}

type AnalyzerOptions struct {
	// Indicators overrides DefaultIndicators when non-empty.
	Indicators []string
	// ContextRadius is the number of runes kept on each side of a match.
	ContextRadius int
	// LeadMatches is how many target matches count as primary regardless of
	// context.
	LeadMatches int
	// AllowOverlaps keeps matches whose span overlaps an earlier match, e.g.
	// "Acme" inside "Acme Corp".
	AllowOverlaps bool
}

// Analyzer is the deterministic brand presence detector.
type Analyzer struct {
	classifier *Classifier
	indicators *regexp.Regexp
	radius     int
	lead       int
	overlaps   bool
}

func NewAnalyzer(classifier *Classifier, opts AnalyzerOptions) *Analyzer {
	words := opts.Indicators
	if len(words) == 0 {
		words = DefaultIndicators
	}
	if opts.ContextRadius <= 0 {
		opts.ContextRadius = 50
	}
	if opts.LeadMatches <= 0 {
		opts.LeadMatches = 3
	}
	if classifier == nil {
		classifier = NewClassifier(DefaultSourceConfig())
	}
	return &Analyzer{
		classifier: classifier,
		indicators: alternation(words),
		radius:     opts.ContextRadius,
		lead:       opts.LeadMatches,
		overlaps:   opts.AllowOverlaps,
	}
}

// Classifier returns the source classifier the analyzer uses.
func (a *Analyzer) Classifier() *Classifier { return a.classifier }

// Result is the full deterministic reading of one answer.
type Result struct {
	Mentions  []models.BrandMention
	Citations []models.Citation
	Presence  models.BrandPresence
}

// Analyze detects mentions and citations in answer and marks which mentions
// are backed by a citation.
func (a *Analyzer) Analyze(answer string, brand models.Brand) Result {
	citations := a.ClassifyCitations(ExtractCitations(answer), brand)
	mentions := a.DetectMentions(answer, brand)
	a.MarkCited(mentions, citations, brand)
	return Result{
		Mentions:  mentions,
		Citations: citations,
		Presence:  Presence(mentions),
	}
}

type span struct{ start, end int }

// DetectMentions scans answer for the target brand and its variants, then for
// competitors. Positions form a single running counter in scan order.
func (a *Analyzer) DetectMentions(answer string, brand models.Brand) []models.BrandMention {
	if strings.TrimSpace(answer) == "" {
		return nil
	}

	var (
		mentions     []models.BrandMention
		taken        []span
		position     int
		targetSeen   int
		competitorNm = make([]string, 0, len(brand.Competitors))
	)
	for _, c := range brand.Competitors {
		competitorNm = append(competitorNm, c.Name)
	}

	accept := func(s span) bool {
		if a.overlaps {
			return true
		}
		for _, t := range taken {
			if s.start < t.end && t.start < s.end {
				return false
			}
		}
		taken = append(taken, s)
		return true
	}

	for _, term := range distinctTerms(append([]string{brand.Name}, brand.Variants...)) {
		for _, s := range findTerm(term, answer) {
			if !accept(s) {
				continue
			}
			position++
			targetSeen++
			ctx := a.window(answer, s)
			indicator := a.indicators.MatchString(ctx)

			matchType := models.MatchSecondary
			if targetSeen <= a.lead || indicator {
				matchType = models.MatchPrimary
			}
			mentions = append(mentions, models.BrandMention{
				Brand:        term,
				MatchType:    matchType,
				Position:     position,
				Confidence:   targetConfidence(indicator, position),
				Context:      ctx,
				IsTarget:     true,
				Start:        s.start,
				End:          s.end,
				HasIndicator: indicator,
			})
		}
	}

	for _, term := range distinctTerms(competitorNm) {
		for _, s := range findTerm(term, answer) {
			if !accept(s) {
				continue
			}
			position++
			ctx := a.window(answer, s)
			mentions = append(mentions, models.BrandMention{
				Brand:        term,
				MatchType:    models.MatchSecondary,
				Position:     position,
				Confidence:   competitorConfidence,
				Context:      ctx,
				Start:        s.start,
				End:          s.end,
				HasIndicator: a.indicators.MatchString(ctx),
			})
		}
	}
	return mentions
}

// MarkCited sets IsCited on mentions: a target mention is cited when any
// citation is brand owned, a competitor mention when any citation domain
// contains the competitor's registrable domain.
func (a *Analyzer) MarkCited(mentions []models.BrandMention, citations []models.Citation, brand models.Brand) {
	brandCited := false
	for _, c := range citations {
		if c.SourceType == models.SourceBrandOwned {
			brandCited = true
			break
		}
	}

	competitorDomain := make(map[string]string, len(brand.Competitors))
	for _, c := range brand.Competitors {
		if c.Domain != "" {
			competitorDomain[strings.ToLower(c.Name)] = RegistrableDomain(c.Domain)
		}
	}

	for i := range mentions {
		m := &mentions[i]
		if m.IsTarget {
			m.IsCited = brandCited
			continue
		}
		base, ok := competitorDomain[strings.ToLower(m.Brand)]
		if !ok || base == "" {
			continue
		}
		for _, c := range citations {
			if containsDomain(NormalizeDomain(c.SourceDomain), base) {
				m.IsCited = true
				break
			}
		}
	}
}

// Presence summarizes target mentions into a brand presence verdict.
func Presence(mentions []models.BrandMention) models.BrandPresence {
	p := models.BrandPresence{MentionType: models.MatchNone}
	count := 0
	for _, m := range mentions {
		if !m.IsTarget {
			continue
		}
		count++
		if !p.BrandDetected {
			p.BrandDetected = true
			p.MentionType = m.MatchType
		}
		if m.MatchType == models.MatchPrimary {
			p.MentionType = models.MatchPrimary
		}
		p.CitationPresent = p.CitationPresent || m.IsCited
		p.Confidence = math.Max(p.Confidence, m.Confidence)
	}
	if count == 0 {
		p.Reasoning = "brand not found in answer"
	} else {
		p.Reasoning = fmt.Sprintf("deterministic match: %d target mention(s)", count)
	}
	return p
}

func targetConfidence(indicator bool, position int) float64 {
	c := baseConfidence
	if indicator {
		c += indicatorBonus
	}
	if position == 1 {
		c += firstPositionBonus
	}
	return math.Min(c, maxConfidence)
}

// window returns the match with up to radius runes on each side.
func (a *Analyzer) window(text string, s span) string {
	start := s.start
	for i := 0; i < a.radius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := s.end
	for i := 0; i < a.radius && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return strings.TrimSpace(text[start:end])
}

// findTerm returns the case-insensitive occurrences of term in text. An
// occurrence must not continue a word on either side where the term itself
// starts or ends with a word character, so "C++" still matches before "x".
// Word characters are Unicode letters, digits and marks: "Über" is not found
// inside "XÜber".
func findTerm(term, text string) []span {
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)

	var out []span
	for off := 0; off < len(text); {
		loc := re.FindStringIndex(text[off:])
		if loc == nil {
			break
		}
		start, end := off+loc[0], off+loc[1]
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (isWord(first) && start > 0 && isWord(before)) || (isWord(last) && end < len(text) && isWord(after)) {
			// retry one rune further so an overlapping occurrence is not lost
			_, size := utf8.DecodeRuneInString(text[start:])
			off = start + size
			continue
		}
		out = append(out, span{start, end})
		off = end
	}
	return out
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// nonWord is the complement of isWord as a regexp class.
const nonWord = `[^\p{L}\p{Nd}\p{Mn}_]`

func alternation(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return regexp.MustCompile(`[^\s\S]`)
	}
	// longest first so "top-rated" wins over "top"
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)(?:^|` + nonWord + `)(?:` + strings.Join(quoted, "|") + `)(?:` + nonWord + `|$)`)
}

// distinctTerms drops blanks and case-insensitive duplicates, keeping order.
func distinctTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
