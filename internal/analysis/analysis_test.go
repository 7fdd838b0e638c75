package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

func newTestAnalyzer(opts AnalyzerOptions) *Analyzer {
	return NewAnalyzer(NewClassifier(DefaultSourceConfig()), opts)
}

func TestAnalyze_AcmeScenario(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{})
	brand := models.Brand{Name: "Acme Corp", Domain: "acmecorp.com"}

	res := a.Analyze("Acme Corp is the best choice. See https://www.acmecorp.com/pricing.", brand)

	require.Len(t, res.Mentions, 1)
	m := res.Mentions[0]
	assert.Equal(t, "Acme Corp", m.Brand)
	assert.Equal(t, models.MatchPrimary, m.MatchType)
	assert.Equal(t, 1, m.Position)
	assert.True(t, m.IsTarget)
	assert.True(t, m.IsCited)
	assert.True(t, m.HasIndicator)
	// base + indicator + first position
	assert.InDelta(t, 0.95, m.Confidence, 1e-9)

	require.Len(t, res.Citations, 1)
	c := res.Citations[0]
	assert.Equal(t, "https://www.acmecorp.com/pricing", c.SourceURL)
	assert.Equal(t, "acmecorp.com", c.SourceDomain)
	assert.Equal(t, models.SourceBrandOwned, c.SourceType)
	assert.InDelta(t, 0.85, c.AuthorityScore, 1e-9)

	assert.True(t, res.Presence.BrandDetected)
	assert.Equal(t, models.MatchPrimary, res.Presence.MentionType)
	assert.True(t, res.Presence.CitationPresent)
}

func TestDetectMentions_EmptyAnswer(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{})
	assert.Empty(t, a.DetectMentions("", models.Brand{Name: "Acme"}))
	assert.Empty(t, a.DetectMentions("   \n", models.Brand{Name: "Acme"}))
}

func TestDetectMentions_TargetsBeforeCompetitors(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{})
	brand := models.Brand{
		Name:        "Acme",
		Competitors: []models.Competitor{{Name: "Rival"}},
	}

	mentions := a.DetectMentions("Rival is the best option. Acme works. Acme again.", brand)

	require.Len(t, mentions, 3)
	assert.Equal(t, "Acme", mentions[0].Brand)
	assert.Equal(t, "Acme", mentions[1].Brand)
	assert.Equal(t, "Rival", mentions[2].Brand)

	for i, m := range mentions {
		assert.Equal(t, i+1, m.Position)
	}

	rival := mentions[2]
	assert.False(t, rival.IsTarget)
	assert.Equal(t, models.MatchSecondary, rival.MatchType)
	assert.Equal(t, 0.85, rival.Confidence)
}

func TestDetectMentions_LeadMatchesArePrimary(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{ContextRadius: 5})
	answer := "Acme one. Acme two. Acme three. Acme four."

	mentions := a.DetectMentions(answer, models.Brand{Name: "Acme"})

	require.Len(t, mentions, 4)
	assert.Equal(t, models.MatchPrimary, mentions[0].MatchType)
	assert.Equal(t, models.MatchPrimary, mentions[1].MatchType)
	assert.Equal(t, models.MatchPrimary, mentions[2].MatchType)
	assert.Equal(t, models.MatchSecondary, mentions[3].MatchType)

	assert.InDelta(t, 0.80, mentions[0].Confidence, 1e-9)
	assert.InDelta(t, 0.70, mentions[3].Confidence, 1e-9)
	for _, m := range mentions {
		assert.LessOrEqual(t, m.Confidence, 0.98)
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
	}
}

func TestDetectMentions_IndicatorPromotesLateMatch(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{ContextRadius: 8, LeadMatches: 1})
	answer := "Acme one. Acme two. Acme is top."

	mentions := a.DetectMentions(answer, models.Brand{Name: "Acme"})

	require.Len(t, mentions, 3)
	assert.Equal(t, models.MatchSecondary, mentions[1].MatchType)
	assert.Equal(t, models.MatchPrimary, mentions[2].MatchType)
	assert.InDelta(t, 0.85, mentions[2].Confidence, 1e-9)
}

func TestDetectMentions_WordBoundariesAndMetacharacters(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{})

	assert.Empty(t, a.DetectMentions("Welcome to Acmeville.", models.Brand{Name: "Acme"}))
	assert.Empty(t, a.DetectMentions("AxB is a thing.", models.Brand{Name: "A.B"}))
	assert.Len(t, a.DetectMentions("Teams using C++ ship fast.", models.Brand{Name: "C++"}), 1)
	assert.Len(t, a.DetectMentions("ACME and acme.", models.Brand{Name: "Acme"}), 2)
}

func TestDetectMentions_UnicodeWordBoundaries(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{})
	brand := models.Brand{Name: "Über"}

	assert.Empty(t, a.DetectMentions("XÜber is not the brand.", brand))
	assert.Empty(t, a.DetectMentions("Überall ist es gut.", brand))
	assert.Empty(t, a.DetectMentions("Ça va chez Café.", models.Brand{Name: "Ça va chez Caf"}))

	mentions := a.DetectMentions("Über is great. ÜBER again.", brand)
	require.Len(t, mentions, 2)
	assert.Equal(t, 0, mentions[0].Start)
	assert.Equal(t, "ÜBER", "Über is great. ÜBER again."[mentions[1].Start:mentions[1].End])
}

func TestFindTerm_RetriesAfterRejectedMatch(t *testing.T) {
	text := "Xa a a"
	found := findTerm("a a", text)
	require.Len(t, found, 1)
	assert.Equal(t, "a a", text[found[0].start:found[0].end])
	assert.Equal(t, 3, found[0].start)
}

func TestIndicators_UnicodeBoundaries(t *testing.T) {
	re := alternation([]string{"top"})
	assert.True(t, re.MatchString("Acme is top."))
	assert.True(t, re.MatchString("top"))
	assert.False(t, re.MatchString("topé choice"))
	assert.False(t, re.MatchString("stop"))
}

func TestDetectMentions_OverlappingVariants(t *testing.T) {
	brand := models.Brand{Name: "Acme Corp", Variants: []string{"Acme"}}
	answer := "Acme Corp ships weekly. Acme also offers support."

	deOverlapped := newTestAnalyzer(AnalyzerOptions{}).DetectMentions(answer, brand)
	require.Len(t, deOverlapped, 2)
	assert.Equal(t, "Acme Corp", deOverlapped[0].Brand)
	assert.Equal(t, "Acme", deOverlapped[1].Brand)

	withOverlaps := newTestAnalyzer(AnalyzerOptions{AllowOverlaps: true}).DetectMentions(answer, brand)
	assert.Len(t, withOverlaps, 3)
}

func TestDetectMentions_ContextWindow(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{ContextRadius: 4})

	mentions := a.DetectMentions("héllo wörld Acme über alles", models.Brand{Name: "Acme"})

	require.Len(t, mentions, 1)
	assert.Equal(t, "rld Acme übe", mentions[0].Context)
}

func TestMarkCited_Competitor(t *testing.T) {
	a := newTestAnalyzer(AnalyzerOptions{})
	brand := models.Brand{
		Name:   "Acme",
		Domain: "acme.com",
		Competitors: []models.Competitor{
			{Name: "Rival", Domain: "https://www.rivalhq.co.uk"},
			{Name: "Other"},
		},
	}

	res := a.Analyze("Acme or Rival or Other? Read https://blog.rivalhq.co.uk/compare", brand)

	require.Len(t, res.Mentions, 3)
	assert.False(t, res.Mentions[0].IsCited, "no brand owned citation")
	assert.True(t, res.Mentions[1].IsCited)
	assert.False(t, res.Mentions[2].IsCited, "competitor without domain is never cited")
	require.Len(t, res.Citations, 1)
	assert.Equal(t, models.SourceCompetitor, res.Citations[0].SourceType)
}

func TestExtractCitations(t *testing.T) {
	text := "Sources: https://a.com/x, https://a.com/x. See https://b.org/y; and https://c.gov/z. Not a link: ftp://d.com"

	urls := ExtractCitations(text)

	assert.Equal(t, []string{"https://a.com/x", "https://b.org/y", "https://c.gov/z"}, urls)
}

func TestMergeCitations(t *testing.T) {
	merged := MergeCitations(
		[]string{"https://a.com/x", "https://b.com;"},
		[]string{"https://b.com", " https://c.com. "},
	)
	assert.Equal(t, []string{"https://a.com/x", "https://b.com", "https://c.com"}, merged)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "acme.com", DomainOf("https://WWW.Acme.com/pricing"))
	assert.Equal(t, "docs.acme.com", DomainOf("docs.acme.com/start"))
	assert.Equal(t, "", DomainOf("https://"))
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "rival.co.uk", RegistrableDomain("blog.rival.co.uk"))
	assert.Equal(t, "rival.io", RegistrableDomain("www.rival.io"))
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultSourceConfig())
	competitors := []string{"rival.io", "www.acme.com"}

	tests := []struct {
		domain    string
		wantType  models.SourceType
		wantScore float64
	}{
		{"docs.acme.com", models.SourceBrandOwned, 0.85},
		{"acme.com", models.SourceBrandOwned, 0.85},
		{"rival.io", models.SourceCompetitor, 0.50},
		{"irs.gov", models.SourceGovernment, 0.90},
		{"en.wikipedia.org", models.SourceWikipedia, 0.90},
		{"linkedin.com", models.SourceSocial, 0.75},
		{"x.com", models.SourceSocial, 0.50},
		{"gartner.com", models.SourcePublisher, 0.90},
		{"mit.edu", models.SourceUnknown, 0.85},
		{"example.org", models.SourceUnknown, 0.75},
		{"dropbox.com", models.SourceUnknown, 0.50},
		{"", models.SourceUnknown, 0.50},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			st, score := c.Classify(tt.domain, "https://www.acme.com", competitors)
			assert.Equal(t, tt.wantType, st)
			assert.InDelta(t, tt.wantScore, score, 1e-9)

			st2, score2 := c.Classify(tt.domain, "https://www.acme.com", competitors)
			assert.Equal(t, st, st2)
			assert.Equal(t, score, score2)
		})
	}
}

func TestClassifier_NoBrandDomain(t *testing.T) {
	c := NewClassifier(DefaultSourceConfig())
	st, score := c.Classify("acme.com", "", nil)
	assert.Equal(t, models.SourceUnknown, st)
	assert.InDelta(t, 0.50, score, 1e-9)
}

func TestLoadSourceConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	yaml := `
first_party_authority: 0.9
domain_authority:
  acme-reviews.com: 0.8
social_domains:
  - mastodon.social
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadSourceConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.FirstPartyAuthority)
	assert.Equal(t, 0.8, cfg.DomainAuthority["acme-reviews.com"])
	assert.Equal(t, 0.90, cfg.DomainAuthority["wikipedia.org"], "defaults are kept")
	assert.Equal(t, []string{"mastodon.social"}, cfg.SocialDomains)

	c := NewClassifier(cfg)
	st, score := c.Classify("mastodon.social", "", nil)
	assert.Equal(t, models.SourceSocial, st)
	assert.InDelta(t, 0.50, score, 1e-9)
}

func TestLoadSourceConfig_Errors(t *testing.T) {
	_, err := LoadSourceConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_authority: 1.5\n"), 0o600))
	_, err = LoadSourceConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_authority")
}

func TestLoadSourceConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadSourceConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSourceConfig(), cfg)
}

func TestLoadSourceConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadSourceConfig(filepath.Join("..", "..", "config", "sources.example.yaml"))
	require.NoError(t, err)

	c := NewClassifier(cfg)
	st, _ := c.Classify("www.service.gov.uk", "", nil)
	assert.Equal(t, models.SourceGovernment, st)
	st, score := c.Classify("g2.com", "", nil)
	assert.Equal(t, models.SourcePublisher, st)
	assert.InDelta(t, 0.80, score, 1e-9)
}
