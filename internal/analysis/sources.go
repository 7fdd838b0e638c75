package analysis

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

// SourceConfig holds the lookup tables used to classify cited sources and
// weigh their authority. Every value is a score in [0,1].
type SourceConfig struct {
	// FirstPartyAuthority is the weight of a source on the brand's own domain.
	FirstPartyAuthority float64            `yaml:"first_party_authority"`
	DefaultAuthority    float64            `yaml:"default_authority"`
	DomainAuthority     map[string]float64 `yaml:"domain_authority"`
	// TLDAuthority is keyed by suffix including the dot, e.g. ".edu".
	TLDAuthority       map[string]float64 `yaml:"tld_authority"`
	GovernmentSuffixes []string           `yaml:"government_suffixes"`
	SocialDomains      []string           `yaml:"social_domains"`
	PublisherDomains   []string           `yaml:"publisher_domains"`
}

// DefaultSourceConfig returns the built-in tables.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		FirstPartyAuthority: 0.85,
		DefaultAuthority:    0.50,
		DomainAuthority: map[string]float64{
			"wikipedia.org":     0.90,
			"reuters.com":       0.95,
			"bloomberg.com":     0.92,
			"nytimes.com":       0.92,
			"wsj.com":           0.92,
			"gartner.com":       0.90,
			"forrester.com":     0.90,
			"hbr.org":           0.88,
			"forbes.com":        0.85,
			"techcrunch.com":    0.85,
			"g2.com":            0.80,
			"capterra.com":      0.80,
			"github.com":        0.80,
			"stackoverflow.com": 0.80,
			"trustradius.com":   0.78,
			"linkedin.com":      0.75,
			"youtube.com":       0.75,
			"reddit.com":        0.75,
		},
		TLDAuthority: map[string]float64{
			".gov": 0.90,
			".edu": 0.85,
			".org": 0.75,
		},
		GovernmentSuffixes: []string{".gov"},
		SocialDomains: []string{
			"twitter.com", "x.com", "facebook.com", "instagram.com", "linkedin.com",
			"reddit.com", "youtube.com", "tiktok.com", "quora.com", "medium.com",
			"pinterest.com",
		},
		PublisherDomains: []string{
			"gartner.com", "forrester.com", "idc.com", "g2.com", "capterra.com",
			"trustradius.com", "techcrunch.com", "forbes.com", "wired.com",
			"theverge.com", "zdnet.com", "cnet.com", "pcmag.com", "venturebeat.com",
			"businessinsider.com", "reuters.com", "bloomberg.com", "nytimes.com",
			"wsj.com", "hbr.org",
		},
	}
}

// LoadSourceConfig reads a YAML file over the built-in tables. Maps in the
// file add to or override the defaults; lists replace them.
func LoadSourceConfig(path string) (SourceConfig, error) {
	cfg := DefaultSourceConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read source config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse source config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("source config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every configured score lies in [0,1].
func (c SourceConfig) Validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s: score %.2f outside [0,1]", name, v)
		}
		return nil
	}
	if err := check("first_party_authority", c.FirstPartyAuthority); err != nil {
		return err
	}
	if err := check("default_authority", c.DefaultAuthority); err != nil {
		return err
	}
	for d, v := range c.DomainAuthority {
		if err := check("domain_authority."+d, v); err != nil {
			return err
		}
	}
	for tld, v := range c.TLDAuthority {
		if err := check("tld_authority."+tld, v); err != nil {
			return err
		}
	}
	return nil
}

// Classifier maps cited domains to a source type and authority score. It is
// safe for concurrent use and its output depends only on its inputs.
type Classifier struct {
	firstParty  float64
	fallback    float64
	domains     map[string]float64
	tlds        map[string]float64
	domainKeys  []string
	tldKeys     []string
	social      []string
	publishers  []string
	govSuffixes []string
}

func NewClassifier(cfg SourceConfig) *Classifier {
	c := &Classifier{
		firstParty:  cfg.FirstPartyAuthority,
		fallback:    cfg.DefaultAuthority,
		domains:     make(map[string]float64, len(cfg.DomainAuthority)),
		tlds:        make(map[string]float64, len(cfg.TLDAuthority)),
		social:      normalizeAll(cfg.SocialDomains),
		publishers:  normalizeAll(cfg.PublisherDomains),
		govSuffixes: lowerAll(cfg.GovernmentSuffixes),
	}
	for d, v := range cfg.DomainAuthority {
		c.domains[NormalizeDomain(d)] = v
	}
	for tld, v := range cfg.TLDAuthority {
		c.tlds[strings.ToLower(tld)] = v
	}
	c.domainKeys = longestFirst(keys(c.domains))
	c.tldKeys = longestFirst(keys(c.tlds))
	return c
}

// Classify returns the source type and authority score of domain. The first
// matching rule wins: brand owned, competitor, government, wikipedia, social,
// publisher, unknown.
func (c *Classifier) Classify(domain, brandDomain string, competitorDomains []string) (models.SourceType, float64) {
	domain = NormalizeDomain(domain)
	st := c.sourceType(domain, brandDomain, competitorDomains)
	if st == models.SourceBrandOwned {
		return st, c.firstParty
	}
	return st, c.Authority(domain)
}

func (c *Classifier) sourceType(domain, brandDomain string, competitorDomains []string) models.SourceType {
	if domain == "" {
		return models.SourceUnknown
	}
	if bd := NormalizeDomain(brandDomain); bd != "" && containsDomain(domain, bd) {
		return models.SourceBrandOwned
	}
	for _, cd := range competitorDomains {
		if cd = NormalizeDomain(cd); cd != "" && containsDomain(domain, cd) {
			return models.SourceCompetitor
		}
	}
	for _, suffix := range c.govSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return models.SourceGovernment
		}
	}
	if containsDomain(domain, "wikipedia.org") {
		return models.SourceWikipedia
	}
	for _, d := range c.social {
		if containsDomain(domain, d) {
			return models.SourceSocial
		}
	}
	for _, d := range c.publishers {
		if containsDomain(domain, d) {
			return models.SourcePublisher
		}
	}
	return models.SourceUnknown
}

// Authority scores a domain: the well-known domain table first, then the TLD
// fallback, then the default.
func (c *Classifier) Authority(domain string) float64 {
	domain = NormalizeDomain(domain)
	for _, k := range c.domainKeys {
		if domain == k || strings.HasSuffix(domain, "."+k) {
			return c.domains[k]
		}
	}
	for _, tld := range c.tldKeys {
		if strings.HasSuffix(domain, tld) {
			return c.tlds[tld]
		}
	}
	return c.fallback
}

// NormalizeDomain lowercases a host and strips a leading "www.". A scheme or
// path left on the input is dropped.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if _, rest, ok := strings.Cut(d, "://"); ok {
		d = rest
	}
	if host, _, ok := strings.Cut(d, "/"); ok {
		d = host
	}
	d = strings.TrimSuffix(d, ".")
	return strings.TrimPrefix(d, "www.")
}

// containsDomain reports whether candidate occurs in domain on label
// boundaries, so "docs.acme.com" contains "acme.com" but "dropbox.com" does
// not contain "x.com".
func containsDomain(domain, candidate string) bool {
	return strings.Contains("."+domain+".", "."+candidate+".")
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// longestFirst orders keys so the most specific entry matches first, with a
// lexical tie-break to keep lookups deterministic.
func longestFirst(ks []string) []string {
	sort.Slice(ks, func(i, j int) bool {
		if len(ks[i]) != len(ks[j]) {
			return len(ks[i]) > len(ks[j])
		}
		return ks[i] < ks[j]
	})
	return ks
}

func normalizeAll(ds []string) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		if d = NormalizeDomain(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func lowerAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, strings.ToLower(s))
	}
	return out
}
