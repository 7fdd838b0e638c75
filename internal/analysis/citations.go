package analysis

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
	"mvdan.cc/xurls/v2"

	"github.com/nikhilbhutani/brandaudit/internal/models"
)

var urlPattern = func() *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		panic(err)
	}
	return re
}()

// ExtractCitations returns the http(s) URLs in text with trailing
// punctuation stripped, deduplicated in order of first appearance.
func ExtractCitations(text string) []string {
	return dedupeURLs(urlPattern.FindAllString(text, -1))
}

// CleanURL trims whitespace and trailing ".,;:" from a cited URL.
func CleanURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), ".,;:")
}

// MergeCitations unions URL lists, keeping the first occurrence of each
// cleaned URL.
func MergeCitations(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return dedupeURLs(all)
}

func dedupeURLs(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var urls []string
	for _, r := range raw {
		u := CleanURL(r)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// DomainOf returns the normalized host of a URL. Scheme-less input such as
// "acme.com/pricing" is accepted.
func DomainOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return NormalizeDomain(u.Hostname())
}

// RegistrableDomain reduces a domain to its eTLD+1, e.g. "blog.rival.co.uk"
// to "rival.co.uk". Domains publicsuffix cannot reduce are returned normalized.
func RegistrableDomain(domain string) string {
	d := NormalizeDomain(domain)
	if d == "" {
		return ""
	}
	base, err := publicsuffix.EffectiveTLDPlusOne(d)
	if err != nil {
		return d
	}
	return base
}

// ClassifyCitations turns cited URLs into citation rows for brand. URLs are
// deduplicated after cleaning and those without a host are dropped.
func (a *Analyzer) ClassifyCitations(urls []string, brand models.Brand) []models.Citation {
	competitorDomains := brand.CompetitorDomains()
	var citations []models.Citation
	for _, u := range dedupeURLs(urls) {
		domain := DomainOf(u)
		if domain == "" {
			continue
		}
		st, authority := a.classifier.Classify(domain, brand.Domain, competitorDomains)
		citations = append(citations, models.Citation{
			SourceURL:      u,
			SourceDomain:   domain,
			SourceType:     st,
			AuthorityScore: authority,
		})
	}
	return citations
}
