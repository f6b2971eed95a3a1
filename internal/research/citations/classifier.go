// internal/research/citations/classifier.go
package citations

import (
	"math"
	"net/url"
	"regexp"
	"strings"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/models"
)

var urlPattern = regexp.MustCompile(`https?://[^\s"<>]+`)

// trailing characters that belong to the surrounding prose, not the URL
const trailingPunct = ".,;:!?)]}'*`"

// Base confidence per source.
var sourceConfidence = map[models.CitationSource]float64{
	models.SourcePubMed:          0.95,
	models.SourceCochrane:        0.95,
	models.SourceJournal:         0.90,
	models.SourceHealthAuthority: 0.85,
	models.SourceTrustedHealth:   0.75,
	models.SourceOther:           0.5,
}

// Classifier tiers citations by hostname and grades citation sets.
type Classifier struct {
	cfg config.GradingConfig
}

func NewClassifier(cfg config.GradingConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify is deterministic in the URL's hostname. Unparseable URLs are "other".
func (c *Classifier) Classify(rawURL string) models.Citation {
	source := c.source(hostname(rawURL))
	confidence := sourceConfidence[source]

	verdict := models.VerdictPlausible
	if confidence > c.cfg.SupportedAbove {
		verdict = models.VerdictSupported
	}

	return models.Citation{
		URL:        rawURL,
		Source:     source,
		Confidence: confidence,
		Verdict:    verdict,
	}
}

func (c *Classifier) source(host string) models.CitationSource {
	switch {
	case host == "":
		return models.SourceOther
	case strings.Contains(host, "pubmed"):
		return models.SourcePubMed
	case strings.Contains(host, "cochrane"):
		return models.SourceCochrane
	case containsAny(host, c.cfg.AuthorityDomains):
		return models.SourceHealthAuthority
	case strings.Contains(host, "journal") || containsAny(host, c.cfg.Tier1Domains):
		return models.SourceJournal
	case containsAny(host, c.cfg.HealthDomains):
		return models.SourceTrustedHealth
	}
	return models.SourceOther
}

// FromText extracts every distinct URL in text, in first-seen order, and classifies it.
func (c *Classifier) FromText(text string) []models.Citation {
	urls := ExtractURLs(text)
	out := make([]models.Citation, 0, len(urls))
	for _, u := range urls {
		out = append(out, c.Classify(u))
	}
	return out
}

// Grade maps a citation set to an evidence grade. Adding a tier-1 citation never lowers it.
func (c *Classifier) Grade(cits []models.Citation) models.EvidenceGrade {
	tier1, journal := counts(cits)
	switch {
	case tier1 >= c.cfg.GradeATier1:
		return models.GradeA
	case tier1 >= c.cfg.GradeBTier1 || journal >= c.cfg.GradeBJournal:
		return models.GradeB
	case len(cits) >= c.cfg.GradeCTotal:
		return models.GradeC
	}
	return models.GradeD
}

// Confidence is the mean citation confidence plus a tier-1 bonus, capped.
func (c *Classifier) Confidence(cits []models.Citation) float64 {
	if len(cits) == 0 {
		return c.cfg.EmptyConfidence
	}
	var sum float64
	for _, cit := range cits {
		sum += cit.Confidence
	}
	tier1, _ := counts(cits)
	return math.Min(c.cfg.ConfidenceCap, sum/float64(len(cits))+c.cfg.Tier1Bonus*float64(tier1))
}

// ExtractURLs returns distinct http(s) URLs in first-seen order with trailing punctuation trimmed.
func ExtractURLs(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(m, trailingPunct)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// hostname is lowercased; "" when the URL does not parse.
func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func counts(cits []models.Citation) (tier1, journal int) {
	for _, cit := range cits {
		if cit.IsTier1() {
			tier1++
		}
		if cit.Source == models.SourceJournal {
			journal++
		}
	}
	return tier1, journal
}

func containsAny(host string, domains []string) bool {
	for _, d := range domains {
		if d != "" && strings.Contains(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}
