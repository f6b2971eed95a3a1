// internal/knowledge/scorer.go
package knowledge

import (
	"sort"
	"strings"
	"unicode/utf8"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/models"
)

// Scorer ranks knowledge documents against a free-text query with a keyword heuristic.
type Scorer struct {
	keywords      []string
	keywordWeight int
	tagWeight     int
	tagPrefix     int
	topK          int
	sentinel      string
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Scorer{
		keywords:      keywords,
		keywordWeight: cfg.KeywordWeight,
		tagWeight:     cfg.TagWeight,
		tagPrefix:     cfg.TagPrefix,
		topK:          cfg.TopK,
		sentinel:      cfg.Sentinel,
	}
}

// Retrieval is either a ranked document list or the sentinel text.
type Retrieval struct {
	Documents []models.ScoredDocument
	Sentinel  string
}

// Empty reports whether nothing relevant was found.
func (r Retrieval) Empty() bool {
	return len(r.Documents) == 0
}

// Score returns at most topK documents with a positive score, highest first.
// Ties keep corpus order.
func (s *Scorer) Score(query string, docs []models.KnowledgeDocument) []models.ScoredDocument {
	q := strings.ToLower(query)
	if strings.TrimSpace(q) == "" {
		return nil
	}

	var scored []models.ScoredDocument
	for _, doc := range docs {
		if score := s.scoreDocument(q, doc); score > 0 {
			scored = append(scored, models.ScoredDocument{Document: doc, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}
	return scored
}

// Retrieve never fails; an empty query or corpus yields the sentinel.
func (s *Scorer) Retrieve(query string, docs []models.KnowledgeDocument) Retrieval {
	ranked := s.Score(query, docs)
	if len(ranked) == 0 {
		return Retrieval{Sentinel: s.sentinel}
	}
	return Retrieval{Documents: ranked}
}

func (s *Scorer) scoreDocument(lowerQuery string, doc models.KnowledgeDocument) int {
	content := strings.ToLower(doc.Title + " " + doc.Body)

	score := 0
	for _, keyword := range s.keywords {
		if strings.Contains(lowerQuery, keyword) && strings.Contains(content, keyword) {
			score += s.keywordWeight
		}
	}

	for _, tag := range doc.Tags() {
		prefix := runePrefix(strings.ToLower(strings.TrimSpace(tag)), s.tagPrefix)
		if prefix != "" && strings.Contains(lowerQuery, prefix) {
			score += s.tagWeight
		}
	}
	return score
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
