// internal/research/claims/aggregate.go
package claims

import "kiro-assistant/internal/models"

var verdictRank = map[models.Verdict]int{
	models.VerdictSupported: 0,
	models.VerdictPlausible: 1,
	models.VerdictUnknown:   2,
	models.VerdictRefuted:   3,
}

var gradeRank = map[models.EvidenceGrade]int{
	models.GradeA: 0,
	models.GradeB: 1,
	models.GradeC: 2,
	models.GradeD: 3,
}

// Merge folds claims with the same statement together, keeping first-seen order. The merged claim
// has the union of sources (by URL), the highest confidence, the best verdict and the best grade.
func Merge(claims []models.Claim) []models.Claim {
	index := make(map[string]int)
	out := make([]models.Claim, 0, len(claims))

	for _, c := range claims {
		i, ok := index[c.Statement]
		if !ok {
			c.Sources = append([]models.Citation{}, c.Sources...)
			index[c.Statement] = len(out)
			out = append(out, c)
			continue
		}

		m := &out[i]
		seen := make(map[string]bool, len(m.Sources))
		for _, s := range m.Sources {
			seen[s.URL] = true
		}
		for _, s := range c.Sources {
			if !seen[s.URL] {
				seen[s.URL] = true
				m.Sources = append(m.Sources, s)
			}
		}
		if c.Confidence > m.Confidence {
			m.Confidence = c.Confidence
		}
		if rank(verdictRank, c.Verdict) < rank(verdictRank, m.Verdict) {
			m.Verdict = c.Verdict
		}
		if rank(gradeRank, c.EvidenceGrade) < rank(gradeRank, m.EvidenceGrade) {
			m.EvidenceGrade = c.EvidenceGrade
		}
	}
	return out
}

// FilterByConfidence keeps claims with confidence >= min.
func FilterByConfidence(claims []models.Claim, min float64) []models.Claim {
	out := []models.Claim{}
	for _, c := range claims {
		if c.Confidence >= min {
			out = append(out, c)
		}
	}
	return out
}

func GroupByType(claims []models.Claim) map[models.ClaimType][]models.Claim {
	out := make(map[models.ClaimType][]models.Claim)
	for _, c := range claims {
		out[c.Type] = append(out[c.Type], c)
	}
	return out
}

type VerdictCounts struct {
	Supported int `json:"supported"`
	Plausible int `json:"plausible"`
	Refuted   int `json:"refuted"`
	Unknown   int `json:"unknown"`
}

type Stats struct {
	Total         int                      `json:"total"`
	ByType        map[models.ClaimType]int `json:"byType"`
	ByVerdict     VerdictCounts            `json:"byVerdict"`
	AvgConfidence float64                  `json:"avgConfidence"`
}

func ComputeStats(claims []models.Claim) Stats {
	stats := Stats{Total: len(claims), ByType: make(map[models.ClaimType]int)}
	var sum float64
	for _, c := range claims {
		stats.ByType[c.Type]++
		switch c.Verdict {
		case models.VerdictSupported:
			stats.ByVerdict.Supported++
		case models.VerdictPlausible:
			stats.ByVerdict.Plausible++
		case models.VerdictRefuted:
			stats.ByVerdict.Refuted++
		default:
			stats.ByVerdict.Unknown++
		}
		sum += c.Confidence
	}
	if len(claims) > 0 {
		stats.AvgConfidence = sum / float64(len(claims))
	}
	return stats
}

// rank puts unrecognised values last.
func rank[K comparable](ranks map[K]int, k K) int {
	if r, ok := ranks[k]; ok {
		return r
	}
	return len(ranks)
}
