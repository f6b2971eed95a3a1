// internal/research/websearch/models.go
package websearch

// Source is one search API hit.
type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Mime    string `json:"mime"`
}

// researchOutput is the JSON block the research prompt asks the model for.
type researchOutput struct {
	EvidenceSummary string             `json:"evidence_summary"`
	Exercises       []researchExercise `json:"exercises"`
}

type researchExercise struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	Evidence    string `json:"evidence"`
	Safety      string `json:"safety"`
}
