// internal/models/knowledge.go
package models

import "encoding/json"

// KnowledgeDocument is one curated clinic article. The JSON shape matches the
// knowledge-base file and the Elasticsearch index.
type KnowledgeDocument struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Body     string           `json:"content"`
	URL      string           `json:"url,omitempty"` // relative URL as authored
	Metadata DocumentMetadata `json:"metadata"`

	// TargetURL is resolved against the site route map at load time.
	TargetURL string `json:"-"`
}

type DocumentMetadata struct {
	Symptoms          []string `json:"symptoms,omitempty"`
	EvidenceGrade     string   `json:"evidenceGrade,omitempty"`
	RedFlags          []string `json:"redFlags,omitempty"`
	ResearchCitations []string `json:"researchCitations,omitempty"`
	Timeline          string   `json:"timeline,omitempty"`
}

// Tags are the symptom phrases used for tag matching.
func (d KnowledgeDocument) Tags() []string {
	return d.Metadata.Symptoms
}

type ScoredDocument struct {
	Document KnowledgeDocument `json:"document"`
	Score    int               `json:"score"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior message supplied by the caller.
type ConversationTurn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// UnmarshalJSON accepts "text" as an alias for "content".
func (t *ConversationTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Role = raw.Role
	t.Text = raw.Content
	if t.Text == "" {
		t.Text = raw.Text
	}
	return nil
}

// ArticleReference is a link to a clinic article extracted from a reply.
type ArticleReference struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
