// internal/knowledge/store.go
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/models"
)

var (
	ErrEmptyIndex   = errors.New("knowledge index returned no documents")
	ErrMissingID    = errors.New("knowledge document without id")
	ErrDuplicateID  = errors.New("duplicate knowledge document id")
	ErrMissingTitle = errors.New("knowledge document without title")
)

// esPageSize bounds the single match_all page read from the index.
const esPageSize = 1000

// Store holds the knowledge base. It is immutable after construction and safe for concurrent reads.
type Store struct {
	docs []models.KnowledgeDocument
}

// NewStore validates docs and resolves each TargetURL against routes.
func NewStore(docs []models.KnowledgeDocument, routes map[string]string) (*Store, error) {
	seen := make(map[string]bool, len(docs))
	out := make([]models.KnowledgeDocument, 0, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			return nil, fmt.Errorf("%w at position %d", ErrMissingID, i)
		}
		if strings.TrimSpace(doc.Title) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingTitle, doc.ID)
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		seen[doc.ID] = true

		doc.TargetURL = ResolveTargetURL(doc, routes)
		out = append(out, doc)
	}
	return &Store{docs: out}, nil
}

// Load reads the knowledge-base JSON file.
func Load(path string, routes map[string]string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(path, err)
	}

	docs, err := Decode(raw)
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(path, err)
	}

	store, err := NewStore(docs, routes)
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(path, err)
	}
	return store, nil
}

// Decode parses the knowledge-base file format.
func Decode(raw []byte) ([]models.KnowledgeDocument, error) {
	var docs []models.KnowledgeDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	return docs, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.KnowledgeDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// LoadFromElasticsearch reads every document of index with a single match_all query.
func LoadFromElasticsearch(ctx context.Context, es *elasticsearch.Client, index string, routes map[string]string) (*Store, error) {
	source := "elasticsearch index " + index

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(strings.NewReader(`{"query":{"match_all":{}}}`)),
		es.Search.WithSize(esPageSize),
	)
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(source, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(source, fmt.Errorf("search error: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(source, fmt.Errorf("decode search response: %w", err))
	}
	if len(parsed.Hits.Hits) == 0 {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(source, ErrEmptyIndex)
	}

	docs := make([]models.KnowledgeDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}

	store, err := NewStore(docs, routes)
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(source, err)
	}
	return store, nil
}

// IndexDocuments bulk-indexes docs into index, using the document id as _id.
func IndexDocuments(ctx context.Context, es *elasticsearch.Client, index string, docs []models.KnowledgeDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]interface{}{
			"index": map[string]string{"_index": index, "_id": doc.ID},
		}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
	}

	res, err := es.Bulk(
		bytes.NewReader(buf.Bytes()),
		es.Bulk.WithContext(ctx),
		es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("bulk index error: %s", res.Status())
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	indexed := 0
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status >= 200 && result.Status < 300 {
				indexed++
			}
		}
	}
	if parsed.Errors {
		return indexed, fmt.Errorf("bulk index: %d of %d documents failed", len(docs)-indexed, len(docs))
	}
	return indexed, nil
}

// Documents returns a copy of the corpus.
func (s *Store) Documents() []models.KnowledgeDocument {
	out := make([]models.KnowledgeDocument, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *Store) Len() int {
	return len(s.docs)
}

// ResolveTargetURL maps a document to its page on the clinic site. Unknown ids keep
// their own relative URL; anything else links to the front page.
func ResolveTargetURL(doc models.KnowledgeDocument, routes map[string]string) string {
	if path, ok := routes[doc.ID]; ok && path != "" {
		return path
	}
	if strings.HasPrefix(doc.URL, "/") && !strings.HasPrefix(doc.URL, "//") {
		return doc.URL
	}
	return "/"
}
