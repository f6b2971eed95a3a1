package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiro-assistant/internal/common/config"
	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/models"
)

const sentinel = "Ingen spesifikk informasjon funnet i databasen."

func createTestScorer() *Scorer {
	return NewScorer(config.ScoringConfig{
		Keywords:      config.DefaultKeywords(),
		KeywordWeight: 10,
		TagWeight:     5,
		TagPrefix:     15,
		TopK:          2,
		Sentinel:      sentinel,
	})
}

func testCorpus() []models.KnowledgeDocument {
	return []models.KnowledgeDocument{
		{
			ID:    "rygg",
			Title: "Ryggsmerter",
			Body:  "Vondt i ryggen skyldes ofte overbelastning. Hold deg i bevegelse.",
			Metadata: models.DocumentMetadata{
				Symptoms: []string{"vondt i ryggen", "korsryggsmerter"},
			},
		},
		{
			ID:    "nakke",
			Title: "Nakkesmerter",
			Body:  "Stiv nakke og spenning i skuldrene.",
			Metadata: models.DocumentMetadata{
				Symptoms: []string{"stiv nakke"},
			},
		},
		{
			ID:    "kne",
			Title: "Knesmerter",
			Body:  "Smerter foran i kneet ved trapper.",
		},
	}
}

// ==========================================
// Scorer
// ==========================================

func TestScore_BackPainScenario(t *testing.T) {
	scorer := createTestScorer()

	ranked := scorer.Score("jeg har vondt i ryggen", testCorpus())

	require.Len(t, ranked, 1)
	assert.Equal(t, "rygg", ranked[0].Document.ID)
	// rygg + vondt keywords, plus the "vondt i ryggen" tag
	assert.Equal(t, 25, ranked[0].Score)
}

func TestScore_ExcludesZeroOverlap(t *testing.T) {
	scorer := createTestScorer()

	ranked := scorer.Score("hvor ligger klinikken?", testCorpus())
	assert.Empty(t, ranked)

	for _, sd := range scorer.Score("stiv nakke og vondt kne", testCorpus()) {
		assert.Greater(t, sd.Score, 0)
	}
}

func TestScore_TopKAndStableTies(t *testing.T) {
	docs := []models.KnowledgeDocument{
		{ID: "a", Title: "Smerter A"},
		{ID: "b", Title: "Smerter B"},
		{ID: "c", Title: "Smerter C"},
	}
	scorer := createTestScorer()

	first := scorer.Score("smerter", docs)
	second := scorer.Score("smerter", docs)

	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Document.ID)
	assert.Equal(t, "b", first[1].Document.ID)
	assert.Equal(t, first, second)
}

func TestScore_TagPrefixUsesRunes(t *testing.T) {
	docs := []models.KnowledgeDocument{{
		ID:       "handledd",
		Title:    "Håndledd",
		Metadata: models.DocumentMetadata{Symptoms: []string{"Vondt i håndleddet etter tastatur"}},
	}}
	scorer := createTestScorer()

	// first 15 runes of the tag: "vondt i håndled"
	ranked := scorer.Score("jeg er vondt i håndledd", docs)
	require.Len(t, ranked, 1)
	assert.Equal(t, 15, ranked[0].Score) // håndledd keyword + tag prefix
}

func TestScore_EmptyTagIgnored(t *testing.T) {
	docs := []models.KnowledgeDocument{{ID: "x", Title: "Annet", Metadata: models.DocumentMetadata{Symptoms: []string{"", "  "}}}}
	assert.Empty(t, createTestScorer().Score("hei", docs))
}

func TestRetrieve_Sentinel(t *testing.T) {
	scorer := createTestScorer()

	tests := []struct {
		name  string
		query string
		docs  []models.KnowledgeDocument
	}{
		{"empty query", "", testCorpus()},
		{"blank query", "   ", testCorpus()},
		{"empty corpus", "vondt i ryggen", nil},
		{"no match", "åpningstider", testCorpus()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := scorer.Retrieve(tt.query, tt.docs)
			assert.True(t, r.Empty())
			assert.Equal(t, sentinel, r.Sentinel)
		})
	}

	r := scorer.Retrieve("vondt i ryggen", testCorpus())
	assert.False(t, r.Empty())
	assert.Empty(t, r.Sentinel)
}

// ==========================================
// Store
// ==========================================

func TestLoad_ShippedKnowledgeBase(t *testing.T) {
	store, err := Load(filepath.Join("..", "..", "configs", "knowledge-base.json"), config.DefaultRoutes())
	require.NoError(t, err)
	assert.Equal(t, 10, store.Len())

	for _, doc := range store.Documents() {
		assert.Equal(t, "/behandlinger/"+doc.ID, doc.TargetURL)
	}

	ranked := createTestScorer().Score("jeg har vondt i ryggen", store.Documents())
	require.NotEmpty(t, ranked)
	assert.Equal(t, "rygg", ranked[0].Document.ID)
}

func TestLoad_Failures(t *testing.T) {
	dir := t.TempDir()
	malformed := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(malformed, []byte(`[{"id": "rygg"`), 0o600))
	duplicate := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(duplicate, []byte(`[{"id":"a","title":"A"},{"id":"a","title":"B"}]`), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.json")},
		{"malformed json", malformed},
		{"duplicate id", duplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, nil)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeKnowledgeBaseLoadFailed, apperrors.AsStandardError(err).Code)
		})
	}
}

func TestStore_DocumentsIsACopy(t *testing.T) {
	store, err := NewStore(testCorpus(), nil)
	require.NoError(t, err)

	docs := store.Documents()
	docs[0].Title = "changed"
	assert.Equal(t, "Ryggsmerter", store.Documents()[0].Title)
}

func TestResolveTargetURL(t *testing.T) {
	routes := map[string]string{"rygg": "/behandlinger/rygg"}

	assert.Equal(t, "/behandlinger/rygg", ResolveTargetURL(models.KnowledgeDocument{ID: "rygg", URL: "/old"}, routes))
	assert.Equal(t, "/artikler/svimmelhet", ResolveTargetURL(models.KnowledgeDocument{ID: "svimmelhet", URL: "/artikler/svimmelhet"}, routes))
	assert.Equal(t, "/", ResolveTargetURL(models.KnowledgeDocument{ID: "x", URL: "https://old.example.no/x"}, routes))
	assert.Equal(t, "/", ResolveTargetURL(models.KnowledgeDocument{ID: "y"}, routes))
}

// ==========================================
// Elasticsearch
// ==========================================

func newTestES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return es
}

func TestLoadFromElasticsearch(t *testing.T) {
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kiro-knowledge/_search", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("size"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "match_all")

		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"id":"kne","title":"Knesmerter","content":"Vondt i kneet","metadata":{"symptoms":["vondt i kneet"]}}}
		]}}`))
	})

	store, err := LoadFromElasticsearch(context.Background(), es, "kiro-knowledge", config.DefaultRoutes())
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
	doc := store.Documents()[0]
	assert.Equal(t, "/behandlinger/kne", doc.TargetURL)
	assert.Equal(t, []string{"vondt i kneet"}, doc.Tags())
}

func TestLoadFromElasticsearch_EmptyIndexIsFatal(t *testing.T) {
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	})

	_, err := LoadFromElasticsearch(context.Background(), es, "kiro-knowledge", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestIndexDocuments(t *testing.T) {
	var lines []string
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("refresh"))
		body, _ := io.ReadAll(r.Body)
		lines = strings.Split(strings.TrimSpace(string(body)), "\n")
		_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"status":201}},{"index":{"status":201}}]}`))
	})

	docs := testCorpus()[:2]
	n, err := IndexDocuments(context.Background(), es, "kiro-knowledge", docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, lines, 4)

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "rygg", action["index"]["_id"])
	assert.Contains(t, lines[1], `"content":"Vondt i ryggen`)
}
