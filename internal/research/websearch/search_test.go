package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiro-assistant/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		SearchAPIBaseURL: "http://localhost:8080/search",
		SearchAPIKey:     "test-api-key",
		SearchEngineID:   "test-engine-id",
		Timeout:          3 * time.Second,
		MaxResults:       5,
		MinRelevance:     0.5,
	}
}

func createSearchAPIResponse(items []map[string]interface{}) string {
	data, _ := json.Marshal(map[string]interface{}{"items": items})
	return string(data)
}

// ==========================
// Config
// ==========================

func TestConfig_EnabledAndValidate(t *testing.T) {
	cfg := createTestConfig()
	assert.True(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	cfg.MaxResults = 11
	assert.Error(t, cfg.Validate())

	cfg.SearchAPIKey = ""
	assert.False(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())
}

// ==========================
// Search
// ==========================

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-api-key", q.Get("key"))
		assert.Equal(t, "test-engine-id", q.Get("cx"))
		assert.Equal(t, "korsbåndskade kne", q.Get("q"))
		assert.Equal(t, "5", q.Get("num"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(createSearchAPIResponse([]map[string]interface{}{
			{"link": "https://example.com/kne", "title": "Knesmerter", "snippet": "blogg", "mime": "text/html"},
			{"link": "https://medlineplus.gov/knee", "title": "Knee injuries", "snippet": "NIH", "mime": "text/html"},
			{"link": "https://example.com/kne.pdf", "title": "PDF", "snippet": "pdf", "mime": "application/pdf"},
			{"link": "https://example.com/kne", "title": "Duplicate", "snippet": "dup"},
			{"link": "https://journal.org/x", "title": "A systematic review of ACL rehab", "snippet": "review"},
		})))
	}))
	defer server.Close()

	cfg := createTestConfig()
	cfg.SearchAPIBaseURL = server.URL
	client := NewSearchClient(cfg, logger.NewTestLogger(t))

	sources, err := client.Search(context.Background(), "  korsbåndskade \n kne ")
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "https://medlineplus.gov/knee", sources[0].URL)
	assert.InDelta(t, 1.2, sources[0].Relevance, 1e-9)
	assert.Equal(t, "https://journal.org/x", sources[1].URL)
	assert.Equal(t, "https://example.com/kne", sources[2].URL)
	assert.Equal(t, "Knesmerter", sources[2].Title)
}

func TestSearch_LimitsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items []map[string]interface{}
		for _, l := range []string{"a", "b", "c", "d"} {
			items = append(items, map[string]interface{}{"link": "https://" + l + ".com", "title": l})
		}
		w.Write([]byte(createSearchAPIResponse(items)))
	}))
	defer server.Close()

	cfg := createTestConfig()
	cfg.SearchAPIBaseURL = server.URL
	cfg.MaxResults = 2

	sources, err := NewSearchClient(cfg, logger.NewTestLogger(t)).Search(context.Background(), "rygg")
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			timeout: time.Second,
			wantErr: ErrWebSearchFailed,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{invalid"))
			},
			timeout: time.Second,
			wantErr: ErrWebSearchFailed,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout: 50 * time.Millisecond,
			wantErr: ErrWebSearchTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			cfg := createTestConfig()
			cfg.SearchAPIBaseURL = server.URL
			cfg.Timeout = tt.timeout

			_, err := NewSearchClient(cfg, logger.NewTestLogger(t)).Search(context.Background(), "nakke")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
