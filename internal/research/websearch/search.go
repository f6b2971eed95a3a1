// internal/research/websearch/search.go
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	commonhttp "kiro-assistant/internal/common/http"
	"kiro-assistant/internal/common/logger"
)

var (
	ErrWebSearchTimeout = errors.New("WEB_SEARCH_TIMEOUT")
	ErrWebSearchFailed  = errors.New("WEB_SEARCH_FAILED")
)

var whitespace = regexp.MustCompile(`\s+`)

// SearchClient queries a Custom Search style API.
type SearchClient struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewSearchClient(config *Config, log logger.Logger) *SearchClient {
	return &SearchClient{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{"component": "websearch"}),
	}
}

// Search returns deduplicated HTML results ordered by relevance.
func (s *SearchClient) Search(ctx context.Context, query string) ([]Source, error) {
	query = whitespace.ReplaceAllString(strings.TrimSpace(query), " ")

	searchURL, err := s.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}

	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrWebSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrWebSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search API returned %d", ErrWebSearchFailed, resp.StatusCode)
	}

	var apiResponse searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrWebSearchFailed, err)
	}

	sources := s.processResults(apiResponse.Items)
	s.logger.Info("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(sources),
	})
	return sources, nil
}

func (s *SearchClient) buildSearchURL(query string) (string, error) {
	baseURL, err := url.Parse(s.config.SearchAPIBaseURL)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Add("key", s.config.SearchAPIKey)
	params.Add("cx", s.config.SearchEngineID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", s.config.MaxResults))
	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

func (s *SearchClient) processResults(items []searchItem) []Source {
	seen := make(map[string]bool)
	var sources []Source

	for _, item := range items {
		if item.Link == "" {
			continue
		}
		// skip PDFs and other non-HTML documents
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		if seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		relevance := 1.0
		if strings.Contains(item.Link, ".gov") || strings.Contains(item.Link, ".edu") {
			relevance += 0.2
		}
		lowerTitle := strings.ToLower(item.Title)
		if strings.Contains(lowerTitle, "systematic review") || strings.Contains(lowerTitle, "meta-analysis") {
			relevance += 0.1
		}

		if relevance >= s.config.MinRelevance {
			sources = append(sources, Source{
				URL:       item.Link,
				Title:     item.Title,
				Snippet:   item.Snippet,
				Relevance: relevance,
			})
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Relevance > sources[j].Relevance
	})

	if len(sources) > s.config.MaxResults {
		sources = sources[:s.config.MaxResults]
	}
	return sources
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}
