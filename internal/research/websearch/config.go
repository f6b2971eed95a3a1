// internal/research/websearch/config.go
package websearch

import (
	"fmt"
	"time"

	"kiro-assistant/internal/common/config"
)

type Config struct {
	SearchAPIBaseURL string
	SearchAPIKey     string
	SearchEngineID   string
	Timeout          time.Duration
	MaxResults       int
	MinRelevance     float64
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		SearchAPIBaseURL: cfg.APIs.WebSearch.BaseURL,
		SearchAPIKey:     cfg.APIs.WebSearch.APIKey,
		SearchEngineID:   cfg.APIs.WebSearch.EngineID,
		Timeout:          config.GetDuration(cfg.APIs.WebSearch.Timeout),
		MaxResults:       cfg.Research.SearchResults,
		MinRelevance:     0.5,
	}
}

// Enabled reports whether the search API is configured; without it research runs on the model alone.
func (c *Config) Enabled() bool {
	return c.SearchAPIBaseURL != "" && c.SearchAPIKey != "" && c.SearchEngineID != ""
}

func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("web search timeout must be positive")
	}
	if c.MaxResults < 1 || c.MaxResults > 10 {
		return fmt.Errorf("web search max results must be between 1 and 10")
	}
	return nil
}
