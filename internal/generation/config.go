// internal/generation/config.go
package generation

import (
	"fmt"
	"time"

	"kiro-assistant/internal/common/config"
)

// Options is the sampling policy of one call.
type Options struct {
	Op          string // chat, research, synthesis; used for metrics and logs
	Temperature float32
	MaxTokens   int
}

type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxRetries    int
	MaxConcurrent int
	Timeout       time.Duration

	Chat      Options
	Research  Options
	Synthesis Options
}

func NewConfig(gen config.GenerationConfig, baseURL, apiKey string) *Config {
	return &Config{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		Model:         gen.Model,
		MaxRetries:    gen.MaxRetries,
		MaxConcurrent: gen.MaxConcurrent,
		Timeout:       config.GetDuration(gen.Timeout),
		Chat:          Options{Op: "chat", Temperature: gen.ChatTemperature, MaxTokens: gen.ChatMaxTokens},
		Research:      Options{Op: "research", Temperature: gen.ResearchTemperature, MaxTokens: gen.ResearchMaxTokens},
		Synthesis:     Options{Op: "synthesis", Temperature: gen.SynthesisTemperature, MaxTokens: gen.SynthesisMaxTokens},
	}
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
