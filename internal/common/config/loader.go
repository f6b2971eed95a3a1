// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and
// applies environment overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment file is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

// Default returns a configuration built only from defaults and the environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	overrideEmptyConfig(cfg)
	return cfg
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found from the working directory upwards.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets and deployment knobs from well-known env vars.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.APIs.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setIfEmpty(&cfg.APIs.WebSearch.APIKey, "WEB_SEARCH_API_KEY")
	setIfEmpty(&cfg.APIs.WebSearch.EngineID, "WEB_SEARCH_ENGINE_ID")
	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Email.Region, "AWS_REGION")

	// AI_MODEL wins over the file so deployments can switch models without a rebuild.
	if val := os.Getenv("AI_MODEL"); val != "" {
		cfg.Generation.Model = val
	}
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kiro-assistant"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Knowledge defaults
	if cfg.Knowledge.Source == "" {
		cfg.Knowledge.Source = "file"
	}
	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = "configs/knowledge-base.json"
	}
	if cfg.Knowledge.Index == "" {
		cfg.Knowledge.Index = "kiro-knowledge"
	}
	if len(cfg.Knowledge.Routes) == 0 {
		cfg.Knowledge.Routes = DefaultRoutes()
	}

	// Scoring defaults
	if len(cfg.Scoring.Keywords) == 0 {
		cfg.Scoring.Keywords = DefaultKeywords()
	}
	if cfg.Scoring.KeywordWeight == 0 {
		cfg.Scoring.KeywordWeight = 10
	}
	if cfg.Scoring.TagWeight == 0 {
		cfg.Scoring.TagWeight = 5
	}
	if cfg.Scoring.TagPrefix == 0 {
		cfg.Scoring.TagPrefix = 15
	}
	if cfg.Scoring.TopK == 0 {
		cfg.Scoring.TopK = 2
	}
	if cfg.Scoring.Sentinel == "" {
		cfg.Scoring.Sentinel = "Ingen spesifikk informasjon funnet i databasen."
	}

	// Prompt defaults
	if cfg.Prompt.RegistryPath == "" {
		cfg.Prompt.RegistryPath = "configs/template-registry.yaml"
	}
	if cfg.Prompt.PersonaTemplate == "" {
		cfg.Prompt.PersonaTemplate = "kiro-persona"
	}
	if cfg.Prompt.DocumentTemplate == "" {
		cfg.Prompt.DocumentTemplate = "kb-document"
	}
	if cfg.Prompt.HistoryTurns == 0 {
		cfg.Prompt.HistoryTurns = 6
	}
	if cfg.Prompt.BodyRunes == 0 {
		cfg.Prompt.BodyRunes = 800
	}
	if cfg.Prompt.ClinicName == "" {
		cfg.Prompt.ClinicName = "Kiropraktisk Senter"
	}
	if cfg.Prompt.ClinicPhone == "" {
		cfg.Prompt.ClinicPhone = "+47 400 95 900"
	}

	// Generation defaults
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.ChatTemperature == 0 {
		cfg.Generation.ChatTemperature = 0.7
	}
	if cfg.Generation.ChatMaxTokens == 0 {
		cfg.Generation.ChatMaxTokens = 500
	}
	if cfg.Generation.ResearchTemperature == 0 {
		cfg.Generation.ResearchTemperature = 0.2
	}
	if cfg.Generation.ResearchMaxTokens == 0 {
		cfg.Generation.ResearchMaxTokens = 2000
	}
	if cfg.Generation.SynthesisTemperature == 0 {
		cfg.Generation.SynthesisTemperature = 0.3
	}
	if cfg.Generation.SynthesisMaxTokens == 0 {
		cfg.Generation.SynthesisMaxTokens = 2000
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 1
	}
	if cfg.Generation.MaxConcurrent == 0 {
		cfg.Generation.MaxConcurrent = 8
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 45000
	}

	// Research defaults
	if cfg.Research.Timeout == 0 {
		cfg.Research.Timeout = 60000
	}
	if cfg.Research.CacheTTL == 0 {
		cfg.Research.CacheTTL = 6 * 60 * 60 * 1000
	}
	if cfg.Research.SearchResults == 0 {
		cfg.Research.SearchResults = 8
	}
	if cfg.Research.Costs.ResearchPerToken == 0 {
		cfg.Research.Costs.ResearchPerToken = 0.0000015
	}
	if cfg.Research.Costs.Synthesis == 0 {
		cfg.Research.Costs.Synthesis = 0.001
	}
	applyGradingDefaults(&cfg.Research.Grading)

	// Email defaults
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "ses"
	}
	if cfg.Email.Region == "" {
		cfg.Email.Region = "eu-north-1"
	}
	if cfg.Email.From == "" {
		cfg.Email.From = "Kiro AI <ai@kiropraktisksenter.no>"
	}
	if cfg.Email.ReplyTo == "" {
		cfg.Email.ReplyTo = "kontakt@kiropraktisksenter.no"
	}

	// API defaults
	if cfg.APIs.WebSearch.BaseURL == "" {
		cfg.APIs.WebSearch.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.APIs.WebSearch.Timeout == 0 {
		cfg.APIs.WebSearch.Timeout = 10000
	}

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 90000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyGradingDefaults(g *GradingConfig) {
	if g.GradeATier1 == 0 {
		g.GradeATier1 = 3
	}
	if g.GradeBTier1 == 0 {
		g.GradeBTier1 = 1
	}
	if g.GradeBJournal == 0 {
		g.GradeBJournal = 2
	}
	if g.GradeCTotal == 0 {
		g.GradeCTotal = 2
	}
	if g.EmptyConfidence == 0 {
		g.EmptyConfidence = 0.3
	}
	if g.ConfidenceCap == 0 {
		g.ConfidenceCap = 0.95
	}
	if g.Tier1Bonus == 0 {
		g.Tier1Bonus = 0.05
	}
	if g.SupportedAbove == 0 {
		g.SupportedAbove = 0.8
	}
	if g.SourceBonus == 0 {
		g.SourceBonus = 0.05
	}
	if g.SourceBonusCap == 0 {
		g.SourceBonusCap = 0.15
	}
	if len(g.Tier1Domains) == 0 {
		g.Tier1Domains = []string{"pubmed.ncbi.nlm.nih.gov", "cochrane.org", "bmj.com", "thelancet.com", "nejm.org"}
	}
	if len(g.AuthorityDomains) == 0 {
		g.AuthorityDomains = []string{"helsenorge.no", "nhi.no", "helsedirektoratet.no", "who.int", "uptodate.com", "mayoclinic.org", "nih.gov"}
	}
	if len(g.HealthDomains) == 0 {
		g.HealthDomains = []string{"ncbi.nlm.nih.gov", "medlineplus.gov", "webmd.com", "healthline.com"}
	}
}

// DefaultRoutes maps knowledge document ids to pages on the clinic site.
func DefaultRoutes() map[string]string {
	ids := []string{"rygg", "nakke", "skulder", "kne", "myalgi", "ankel-fot", "handledd", "albue", "kjeve", "hodepine"}
	routes := make(map[string]string, len(ids))
	for _, id := range ids {
		routes[id] = "/behandlinger/" + id
	}
	return routes
}

// DefaultKeywords is the body-region and symptom vocabulary used by the relevance scorer.
func DefaultKeywords() []string {
	return []string{
		"rygg", "nakke", "skulder", "kne", "ankel", "fot", "håndledd", "albue", "kjeve", "hodepine",
		"smerter", "vondt", "plager", "myalgi", "muskelsmerter", "stiv", "spenning",
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Knowledge.Source {
	case "file":
		if cfg.Knowledge.Path == "" {
			return fmt.Errorf("knowledge.path is required when knowledge.source is file")
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required when knowledge.source is elasticsearch")
		}
	default:
		return fmt.Errorf("knowledge.source must be file or elasticsearch, got %q", cfg.Knowledge.Source)
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Scoring.TopK < 1 {
		return fmt.Errorf("scoring.top_k must be positive")
	}
	if cfg.Prompt.HistoryTurns < 0 {
		return fmt.Errorf("prompt.history_turns must not be negative")
	}
	if cfg.Generation.MaxConcurrent < 1 {
		return fmt.Errorf("generation.max_concurrent must be positive")
	}
	if cfg.Email.Enabled && cfg.Email.From == "" {
		return fmt.Errorf("email.from is required when email is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       90000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
