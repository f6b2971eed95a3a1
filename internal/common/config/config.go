// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Server     ServerConfig            `mapstructure:"server"`
	Knowledge  KnowledgeConfig         `mapstructure:"knowledge"`
	Scoring    ScoringConfig           `mapstructure:"scoring"`
	Prompt     PromptConfig            `mapstructure:"prompt"`
	Generation GenerationConfig        `mapstructure:"generation"`
	Research   ResearchConfig          `mapstructure:"research"`
	Email      EmailConfig             `mapstructure:"email"`
	APIs       APIsConfig              `mapstructure:"apis"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowOrigins    []string `mapstructure:"allow_origins"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single URL, used when addresses is empty
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Assistant ---

// KnowledgeConfig selects where the knowledge base is read from at startup.
type KnowledgeConfig struct {
	Source string            `mapstructure:"source"` // file | elasticsearch
	Path   string            `mapstructure:"path"`
	Index  string            `mapstructure:"index"`
	Routes map[string]string `mapstructure:"routes"` // document id -> site path
}

// ScoringConfig drives the keyword relevance heuristic.
type ScoringConfig struct {
	Keywords      []string `mapstructure:"keywords"`
	KeywordWeight int      `mapstructure:"keyword_weight"`
	TagWeight     int      `mapstructure:"tag_weight"`
	TagPrefix     int      `mapstructure:"tag_prefix"`
	TopK          int      `mapstructure:"top_k"`
	Sentinel      string   `mapstructure:"sentinel"`
}

type PromptConfig struct {
	RegistryPath     string `mapstructure:"registry_path"`
	PersonaTemplate  string `mapstructure:"persona_template"`
	DocumentTemplate string `mapstructure:"document_template"`
	HistoryTurns     int    `mapstructure:"history_turns"`
	BodyRunes        int    `mapstructure:"body_runes"`
	ClinicName       string `mapstructure:"clinic_name"`
	ClinicPhone      string `mapstructure:"clinic_phone"`
}

// GenerationConfig holds the sampling policy per call site.
type GenerationConfig struct {
	Model                string  `mapstructure:"model"`
	ChatTemperature      float32 `mapstructure:"chat_temperature"`
	ChatMaxTokens        int     `mapstructure:"chat_max_tokens"`
	ResearchTemperature  float32 `mapstructure:"research_temperature"`
	ResearchMaxTokens    int     `mapstructure:"research_max_tokens"`
	SynthesisTemperature float32 `mapstructure:"synthesis_temperature"`
	SynthesisMaxTokens   int     `mapstructure:"synthesis_max_tokens"`
	MaxRetries           int     `mapstructure:"max_retries"`
	MaxConcurrent        int     `mapstructure:"max_concurrent"`
	Timeout              int     `mapstructure:"timeout"` // milliseconds
}

type ResearchConfig struct {
	Timeout       int           `mapstructure:"timeout"`   // milliseconds
	CacheTTL      int           `mapstructure:"cache_ttl"` // milliseconds
	SearchResults int           `mapstructure:"search_results"`
	Grading       GradingConfig `mapstructure:"grading"`
	Costs         CostConfig    `mapstructure:"costs"`
}

// GradingConfig holds the evidence grade thresholds and confidence constants.
type GradingConfig struct {
	GradeATier1      int      `mapstructure:"grade_a_tier1"`
	GradeBTier1      int      `mapstructure:"grade_b_tier1"`
	GradeBJournal    int      `mapstructure:"grade_b_journal"`
	GradeCTotal      int      `mapstructure:"grade_c_total"`
	EmptyConfidence  float64  `mapstructure:"empty_confidence"`
	ConfidenceCap    float64  `mapstructure:"confidence_cap"`
	Tier1Bonus       float64  `mapstructure:"tier1_bonus"`
	SupportedAbove   float64  `mapstructure:"supported_above"`
	SourceBonus      float64  `mapstructure:"source_bonus"`
	SourceBonusCap   float64  `mapstructure:"source_bonus_cap"`
	Tier1Domains     []string `mapstructure:"tier1_domains"`
	AuthorityDomains []string `mapstructure:"authority_domains"`
	HealthDomains    []string `mapstructure:"health_domains"`
}

type CostConfig struct {
	ResearchPerToken float64 `mapstructure:"research_per_token"`
	Synthesis        float64 `mapstructure:"synthesis"`
}

// EmailConfig holds settings for the research report email.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`
	From     string `mapstructure:"from"`
	ReplyTo  string `mapstructure:"reply_to"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	OpenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
	} `mapstructure:"openai"`

	WebSearch struct {
		BaseURL  string `mapstructure:"base_url"`
		APIKey   string `mapstructure:"api_key"`
		EngineID string `mapstructure:"engine_id"`
		Timeout  int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"web_search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
