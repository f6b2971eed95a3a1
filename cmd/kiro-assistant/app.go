// cmd/kiro-assistant/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"kiro-assistant/internal/assistant"
	awsclient "kiro-assistant/internal/common/aws"
	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/database"
	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/observability"
	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/knowledge"
	"kiro-assistant/internal/prompt"
	"kiro-assistant/internal/research/citations"
	"kiro-assistant/internal/research/claims"
	"kiro-assistant/internal/research/email"
	"kiro-assistant/internal/research/pipeline"
	"kiro-assistant/internal/research/synthesizer"
	"kiro-assistant/internal/research/websearch"
	"kiro-assistant/pkg/registry"
)

const (
	researchTemplateID  = "research-prompt"
	synthesisTemplateID = "synthesis-prompt"
)

// app holds everything serve and research need, built once from config.
type app struct {
	cfg      *config.Config
	store    *knowledge.Store
	chat     *assistant.Service
	research *pipeline.Pipeline
	redis    *database.RedisClient
	logger   logger.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*app, error) {
	reg, err := registry.LoadRegistry(cfg.Prompt.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load template registry: %w", err)
	}

	store, err := loadKnowledge(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("Knowledge base loaded", map[string]interface{}{
		"source":    cfg.Knowledge.Source,
		"documents": store.Len(),
	})

	genCfg := generation.NewConfig(cfg.Generation, cfg.APIs.OpenAI.BaseURL, cfg.APIs.OpenAI.APIKey)
	gen, err := generation.NewClient(genCfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.APIs.OpenAI.APIKey == "" {
		log.Warn("Generation API key missing, chat and research requests will fail", nil)
	}

	assembler, err := prompt.NewAssembler(reg, cfg.Prompt)
	if err != nil {
		return nil, err
	}
	chat := assistant.NewService(store, knowledge.NewScorer(cfg.Scoring), assembler, gen, genCfg.Chat, log)

	stages, redisClient, err := buildStages(ctx, cfg, reg, gen, genCfg, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		store:    store,
		chat:     chat,
		research: pipeline.New(pipeline.NewConfig(cfg), stages, obs, log),
		redis:    redisClient,
		logger:   log,
	}, nil
}

func buildStages(ctx context.Context, cfg *config.Config, reg *registry.TemplateRegistry, gen generation.Generator,
	genCfg *generation.Config, log logger.Logger) (pipeline.Stages, *database.RedisClient, error) {
	researchTmpl, err := reg.Get(researchTemplateID)
	if err != nil {
		return pipeline.Stages{}, nil, apperrors.NewTemplateNotFoundError(researchTemplateID)
	}
	synthesisTmpl, err := reg.Get(synthesisTemplateID)
	if err != nil {
		return pipeline.Stages{}, nil, apperrors.NewTemplateNotFoundError(synthesisTemplateID)
	}
	renderer, err := email.NewRenderer(reg, cfg.Prompt.ClinicPhone)
	if err != nil {
		return pipeline.Stages{}, nil, err
	}

	searchCfg := websearch.NewConfig(cfg)
	if err := searchCfg.Validate(); err != nil {
		return pipeline.Stages{}, nil, fmt.Errorf("web search config: %w", err)
	}
	var search *websearch.SearchClient
	if searchCfg.Enabled() {
		search = websearch.NewSearchClient(searchCfg, log)
	} else {
		log.Warn("Web search not configured, research citations come from model output only", nil)
	}

	grading := cfg.Research.Grading
	stages := pipeline.Stages{
		Researcher:  websearch.NewResearcher(researchTmpl, gen, genCfg.Research, search, citations.NewClassifier(grading), log),
		Extractor:   claims.NewExtractor(grading, log),
		Synthesizer: synthesizer.New(synthesisTmpl, gen, genCfg.Synthesis, log),
		Renderer:    renderer,
	}

	if cfg.Email.Enabled {
		sesClient, err := awsclient.NewSESClient(ctx, cfg.Email.Region)
		if err != nil {
			return pipeline.Stages{}, nil, err
		}
		stages.Sender = email.NewSender(sesClient, cfg.Email.From, cfg.Email.ReplyTo, log)
	}

	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err == nil {
			err = redisClient.Ping(ctx)
		}
		if err != nil {
			// research still works without a cache
			log.Warn("Redis unavailable, research cache disabled", map[string]interface{}{
				"code":  apperrors.ErrCodeCacheUnavailable,
				"error": err.Error(),
			})
			redisClient = nil
		} else {
			stages.Cache = pipeline.NewRedisCache(redisClient, config.GetDuration(cfg.Research.CacheTTL), log)
		}
	}

	return stages, redisClient, nil
}

func loadKnowledge(ctx context.Context, cfg *config.Config, log logger.Logger) (*knowledge.Store, error) {
	if cfg.Knowledge.Source != "elasticsearch" {
		return knowledge.Load(cfg.Knowledge.Path, cfg.Knowledge.Routes)
	}

	var es *database.ElasticsearchClient
	err := retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 5, 2*time.Second, log, "Elasticsearch connection")
	if err != nil {
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(cfg.Knowledge.Index, err)
	}

	return knowledge.LoadFromElasticsearch(ctx, es.Client, cfg.Knowledge.Index, cfg.Knowledge.Routes)
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Error closing Redis", map[string]interface{}{"error": err.Error()})
		}
	}
}
