// internal/research/pipeline/cache.go
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kiro-assistant/internal/common/database"
	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
	"kiro-assistant/internal/models"
)

const cacheKeyPrefix = "kiro:research:"

// Cache stores the output of the research stage. Implementations never fail the caller.
type Cache interface {
	Get(ctx context.Context, key string) (*models.ResearchResult, bool)
	Set(ctx context.Context, key string, result *models.ResearchResult)
}

// CacheKey hashes everything the research stage output depends on.
func CacheKey(req *models.ResearchRequest) string {
	h := sha256.New()
	c := req.Condition
	for _, part := range []string{
		c.Name, c.ICD10Code, c.BodyRegion, string(c.Severity),
		strings.Join(c.Symptoms, "\x1f"),
		string(req.Focus),
		req.PatientContext,
		strings.Join(req.ExistingKnowledge, "\x1f"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

type RedisCache struct {
	client *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client *database.RedisClient, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: log.With(map[string]interface{}{"component": "research-cache"})}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.ResearchResult, bool) {
	raw, err := c.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", map[string]interface{}{
			"code":  apperrors.ErrCodeCacheUnavailable,
			"error": err.Error(),
		})
		return nil, false
	}

	var result models.ResearchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *models.ResearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"code":  apperrors.ErrCodeCacheUnavailable,
			"error": err.Error(),
		})
	}
}
