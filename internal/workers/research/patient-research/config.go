// internal/workers/research/patient-research/config.go
package patientresearch

import (
	"time"

	"kiro-assistant/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:       config.GetDuration(wc.Timeout),
		MaxJobsActive: wc.MaxJobsActive,
	}
}
