// internal/workers/assistant/kiro-answer/config.go
package kiroanswer

import (
	"time"

	"kiro-assistant/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
	HistoryLimit  int
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:       config.GetDuration(wc.Timeout),
		MaxJobsActive: wc.MaxJobsActive,
		HistoryLimit:  50,
	}
}
