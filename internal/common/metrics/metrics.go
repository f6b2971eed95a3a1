// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_chat_requests_total",
			Help: "Total number of chat requests by outcome",
		},
		[]string{"outcome"},
	)

	ChatRetrievalHits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiro_chat_retrieved_documents",
			Help:    "Number of knowledge documents retrieved per chat request",
			Buckets: []float64{0, 1, 2, 3, 5},
		},
	)

	ResearchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_research_runs_total",
			Help: "Total number of research pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	ResearchStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiro_research_stage_duration_seconds",
			Help:    "Duration of each research pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiro_generation_duration_seconds",
			Help:    "Duration of text generation calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"op", "status"},
	)

	GenerationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_generation_tokens_total",
			Help: "Total tokens reported by the generation API",
		},
		[]string{"op"},
	)

	EmailSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_email_sends_total",
			Help: "Total number of report emails by outcome",
		},
		[]string{"outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiro_research_cache_lookups_total",
			Help: "Research cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
