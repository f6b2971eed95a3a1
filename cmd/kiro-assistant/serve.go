// cmd/kiro-assistant/serve.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kiro-assistant/internal/api"
	"kiro-assistant/internal/common/camunda"
	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/observability"
	kiroanswer "kiro-assistant/internal/workers/assistant/kiro-answer"
	patientresearch "kiro-assistant/internal/workers/research/patient-research"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the Zeebe job workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting kiro-assistant...", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, observability.WithLogger(log))
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, obs, log)
	if err != nil {
		log.Error("startup failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	defer a.Close()

	server := api.NewServer(cfg.Server, api.Dependencies{
		Chat:      a.chat,
		Research:  a.research,
		Knowledge: a.store,
		Status: api.Status{
			Version:              cfg.App.Version,
			EmailProvider:        emailProvider(cfg),
			EmailEnabled:         cfg.Email.Enabled,
			GenerationConfigured: cfg.APIs.OpenAI.APIKey != "",
		},
	}, log)

	var (
		zeebe   *camunda.Client
		workers []*camunda.CamundaWorker
	)
	if cfg.Camunda.Enabled {
		zeebe, workers, err = startWorkers(cfg, a, obs, log)
		if err != nil {
			log.Error("zeebe workers failed to start", map[string]interface{}{"error": err.Error()})
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping...", nil)
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", map[string]interface{}{"error": err.Error()})
			stopWorkers(zeebe, workers, log)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	stopWorkers(zeebe, workers, log)

	log.Info("kiro-assistant stopped", nil)
	return nil
}

func emailProvider(cfg *config.Config) string {
	if !cfg.Email.Enabled || cfg.Email.Provider == "" {
		return "none"
	}
	return cfg.Email.Provider
}

func startWorkers(cfg *config.Config, a *app, obs *observability.Observability, log logger.Logger) (*camunda.Client, []*camunda.CamundaWorker, error) {
	var client *camunda.Client
	err := retryWithBackoff(func() error {
		var err error
		client, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.Timeout),
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		return nil, nil, err
	}
	log.Info("Zeebe client connected successfully", map[string]interface{}{"broker": cfg.Camunda.BrokerAddress})

	var workers []*camunda.CamundaWorker

	if config.IsWorkerEnabled(cfg, patientresearch.TaskType) {
		wc := patientresearch.LoadConfig(cfg)
		handler := patientresearch.NewHandler(wc, a.research, obs, log)
		workers = append(workers, camunda.NewWorker(client.GetClient(), patientresearch.TaskType,
			wc.MaxJobsActive, wc.Timeout, handler, log))
	}

	if config.IsWorkerEnabled(cfg, kiroanswer.TaskType) {
		wc := kiroanswer.LoadConfig(cfg)
		handler := kiroanswer.NewHandler(wc, a.chat, obs, log)
		workers = append(workers, camunda.NewWorker(client.GetClient(), kiroanswer.TaskType,
			wc.MaxJobsActive, wc.Timeout, handler, log))
	}

	log.Info("Zeebe workers registered", map[string]interface{}{"count": len(workers)})
	return client, workers, nil
}

func stopWorkers(client *camunda.Client, workers []*camunda.CamundaWorker, log logger.Logger) {
	for _, w := range workers {
		w.Stop()
	}
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}
}
