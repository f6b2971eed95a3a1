// cmd/kiro-assistant/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "kiro-assistant",
	Short: "Clinic assistant: patient chat and evidence research reports",
	Long: `kiro-assistant serves the Kiro chat assistant and the patient research
pipeline over HTTP, and optionally as Zeebe job workers.

Use "serve" to run the service, "research" to run one research request from a
file, and "kb" to check or index the knowledge base.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: configs/config.yaml)")
	rootCmd.AddCommand(serveCmd, researchCmd, kbCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.App.Version == "" {
		cfg.App.Version = version
	}
	return cfg, nil
}

// retryWithBackoff attempts operation up to maxRetries times, doubling the delay between attempts.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
