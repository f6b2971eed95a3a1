// cmd/kiro-assistant/research.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/observability"
	patientresearch "kiro-assistant/internal/workers/research/patient-research"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run one patient research request and print the report as JSON",
	Long: `Research reads a research request (the same JSON accepted by
POST /api/patient-research) from --input, or stdin when --input is "-", runs
the pipeline once and writes the report and metadata to stdout.`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("input", "-", "request JSON file")
	researchCmd.Flags().Bool("no-email", false, "never send the report email")
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	inputPath, _ := cmd.Flags().GetString("input")
	raw, err := readInput(cmd, inputPath)
	if err != nil {
		return err
	}
	input, err := patientresearch.ParseInput(string(raw))
	if err != nil {
		return err
	}
	if noEmail, _ := cmd.Flags().GetBool("no-email"); noEmail {
		input.SendEmail = false
	}

	ctx := context.Background()
	obs := observability.New(cfg.App.Name, observability.WithLogger(log))
	defer obs.Shutdown()

	a, err := buildApp(ctx, cfg, obs, log)
	if err != nil {
		return err
	}
	defer a.Close()

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	result, err := a.research.Run(ctx, requestID, &input.ResearchRequest)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}
