// cmd/kiro-assistant/kb.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiro-assistant/internal/common/database"
	"kiro-assistant/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Check or index the knowledge base",
}

var kbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the knowledge base file and print the document count",
	RunE:  runKBCheck,
}

var kbIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Bulk-index the knowledge base file into Elasticsearch",
	RunE:  runKBIndex,
}

func init() {
	kbCmd.PersistentFlags().String("path", "", "knowledge base JSON file (default: knowledge.path from config)")
	kbIndexCmd.Flags().String("index", "", "Elasticsearch index (default: knowledge.index from config)")
	kbCmd.AddCommand(kbCheckCmd, kbIndexCmd)
}

func kbPath(cmd *cobra.Command, configured string) string {
	if p, _ := cmd.Flags().GetString("path"); p != "" {
		return p
	}
	return configured
}

func runKBCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := kbPath(cmd, cfg.Knowledge.Path)

	store, err := knowledge.Load(path, cfg.Knowledge.Routes)
	if err != nil {
		return fmt.Errorf("knowledge base %s is invalid: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents\n", path, store.Len())
	return nil
}

func runKBIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := kbPath(cmd, cfg.Knowledge.Path)
	index, _ := cmd.Flags().GetString("index")
	if index == "" {
		index = cfg.Knowledge.Index
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read knowledge base: %w", err)
	}
	docs, err := knowledge.Decode(raw)
	if err != nil {
		return err
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := es.Ping(ctx); err != nil {
		return err
	}

	n, err := knowledge.IndexDocuments(ctx, es.Client, index, docs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %s\n", n, index)
	return nil
}
