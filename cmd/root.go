package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Localized educational search-result curation",
	Long:  "Searches multiple providers for educational video content, verifies grade and subject against region-local naming, scores candidates with an LLM judge, and returns a ranked list.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
