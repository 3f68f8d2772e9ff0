package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openharvest/harvester/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Incremental announcement harvester",
	Long:  "Runs site collectors over a date window, deduplicates against the persisted corpus, fetches full content for unseen URLs, and merges results into the master store.",
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
