package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "solar-router",
	Short: "Solar lead qualification and revenue routing engine",
	Long:  "Sizes and prices residential solar systems for NYC leads, scores lead quality, and routes each lead to the partner platform with the highest expected revenue.",
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
