package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		mask := func(s string) string {
			if s == "" {
				return "(unset)"
			}
			return "***"
		}

		fmt.Fprintf(os.Stdout, "config_path = %s\n", cfgPath)
		fmt.Fprintf(os.Stdout, "data_dir = %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stdout, "database_url = %s\n", cfg.DatabaseURL)
		fmt.Fprintf(os.Stdout, "listen_addr = %s\n", cfg.ListenAddr)
		fmt.Fprintf(os.Stdout, "log_level = %s\n", cfg.LogLevel)
		fmt.Fprintf(os.Stdout, "max_concurrent_turns = %d\n", cfg.MaxConcurrentTurns)
		fmt.Fprintf(os.Stdout, "max_iterations = %d\n", cfg.MaxIterations)
		fmt.Fprintf(os.Stdout, "history_limit = %d\n", cfg.HistoryLimit)
		fmt.Fprintf(os.Stdout, "retention_days = %d\n", cfg.RetentionDays)
		fmt.Fprintf(os.Stdout, "jwt.secret = %s\n", mask(cfg.JWT.Secret))
		fmt.Fprintf(os.Stdout, "llm.base_url = %s\n", cfg.LLM.BaseURL)
		fmt.Fprintf(os.Stdout, "llm.api_key = %s\n", mask(cfg.LLM.APIKey))
		fmt.Fprintf(os.Stdout, "llm.model = %s\n", cfg.LLM.Model)
		fmt.Fprintf(os.Stdout, "llm.max_tokens = %d\n", cfg.LLM.MaxTokens)
		fmt.Fprintf(os.Stdout, "llm.max_context_tokens = %d\n", cfg.LLM.MaxContextTokens)
		fmt.Fprintf(os.Stdout, "llm.output_reserve = %d\n", cfg.LLM.OutputReserve)
		fmt.Fprintf(os.Stdout, "telegram.token = %s\n", mask(cfg.Telegram.Token))
		return nil
	},
}
