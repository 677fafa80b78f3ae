package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/c360studio/sparqlpad/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sparqlpad configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default user config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(slog.Default(), "")
			path, err := loader.EnsureUserConfig()
			if err != nil {
				return fmt.Errorf("create config: %w", err)
			}
			fmt.Printf("Config file: %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(slog.Default(), "").Load()
			if err != nil {
				return err
			}

			fmt.Printf("server:\n  host: %s\n  port: %d\n  session_ttl: %s\n",
				cfg.Server.Host, cfg.Server.Port, cfg.Server.SessionTTL)
			fmt.Printf("ai:\n  enabled: %t\n", cfg.AI.AssistantEnabled())
			if name, _, model, ok := cfg.AI.ResolvedProvider(); ok {
				if model == "" {
					model = "(provider default)"
				}
				fmt.Printf("  provider: %s\n  model: %s\n", name, model)
			} else {
				fmt.Printf("  provider: none configured\n")
			}
			fmt.Printf("  max_tokens: %d\n  temperature: %.2f\n  timeout: %s\n  history_window: %d\n",
				cfg.AI.MaxTokens, cfg.AI.Temperature, cfg.AI.Timeout, cfg.AI.HistoryWindow)
			return nil
		},
	})

	return cmd
}
