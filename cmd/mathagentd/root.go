package main

import (
	"os"

	"github.com/spf13/cobra"

	"MathAgent/internal/config"
	"MathAgent/pkg/logger"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "mathagentd",
		Short:         "MathAgent: plan and execute math tool calls with an LLM collaborator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("MATHAGENT_CONFIG"),
		"配置文件路径（YAML/JSON/TOML），也可通过 MATHAGENT_CONFIG 指定")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newToolsCmd(opts),
	)
	return rootCmd
}
