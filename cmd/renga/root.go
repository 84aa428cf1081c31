package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/renga/internal/config"
	"github.com/harunnryd/renga/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "renga",
	Short: "Renga tool-calling agent",
	Long:  `Renga is a conversational agent that answers by calling Notion, Google Workspace, mail and MCP tools.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.renga/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("models.default", "", "model to route completions to")
	rootCmd.PersistentFlags().Int("agent.max_rounds", config.DefaultAgentMaxRounds, "maximum model/tool rounds per user turn")
}
