package main

import (
	"github.com/harunnryd/renga/cmd/renga/runtime"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive agent session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithRuntime(cmd, func(c *runtime.Components) error {
			repl := runtime.NewREPL(c)
			return repl.Start()
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
