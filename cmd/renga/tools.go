package main

import (
	"fmt"

	"github.com/harunnryd/renga/cmd/renga/runtime"
	"github.com/harunnryd/renga/internal/tool/formatter"

	"github.com/spf13/cobra"
)

var toolsOutputFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed by the configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatter.ParseOutputFormat(toolsOutputFormat)
		if err != nil {
			return err
		}

		return executeWithRuntime(cmd, func(c *runtime.Components) error {
			f, err := formatter.NewFormatterFactory().Create(format)
			if err != nil {
				return err
			}

			out, err := f.FormatDescriptors(c.Registry.List())
			if err != nil {
				return err
			}

			fmt.Println(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVarP(&toolsOutputFormat, "output", "o", "table", "output format (table, json, yaml)")
}
