package main

import (
	"context"
	"fmt"

	"github.com/harunnryd/renga/cmd/renga/runtime"

	"github.com/spf13/cobra"
)

func executeWithRuntime(cmd *cobra.Command, fn func(*runtime.Components) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	components, err := runtime.NewBuilder().
		WithContext(ctx).
		WithConfig(cfg).
		Build()
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Stop()

	return fn(components)
}
