package main

import (
	"context"
	"os"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/mcpserver"
	"github.com/spf13/cobra"
)

func mcpCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the research tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath, os.Stderr)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Close(ctx)
			}()
			return mcpserver.Serve(mcpserver.New(a.research, version, a.logger))
		},
	}
}
