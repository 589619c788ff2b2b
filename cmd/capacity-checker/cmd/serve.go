package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/capacity-checker/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Run(ctx)
		})
	},
}
