package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/capacity-checker/internal/app"
	"github.com/yungbote/capacity-checker/internal/search/location"
)

var (
	indexBudget    budgetFlags
	indexForce     bool
	locationBudget budgetFlags
	locationMode   string
	locationMin    int
	crawlBudget    budgetFlags
	backfillBudget budgetFlags
)

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Build the company index from stored components",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.RequireSharedStore(cmd.Name()); err != nil {
				return err
			}
			stats, err := a.Services.Engine.RebuildIndex(ctx, indexForce, indexBudget.budget())
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var rebuildLocationsCmd = &cobra.Command{
	Use:   "rebuild-locations",
	Short: "Rebuild the place name to outward code mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.RequireSharedStore(cmd.Name()); err != nil {
				return err
			}
			stats, err := a.Services.Engine.RebuildLocationMapping(ctx, locationMode, locationMin, locationBudget.budget())
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Copy the upstream register into the relational store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if !a.Clients.SharedFastStore() {
				a.Log.Warn("REDIS_ADDR not set, a running server keeps its own cached units until they expire")
			}
			stats, err := a.Services.Engine.Crawl(ctx, crawlBudget.budget())
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill-capacity",
	Short: "Fill derated capacity from the raw source field",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			stats, err := a.Services.Engine.BackfillCapacity(ctx, backfillBudget.budget())
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

func init() {
	indexBudget.register(rebuildIndexCmd)
	rebuildIndexCmd.Flags().BoolVar(&indexForce, "force", false, "rebuild even when an index is present")

	locationBudget.register(rebuildLocationsCmd)
	rebuildLocationsCmd.Flags().StringVar(&locationMode, "mode", location.ModeIncremental, "full or incremental")
	rebuildLocationsCmd.Flags().IntVar(&locationMin, "min-components", 1, "skip locations with fewer components")

	crawlBudget.register(crawlCmd)
	backfillBudget.register(backfillCmd)
}
