package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/capacity-checker/internal/app"
	"github.com/yungbote/capacity-checker/internal/search/orchestrator"
	"github.com/yungbote/capacity-checker/internal/search/resolver"
)

var searchFlags struct {
	page     int
	pageSize int
	sort     string
	filters  resolver.Filters
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Resolve one query and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := orchestrator.Request{
			Query:    strings.Join(args, " "),
			Page:     searchFlags.page,
			PageSize: searchFlags.pageSize,
			Sort:     searchFlags.sort,
			Filters:  searchFlags.filters,
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			return printJSON(a.Services.Engine.Resolve(ctx, req))
		})
	},
}

func init() {
	f := searchCmd.Flags()
	f.IntVar(&searchFlags.page, "page", 1, "result page")
	f.IntVar(&searchFlags.pageSize, "page-size", resolver.DefaultPageSize, "components per page")
	f.StringVar(&searchFlags.sort, "sort", resolver.SortDeliveryYearDesc, "delivery_year_desc, delivery_year_asc or location")
	f.StringVar(&searchFlags.filters.Technology, "technology", "", "technology filter")
	f.StringVar(&searchFlags.filters.DeliveryYear, "delivery-year", "", "delivery year filter")
	f.StringVar(&searchFlags.filters.AuctionName, "auction", "", "auction name filter")
	f.StringVar(&searchFlags.filters.Status, "status", "", "status filter")
}
