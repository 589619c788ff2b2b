package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/capacity-checker/internal/app"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
)

var rootCmd = &cobra.Command{
	Use:           "capacity-checker",
	Short:         "Capacity register search engine",
	Long:          "Resolves free-text and unit-id queries against the capacity market register and runs the index, location and ingestion jobs behind it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(rebuildIndexCmd)
	rootCmd.AddCommand(rebuildLocationsCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(backfillCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM so jobs stop between batches.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withApp builds the application for one command and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signalContext()
	defer cancel()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

type budgetFlags struct {
	maxBatches int
	timeout    time.Duration
}

func (b *budgetFlags) register(c *cobra.Command) {
	c.Flags().IntVar(&b.maxBatches, "max-batches", 0, "stop after this many batches (0 = unbounded)")
	c.Flags().DurationVar(&b.timeout, "timeout", 0, "stop at the first batch boundary after this long (0 = unbounded)")
}

func (b *budgetFlags) budget() runtime.Budget {
	return runtime.Budget{MaxBatches: b.maxBatches}.WithTimeout(b.timeout)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
