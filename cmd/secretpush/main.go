package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Josh5/secretpush/internal/driver"
	"github.com/Josh5/secretpush/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		files            []string
		dryRun           bool
		printValues      bool
		printFormat      string
		printSyncDetails bool
		debug            bool
		noColor          bool
	)

	var logger *logging.Logger
	exitCode := driver.ExitSuccess

	rootCmd := &cobra.Command{
		Use:     "secretpush",
		Short:   "Push secrets from upstream vaults into SSM Parameter Store and Secrets Manager",
		Long:    `secretpush collects secrets from one or more sources, routes them to one or more sinks, and syncs them to AWS.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(debug, noColor)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 {
				return fmt.Errorf("at least one -f/--file is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exitCode = driver.Run(ctx, driver.Options{
				Files:            files,
				DryRun:           dryRun,
				PrintValues:      printValues,
				PrintFormat:      printFormat,
				PrintSyncDetails: printSyncDetails,
			}, logger, os.Stdout, os.Stderr)
			return nil
		},
	}

	rootCmd.Flags().StringArrayVarP(&files, "file", "f", nil, "config file path (repeatable)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "collect and route without writing to any sink")
	rootCmd.Flags().BoolVar(&printValues, "print-values", false, "include secret values in dry-run preview and sync-detail output")
	rootCmd.Flags().StringVar(&printFormat, "print-format", "list", "dry-run preview format: list|table|json")
	rootCmd.Flags().BoolVar(&printSyncDetails, "print-sync-details", false, "log the outcome of every item dispatched to a sink")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitConfigError
	}
	return exitCode
}
