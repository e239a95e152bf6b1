// Package driver wires load, collect, route, preview, and dispatch
// into the single run the CLI executes (spec §4 overview, §6 exit
// codes).
package driver

import (
	"context"
	"fmt"
	"io"

	"github.com/Josh5/secretpush/internal/collector"
	"github.com/Josh5/secretpush/internal/config"
	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	"github.com/Josh5/secretpush/internal/reporter"
	"github.com/Josh5/secretpush/internal/router"
	"github.com/Josh5/secretpush/internal/sink"
	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

// Exit codes (spec §6).
const (
	ExitSuccess     = 0
	ExitAnyFailed   = 1
	ExitConfigError = 2
	ExitCancelled   = 130
)

// Options mirrors the CLI flags that shape a run.
type Options struct {
	Files            []string
	DryRun           bool
	PrintValues      bool
	PrintFormat      string
	PrintSyncDetails bool
}

// Run executes one full load→collect→route→(preview|dispatch) cycle
// and returns the process exit code.
func Run(ctx context.Context, opts Options, logger *logging.Logger, stdout, stderr io.Writer) int {
	def, err := config.Load(opts.Files)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return ExitConfigError
	}

	coll := collector.New(logger)
	var results []collector.Result
	if opts.DryRun && opts.PrintValues {
		results = coll.CollectContinue(ctx, def.Sources, def.Vars)
	} else {
		results, err = coll.CollectAbort(ctx, def.Sources, def.Vars)
		if err != nil {
			if dserrors.IsCancelled(err) || ctx.Err() != nil {
				fmt.Fprintln(stderr, "cancelled")
				return ExitCancelled
			}
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitConfigError
		}
	}

	routed := router.Route(def.Sinks, results, logger)

	if opts.DryRun {
		preview := reporter.BuildPreview(def.Sinks, routed, opts.PrintValues)
		if err := reporter.WritePreview(stdout, preview, opts.PrintFormat); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitConfigError
		}
		return ExitSuccess
	}

	summary := reporter.NewSummary()
	for _, sinkSpec := range def.Sinks {
		if ctx.Err() != nil {
			fmt.Fprintln(stderr, "cancelled")
			return ExitCancelled
		}
		adapter, err := sink.Build(ctx, sinkSpec, def.AWS, logger)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitConfigError
		}
		events := adapter.Dispatch(ctx, routed[sinkSpec.Name], pkgsink.DispatchOptions{ValueSnapshots: opts.PrintValues || opts.PrintSyncDetails})
		for ev := range events {
			summary.Record(logger, ev, opts.PrintSyncDetails, opts.PrintValues)
		}
	}

	summary.WriteFinalSummary(stdout)
	if ctx.Err() != nil {
		return ExitCancelled
	}
	return summary.ExitCode()
}
