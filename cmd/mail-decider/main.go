package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/core"
	"github.com/pelissiernicolas/mail-ai-local/internal/di"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [command]

Commands:
  decide              decide pending messages (default)
  preview             show decision counts without changing anything
  reapply-overrides   re-run override rules over already decided messages
`, os.Args[0])
}

func main() {
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "decide"
	}

	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the selected command
	err = container.Invoke(func(
		logger *zap.Logger,
		service *core.DeciderService,
		store core.MessageStore,
		caller *core.OracleCaller,
		decisions core.DecisionLog,
	) error {
		defer logger.Sync()
		defer closeResources(logger, store, caller, decisions)

		// Cancel the batch on SIGINT/SIGTERM
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		switch command {
		case "decide":
			return runDecide(ctx, service)
		case "preview":
			return runPreview(ctx, service)
		case "reapply-overrides":
			return runReapplyOverrides(ctx, service)
		default:
			usage()
			return fmt.Errorf("unknown command: %s", command)
		}
	})
	if err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func runDecide(ctx context.Context, service *core.DeciderService) error {
	report, err := service.ProcessBatch(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: %d pending, %d decided, %d propagated, %d warnings\n",
		report.RunID, report.ToProcess, report.Processed, report.Propagated, report.Warnings)
	return nil
}

func runPreview(ctx context.Context, service *core.DeciderService) error {
	counts, err := service.Preview(ctx)
	if err != nil {
		return err
	}

	decisions := make([]string, 0, len(counts))
	for decision := range counts {
		decisions = append(decisions, string(decision))
	}
	sort.Strings(decisions)

	fmt.Printf("Decided messages by decision:\n")
	for _, decision := range decisions {
		fmt.Printf("  %-10s %d\n", decision, counts[core.Decision(decision)])
	}
	return nil
}

func runReapplyOverrides(ctx context.Context, service *core.DeciderService) error {
	changed, err := service.ReapplyOverrides(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Overrides reapplied, %d messages changed\n", changed)
	return nil
}

// closeResources closes whatever the container handed out that needs closing
func closeResources(logger *zap.Logger, store core.MessageStore, caller *core.OracleCaller, decisions core.DecisionLog) {
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}
	if caller != nil {
		if err := caller.Close(); err != nil {
			logger.Error("Failed to close oracle client", zap.Error(err))
		}
	}
	if decisions != nil {
		if err := decisions.Close(); err != nil {
			logger.Error("Failed to close decision log", zap.Error(err))
		}
	}
}
