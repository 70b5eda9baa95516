package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sentipulse/twitter-crawler/internal/app"
)

const (
	modeFull      = "full"
	modeStreaming = "streaming"
)

// newRunCmd creates the 'run' subcommand. The positional mode argument
// selects between a one-shot batch crawl and long-lived streaming.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <mode>",
		Short: "Runs a crawl over every tracked keyword",
		Long: `Runs a crawl over the tracked keyword set. Mode "full" performs a
one-shot search crawl per keyword and exits; mode "streaming" opens a
live stream per keyword and runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	switch args[0] {
	case modeFull:
		return a.Dispatcher.RunCrawlBatch(cmd.Context())
	case modeStreaming:
		return runStreaming(cmd, a)
	default:
		return fmt.Errorf("unknown mode %q: expected %q or %q", args[0], modeFull, modeStreaming)
	}
}

// runStreaming keeps the stream sessions open until the process receives
// an interrupt, then shuts them down in order.
func runStreaming(cmd *cobra.Command, a *app.App) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Dispatcher.RunStreamBatch(ctx); err != nil {
		return err
	}
	if len(a.Dispatcher.Sessions()) == 0 {
		return fmt.Errorf("no stream sessions started")
	}

	<-ctx.Done()
	a.Logger.Info("shutting down stream sessions")
	a.Dispatcher.StopAll()
	return nil
}
