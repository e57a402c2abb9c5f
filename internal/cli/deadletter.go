package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
)

// DeadLetterOptions holds flags shared by the deadletter subcommands.
type DeadLetterOptions struct {
	*RootOptions
	Limit int
	Once  bool
}

// NewDeadLetterCommand creates the deadletter command and its subcommands.
func NewDeadLetterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and retry quarantined events",
	}
	cmd.AddCommand(newSweepCommand(rootOpts))
	cmd.AddCommand(newListCommand(rootOpts))
	return cmd
}

func newSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeadLetterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Republish pending dead letters",
		Long: `Republish pending dead letters to the event log with exponential
backoff. Entries that still fail keep their retry count and stay pending.
Without --once the sweep repeats every dead_letter.sweep.every.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "max entries per sweep (default: dead_letter.sweep.limit)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "sweep once and exit")

	return cmd
}

func newListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeadLetterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List pending dead letters",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "max entries to list")

	return cmd
}

func runSweep(parent context.Context, opts *DeadLetterOptions, w io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dlq, err := openDeadLetters(ctx, cfg.DeadLetter, logger)
	if err != nil {
		return err
	}
	defer dlq.Close()
	out, err := openLog(ctx, cfg.EventLog, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	sc := cfg.DeadLetter.Sweep
	sw, err := deadletter.NewSweeper(dlq, out,
		deadletter.WithMaxAttempts(sc.MaxAttempts),
		deadletter.WithBaseDelay(sc.BaseDelay),
		deadletter.WithJitterFactor(sc.JitterFactor),
		deadletter.WithWorkers(sc.Workers),
		deadletter.WithSweepLogger(logger),
	)
	if err != nil {
		return err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = sc.Limit
	}
	if !opts.Once {
		return sw.Run(ctx, limit, sc.Every)
	}

	rep, err := sw.Sweep(ctx, limit)
	fmt.Fprintf(w, "resolved %d, still pending %d\n", rep.Resolved, rep.Failed)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runList(ctx context.Context, opts *DeadLetterOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	dlq, err := openDeadLetters(ctx, cfg.DeadLetter, logger)
	if err != nil {
		return err
	}
	defer dlq.Close()

	entries, err := dlq.Pending(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return printEntries(w, entries)
}

func printEntries(w io.Writer, entries []deadletter.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no pending dead letters")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOPIC\tEVENT\tTYPE\tRETRIES\tFIRST SEEN\tLAST ERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.Topic, e.EventID, e.EventType, e.RetryCount,
			e.FirstSeenAt.UTC().Format(time.RFC3339), e.LastError)
	}
	return tw.Flush()
}
