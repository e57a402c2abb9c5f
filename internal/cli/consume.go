package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shopsynth/internal/condition"
	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/pipeline"
)

var ErrUnknownTopic = errors.New("unknown topic")

// ConsumeOptions holds flags for the consume command.
type ConsumeOptions struct {
	*RootOptions
	Topics []string
}

// NewConsumeCommand creates the consume command.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Mirror the event log into the entity store",
		Long: `Read every configured topic from the event log, check required fields
and quality rules, and upsert the latest state per entity into the
mirror_events table. Rejected messages are counted and skipped.

Example:
  shopsynth consume
  shopsynth consume --topics users,orders`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Topics, "topics", nil, "topics to consume (default: pipeline.topics, else all)")

	return cmd
}

func runConsume(parent context.Context, opts *ConsumeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	topics, err := consumeTopics(cfg, opts.Topics)
	if err != nil {
		return err
	}
	rules, err := condition.CompileSet(cfg.Pipeline.Rules)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gw, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	proc, err := pipeline.NewProcessor(gw,
		pipeline.WithRequired(cfg.Pipeline.Required),
		pipeline.WithRules(rules),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	runner, err := pipeline.NewRunner(src, proc, topics, logger)
	if err != nil {
		return errors.Join(err, src.Close())
	}
	return runner.Run(ctx)
}

// consumeTopics picks the flag, then pipeline.topics, then every topic.
func consumeTopics(cfg *config.Config, flag []string) ([]string, error) {
	topics := flag
	if len(topics) == 0 {
		topics = cfg.Pipeline.Topics
	}
	if len(topics) == 0 {
		return event.Topics(), nil
	}
	known := event.Topics()
	for _, t := range topics {
		if !slices.Contains(known, t) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, t)
		}
	}
	return topics, nil
}
