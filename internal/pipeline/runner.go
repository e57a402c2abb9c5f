package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const (
	logMsgRejected      = "message rejected"
	logMsgProcessFailed = "message processing failed, will be redelivered"
	logMsgConsuming     = "consuming topic"
	logAttrTopic        = "topic"
)

var ErrNoTopics = errors.New("pipeline: no topics to consume")

// Source delivers the raw envelopes of one topic to handle. A handler error
// leaves the message to be delivered again.
type Source interface {
	Consume(ctx context.Context, topic string, handle func(context.Context, []byte) error) error
	Close() error
}

// Runner consumes every topic on its own goroutine.
type Runner struct {
	src    Source
	proc   *Processor
	topics []string
	logger *slog.Logger
}

func NewRunner(src Source, proc *Processor, topics []string, logger *slog.Logger) (*Runner, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{src: src, proc: proc, topics: topics, logger: logger}, nil
}

// Run blocks until ctx is cancelled or a source fails for good, then closes
// the source.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range r.topics {
		g.Go(func() error {
			r.logger.Info(logMsgConsuming, logAttrTopic, topic)
			if err := r.src.Consume(gctx, topic, r.Handler(topic)); err != nil {
				return fmt.Errorf("consume %s: %w", topic, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return errors.Join(err, r.src.Close())
}

// Handler processes one message of topic. Rejected messages are logged and
// acknowledged; any other failure is returned for redelivery.
func (r *Runner) Handler(topic string) func(context.Context, []byte) error {
	return func(ctx context.Context, raw []byte) error {
		err := r.proc.Process(ctx, topic, raw)
		switch {
		case err == nil:
			return nil
		case Rejected(err):
			r.logger.Warn(logMsgRejected, logAttrTopic, topic, "err", err)
			return nil
		default:
			r.logger.Error(logMsgProcessFailed, logAttrTopic, topic, "err", err)
			return err
		}
	}
}
