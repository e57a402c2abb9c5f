// Package kafkalog publishes events to Kafka and reads them back with
// consumer groups. One Kafka topic per event topic, keyed by entity id.
package kafkalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
)

const (
	headerEventType = "event_type"
	headerEventID   = "event_id"

	defaultBatchTimeout = 10 * time.Millisecond
	defaultRetryDelay   = time.Second

	logMsgHandlerFailed = "message handler failed, retrying"
	logMsgCommitFailed  = "commit failed"
)

var ErrNoBrokers = errors.New("kafkalog: no brokers configured")

// Config names the cluster and an optional prefix applied to every topic.
type Config struct {
	Brokers     []string
	TopicPrefix string
}

func (c Config) topic(name string) string {
	return c.TopicPrefix + name
}

// Writer is a sink.Sink. WriteMessages blocks until every in-sync replica
// acknowledged the message.
type Writer struct {
	cfg    Config
	w      *kafka.Writer
	logger *slog.Logger
}

var _ sink.Sink = (*Writer)(nil)

func NewWriter(cfg Config, logger *slog.Logger) (*Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg: cfg,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           defaultBatchTimeout,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}, nil
}

func (w *Writer) Publish(ctx context.Context, ev event.Event) error {
	msg, err := message(w.cfg, ev)
	if err != nil {
		return errors.Join(sink.ErrPublishFailed, err)
	}
	if err := w.w.WriteMessages(ctx, msg); err != nil {
		return errors.Join(sink.ErrPublishFailed, fmt.Errorf("write %s: %w", msg.Topic, err))
	}
	return nil
}

func (w *Writer) Close() error {
	return w.w.Close()
}

func message(cfg Config, ev event.Event) (kafka.Message, error) {
	raw, err := event.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: cfg.topic(ev.Topic),
		Key:   []byte(ev.Key),
		Value: raw,
		Time:  ev.EmittedAt,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(ev.Type)},
			{Key: headerEventID, Value: []byte(ev.ID)},
		},
	}, nil
}

// Source consumes topics as one consumer group. Offsets are committed only
// after the handler accepted the message; a failing handler is retried.
type Source struct {
	cfg        Config
	group      string
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewSource(cfg Config, group string, logger *slog.Logger) (*Source, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, group: group, retryDelay: defaultRetryDelay, logger: logger}, nil
}

func (s *Source) Consume(ctx context.Context, topic string, handle func(context.Context, []byte) error) error {
	r := kafka.NewReader(s.readerConfig(topic))
	defer r.Close()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch %s: %w", topic, err)
		}
		for {
			err := handle(ctx, msg.Value)
			if err == nil {
				break
			}
			s.logger.Warn(logMsgHandlerFailed, "topic", topic, "offset", msg.Offset, "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.retryDelay):
			}
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error(logMsgCommitFailed, "topic", topic, "offset", msg.Offset, "err", err)
		}
	}
}

// Close is a no-op; readers are closed when Consume returns.
func (s *Source) Close() error { return nil }

func (s *Source) readerConfig(topic string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		GroupID:  s.group,
		Topic:    s.cfg.topic(topic),
		MinBytes: 1,
		MaxBytes: 10e6,
	}
}
