package pglog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second

	logMsgPollFailed = "event log poll failed"
	logAttrGroup     = "consumer_group"
)

// Source reads the log of one topic in sequence order. The cursor lives in
// consumer_offsets and moves past a message only once the handler accepted it.
type Source struct {
	pool     *pgxpool.Pool
	group    string
	batch    int
	interval time.Duration
	logger   *slog.Logger
}

type SourceOption func(*Source)

func WithBatchSize(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.batch = n
		}
	}
}

func WithPollInterval(d time.Duration) SourceOption {
	return func(s *Source) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSourceLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.logger = l }
}

func NewSource(pool *pgxpool.Pool, group string, opts ...SourceOption) (*Source, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	s := &Source{
		pool:     pool,
		group:    group,
		batch:    defaultBatchSize,
		interval: defaultPollInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Consume feeds every envelope of topic to handle until ctx is cancelled. A
// handler error stops the batch; the message is offered again after the
// poll interval.
func (s *Source) Consume(ctx context.Context, topic string, handle func(context.Context, []byte) error) error {
	for {
		n, err := s.poll(ctx, topic, handle)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.Warn(logMsgPollFailed, logAttrTopic, topic, logAttrGroup, s.group, "err", err)
		}
		if n == s.batch && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}
	}
}

// Close releases the pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

type entry struct {
	seq     int64
	payload string
}

func (s *Source) poll(ctx context.Context, topic string, handle func(context.Context, []byte) error) (int, error) {
	after, err := s.offset(ctx, topic)
	if err != nil {
		return 0, err
	}

	query, args, err := batchSQL(topic, after, s.batch)
	if err != nil {
		return 0, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("read %s after %d: %w", topic, after, err)
	}
	var batch []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.seq, &e.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan %s: %w", topic, err)
		}
		batch = append(batch, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", topic, err)
	}

	for i, e := range batch {
		if err := handle(ctx, []byte(e.payload)); err != nil {
			return i, err
		}
		if err := s.commit(ctx, topic, e.seq); err != nil {
			return i, err
		}
	}
	return len(batch), nil
}

func (s *Source) offset(ctx context.Context, topic string) (int64, error) {
	query, args, err := offsetSQL(s.group, topic)
	if err != nil {
		return 0, err
	}
	var seq int64
	err = s.pool.QueryRow(ctx, query, args...).Scan(&seq)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read offset %s/%s: %w", s.group, topic, err)
	}
	return seq, nil
}

func (s *Source) commit(ctx context.Context, topic string, seq int64) error {
	query, args, err := commitSQL(s.group, topic, seq)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("commit offset %s/%s=%d: %w", s.group, topic, seq, err)
	}
	return nil
}

func batchSQL(topic string, after int64, limit int) (string, []any, error) {
	return dialect.From(tableEventLog).
		Select(goqu.C("sequence_number"), goqu.L("payload::text")).
		Where(
			goqu.C("topic").Eq(topic),
			goqu.C("sequence_number").Gt(after),
		).
		Order(goqu.C("sequence_number").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
}

func offsetSQL(group, topic string) (string, []any, error) {
	return dialect.From(tableConsumerOffsets).
		Select(goqu.C("last_sequence")).
		Where(
			goqu.C("consumer_group").Eq(group),
			goqu.C("topic").Eq(topic),
		).
		Prepared(true).
		ToSQL()
}

func commitSQL(group, topic string, seq int64) (string, []any, error) {
	return dialect.Insert(tableConsumerOffsets).
		Rows(goqu.Record{
			"consumer_group": group,
			"topic":          topic,
			"last_sequence":  seq,
			"updated_at":     goqu.L("now()"),
		}).
		OnConflict(goqu.DoUpdate("consumer_group, topic", goqu.Record{
			"last_sequence": goqu.I("excluded.last_sequence"),
			"updated_at":    goqu.L("now()"),
		})).
		Prepared(true).
		ToSQL()
}
