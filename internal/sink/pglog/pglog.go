// Package pglog keeps the event log in a Postgres append-only table. An
// event is acknowledged once its INSERT has committed.
package pglog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
)

//go:embed schema.sql
var schemaSQL string

const (
	tableEventLog        = "event_log"
	tableConsumerOffsets = "consumer_offsets"

	logMsgAppended        = "event appended"
	logMsgAlreadyAppended = "event already in log"
	logAttrTopic          = "topic"
	logAttrEventID        = "event_id"
	logAttrSequenceNumber = "sequence_number"
)

var ErrNilPool = errors.New("pglog: nil connection pool")

var dialect = goqu.Dialect("postgres")

// Log is a sink.Sink on Postgres.
type Log struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ sink.Sink = (*Log)(nil)

type Option func(*Log)

func WithLogger(l *slog.Logger) Option {
	return func(lg *Log) { lg.logger = l }
}

// Connect opens a pool on dsn. maxConns <= 0 keeps the pgx default.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse event log dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open event log pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping event log: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool, opts ...Option) (*Log, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	l := &Log{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Migrate creates the event log and consumer offset tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply event log schema: %w", err)
	}
	return nil
}

// Publish appends ev. Re-publishing an event id already in the log is
// acknowledged without a second row.
//
// Appends to one topic are serialised on a transaction-scoped advisory lock,
// so sequence numbers within a topic commit in order and a reader that has
// seen sequence n never later finds a committed row below n.
func (l *Log) Publish(ctx context.Context, ev event.Event) error {
	query, args, err := appendSQL(ev)
	if err != nil {
		return errors.Join(sink.ErrPublishFailed, err)
	}
	lockQuery, lockArgs, err := lockSQL(ev.Topic)
	if err != nil {
		return errors.Join(sink.ErrPublishFailed, err)
	}

	var seq int64
	err = pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockQuery, lockArgs...); err != nil {
			return fmt.Errorf("lock topic %s: %w", ev.Topic, err)
		}
		return tx.QueryRow(ctx, query, args...).Scan(&seq)
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		l.logger.Debug(logMsgAlreadyAppended, logAttrTopic, ev.Topic, logAttrEventID, ev.ID)
		return nil
	case err != nil:
		return errors.Join(sink.ErrPublishFailed, err)
	}
	l.logger.Debug(logMsgAppended, logAttrTopic, ev.Topic, logAttrEventID, ev.ID, logAttrSequenceNumber, seq)
	return nil
}

// Close releases the pool.
func (l *Log) Close() error {
	l.pool.Close()
	return nil
}

func appendSQL(ev event.Event) (string, []any, error) {
	raw, err := event.Marshal(ev)
	if err != nil {
		return "", nil, err
	}
	return dialect.Insert(tableEventLog).
		Rows(goqu.Record{
			"event_id":   ev.ID,
			"topic":      ev.Topic,
			"event_type": string(ev.Type),
			"event_key":  ev.Key,
			"payload":    string(raw),
			"emitted_at": ev.EmittedAt,
		}).
		OnConflict(goqu.DoNothing()).
		Returning("sequence_number").
		Prepared(true).
		ToSQL()
}

func lockSQL(topic string) (string, []any, error) {
	return dialect.Select(goqu.Func("pg_advisory_xact_lock", goqu.Func("hashtext", topic))).
		Prepared(true).
		ToSQL()
}
