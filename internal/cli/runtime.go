package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter/gormstore"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter/spool"
	"github.com/gyaneshwarpardhi/shopsynth/internal/pipeline"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink/kafkalog"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink/pglog"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store/memstore"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store/sqlstore"
)

var ErrNoDurableLog = errors.New("consuming needs a postgres or kafka event log")

func openStore(ctx context.Context, conf config.DatabaseConf, logger *slog.Logger) (store.Gateway, error) {
	if conf.Driver == "memory" {
		return memstore.NewShop(), nil
	}
	gw, err := sqlstore.Open(ctx, conf.DSN, sqlstore.PoolConfig{
		MaxOpenConns:    conf.MaxOpenConns,
		MaxIdleConns:    conf.MaxIdleConns,
		ConnMaxLifetime: conf.ConnMaxLifetime,
		ConnMaxIdleTime: conf.ConnMaxIdleTime,
	}, sqlstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("connect entity store: %w", err)
	}
	return gw, nil
}

// openLog connects the raw event log without fault injection.
func openLog(ctx context.Context, conf config.EventLogConf, logger *slog.Logger) (sink.Sink, error) {
	switch conf.Driver {
	case "memory":
		return sink.NewMemory(), nil
	case "kafka":
		w, err := kafkalog.NewWriter(kafkalog.Config{Brokers: conf.Brokers, TopicPrefix: conf.TopicPrefix}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect event log: %w", err)
		}
		return w, nil
	default:
		pool, err := pglog.Connect(ctx, conf.DSN, conf.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect event log: %w", err)
		}
		l, err := pglog.New(pool, pglog.WithLogger(logger))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return l, nil
	}
}

// openSink is the generator-facing sink: the event log behind transient
// failures injected at the current policy rate.
func openSink(ctx context.Context, conf config.EventLogConf, src *policy.Source, seed uint64, logger *slog.Logger) (sink.Sink, error) {
	out, err := openLog(ctx, conf, logger)
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	rate := func() float64 { return src.Load().Failures.PublishFailureRate }
	return sink.NewFaulty(out, rate, rand.New(rand.NewPCG(seed, 0x5eed))), nil
}

// openDeadLetters returns the SQLite spool alone, or Postgres with the spool
// as fallback when a DSN is configured.
func openDeadLetters(ctx context.Context, conf config.DeadLetterConf, logger *slog.Logger) (deadletter.Store, error) {
	sp, err := spool.Open(conf.SpoolPath)
	if err != nil {
		return nil, err
	}
	if conf.DSN == "" {
		return sp, nil
	}
	primary, err := gormstore.Open(ctx, conf.DSN, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect dead-letter store: %w", err), sp.Close())
	}
	return deadletter.NewChain(primary, sp, logger), nil
}

func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Source, error) {
	switch cfg.EventLog.Driver {
	case "kafka":
		src, err := kafkalog.NewSource(kafkalog.Config{
			Brokers:     cfg.EventLog.Brokers,
			TopicPrefix: cfg.EventLog.TopicPrefix,
		}, cfg.Pipeline.Group, logger)
		if err != nil {
			return nil, fmt.Errorf("connect event log: %w", err)
		}
		return src, nil
	case "postgres":
		pool, err := pglog.Connect(ctx, cfg.EventLog.DSN, cfg.EventLog.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect event log: %w", err)
		}
		src, err := pglog.NewSource(pool, cfg.Pipeline.Group,
			pglog.WithBatchSize(cfg.Pipeline.BatchSize),
			pglog.WithPollInterval(cfg.Pipeline.PollInterval),
			pglog.WithSourceLogger(logger),
		)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return src, nil
	default:
		return nil, ErrNoDurableLog
	}
}

// closeAll closes every non-nil closer and joins their errors.
func closeAll(cs ...interface{ Close() error }) error {
	var errs []error
	for _, c := range cs {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
