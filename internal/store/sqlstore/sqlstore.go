// Package sqlstore is the Postgres Entity Store Gateway. Statements are built
// with goqu and executed through sqlx over the lib/pq driver.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // driver registration

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	dialectPostgres = "postgres"
	driverName      = "postgres"

	logMsgSQLExecuted    = "sql executed"
	logMsgBuildFailed    = "failed to build sql"
	logMsgStatementError = "sql statement failed"
	logAttrSQL           = "sql"
	logAttrTable         = "table"
	logAttrDurationMS    = "duration_ms"
)

// ErrNilDatabaseConnection is returned by New for a nil *sqlx.DB.
var ErrNilDatabaseConnection = errors.New("sqlstore: nil database connection")

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Store implements store.Gateway on Postgres.
type Store struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	logger  *slog.Logger
}

var _ store.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger routes statement logs to l (SQL text at debug level).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps an open connection.
func New(db *sqlx.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	s := &Store{db: db, dialect: goqu.Dialect(dialectPostgres), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects to dsn, applies the pool settings and pings the server. A
// failed ping is reported as store.ErrStoreUnavailable.
func Open(ctx context.Context, dsn string, pool PoolConfig, opts ...Option) (*Store, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open entity store: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(store.ErrStoreUnavailable, err)
	}
	return New(db, opts...)
}

// Migrate applies the embedded entity schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply entity schema: %w", classify(err))
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Record, error) {
	query, args, err := s.buildSelect(q)
	if err != nil {
		s.logger.Error(logMsgBuildFailed, logAttrTable, q.Table, "err", err)
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.QueryxContext(ctx, query, args...)
	s.logSQL(query, q.Table, start)
	if err != nil {
		s.logger.Error(logMsgStatementError, logAttrTable, q.Table, "err", err)
		return nil, classify(err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", q.Table, err)
		}
		out = append(out, store.Record(row))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, table string, where ...store.Cond) (bool, error) {
	rows, err := s.Query(ctx, store.Query{Table: table, Columns: []string{}, Where: where, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec store.Record) error {
	query, args, err := s.buildInsert(table, rec)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, s.db, table, query, args)
	return err
}

// InsertAll runs every insert in one transaction.
func (s *Store) InsertAll(ctx context.Context, rows ...store.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", classify(err))
	}
	for _, r := range rows {
		query, args, err := s.buildInsert(r.Table, r.Record)
		if err == nil {
			_, err = s.exec(ctx, tx, r.Table, query, args)
		}
		if err != nil {
			return errors.Join(err, rollback(tx))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert batch: %w", classify(err))
	}
	return nil
}

func rollback(tx *sqlx.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback insert batch: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table, keyColumn, id string, fields store.Record) (bool, error) {
	query, args, err := s.dialect.Update(table).
		Set(goqu.Record(plain(fields))).
		Where(goqu.C(keyColumn).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update %s: %w", table, err)
	}
	n, err := s.exec(ctx, s.db, table, query, args)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Upsert overwrites every column of rec on a keyColumn conflict.
func (s *Store) Upsert(ctx context.Context, table, keyColumn string, rec store.Record) error {
	query, args, err := s.buildUpsert(table, keyColumn, rec)
	if err != nil {
		return fmt.Errorf("build upsert %s: %w", table, err)
	}
	_, err = s.exec(ctx, s.db, table, query, args)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// exec runs query on the pool or inside a transaction.
func (s *Store) exec(ctx context.Context, ex sqlx.ExecerContext, table, query string, args []any) (int64, error) {
	start := time.Now()
	res, err := ex.ExecContext(ctx, query, args...)
	s.logSQL(query, table, start)
	if err != nil {
		s.logger.Error(logMsgStatementError, logAttrTable, table, "err", err)
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) buildInsert(table string, rec store.Record) (string, []any, error) {
	query, args, err := s.dialect.Insert(table).
		Rows(goqu.Record(plain(rec))).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build insert %s: %w", table, err)
	}
	return query, args, nil
}

func (s *Store) buildSelect(q store.Query) (string, []any, error) {
	ds := s.dialect.From(q.Table)
	switch {
	case q.Columns == nil:
	case len(q.Columns) == 0:
		ds = ds.Select(goqu.L("1"))
	default:
		cols := make([]any, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = goqu.C(c)
		}
		ds = ds.Select(cols...)
	}
	for _, c := range q.Where {
		e, err := s.expression(q.Table, c)
		if err != nil {
			return "", nil, err
		}
		ds = ds.Where(e)
	}
	if q.OrderBy != "" {
		if q.OrderBy[0] == '-' {
			ds = ds.Order(goqu.C(q.OrderBy[1:]).Desc())
		} else {
			ds = ds.Order(goqu.C(q.OrderBy).Asc())
		}
	}
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}
	return ds.Prepared(true).ToSQL()
}

func (s *Store) buildUpsert(table, keyColumn string, rec store.Record) (string, []any, error) {
	set := goqu.Record{}
	for _, col := range rec.Columns() {
		if col == keyColumn {
			continue
		}
		set[col] = goqu.I("excluded." + col)
	}
	ins := s.dialect.Insert(table).Rows(goqu.Record(plain(rec)))
	if len(set) == 0 {
		ins = ins.OnConflict(goqu.DoNothing())
	} else {
		ins = ins.OnConflict(goqu.DoUpdate(keyColumn, set))
	}
	return ins.Prepared(true).ToSQL()
}

func (s *Store) expression(table string, c store.Cond) (exp.Expression, error) {
	col := goqu.C(c.Column)
	v := store.Normalize(c.Value)
	switch c.Op {
	case store.OpEq:
		return col.Eq(v), nil
	case store.OpNotEq:
		return col.Neq(v), nil
	case store.OpGt:
		return col.Gt(v), nil
	case store.OpGte:
		return col.Gte(v), nil
	case store.OpIsNull:
		return col.IsNull(), nil
	case store.OpNotNull:
		return col.IsNotNull(), nil
	case store.OpIn:
		values, _ := c.Value.([]any)
		if len(values) == 0 {
			return goqu.L("FALSE"), nil
		}
		return col.In(values...), nil
	case store.OpNotExists:
		// The subquery carries identifiers only, so it is rendered inline.
		sub, _, err := s.dialect.From(c.Ref.Table).
			Select(goqu.L("1")).
			Where(goqu.I(c.Ref.Table + "." + c.Ref.Column).Eq(goqu.I(table + "." + c.Column))).
			ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build not exists on %s: %w", c.Ref.Table, err)
		}
		return goqu.L("NOT EXISTS (" + sub + ")"), nil
	}
	return nil, fmt.Errorf("sqlstore: unsupported operator %q", c.Op)
}

func (s *Store) logSQL(query, table string, start time.Time) {
	s.logger.Debug(logMsgSQLExecuted,
		logAttrSQL, query,
		logAttrTable, table,
		logAttrDurationMS, float64(time.Since(start).Microseconds())/1000)
}

// plain strips the typed nil pointers domain records use for NULL.
func plain(rec store.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = store.Normalize(v)
	}
	return out
}
