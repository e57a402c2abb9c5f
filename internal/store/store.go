// Package store defines the Entity Store Gateway: the only path through which
// generators read and write authoritative entity rows. Implementations live in
// the sqlstore (Postgres) and memstore (in-process) subpackages.
package store

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable marks connectivity failures. Callers retry on the
	// next tick.
	ErrStoreUnavailable = errors.New("entity store unavailable")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate row")
	// ErrUnknownTable is returned for a table the gateway does not manage.
	ErrUnknownTable = errors.New("unknown table")
)

// Gateway is safe for concurrent use by independent generators.
type Gateway interface {
	// Query returns the rows of q.Table matching every condition.
	Query(ctx context.Context, q Query) ([]Record, error)
	// Exists reports whether at least one row matches.
	Exists(ctx context.Context, table string, where ...Cond) (bool, error)
	// Insert adds a row. A unique violation yields ErrDuplicate.
	Insert(ctx context.Context, table string, rec Record) error
	// InsertAll adds every row in order, or none of them when any insert
	// fails.
	InsertAll(ctx context.Context, rows ...Row) error
	// Update sets fields on the row whose keyColumn equals id and reports
	// whether a row was changed.
	Update(ctx context.Context, table, keyColumn, id string, fields Record) (bool, error)
	// Upsert inserts rec or, on a keyColumn conflict, overwrites every column.
	Upsert(ctx context.Context, table, keyColumn string, rec Record) error
	Close() error
}

// Row is a record bound for a table.
type Row struct {
	Table  string
	Record Record
}

// Into pairs rec with table.
func Into(table string, rec Record) Row {
	return Row{Table: table, Record: rec}
}

// Query selects rows from one table.
type Query struct {
	Table   string
	Columns []string // empty selects every column
	Where   []Cond
	OrderBy string // column, ascending; prefix "-" for descending
	Limit   int
}

// Select starts a Query on table.
func Select(table string, columns ...string) Query {
	return Query{Table: table, Columns: columns}
}

// Filter returns a copy of q with extra conditions.
func (q Query) Filter(conds ...Cond) Query {
	q.Where = append(append([]Cond(nil), q.Where...), conds...)
	return q
}

// Order returns a copy of q sorted by column.
func (q Query) Order(column string) Query {
	q.OrderBy = column
	return q
}

// Take returns a copy of q limited to n rows.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}
