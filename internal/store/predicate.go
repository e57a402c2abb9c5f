package store

// Op is a predicate operator.
type Op string

const (
	OpEq        Op = "eq"
	OpNotEq     Op = "neq"
	OpIn        Op = "in"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpIsNull    Op = "is_null"
	OpNotNull   Op = "not_null"
	OpNotExists Op = "not_exists"
)

// Cond is one conjunct of a Query's predicate.
type Cond struct {
	Column string
	Op     Op
	Value  any

	// Set only for OpNotExists: no row in Ref.Table has Ref.Column equal to
	// this row's Column.
	Ref *Ref
}

// Ref points at a column in another table.
type Ref struct {
	Table  string
	Column string
}

func Eq(column string, v any) Cond    { return Cond{Column: column, Op: OpEq, Value: v} }
func NotEq(column string, v any) Cond { return Cond{Column: column, Op: OpNotEq, Value: v} }
func Gt(column string, v any) Cond    { return Cond{Column: column, Op: OpGt, Value: v} }
func Gte(column string, v any) Cond   { return Cond{Column: column, Op: OpGte, Value: v} }
func IsNull(column string) Cond       { return Cond{Column: column, Op: OpIsNull} }
func NotNull(column string) Cond      { return Cond{Column: column, Op: OpNotNull} }

// In matches rows whose column equals any of values.
func In(column string, values ...any) Cond {
	return Cond{Column: column, Op: OpIn, Value: values}
}

// NotExists matches rows for which no row of table has column equal to this
// row's localColumn.
func NotExists(localColumn, table, column string) Cond {
	return Cond{Column: localColumn, Op: OpNotExists, Ref: &Ref{Table: table, Column: column}}
}
