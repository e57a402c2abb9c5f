// Package memstore is an in-process Gateway. It honours the same predicate,
// upsert and unique-constraint semantics as the Postgres gateway and backs
// tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// Unique is a unique index over Columns. When WhereNull is set the index is
// partial: only rows whose WhereNull column is NULL take part.
type Unique struct {
	Columns   []string
	WhereNull string
}

type table struct {
	key     string
	uniques []Unique
	rows    []store.Record
	index   map[string]int
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	tables      map[string]*table
	unavailable bool
	failInserts map[string]bool
	closed      int
}

var _ store.Gateway = (*Store)(nil)

// New returns an empty Store with no tables.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// NewShop returns a Store with every shop table and its constraints defined.
func NewShop() *Store {
	s := New()
	s.Define(domain.TableUsers, "user_id", Unique{Columns: []string{"email"}})
	s.Define(domain.TableDemographics, "demographic_id")
	s.Define(domain.TableAddresses, "address_id")
	s.Define(domain.TableSessions, "session_id")
	s.Define(domain.TableCategories, "category_id")
	s.Define(domain.TableProducts, "product_id", Unique{Columns: []string{"sku"}})
	s.Define(domain.TableProductViews, "view_id")
	s.Define(domain.TableWishlists, "wishlist_id",
		Unique{Columns: []string{"user_id", "product_id"}, WhereNull: "removed_at"})
	s.Define(domain.TableCarts, "cart_id")
	s.Define(domain.TableCartItems, "cart_item_id")
	s.Define(domain.TableOrders, "order_id", Unique{Columns: []string{"cart_id"}})
	s.Define(domain.TableOrderItems, "order_item_id")
	s.Define(domain.TableTickets, "ticket_id")
	s.Define(domain.TableTicketMessages, "message_id")
	s.Define("mirror_events", "entity_key")
	return s
}

// Define registers a table keyed by key.
func (s *Store) Define(name, key string, uniques ...Unique) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = &table{key: key, uniques: uniques, index: make(map[string]int)}
}

// SetUnavailable makes every call fail with store.ErrStoreUnavailable.
func (s *Store) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// FailInserts makes inserts into the named tables fail with
// store.ErrStoreUnavailable while other tables keep working. Call it with no
// names to clear.
func (s *Store) FailInserts(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInserts = make(map[string]bool, len(names))
	for _, n := range names {
		s.failInserts[n] = true
	}
}

// Rows returns copies of every row of a table in insertion order.
func (s *Store) Rows(name string) []store.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]store.Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Count returns the number of rows in a table.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Closed reports how many times Close was called.
func (s *Store) Closed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) Query(_ context.Context, q store.Query) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(q.Table)
	if err != nil {
		return nil, err
	}
	var out []store.Record
	for _, row := range t.rows {
		ok, err := s.matches(row, q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, project(row, q.Columns))
		}
	}
	if q.OrderBy != "" {
		col, desc := strings.TrimPrefix(q.OrderBy, "-"), strings.HasPrefix(q.OrderBy, "-")
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][col], out[j][col])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, name string, where ...store.Cond) (bool, error) {
	rows, err := s.Query(ctx, store.Query{Table: name, Where: where, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *Store) Insert(_ context.Context, name string, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.insertTable(name)
	if err != nil {
		return err
	}
	return t.insert(name, rec)
}

// InsertAll appends every row or, when one fails, truncates each touched
// table back to its length before the call.
func (s *Store) InsertAll(_ context.Context, rows ...store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marks := make(map[*table]int)
	for _, r := range rows {
		t, err := s.insertTable(r.Table)
		if err == nil {
			if _, seen := marks[t]; !seen {
				marks[t] = len(t.rows)
			}
			err = t.insert(r.Table, r.Record)
		}
		if err != nil {
			for t, n := range marks {
				t.truncate(n)
			}
			return err
		}
	}
	return nil
}

func (s *Store) Update(_ context.Context, name, keyColumn, id string, fields store.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return false, err
	}
	pos := -1
	if keyColumn == t.key {
		if p, ok := t.index[id]; ok {
			pos = p
		}
	} else {
		for i, row := range t.rows {
			if fmt.Sprint(row[keyColumn]) == id {
				pos = i
				break
			}
		}
	}
	if pos < 0 {
		return false, nil
	}
	updated := t.rows[pos].Clone()
	for k, v := range normalize(fields) {
		updated[k] = v
	}
	if err := t.checkUnique(updated, pos); err != nil {
		return false, fmt.Errorf("%w: %s", err, name)
	}
	t.rows[pos] = updated
	return true, nil
}

func (s *Store) Upsert(_ context.Context, name, keyColumn string, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return err
	}
	if keyColumn != t.key {
		return fmt.Errorf("upsert %s: conflict column %s is not the key %s", name, keyColumn, t.key)
	}
	row := normalize(rec)
	id := fmt.Sprint(row[t.key])
	if pos, ok := t.index[id]; ok {
		if err := t.checkUnique(row, pos); err != nil {
			return fmt.Errorf("%w: %s", err, name)
		}
		t.rows[pos] = row
		return nil
	}
	if err := t.checkUnique(row, -1); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	t.index[id] = len(t.rows)
	t.rows = append(t.rows, row)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// table must be called with s.mu held.
func (s *Store) table(name string) (*table, error) {
	if s.unavailable {
		return nil, store.ErrStoreUnavailable
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, name)
	}
	return t, nil
}

// insertTable must be called with s.mu held.
func (s *Store) insertTable(name string) (*table, error) {
	if s.failInserts[name] {
		return nil, fmt.Errorf("%w: inserts into %s failing", store.ErrStoreUnavailable, name)
	}
	return s.table(name)
}

func (t *table) insert(name string, rec store.Record) error {
	row := normalize(rec)
	id := fmt.Sprint(row[t.key])
	if _, exists := t.index[id]; exists {
		return fmt.Errorf("%w: %s.%s=%s", store.ErrDuplicate, name, t.key, id)
	}
	if err := t.checkUnique(row, -1); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	t.index[id] = len(t.rows)
	t.rows = append(t.rows, row)
	return nil
}

// truncate drops every row from position n on.
func (t *table) truncate(n int) {
	for _, row := range t.rows[n:] {
		delete(t.index, fmt.Sprint(row[t.key]))
	}
	t.rows = t.rows[:n]
}

func (t *table) checkUnique(row store.Record, skip int) error {
	for _, u := range t.uniques {
		if u.WhereNull != "" && row[u.WhereNull] != nil {
			continue
		}
		if hasNull(row, u.Columns) {
			continue
		}
		for i, other := range t.rows {
			if i == skip {
				continue
			}
			if u.WhereNull != "" && other[u.WhereNull] != nil {
				continue
			}
			same := true
			for _, c := range u.Columns {
				if compare(row[c], other[c]) != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w on (%s)", store.ErrDuplicate, strings.Join(u.Columns, ", "))
			}
		}
	}
	return nil
}

// NULLs never collide in a unique index.
func hasNull(row store.Record, cols []string) bool {
	for _, c := range cols {
		if row[c] == nil {
			return true
		}
	}
	return false
}

func normalize(rec store.Record) store.Record {
	out := make(store.Record, len(rec))
	for k, v := range rec {
		out[k] = store.Normalize(v)
	}
	return out
}

func project(row store.Record, cols []string) store.Record {
	if len(cols) == 0 {
		return row.Clone()
	}
	out := make(store.Record, len(cols))
	for _, c := range cols {
		out[c] = row[c]
	}
	return out
}
