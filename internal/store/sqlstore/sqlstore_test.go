package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

func testStore() *Store {
	return &Store{dialect: goqu.Dialect(dialectPostgres), logger: slog.Default()}
}

func TestNewRejectsNilDB(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)
}

func TestBuildSelect(t *testing.T) {
	query, args, err := testStore().buildSelect(store.Select("carts", "cart_id", "user_id").
		Filter(store.Eq("status", "converted")).
		Order("-created_at").
		Take(5))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, `SELECT "cart_id", "user_id" FROM "carts"`), query)
	assert.Contains(t, query, `"status" = $1`)
	assert.Contains(t, query, `ORDER BY "created_at" DESC`)
	assert.Contains(t, query, "LIMIT")
	assert.Equal(t, "converted", args[0])
}

func TestBuildSelectNotExists(t *testing.T) {
	query, _, err := testStore().buildSelect(store.Select("carts").Filter(
		store.NotExists("cart_id", "orders", "cart_id"),
	))
	require.NoError(t, err)
	assert.Contains(t, query, `NOT EXISTS (SELECT 1 FROM "orders"`)
	assert.Contains(t, query, `"orders"."cart_id" = "carts"."cart_id"`)
}

func TestBuildSelectNullAndIn(t *testing.T) {
	query, args, err := testStore().buildSelect(store.Select("sessions").Filter(
		store.IsNull("ended_at"),
		store.In("device_type", "mobile", "tablet"),
	))
	require.NoError(t, err)
	assert.Contains(t, query, `"ended_at" IS NULL`)
	assert.Contains(t, query, `"device_type" IN ($1, $2)`)
	assert.Equal(t, []any{"mobile", "tablet"}, args)

	query, args, err = testStore().buildSelect(store.Select("sessions").Filter(store.In("device_type")))
	require.NoError(t, err)
	assert.Contains(t, query, "FALSE")
	assert.Empty(t, args)
}

func TestBuildSelectBindsTimeArgs(t *testing.T) {
	_, args, err := testStore().buildSelect(store.Select("sessions").Filter(
		store.Gte("started_at", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	))
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.IsType(t, time.Time{}, args[0])
}

func TestBuildUpsert(t *testing.T) {
	query, _, err := testStore().buildUpsert("mirror_events", "entity_key", store.Record{
		"entity_key": "users:u1",
		"payload":    `{}`,
	})
	require.NoError(t, err)
	assert.Contains(t, query, `INSERT INTO "mirror_events"`)
	assert.Contains(t, query, "ON CONFLICT")
	assert.Contains(t, query, `"excluded"."payload"`)
	assert.NotContains(t, query, `"excluded"."entity_key"`)
}

func TestPlainStripsTypedNil(t *testing.T) {
	out := plain(store.Record{"ended_at": (*time.Time)(nil), "utm_source": (*string)(nil), "name": "x"})
	assert.Nil(t, out["ended_at"])
	assert.Nil(t, out["utm_source"])
	assert.Equal(t, "x", out["name"])
}

func TestClassify(t *testing.T) {
	dup := &pq.Error{Code: codeUniqueViolation, Message: "duplicate key value"}
	assert.ErrorIs(t, classify(fmt.Errorf("insert: %w", dup)), store.ErrDuplicate)

	conn := &pq.Error{Code: "08006", Message: "connection failure"}
	assert.ErrorIs(t, classify(conn), store.ErrStoreUnavailable)

	assert.ErrorIs(t, classify(driver.ErrBadConn), store.ErrStoreUnavailable)

	other := errors.New("syntax error")
	got := classify(other)
	assert.Equal(t, other, got)
	assert.NotErrorIs(t, got, store.ErrStoreUnavailable)

	assert.NoError(t, classify(nil))
}

func TestBuildInsert(t *testing.T) {
	query, args, err := testStore().buildInsert("order_items", store.Record{
		"order_item_id": "i1",
		"order_id":      "o1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, `INSERT INTO "order_items"`), query)
	assert.Contains(t, query, "$2")
	assert.ElementsMatch(t, []any{"i1", "o1"}, args)
}

func TestInsertAllWithoutRowsSkipsTransaction(t *testing.T) {
	assert.NoError(t, testStore().InsertAll(context.Background()))
}
