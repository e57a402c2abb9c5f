package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store/memstore"
)

func TestInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	for i, status := range []string{"active", "converted", "converted"} {
		require.NoError(t, s.Insert(ctx, domain.TableCarts, store.Record{
			"cart_id": string(rune('a' + i)), "status": status, "user_id": "u1",
		}))
	}

	rows, err := s.Query(ctx, store.Select(domain.TableCarts, "cart_id").
		Filter(store.Eq("status", "converted")).Order("-cart_id"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].String("cart_id"))
	assert.NotContains(t, rows[0], "status")

	ok, err := s.Exists(ctx, domain.TableCarts, store.Eq("status", "abandoned"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertDuplicateKey(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	require.NoError(t, s.Insert(ctx, domain.TableCarts, store.Record{"cart_id": "c1"}))
	err := s.Insert(ctx, domain.TableCarts, store.Record{"cart_id": "c1"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestOrderCartUnique(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	require.NoError(t, s.Insert(ctx, domain.TableOrders, store.Record{"order_id": "o1", "cart_id": "c1"}))
	err := s.Insert(ctx, domain.TableOrders, store.Record{"order_id": "o2", "cart_id": "c1"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Equal(t, 1, s.Count(domain.TableOrders))
}

func TestWishlistPartialUnique(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	item := func(id string) store.Record {
		return store.Record{"wishlist_id": id, "user_id": "u", "product_id": "p", "removed_at": (*time.Time)(nil)}
	}
	require.NoError(t, s.Insert(ctx, domain.TableWishlists, item("w1")))
	assert.ErrorIs(t, s.Insert(ctx, domain.TableWishlists, item("w2")), store.ErrDuplicate)

	ok, err := s.Update(ctx, domain.TableWishlists, "wishlist_id", "w1", store.Record{"removed_at": time.Now()})
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, s.Insert(ctx, domain.TableWishlists, item("w2")))
}

func TestUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	require.NoError(t, s.Upsert(ctx, "mirror_events", "entity_key", store.Record{"entity_key": "k", "a": 1, "b": 2}))
	require.NoError(t, s.Upsert(ctx, "mirror_events", "entity_key", store.Record{"entity_key": "k", "a": 3}))
	rows := s.Rows("mirror_events")
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0]["a"])
	assert.NotContains(t, rows[0], "b")
}

func TestNotExistsAndNullPredicates(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	require.NoError(t, s.Insert(ctx, domain.TableCarts, store.Record{"cart_id": "c1", "status": "converted"}))
	require.NoError(t, s.Insert(ctx, domain.TableCarts, store.Record{"cart_id": "c2", "status": "converted"}))
	require.NoError(t, s.Insert(ctx, domain.TableOrders, store.Record{"order_id": "o1", "cart_id": "c1"}))

	rows, err := s.Query(ctx, store.Select(domain.TableCarts).Filter(
		store.Eq("status", "converted"),
		store.NotExists("cart_id", domain.TableOrders, "cart_id"),
	))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].String("cart_id"))

	require.NoError(t, s.Insert(ctx, domain.TableSessions, store.Record{"session_id": "s1", "ended_at": (*time.Time)(nil)}))
	open, err := s.Query(ctx, store.Select(domain.TableSessions).Filter(store.IsNull("ended_at")))
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestRangeAndInPredicates(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	now := time.Now().UTC()
	require.NoError(t, s.Insert(ctx, domain.TableOrders, store.Record{"order_id": "old", "cart_id": "a", "created_at": now.Add(-60 * 24 * time.Hour), "status": "pending"}))
	require.NoError(t, s.Insert(ctx, domain.TableOrders, store.Record{"order_id": "new", "cart_id": "b", "created_at": now, "status": "shipped"}))

	recent, err := s.Query(ctx, store.Select(domain.TableOrders).Filter(store.Gte("created_at", now.Add(-30*24*time.Hour))))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].String("order_id"))

	some, err := s.Query(ctx, store.Select(domain.TableOrders).Filter(store.In("status", "pending", "processing")))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "old", some[0].String("order_id"))
}

func TestUnavailable(t *testing.T) {
	s := memstore.NewShop()
	s.SetUnavailable(true)
	_, err := s.Query(context.Background(), store.Select(domain.TableUsers))
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestUnknownTable(t *testing.T) {
	err := memstore.New().Insert(context.Background(), "nope", store.Record{"id": 1})
	assert.ErrorIs(t, err, store.ErrUnknownTable)
}

func TestInsertAllWritesEveryRow(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	require.NoError(t, s.InsertAll(ctx,
		store.Into(domain.TableOrders, store.Record{"order_id": "o1", "cart_id": "c1"}),
		store.Into(domain.TableOrderItems, store.Record{"order_item_id": "i1", "order_id": "o1"}),
		store.Into(domain.TableOrderItems, store.Record{"order_item_id": "i2", "order_id": "o1"}),
	))
	assert.Equal(t, 1, s.Count(domain.TableOrders))
	assert.Equal(t, 2, s.Count(domain.TableOrderItems))
}

func TestInsertAllRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	require.NoError(t, s.Insert(ctx, domain.TableOrderItems, store.Record{"order_item_id": "taken"}))

	err := s.InsertAll(ctx,
		store.Into(domain.TableOrders, store.Record{"order_id": "o1", "cart_id": "c1"}),
		store.Into(domain.TableOrderItems, store.Record{"order_item_id": "i1", "order_id": "o1"}),
		store.Into(domain.TableOrderItems, store.Record{"order_item_id": "taken", "order_id": "o1"}),
	)
	require.ErrorIs(t, err, store.ErrDuplicate)
	assert.Zero(t, s.Count(domain.TableOrders))
	assert.Equal(t, 1, s.Count(domain.TableOrderItems))

	// Keys freed by the rollback can be written again.
	require.NoError(t, s.InsertAll(ctx,
		store.Into(domain.TableOrders, store.Record{"order_id": "o1", "cart_id": "c1"}),
		store.Into(domain.TableOrderItems, store.Record{"order_item_id": "i1", "order_id": "o1"}),
	))
	assert.Equal(t, 2, s.Count(domain.TableOrderItems))
}

func TestInsertAllUnknownTableLeavesNothing(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	err := s.InsertAll(ctx,
		store.Into(domain.TableCarts, store.Record{"cart_id": "c1"}),
		store.Into("nope", store.Record{"id": "x"}),
	)
	require.ErrorIs(t, err, store.ErrUnknownTable)
	assert.Zero(t, s.Count(domain.TableCarts))
}

func TestFailInsertsTargetsOneTable(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewShop()
	s.FailInserts(domain.TableOrderItems)

	require.NoError(t, s.Insert(ctx, domain.TableOrders, store.Record{"order_id": "o1", "cart_id": "c1"}))
	err := s.InsertAll(ctx,
		store.Into(domain.TableOrders, store.Record{"order_id": "o2", "cart_id": "c2"}),
		store.Into(domain.TableOrderItems, store.Record{"order_item_id": "i1", "order_id": "o2"}),
	)
	require.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.Equal(t, 1, s.Count(domain.TableOrders))

	s.FailInserts()
	require.NoError(t, s.Insert(ctx, domain.TableOrderItems, store.Record{"order_item_id": "i1", "order_id": "o1"}))
}
