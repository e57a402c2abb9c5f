package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store/memstore"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	sink   *sink.Memory
	dlq    *deadletter.Memory
	tables *policy.Tables
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tables := policy.Default()
	tables.Failures.QualityIssueRate = 0
	f := &fixture{
		store:  memstore.NewShop(),
		sink:   sink.NewMemory(),
		dlq:    deadletter.NewMemory(),
		tables: tables,
	}
	f.deps = Deps{
		Store:       f.store,
		Sink:        f.sink,
		DeadLetters: f.dlq,
		Policies:    policy.NewSource(tables),
		Seed:        1,
		Clock:       func() time.Time { return testNow },
	}
	return f
}

func (f *fixture) toolkit(t *testing.T, name string) *Toolkit {
	t.Helper()
	tk, err := NewToolkit(name, f.deps)
	require.NoError(t, err)
	return tk
}

func (f *fixture) insert(t *testing.T, table string, rec store.Record) {
	t.Helper()
	require.NoError(t, f.store.Insert(context.Background(), table, rec))
}

func (f *fixture) user(t *testing.T, id string) {
	f.insert(t, domain.TableUsers, domain.User{
		UserID: id, Email: id + "@example.com", FirstName: "Ada", LastName: "Lovelace",
		RegistrationDate: testNow, IsActive: true, CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
}

func (f *fixture) product(t *testing.T, id string, price float64, stock int) {
	f.insert(t, domain.TableProducts, domain.Product{
		ProductID: id, SKU: "SKU-" + id, Name: "Widget " + id, CategoryID: "cat-1",
		Price: price, Cost: price / 2, StockQuantity: stock, IsActive: true,
		CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
}

func (f *fixture) address(t *testing.T, id, userID string, kind domain.AddressType) {
	f.insert(t, domain.TableAddresses, domain.Address{
		AddressID: id, UserID: userID, AddressType: kind, StreetAddress: "1 Main St",
		City: "Springfield", State: "IL", Country: "US", PostalCode: "62701", IsDefault: true,
		CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	gens, err := All(f.deps)
	require.NoError(t, err)
	require.Len(t, gens, 9)

	names := map[string]bool{}
	for _, g := range gens {
		names[g.Name()] = true
	}
	for _, g := range gens {
		for _, dep := range g.Dependencies() {
			assert.True(t, names[dep], "%s depends on unregistered %s", g.Name(), dep)
		}
	}

	s, err := New(policy.GenSession, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{policy.GenUser}, s.Dependencies())
	assert.Equal(t, domain.TableSessions, s.Table())

	_, err = New("inventory", f.deps)
	assert.ErrorIs(t, err, ErrUnknownGenerator)
}

func TestNewToolkitRejectsMissingDeps(t *testing.T) {
	f := newFixture(t)
	d := f.deps
	d.Store = nil
	_, err := NewToolkit(policy.GenUser, d)
	assert.ErrorIs(t, err, ErrNilStore)

	d = f.deps
	d.DeadLetters = nil
	_, err = NewToolkit(policy.GenUser, d)
	assert.ErrorIs(t, err, ErrNilDeadLetters)
}

func TestEmptyStoreOnlyRootGeneratorsProduce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, name := range Names() {
		if name == policy.GenUser || name == policy.GenCategory {
			continue
		}
		g, err := New(name, f.deps)
		require.NoError(t, err)
		require.NoError(t, g.Load(ctx))
		assert.ErrorIs(t, g.Tick(ctx), ErrNoEligibleUpstream, name)
	}
	assert.Empty(t, f.sink.Messages())

	u := NewUser(f.toolkit(t, policy.GenUser))
	require.NoError(t, u.Tick(ctx))
	assert.Equal(t, []event.Type{
		event.TypeNewUser, event.TypeDemographicsRecorded, event.TypeAddressAdded, event.TypeAddressAdded,
	}, f.sink.Types())
}

func TestUserRegistrationAddsDefaultAddresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := NewUser(f.toolkit(t, policy.GenUser))
	require.NoError(t, u.Tick(ctx))

	assert.Equal(t, 1, f.store.Count(domain.TableUsers))
	assert.Equal(t, 1, f.store.Count(domain.TableDemographics))
	kinds := map[domain.AddressType]bool{}
	for _, r := range f.store.Rows(domain.TableAddresses) {
		a := domain.AddressFromRecord(r)
		assert.True(t, a.IsDefault)
		kinds[a.AddressType] = true
	}
	assert.Equal(t, map[domain.AddressType]bool{domain.AddressBilling: true, domain.AddressShipping: true}, kinds)
	assert.Equal(t, 1, u.active.Len())
}

func TestUserDeactivationLeavesWorkingSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1")
	f.tables.Users.NewUserChance = 0
	f.tables.Users.DeactivateChance = 1
	f.tables.Users.UpdateKinds = policy.Weights{userUpdate: 1}

	u := NewUser(f.toolkit(t, policy.GenUser))
	require.NoError(t, u.Load(ctx))
	require.Equal(t, 1, u.active.Len())
	require.NoError(t, u.Tick(ctx))

	assert.Equal(t, 0, u.active.Len())
	assert.False(t, f.store.Rows(domain.TableUsers)[0].Bool("is_active"))
	evs := f.sink.Events(event.TopicUsers)
	require.Len(t, evs, 1)
	assert.Equal(t, event.UserUpdated{UserID: "u1", UpdatedAt: testNow}, evs[0].Payload)
}

func TestSinkFailureQuarantinesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sink.FailWith(errors.New("broker down"))

	g := NewCategory(f.toolkit(t, policy.GenCategory))
	require.NoError(t, g.Tick(ctx))

	assert.Equal(t, 1, f.store.Count(domain.TableCategories), "store write stands")
	assert.Empty(t, f.sink.Messages())
	entries := f.dlq.All()
	require.Len(t, entries, 1)
	assert.Equal(t, event.TopicProductCategories, entries[0].Topic)
	assert.Equal(t, string(event.TypeCategoryCreate), entries[0].EventType)
	assert.Equal(t, 0, entries[0].RetryCount)
	assert.Contains(t, entries[0].LastError, "broker down")

	decoded, err := event.Decode(entries[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, entries[0].EventID, decoded.ID)
}

func TestQuarantineFailureIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sink.FailWith(errors.New("broker down"))
	f.dlq.FailWith(errors.New("disk full"))

	g := NewCategory(f.toolkit(t, policy.GenCategory))
	err := g.Tick(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, sink.ErrPublishFailed)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, f.store.Count(domain.TableCategories))
}

func TestGatewayFailureAbortsTick(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.SetUnavailable(true)

	u := NewUser(f.toolkit(t, policy.GenUser))
	err := u.Tick(ctx)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.Equal(t, 0, u.active.Len())
	assert.Empty(t, f.sink.Messages())
}

func TestWishlistDuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1")
	f.product(t, "p1", 20, 5)
	f.insert(t, domain.TableWishlists, domain.WishlistItem{
		WishlistID: "w1", UserID: "u1", ProductID: "p1", AddedAt: testNow,
	}.Record())
	f.tables.Wishlists.AddChance = 1

	g := NewWishlist(f.toolkit(t, policy.GenWishlist))
	assert.ErrorIs(t, g.Tick(ctx), ErrNoEligibleUpstream)
	assert.Equal(t, 1, f.store.Count(domain.TableWishlists))
	assert.Empty(t, f.sink.Messages())
}

func TestWishlistRemoveThenReAdd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1")
	f.product(t, "p1", 20, 5)
	f.insert(t, domain.TableWishlists, domain.WishlistItem{
		WishlistID: "w1", UserID: "u1", ProductID: "p1", AddedAt: testNow,
	}.Record())
	g := NewWishlist(f.toolkit(t, policy.GenWishlist))

	f.tables.Wishlists.AddChance = 0
	require.NoError(t, g.Tick(ctx))
	f.tables.Wishlists.AddChance = 1
	require.NoError(t, g.Tick(ctx))

	assert.Equal(t, 2, f.store.Count(domain.TableWishlists))
	assert.Equal(t, []event.Type{event.TypeWishlistRemove, event.TypeWishlistAdd}, f.sink.Types())
}

func seedConvertedCart(t *testing.T, f *fixture) {
	f.user(t, "u1")
	f.address(t, "bill-1", "u1", domain.AddressBilling)
	f.address(t, "ship-1", "u1", domain.AddressShipping)
	f.insert(t, domain.TableCarts, domain.Cart{
		CartID: "c1", UserID: "u1", SessionID: "s1", Status: domain.CartConverted,
		CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
	f.insert(t, domain.TableCartItems, domain.CartItem{
		CartItemID: "i1", CartID: "c1", ProductID: "p1", Quantity: 1, UnitPrice: 100, AddedAt: testNow,
	}.Record())
	f.insert(t, domain.TableCartItems, domain.CartItem{
		CartItemID: "i2", CartID: "c1", ProductID: "p2", Quantity: 3, UnitPrice: 50, AddedAt: testNow.Add(time.Second),
	}.Record())
	removed := testNow
	f.insert(t, domain.TableCartItems, domain.CartItem{
		CartItemID: "i3", CartID: "c1", ProductID: "p3", Quantity: 2, UnitPrice: 999,
		AddedAt: testNow, RemovedAt: &removed,
	}.Record())
}

func TestOrderFromConvertedCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedConvertedCart(t, f)

	g := NewOrder(f.toolkit(t, policy.GenOrder))
	require.NoError(t, g.Tick(ctx))

	rows := f.store.Rows(domain.TableOrders)
	require.Len(t, rows, 1)
	o := domain.OrderFromRecord(rows[0])
	assert.Equal(t, "c1", o.CartID)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, 250.0, o.Subtotal)
	assert.Equal(t, 20.0, o.TaxAmount)
	assert.Equal(t, 0.0, o.ShippingAmount)
	assert.Equal(t, 25.0, o.DiscountAmount)
	assert.Equal(t, 245.0, o.TotalAmount)
	assert.Equal(t, "bill-1", o.BillingAddressID)
	assert.Equal(t, "ship-1", o.ShippingAddressID)

	discounts := map[string]float64{}
	for _, r := range f.store.Rows(domain.TableOrderItems) {
		discounts[r.String("product_id")] = r.Float("discount_amount")
	}
	assert.Equal(t, map[string]float64{"p1": 10, "p2": 15}, discounts)

	evs := f.sink.Events(event.TopicOrders)
	require.Len(t, evs, 1)
	assert.Equal(t, event.TypeOrderCreate, evs[0].Type)
	assert.Equal(t, o.OrderID, evs[0].Key)
	placed, ok := evs[0].Payload.(event.OrderPlaced)
	require.True(t, ok)
	assert.Len(t, placed.Items, 2)
}

func TestOrderItemFailureLeavesNoOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedConvertedCart(t, f)
	f.tables.Orders.CreateChance = 1
	f.store.FailInserts(domain.TableOrderItems)

	g := NewOrder(f.toolkit(t, policy.GenOrder))
	assert.ErrorIs(t, g.Tick(ctx), store.ErrStoreUnavailable)
	assert.Zero(t, f.store.Count(domain.TableOrders))
	assert.Zero(t, f.store.Count(domain.TableOrderItems))
	assert.Empty(t, f.sink.Messages())
	assert.Empty(t, f.dlq.All())

	// Nothing half-written reaches a reloaded working set.
	f.store.FailInserts()
	fresh := NewOrder(f.toolkit(t, policy.GenOrder))
	require.NoError(t, fresh.Load(ctx))
	assert.Zero(t, fresh.active.Len())

	// The cart is still eligible and converts on the next tick.
	require.NoError(t, g.Tick(ctx))
	assert.Equal(t, 1, f.store.Count(domain.TableOrders))
	assert.Equal(t, 2, f.store.Count(domain.TableOrderItems))
	assert.Equal(t, []event.Type{event.TypeOrderCreate}, f.sink.Types())
}

func TestUserAddressFailureLeavesNoUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tables.Users.NewUserChance = 1
	f.store.FailInserts(domain.TableAddresses)

	u := NewUser(f.toolkit(t, policy.GenUser))
	assert.ErrorIs(t, u.Tick(ctx), store.ErrStoreUnavailable)
	for _, table := range []string{domain.TableUsers, domain.TableDemographics, domain.TableAddresses} {
		assert.Zero(t, f.store.Count(table), table)
	}
	assert.Zero(t, u.active.Len())
	assert.Empty(t, f.sink.Messages())
}

func TestOrderCreationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedConvertedCart(t, f)
	f.tables.Orders.RefreshChance = 0
	f.tables.Orders.CreateChance = 1

	first := NewOrder(f.toolkit(t, policy.GenOrder))
	second := NewOrder(f.toolkit(t, policy.GenOrder))
	stale, err := f.store.Query(ctx, store.Select(domain.TableCarts, "cart_id", "user_id"))
	require.NoError(t, err)
	second.carts = stale

	require.NoError(t, first.Tick(ctx))
	assert.ErrorIs(t, second.Tick(ctx), ErrNoEligibleUpstream)
	assert.ErrorIs(t, first.Tick(ctx), ErrNoEligibleUpstream)

	assert.Equal(t, 1, f.store.Count(domain.TableOrders))
	assert.Equal(t, 2, f.store.Count(domain.TableOrderItems))
	assert.Len(t, f.sink.Events(event.TopicOrders), 1)
}

func TestOrderSkippedWithoutDefaultAddresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1")
	f.insert(t, domain.TableCarts, domain.Cart{
		CartID: "c1", UserID: "u1", Status: domain.CartConverted, CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
	f.insert(t, domain.TableCartItems, domain.CartItem{
		CartItemID: "i1", CartID: "c1", ProductID: "p1", Quantity: 1, UnitPrice: 10, AddedAt: testNow,
	}.Record())

	g := NewOrder(f.toolkit(t, policy.GenOrder))
	assert.ErrorIs(t, g.Tick(ctx), ErrNoEligibleUpstream)
	assert.Equal(t, 0, f.store.Count(domain.TableOrders))
}

func TestOrderAdvancesToDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, domain.TableOrders, domain.Order{
		OrderID: "o1", UserID: "u1", CartID: "c1", Status: domain.OrderShipped,
		CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
	f.tables.Orders.CreateChance = 0

	g := NewOrder(f.toolkit(t, policy.GenOrder))
	require.NoError(t, g.Load(ctx))
	require.NoError(t, g.Tick(ctx))

	assert.Equal(t, string(domain.OrderDelivered), f.store.Rows(domain.TableOrders)[0].String("status"))
	assert.Equal(t, 0, g.active.Len())
	evs := f.sink.Events(event.TopicOrders)
	require.Len(t, evs, 1)
	assert.Equal(t, event.OrderStatusChanged{
		OrderID: "o1", From: domain.OrderShipped, To: domain.OrderDelivered, UpdatedAt: testNow,
	}, evs[0].Payload)
}

func TestCartCreateSamplesInStockProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1")
	f.insert(t, domain.TableSessions, domain.Session{
		SessionID: "s1", UserID: "u1", StartedAt: testNow, CreatedAt: testNow,
	}.Record())
	f.product(t, "p1", 10, 5)
	f.product(t, "p2", 20, 5)
	f.product(t, "p3", 30, 0)
	f.tables.Carts.Items = policy.IntRange{Min: 2, Max: 2}

	g := NewCart(f.toolkit(t, policy.GenCart))
	require.NoError(t, g.Tick(ctx))

	carts := f.store.Rows(domain.TableCarts)
	require.Len(t, carts, 1)
	assert.Equal(t, "u1", carts[0].String("user_id"))
	assert.Equal(t, "s1", carts[0].String("session_id"))
	items := f.store.Rows(domain.TableCartItems)
	require.Len(t, items, 2)
	seen := map[string]bool{}
	for _, it := range items {
		seen[it.String("product_id")] = true
	}
	assert.Equal(t, map[string]bool{"p1": true, "p2": true}, seen)
	assert.Equal(t, []event.Type{event.TypeCartCreate}, f.sink.Types())
}

func TestCartTerminalStatusLeavesWorkingSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, domain.TableCarts, domain.Cart{
		CartID: "c1", UserID: "u1", SessionID: "s1", Status: domain.CartActive,
		CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
	f.tables.Carts.CreateChance = 0
	f.tables.Carts.StatusChangeChance = 1
	f.tables.Carts.Statuses = policy.Weights{"abandoned": 1}

	g := NewCart(f.toolkit(t, policy.GenCart))
	require.NoError(t, g.Load(ctx))
	require.NoError(t, g.Tick(ctx))

	assert.Equal(t, 0, g.active.Len())
	assert.Equal(t, "abandoned", f.store.Rows(domain.TableCarts)[0].String("status"))
	evs := f.sink.Events(event.TopicCarts)
	require.Len(t, evs, 1)
	assert.Equal(t, event.CartStatusChanged{
		CartID: "c1", From: domain.CartActive, To: domain.CartAbandoned, UpdatedAt: testNow,
	}, evs[0].Payload)
}

func TestTicketResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, domain.TableTickets, domain.Ticket{
		TicketID: "t1", UserID: "u1", OrderID: "o1", IssueType: "order_status", Priority: "low",
		Status: domain.TicketInProgress, CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())
	f.tables.Tickets.UpdateChance = 1
	f.tables.Tickets.Satisfaction = policy.Weights{"4": 1}

	g := NewSupportTicket(f.toolkit(t, policy.GenSupportTicket))
	require.NoError(t, g.Load(ctx))
	require.NoError(t, g.Tick(ctx))

	tk := domain.TicketFromRecord(f.store.Rows(domain.TableTickets)[0])
	assert.Equal(t, domain.TicketResolved, tk.Status)
	require.NotNil(t, tk.ResolvedAt)
	require.NotNil(t, tk.SatisfactionScore)
	assert.Equal(t, 4, *tk.SatisfactionScore)
	assert.Equal(t, 0, g.open.Len())

	assert.Equal(t, []event.Type{event.TypeTicketUpdate, event.TypeTicketMessage}, f.sink.Types())
	msgs := f.store.Rows(domain.TableTicketMessages)
	require.Len(t, msgs, 1)
	assert.Equal(t, string(domain.SenderAgent), msgs[0].String("sender_type"))
}

func TestTicketOpenedForRecentOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, domain.TableOrders, domain.Order{
		OrderID: "old", UserID: "u0", CartID: "c0", Status: domain.OrderDelivered,
		CreatedAt: testNow.Add(-60 * 24 * time.Hour), UpdatedAt: testNow,
	}.Record())
	f.insert(t, domain.TableOrders, domain.Order{
		OrderID: "o1", UserID: "u1", CartID: "c1", Status: domain.OrderDelivered,
		CreatedAt: testNow.Add(-time.Hour), UpdatedAt: testNow,
	}.Record())

	g := NewSupportTicket(f.toolkit(t, policy.GenSupportTicket))
	require.NoError(t, g.Tick(ctx))

	tk := domain.TicketFromRecord(f.store.Rows(domain.TableTickets)[0])
	assert.Equal(t, "o1", tk.OrderID)
	assert.Equal(t, "u1", tk.UserID)
	assert.Equal(t, domain.TicketOpen, tk.Status)
	msgs := f.store.Rows(domain.TableTicketMessages)
	require.Len(t, msgs, 1)
	assert.Equal(t, string(domain.SenderCustomer), msgs[0].String("sender_type"))
	assert.Contains(t, msgs[0].String("message_text"), "o1")
}

func TestProductDeactivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 20, 5)
	f.tables.Products.UpdateChance = 1
	f.tables.Products.DeactivateChance = 1

	g := NewProduct(f.toolkit(t, policy.GenProduct))
	require.NoError(t, g.Load(ctx))
	require.NoError(t, g.Tick(ctx))

	assert.False(t, f.store.Rows(domain.TableProducts)[0].Bool("is_active"))
	assert.Equal(t, 0, g.active.Len())
	evs := f.sink.Events(event.TopicProducts)
	require.Len(t, evs, 1)
	upd, ok := evs[0].Payload.(event.ProductUpdated)
	require.True(t, ok)
	require.NotNil(t, upd.IsActive)
	assert.False(t, *upd.IsActive)
	assert.Nil(t, upd.Price)
}

func TestProductCreateUnderCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, domain.TableCategories, domain.Category{
		CategoryID: "cat-1", Name: "Books", CreatedAt: testNow, UpdatedAt: testNow,
	}.Record())

	g := NewProduct(f.toolkit(t, policy.GenProduct))
	require.NoError(t, g.Tick(ctx))

	p := domain.ProductFromRecord(f.store.Rows(domain.TableProducts)[0])
	assert.Equal(t, "cat-1", p.CategoryID)
	assert.Regexp(t, `^BOO-\d{6}$`, p.SKU)
	assert.GreaterOrEqual(t, p.Price, 5.0)
	assert.LessOrEqual(t, p.Cost, p.Price*0.7+0.01)
	assert.GreaterOrEqual(t, p.Cost, p.Price*0.4-0.01)
}

func TestSessionEnds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := testNow.Add(-10 * time.Minute)
	f.insert(t, domain.TableSessions, domain.Session{
		SessionID: "s1", UserID: "u1", StartedAt: started, CreatedAt: started,
	}.Record())
	f.tables.Sessions.TouchChance = 1
	f.tables.Sessions.EndChance = 1

	g := NewSession(f.toolkit(t, policy.GenSession))
	require.NoError(t, g.Load(ctx))
	require.NoError(t, g.Tick(ctx))

	s := domain.SessionFromRecord(f.store.Rows(domain.TableSessions)[0])
	require.NotNil(t, s.EndedAt)
	assert.False(t, s.EndedAt.Before(started.Add(time.Minute)))
	assert.False(t, s.EndedAt.After(started.Add(120*time.Minute)))
	assert.Equal(t, 0, g.open.Len())
	assert.Equal(t, []event.Type{event.TypeSessionEnd}, f.sink.Types())
}

func TestCategoryTreeStaysBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tables.Categories.MaxRoots = 2
	f.tables.Categories.MaxDepth = 2

	g := NewCategory(f.toolkit(t, policy.GenCategory))
	for i := 0; i < 30; i++ {
		require.NoError(t, g.Tick(ctx))
	}

	names := map[string]string{}
	parents := map[string]string{}
	for _, r := range f.store.Rows(domain.TableCategories) {
		c := domain.CategoryFromRecord(r)
		names[c.CategoryID] = c.Name
		if c.ParentCategoryID != nil {
			parents[c.CategoryID] = *c.ParentCategoryID
		}
	}
	roots := 0
	for id := range names {
		parent, ok := parents[id]
		if !ok {
			roots++
			continue
		}
		_, parentIsChild := parents[parent]
		assert.False(t, parentIsChild, "depth exceeds max_depth")
		assert.Contains(t, names[id], names[parent]+" - ")
	}
	assert.Equal(t, 2, roots)
}

func TestDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	run := func() string {
		f := newFixture(t)
		require.NoError(t, NewUser(f.toolkit(t, policy.GenUser)).Tick(ctx))
		return f.store.Rows(domain.TableUsers)[0].String("first_name")
	}
	assert.Equal(t, run(), run())
}
