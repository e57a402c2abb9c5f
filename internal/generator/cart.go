package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// Cart opens carts during sessions, changes their contents and ends them as
// abandoned or converted.
type Cart struct {
	tk     *Toolkit
	active *WorkingSet[domain.Cart]
}

func NewCart(tk *Toolkit) *Cart {
	return &Cart{tk: tk, active: NewWorkingSet[domain.Cart]()}
}

func (g *Cart) Name() string  { return policy.GenCart }
func (g *Cart) Table() string { return domain.TableCarts }

func (g *Cart) Dependencies() []string {
	return []string{policy.GenUser, policy.GenSession, policy.GenProduct}
}

func (g *Cart) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *Cart) Load(ctx context.Context) error {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableCarts).
		Filter(store.Eq("status", string(domain.CartActive))).Order("-created_at").Take(loadLimit))
	if err != nil {
		return err
	}
	g.active.Reset()
	for _, r := range rows {
		c := domain.CartFromRecord(r)
		g.active.Put(c.CartID, c)
	}
	return nil
}

func (g *Cart) Tick(ctx context.Context) error {
	p := g.tk.Tables().Carts
	if g.active.Len() == 0 || g.tk.Chance(p.CreateChance) {
		return g.create(ctx)
	}
	_, c, _ := g.active.Random(g.tk.Rand())
	if g.tk.Chance(p.StatusChangeChance) {
		return g.changeStatus(ctx, c)
	}
	if g.tk.Chance(p.AddItemChance) {
		return g.addItem(ctx, c)
	}
	return g.removeItem(ctx, c)
}

func (g *Cart) create(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Carts
	session, err := tk.Pick(ctx, store.Select(domain.TableSessions, "session_id", "user_id").
		Filter(store.IsNull("ended_at")))
	if err != nil {
		return err
	}
	products, err := g.inStock(ctx)
	if err != nil {
		return err
	}

	now := tk.Now()
	c := domain.Cart{
		CartID:    tk.NewID(),
		UserID:    session.String("user_id"),
		SessionID: session.String("session_id"),
		Status:    domain.CartActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	n := min(p.Items.Sample(tk.Rand()), len(products))
	items := make([]domain.CartItem, 0, n)
	for _, i := range tk.Rand().Perm(len(products))[:n] {
		items = append(items, g.item(c.CartID, products[i], now))
	}

	batch := []store.Row{store.Into(domain.TableCarts, c.Record())}
	for _, it := range items {
		batch = append(batch, store.Into(domain.TableCartItems, it.Record()))
	}
	if err := tk.InsertAll(ctx, batch...); err != nil {
		return err
	}
	g.active.Put(c.CartID, c)
	return tk.Emit(ctx, event.TypeCartCreate, event.CartCreated{Cart: c, Items: items})
}

func (g *Cart) changeStatus(ctx context.Context, c domain.Cart) error {
	tk := g.tk
	to := domain.CartStatus(tk.Tables().Carts.Statuses.Pick(tk.Rand()))
	if to == c.Status || !c.Status.CanTransition(to) {
		return fmt.Errorf("%w: cart %s stays %s", ErrNoEligibleUpstream, c.CartID, c.Status)
	}
	from, now := c.Status, tk.Now()
	ok, err := tk.Update(ctx, domain.TableCarts, "cart_id", c.CartID,
		store.Record{"status": string(to), "updated_at": now})
	if err != nil {
		return err
	}
	if !ok || to.Terminal() {
		g.active.Remove(c.CartID)
	} else {
		c.Status, c.UpdatedAt = to, now
		g.active.Put(c.CartID, c)
	}
	if !ok {
		return fmt.Errorf("%w: cart %s is gone", ErrNoEligibleUpstream, c.CartID)
	}
	return tk.Emit(ctx, event.TypeCartUpdate, event.CartStatusChanged{
		CartID:    c.CartID,
		From:      from,
		To:        to,
		UpdatedAt: now,
	})
}

func (g *Cart) addItem(ctx context.Context, c domain.Cart) error {
	tk := g.tk
	products, err := g.inStock(ctx)
	if err != nil {
		return err
	}
	it := g.item(c.CartID, products[tk.Rand().IntN(len(products))], tk.Now())
	if err := tk.Insert(ctx, domain.TableCartItems, it.Record()); err != nil {
		return err
	}
	return tk.Emit(ctx, event.TypeItemAdd, event.CartItemAdded{CartItem: it})
}

func (g *Cart) removeItem(ctx context.Context, c domain.Cart) error {
	tk := g.tk
	row, err := tk.Pick(ctx, store.Select(domain.TableCartItems, "cart_item_id").
		Filter(store.Eq("cart_id", c.CartID), store.IsNull("removed_at")))
	if err != nil {
		return err
	}
	id := row.String("cart_item_id")
	now := tk.Now()
	ok, err := tk.Update(ctx, domain.TableCartItems, "cart_item_id", id, store.Record{"removed_at": now})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cart item %s is gone", ErrNoEligibleUpstream, id)
	}
	return tk.Emit(ctx, event.TypeItemRemove, event.CartItemRemoved{CartItemID: id, CartID: c.CartID, RemovedAt: now})
}

func (g *Cart) inStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableProducts, "product_id", "price").
		Filter(store.Eq("is_active", true), store.Gt("stock_quantity", 0)).Take(upstreamLimit))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no product in stock", ErrNoEligibleUpstream)
	}
	out := make([]domain.Product, len(rows))
	for i, r := range rows {
		out[i] = domain.ProductFromRecord(r)
	}
	return out, nil
}

func (g *Cart) item(cartID string, p domain.Product, now time.Time) domain.CartItem {
	return domain.CartItem{
		CartItemID: g.tk.NewID(),
		CartID:     cartID,
		ProductID:  p.ProductID,
		Quantity:   g.tk.Tables().Carts.Quantity.Sample(g.tk.Rand()),
		UnitPrice:  p.Price,
		AddedAt:    now,
	}
}
