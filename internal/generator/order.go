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

var openOrderStatuses = []any{
	string(domain.OrderPending),
	string(domain.OrderProcessing),
	string(domain.OrderShipped),
}

// Order places orders for converted carts and walks them through fulfilment.
// A cart yields at most one order; the store enforces it.
type Order struct {
	tk     *Toolkit
	active *WorkingSet[domain.Order]
	// carts caches converted carts without an order.
	carts []store.Record
}

func NewOrder(tk *Toolkit) *Order {
	return &Order{tk: tk, active: NewWorkingSet[domain.Order]()}
}

func (g *Order) Name() string           { return policy.GenOrder }
func (g *Order) Table() string          { return domain.TableOrders }
func (g *Order) Dependencies() []string { return []string{policy.GenCart} }

func (g *Order) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *Order) Load(ctx context.Context) error {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableOrders).
		Filter(store.In("status", openOrderStatuses...)).Order("-created_at").Take(loadLimit))
	if err != nil {
		return err
	}
	g.active.Reset()
	for _, r := range rows {
		o := domain.OrderFromRecord(r)
		g.active.Put(o.OrderID, o)
	}
	g.carts = nil
	return nil
}

func (g *Order) Tick(ctx context.Context) error {
	p := g.tk.Tables().Orders
	if g.active.Len() > 0 && !g.tk.Chance(p.CreateChance) {
		_, o, _ := g.active.Random(g.tk.Rand())
		return g.advance(ctx, o)
	}
	return g.place(ctx)
}

func (g *Order) advance(ctx context.Context, o domain.Order) error {
	tk := g.tk
	next, ok := o.Status.Next()
	if !ok {
		g.active.Remove(o.OrderID)
		return fmt.Errorf("%w: order %s is %s", ErrNoEligibleUpstream, o.OrderID, o.Status)
	}
	now := tk.Now()
	ok, err := tk.Update(ctx, domain.TableOrders, "order_id", o.OrderID,
		store.Record{"status": string(next), "updated_at": now})
	if err != nil {
		return err
	}
	from := o.Status
	if !ok || next.Terminal() {
		g.active.Remove(o.OrderID)
	} else {
		o.Status, o.UpdatedAt = next, now
		g.active.Put(o.OrderID, o)
	}
	if !ok {
		return fmt.Errorf("%w: order %s is gone", ErrNoEligibleUpstream, o.OrderID)
	}
	return tk.Emit(ctx, event.TypeOrderUpdate, event.OrderStatusChanged{
		OrderID:   o.OrderID,
		From:      from,
		To:        next,
		UpdatedAt: now,
	})
}

// place turns one converted cart into an order. Carts without live items or
// whose user lacks a default billing and shipping address are skipped.
func (g *Order) place(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Orders
	if len(g.carts) == 0 || tk.Chance(p.RefreshChance) {
		rows, err := tk.Query(ctx, store.Select(domain.TableCarts, "cart_id", "user_id").
			Filter(
				store.Eq("status", string(domain.CartConverted)),
				store.NotExists("cart_id", domain.TableOrders, "cart_id"),
			).Take(upstreamLimit))
		if err != nil {
			return err
		}
		g.carts = rows
	}
	if len(g.carts) == 0 {
		return fmt.Errorf("%w: no converted cart awaits an order", ErrNoEligibleUpstream)
	}
	i := tk.Rand().IntN(len(g.carts))
	cart := g.carts[i]
	g.carts = append(g.carts[:i], g.carts[i+1:]...)
	cartID, userID := cart.String("cart_id"), cart.String("user_id")

	rows, err := tk.Query(ctx, store.Select(domain.TableCartItems).
		Filter(store.Eq("cart_id", cartID), store.IsNull("removed_at")).Order("added_at"))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: cart %s has no items", ErrNoEligibleUpstream, cartID)
	}
	billing, shipping, err := g.defaultAddresses(ctx, userID)
	if err != nil {
		return err
	}

	now := tk.Now()
	o := domain.Order{
		OrderID:           tk.NewID(),
		UserID:            userID,
		CartID:            cartID,
		Status:            domain.OrderPending,
		PaymentMethod:     p.PaymentMethods.Pick(tk.Rand()),
		DeliveryMethod:    p.DeliveryMethods.Pick(tk.Rand()),
		BillingAddressID:  billing,
		ShippingAddressID: shipping,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	lines := make([]domain.Line, len(rows))
	cartItems := make([]domain.CartItem, len(rows))
	for i, r := range rows {
		cartItems[i] = domain.CartItemFromRecord(r)
		lines[i] = domain.Line{Quantity: cartItems[i].Quantity, UnitPrice: cartItems[i].UnitPrice}
	}
	amounts := pricing(p).Price(lines)
	o.Subtotal, o.TaxAmount, o.ShippingAmount = amounts.Subtotal, amounts.Tax, amounts.Shipping
	o.DiscountAmount, o.TotalAmount = amounts.Discount, amounts.Total

	items := make([]domain.OrderItem, len(cartItems))
	for i, ci := range cartItems {
		items[i] = domain.OrderItem{
			OrderItemID:    tk.NewID(),
			OrderID:        o.OrderID,
			ProductID:      ci.ProductID,
			Quantity:       ci.Quantity,
			UnitPrice:      ci.UnitPrice,
			DiscountAmount: amounts.LineDiscounts[i],
			CreatedAt:      now,
		}
	}

	batch := []store.Row{store.Into(domain.TableOrders, o.Record())}
	for _, it := range items {
		batch = append(batch, store.Into(domain.TableOrderItems, it.Record()))
	}
	if err := tk.InsertAll(ctx, batch...); err != nil {
		return tk.Duplicate(domain.TableOrders, err)
	}
	g.active.Put(o.OrderID, o)
	return tk.Emit(ctx, event.TypeOrderCreate, event.OrderPlaced{Order: o, Items: items})
}

func (g *Order) defaultAddresses(ctx context.Context, userID string) (billing, shipping string, err error) {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableAddresses, "address_id", "address_type").
		Filter(store.Eq("user_id", userID), store.Eq("is_default", true)))
	if err != nil {
		return "", "", err
	}
	for _, r := range rows {
		switch domain.AddressType(r.String("address_type")) {
		case domain.AddressBilling:
			billing = r.String("address_id")
		case domain.AddressShipping:
			shipping = r.String("address_id")
		}
	}
	if billing == "" || shipping == "" {
		return "", "", fmt.Errorf("%w: user %s lacks default addresses", ErrNoEligibleUpstream, userID)
	}
	return billing, shipping, nil
}

func pricing(p policy.OrderPolicy) domain.Pricing {
	return domain.Pricing{
		TaxRate:               p.TaxRate,
		ShippingFee:           p.ShippingFee,
		FreeShippingThreshold: p.FreeShippingThreshold,
		DiscountThreshold:     p.DiscountThreshold,
		DiscountRate:          p.DiscountRate,
	}
}
