package domain

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	// OrderCancelled is declared but no transition reaches it.
	OrderCancelled OrderStatus = "cancelled"
)

var orderFlow = map[OrderStatus]OrderStatus{
	OrderPending:    OrderProcessing,
	OrderProcessing: OrderShipped,
	OrderShipped:    OrderDelivered,
}

// Next returns the status that follows s, or false when s is terminal.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := orderFlow[s]
	return next, ok
}

func (s OrderStatus) Terminal() bool {
	_, ok := orderFlow[s]
	return !ok
}

type Order struct {
	OrderID           string      `json:"order_id"`
	UserID            string      `json:"user_id"`
	CartID            string      `json:"cart_id"`
	Status            OrderStatus `json:"status"`
	Subtotal          float64     `json:"subtotal"`
	TaxAmount         float64     `json:"tax_amount"`
	ShippingAmount    float64     `json:"shipping_amount"`
	DiscountAmount    float64     `json:"discount_amount"`
	TotalAmount       float64     `json:"total_amount"`
	PaymentMethod     string      `json:"payment_method"`
	DeliveryMethod    string      `json:"delivery_method"`
	BillingAddressID  string      `json:"billing_address_id"`
	ShippingAddressID string      `json:"shipping_address_id"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (o Order) Record() store.Record {
	return store.Record{
		"order_id":            o.OrderID,
		"user_id":             o.UserID,
		"cart_id":             o.CartID,
		"status":              string(o.Status),
		"subtotal":            o.Subtotal,
		"tax_amount":          o.TaxAmount,
		"shipping_amount":     o.ShippingAmount,
		"discount_amount":     o.DiscountAmount,
		"total_amount":        o.TotalAmount,
		"payment_method":      o.PaymentMethod,
		"delivery_method":     o.DeliveryMethod,
		"billing_address_id":  o.BillingAddressID,
		"shipping_address_id": o.ShippingAddressID,
		"created_at":          o.CreatedAt,
		"updated_at":          o.UpdatedAt,
	}
}

func OrderFromRecord(r store.Record) Order {
	return Order{
		OrderID:           r.String("order_id"),
		UserID:            r.String("user_id"),
		CartID:            r.String("cart_id"),
		Status:            OrderStatus(r.String("status")),
		Subtotal:          r.Float("subtotal"),
		TaxAmount:         r.Float("tax_amount"),
		ShippingAmount:    r.Float("shipping_amount"),
		DiscountAmount:    r.Float("discount_amount"),
		TotalAmount:       r.Float("total_amount"),
		PaymentMethod:     r.String("payment_method"),
		DeliveryMethod:    r.String("delivery_method"),
		BillingAddressID:  r.String("billing_address_id"),
		ShippingAddressID: r.String("shipping_address_id"),
		CreatedAt:         r.Time("created_at"),
		UpdatedAt:         r.Time("updated_at"),
	}
}

type OrderItem struct {
	OrderItemID    string    `json:"order_item_id"`
	OrderID        string    `json:"order_id"`
	ProductID      string    `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	DiscountAmount float64   `json:"discount_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

func (i OrderItem) Record() store.Record {
	return store.Record{
		"order_item_id":   i.OrderItemID,
		"order_id":        i.OrderID,
		"product_id":      i.ProductID,
		"quantity":        i.Quantity,
		"unit_price":      i.UnitPrice,
		"discount_amount": i.DiscountAmount,
		"created_at":      i.CreatedAt,
	}
}

// Pricing holds the order pricing rules.
type Pricing struct {
	TaxRate               float64
	ShippingFee           float64
	FreeShippingThreshold float64
	DiscountThreshold     float64
	DiscountRate          float64
}

// Line is one priced order line.
type Line struct {
	Quantity  int
	UnitPrice float64
}

// Amounts is the result of pricing an order. LineDiscounts is parallel to the
// priced lines.
type Amounts struct {
	Subtotal      float64
	Tax           float64
	Shipping      float64
	Discount      float64
	Total         float64
	LineDiscounts []float64
}

// Price computes order amounts:
//
//	subtotal = Σ quantity × unit_price
//	tax      = round2(subtotal × tax_rate)
//	shipping = fee when subtotal < free_shipping_threshold, else 0
//	discount = round2(subtotal × discount_rate) when subtotal > discount_threshold, else 0
//	total    = subtotal + tax + shipping − discount
//
// The discount is apportioned to lines by their share of the subtotal.
func (p Pricing) Price(lines []Line) Amounts {
	var a Amounts
	for _, l := range lines {
		a.Subtotal += float64(l.Quantity) * l.UnitPrice
	}
	a.Subtotal = Round2(a.Subtotal)
	a.Tax = Round2(a.Subtotal * p.TaxRate)
	if a.Subtotal < p.FreeShippingThreshold {
		a.Shipping = p.ShippingFee
	}
	if a.Subtotal > p.DiscountThreshold {
		a.Discount = Round2(a.Subtotal * p.DiscountRate)
	}
	a.Total = Round2(a.Subtotal + a.Tax + a.Shipping - a.Discount)

	a.LineDiscounts = make([]float64, len(lines))
	if a.Subtotal > 0 {
		for i, l := range lines {
			share := float64(l.Quantity) * l.UnitPrice / a.Subtotal
			a.LineDiscounts[i] = Round2(a.Discount * share)
		}
	}
	return a
}
