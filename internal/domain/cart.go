package domain

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartAbandoned CartStatus = "abandoned"
	CartConverted CartStatus = "converted"
)

// Terminal reports whether no transition leaves s.
func (s CartStatus) Terminal() bool {
	return s == CartAbandoned || s == CartConverted
}

// Valid reports whether s is a declared cart status.
func (s CartStatus) Valid() bool {
	switch s {
	case CartActive, CartAbandoned, CartConverted:
		return true
	}
	return false
}

// CanTransition reports whether a cart in s may move to next. An active cart
// may stay active or end; an ended cart never moves.
func (s CartStatus) CanTransition(next CartStatus) bool {
	return s == CartActive && next.Valid()
}

type Cart struct {
	CartID    string     `json:"cart_id"`
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	Status    CartStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c Cart) Record() store.Record {
	return store.Record{
		"cart_id":    c.CartID,
		"user_id":    c.UserID,
		"session_id": c.SessionID,
		"status":     string(c.Status),
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}

func CartFromRecord(r store.Record) Cart {
	return Cart{
		CartID:    r.String("cart_id"),
		UserID:    r.String("user_id"),
		SessionID: r.String("session_id"),
		Status:    CartStatus(r.String("status")),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
	}
}

type CartItem struct {
	CartItemID string     `json:"cart_item_id"`
	CartID     string     `json:"cart_id"`
	ProductID  string     `json:"product_id"`
	Quantity   int        `json:"quantity"`
	UnitPrice  float64    `json:"unit_price"`
	AddedAt    time.Time  `json:"added_at"`
	RemovedAt  *time.Time `json:"removed_at"`
}

func (i CartItem) Record() store.Record {
	return store.Record{
		"cart_item_id": i.CartItemID,
		"cart_id":      i.CartID,
		"product_id":   i.ProductID,
		"quantity":     i.Quantity,
		"unit_price":   i.UnitPrice,
		"added_at":     i.AddedAt,
		"removed_at":   i.RemovedAt,
	}
}

func CartItemFromRecord(r store.Record) CartItem {
	return CartItem{
		CartItemID: r.String("cart_item_id"),
		CartID:     r.String("cart_id"),
		ProductID:  r.String("product_id"),
		Quantity:   r.Int("quantity"),
		UnitPrice:  r.Float("unit_price"),
		AddedAt:    r.Time("added_at"),
		RemovedAt:  r.TimePtr("removed_at"),
	}
}
