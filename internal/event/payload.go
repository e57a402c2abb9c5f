package event

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
)

type UserRegistered struct {
	domain.User
}

func (p UserRegistered) EntityID() string { return p.UserID }

type UserUpdated struct {
	UserID    string     `json:"user_id"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (p UserUpdated) EntityID() string { return p.UserID }

type DemographicsChanged struct {
	domain.Demographics
}

func (p DemographicsChanged) EntityID() string { return p.DemographicID }

type AddressChanged struct {
	domain.Address
}

func (p AddressChanged) EntityID() string { return p.AddressID }

type SessionChanged struct {
	domain.Session
}

func (p SessionChanged) EntityID() string { return p.SessionID }

type CategoryCreated struct {
	domain.Category
}

func (p CategoryCreated) EntityID() string { return p.CategoryID }

type ProductCreated struct {
	domain.Product
}

func (p ProductCreated) EntityID() string { return p.ProductID }

// ProductUpdated carries only the fields that changed.
type ProductUpdated struct {
	ProductID     string    `json:"product_id"`
	Price         *float64  `json:"price,omitempty"`
	StockQuantity *int      `json:"stock_quantity,omitempty"`
	IsActive      *bool     `json:"is_active,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p ProductUpdated) EntityID() string { return p.ProductID }

type ProductViewed struct {
	domain.ProductView
}

func (p ProductViewed) EntityID() string { return p.ViewID }

type WishlistChanged struct {
	domain.WishlistItem
}

func (p WishlistChanged) EntityID() string { return p.WishlistID }

type CartCreated struct {
	domain.Cart
	Items []domain.CartItem `json:"items"`
}

func (p CartCreated) EntityID() string { return p.CartID }

type CartStatusChanged struct {
	CartID    string            `json:"cart_id"`
	From      domain.CartStatus `json:"from"`
	To        domain.CartStatus `json:"to"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (p CartStatusChanged) EntityID() string { return p.CartID }

type CartItemAdded struct {
	domain.CartItem
}

func (p CartItemAdded) EntityID() string { return p.CartID }

type CartItemRemoved struct {
	CartItemID string    `json:"cart_item_id"`
	CartID     string    `json:"cart_id"`
	RemovedAt  time.Time `json:"removed_at"`
}

func (p CartItemRemoved) EntityID() string { return p.CartID }

type OrderPlaced struct {
	domain.Order
	Items []domain.OrderItem `json:"items"`
}

func (p OrderPlaced) EntityID() string { return p.OrderID }

type OrderStatusChanged struct {
	OrderID   string             `json:"order_id"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (p OrderStatusChanged) EntityID() string { return p.OrderID }

type TicketOpened struct {
	domain.Ticket
}

func (p TicketOpened) EntityID() string { return p.TicketID }

type TicketStatusChanged struct {
	TicketID          string              `json:"ticket_id"`
	From              domain.TicketStatus `json:"from"`
	To                domain.TicketStatus `json:"to"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty"`
	SatisfactionScore *int                `json:"satisfaction_score,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (p TicketStatusChanged) EntityID() string { return p.TicketID }

type TicketMessagePosted struct {
	domain.TicketMessage
}

func (p TicketMessagePosted) EntityID() string { return p.TicketID }
