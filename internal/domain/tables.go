// Package domain holds the e-commerce entities, their lifecycle statuses and
// the pure transition and pricing rules the generators apply.
package domain

import (
	"math"
	"time"
)

// Table names in the entity store.
const (
	TableUsers          = "users"
	TableDemographics   = "user_demographics"
	TableAddresses      = "user_addresses"
	TableSessions       = "sessions"
	TableCategories     = "product_categories"
	TableProducts       = "products"
	TableProductViews   = "product_views"
	TableWishlists      = "wishlists"
	TableCarts          = "carts"
	TableCartItems      = "cart_items"
	TableOrders         = "orders"
	TableOrderItems     = "order_items"
	TableTickets        = "support_tickets"
	TableTicketMessages = "ticket_messages"
)

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UTC truncates t to microseconds (the store's precision) in UTC.
func UTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
