package domain

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

type Category struct {
	CategoryID       string    `json:"category_id"`
	ParentCategoryID *string   `json:"parent_category_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (c Category) Record() store.Record {
	return store.Record{
		"category_id":        c.CategoryID,
		"parent_category_id": c.ParentCategoryID,
		"name":               c.Name,
		"description":        c.Description,
		"created_at":         c.CreatedAt,
		"updated_at":         c.UpdatedAt,
	}
}

func CategoryFromRecord(r store.Record) Category {
	return Category{
		CategoryID:       r.String("category_id"),
		ParentCategoryID: r.StringPtr("parent_category_id"),
		Name:             r.String("name"),
		Description:      r.String("description"),
		CreatedAt:        r.Time("created_at"),
		UpdatedAt:        r.Time("updated_at"),
	}
}

// CategoryDepth counts the ancestors of id in parents (id → parent id, ""
// for roots). A cycle or a dangling parent ends the walk.
func CategoryDepth(parents map[string]string, id string) int {
	depth := 0
	seen := map[string]bool{id: true}
	for cur := parents[id]; cur != ""; cur = parents[cur] {
		if seen[cur] {
			break
		}
		seen[cur] = true
		depth++
		if _, ok := parents[cur]; !ok {
			break
		}
	}
	return depth
}

type Product struct {
	ProductID     string    `json:"product_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CategoryID    string    `json:"category_id"`
	Price         float64   `json:"price"`
	Cost          float64   `json:"cost"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p Product) Record() store.Record {
	return store.Record{
		"product_id":     p.ProductID,
		"sku":            p.SKU,
		"name":           p.Name,
		"description":    p.Description,
		"category_id":    p.CategoryID,
		"price":          p.Price,
		"cost":           p.Cost,
		"stock_quantity": p.StockQuantity,
		"is_active":      p.IsActive,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
}

func ProductFromRecord(r store.Record) Product {
	return Product{
		ProductID:     r.String("product_id"),
		SKU:           r.String("sku"),
		Name:          r.String("name"),
		Description:   r.String("description"),
		CategoryID:    r.String("category_id"),
		Price:         r.Float("price"),
		Cost:          r.Float("cost"),
		StockQuantity: r.Int("stock_quantity"),
		IsActive:      r.Bool("is_active"),
		CreatedAt:     r.Time("created_at"),
		UpdatedAt:     r.Time("updated_at"),
	}
}

type ProductView struct {
	ViewID          string    `json:"view_id"`
	SessionID       string    `json:"session_id"`
	ProductID       string    `json:"product_id"`
	ViewedAt        time.Time `json:"viewed_at"`
	DurationSeconds int       `json:"duration_seconds"`
	ViewPattern     string    `json:"view_pattern"`
	SourcePage      string    `json:"source_page"`
}

func (v ProductView) Record() store.Record {
	return store.Record{
		"view_id":          v.ViewID,
		"session_id":       v.SessionID,
		"product_id":       v.ProductID,
		"viewed_at":        v.ViewedAt,
		"duration_seconds": v.DurationSeconds,
		"view_pattern":     v.ViewPattern,
		"source_page":      v.SourcePage,
	}
}

type WishlistItem struct {
	WishlistID string     `json:"wishlist_id"`
	UserID     string     `json:"user_id"`
	ProductID  string     `json:"product_id"`
	AddedAt    time.Time  `json:"added_at"`
	RemovedAt  *time.Time `json:"removed_at"`
	Notes      string     `json:"notes"`
}

func (w WishlistItem) Record() store.Record {
	return store.Record{
		"wishlist_id": w.WishlistID,
		"user_id":     w.UserID,
		"product_id":  w.ProductID,
		"added_at":    w.AddedAt,
		"removed_at":  w.RemovedAt,
		"notes":       w.Notes,
	}
}

func WishlistItemFromRecord(r store.Record) WishlistItem {
	return WishlistItem{
		WishlistID: r.String("wishlist_id"),
		UserID:     r.String("user_id"),
		ProductID:  r.String("product_id"),
		AddedAt:    r.Time("added_at"),
		RemovedAt:  r.TimePtr("removed_at"),
		Notes:      r.String("notes"),
	}
}
