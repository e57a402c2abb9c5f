package generator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

const (
	skuAttempts  = 3
	outOfStock   = "out_of_stock"
	fieldPrice   = "price"
	fieldStock   = "stock_quantity"
	minUnitPrice = 0.01
)

var (
	priceDrift = policy.Range{Min: 0.9, Max: 1.1}
	stockDrift = policy.IntRange{Min: -10, Max: 20}
)

// Product lists products under existing categories and reprices, restocks
// or retires them.
type Product struct {
	tk     *Toolkit
	active *WorkingSet[domain.Product]
}

func NewProduct(tk *Toolkit) *Product {
	return &Product{tk: tk, active: NewWorkingSet[domain.Product]()}
}

func (g *Product) Name() string           { return policy.GenProduct }
func (g *Product) Table() string          { return domain.TableProducts }
func (g *Product) Dependencies() []string { return []string{policy.GenCategory} }

func (g *Product) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *Product) Load(ctx context.Context) error {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableProducts).
		Filter(store.Eq("is_active", true)).Order("-created_at").Take(loadLimit))
	if err != nil {
		return err
	}
	g.active.Reset()
	for _, r := range rows {
		p := domain.ProductFromRecord(r)
		g.active.Put(p.ProductID, p)
	}
	return nil
}

func (g *Product) Tick(ctx context.Context) error {
	if g.active.Len() > 0 && g.tk.Chance(g.tk.Tables().Products.UpdateChance) {
		_, p, _ := g.active.Random(g.tk.Rand())
		return g.update(ctx, p)
	}
	return g.create(ctx)
}

func (g *Product) create(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Products
	cat, err := tk.Pick(ctx, store.Select(domain.TableCategories, "category_id", "name"))
	if err != nil {
		return err
	}

	buckets := make([]string, 0, len(p.PriceRanges))
	for b := range p.PriceRanges {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)
	price := domain.Round2(p.PriceRanges[oneOf(tk, buckets)].Sample(tk.Rand()))
	stock := 0
	if level := p.StockLevels.Pick(tk.Rand()); level != outOfStock {
		stock = p.StockRanges[level].Sample(tk.Rand())
	}

	now := tk.Now()
	prod := domain.Product{
		ProductID:     tk.NewID(),
		Name:          tk.Fake().ProductName(),
		Description:   tk.Fake().Paragraph(2),
		CategoryID:    cat.String("category_id"),
		Price:         price,
		Cost:          domain.Round2(price * p.CostRatio.Sample(tk.Rand())),
		StockQuantity: stock,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for attempt := 0; ; attempt++ {
		prod.SKU = g.sku(cat.String("name"))
		err = tk.Insert(ctx, domain.TableProducts, prod.Record())
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt+1 >= skuAttempts {
			return tk.Duplicate(domain.TableProducts, err)
		}
	}
	g.active.Put(prod.ProductID, prod)
	return tk.Emit(ctx, event.TypeProductCreate, event.ProductCreated{Product: prod})
}

// update reprices or restocks p, or retires it.
func (g *Product) update(ctx context.Context, p domain.Product) error {
	tk, pol := g.tk, g.tk.Tables().Products
	now := tk.Now()
	change := event.ProductUpdated{ProductID: p.ProductID, UpdatedAt: now}
	fields := store.Record{"updated_at": now}

	switch {
	case tk.Chance(pol.DeactivateChance):
		p.IsActive = false
		change.IsActive = ptr(false)
		fields["is_active"] = false
	case pol.UpdateFields.Pick(tk.Rand()) == fieldPrice:
		p.Price = max(minUnitPrice, domain.Round2(p.Price*priceDrift.Sample(tk.Rand())))
		change.Price = ptr(p.Price)
		fields["price"] = p.Price
	default:
		p.StockQuantity = max(0, p.StockQuantity+stockDrift.Sample(tk.Rand()))
		change.StockQuantity = ptr(p.StockQuantity)
		fields["stock_quantity"] = p.StockQuantity
	}

	ok, err := tk.Update(ctx, domain.TableProducts, "product_id", p.ProductID, fields)
	if err != nil {
		return err
	}
	if !ok || !p.IsActive {
		g.active.Remove(p.ProductID)
	} else {
		p.UpdatedAt = now
		g.active.Put(p.ProductID, p)
	}
	if !ok {
		return fmt.Errorf("%w: product %s is gone", ErrNoEligibleUpstream, p.ProductID)
	}
	return tk.Emit(ctx, event.TypeProductUpdate, change)
}

func (g *Product) sku(category string) string {
	prefix := strings.ToUpper(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, category))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if prefix == "" {
		prefix = "GEN"
	}
	return fmt.Sprintf("%s-%06d", prefix, g.tk.Rand().IntN(1_000_000))
}
