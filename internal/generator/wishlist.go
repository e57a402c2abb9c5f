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

// Wishlist adds products to users' wishlists and removes them again. A user
// holds at most one active entry per product.
type Wishlist struct {
	tk *Toolkit
}

func NewWishlist(tk *Toolkit) *Wishlist { return &Wishlist{tk: tk} }

func (g *Wishlist) Name() string               { return policy.GenWishlist }
func (g *Wishlist) Table() string              { return domain.TableWishlists }
func (g *Wishlist) Load(context.Context) error { return nil }

func (g *Wishlist) Dependencies() []string {
	return []string{policy.GenUser, policy.GenProduct}
}

func (g *Wishlist) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *Wishlist) Tick(ctx context.Context) error {
	if g.tk.Chance(g.tk.Tables().Wishlists.AddChance) {
		return g.add(ctx)
	}
	return g.remove(ctx)
}

func (g *Wishlist) add(ctx context.Context) error {
	tk := g.tk
	user, err := tk.Pick(ctx, store.Select(domain.TableUsers, "user_id").Filter(store.Eq("is_active", true)))
	if err != nil {
		return err
	}
	product, err := tk.Pick(ctx, store.Select(domain.TableProducts, "product_id").Filter(store.Eq("is_active", true)))
	if err != nil {
		return err
	}
	userID, productID := user.String("user_id"), product.String("product_id")

	exists, err := tk.Exists(ctx, domain.TableWishlists,
		store.Eq("user_id", userID), store.Eq("product_id", productID), store.IsNull("removed_at"))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s already wishes for %s", ErrNoEligibleUpstream, userID, productID)
	}

	w := domain.WishlistItem{
		WishlistID: tk.NewID(),
		UserID:     userID,
		ProductID:  productID,
		AddedAt:    tk.Now(),
		Notes:      oneOf(tk, tk.Tables().Wishlists.Notes),
	}
	if err := tk.Insert(ctx, domain.TableWishlists, w.Record()); err != nil {
		return tk.Duplicate(domain.TableWishlists, err)
	}
	return tk.Emit(ctx, event.TypeWishlistAdd, event.WishlistChanged{WishlistItem: w})
}

func (g *Wishlist) remove(ctx context.Context) error {
	tk := g.tk
	row, err := tk.Pick(ctx, store.Select(domain.TableWishlists).Filter(store.IsNull("removed_at")))
	if err != nil {
		return err
	}
	w := domain.WishlistItemFromRecord(row)
	now := tk.Now()
	ok, err := tk.Update(ctx, domain.TableWishlists, "wishlist_id", w.WishlistID, store.Record{"removed_at": now})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: wishlist entry %s is gone", ErrNoEligibleUpstream, w.WishlistID)
	}
	w.RemovedAt = &now
	return tk.Emit(ctx, event.TypeWishlistRemove, event.WishlistChanged{WishlistItem: w})
}
