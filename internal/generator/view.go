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

// ProductView records products being looked at during open sessions. It
// only creates; its upstream ids are cached and refreshed now and then.
type ProductView struct {
	tk       *Toolkit
	sessions []string
	products []string
}

func NewProductView(tk *Toolkit) *ProductView { return &ProductView{tk: tk} }

func (g *ProductView) Name() string  { return policy.GenProductView }
func (g *ProductView) Table() string { return domain.TableProductViews }

func (g *ProductView) Dependencies() []string {
	return []string{policy.GenProduct, policy.GenSession}
}

func (g *ProductView) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *ProductView) Load(ctx context.Context) error {
	g.sessions, g.products = nil, nil
	return g.refresh(ctx)
}

func (g *ProductView) refresh(ctx context.Context) error {
	var err error
	g.sessions, err = ids(ctx, g.tk, store.Select(domain.TableSessions, "session_id").
		Filter(store.IsNull("ended_at")).Order("-started_at"), "session_id")
	if err != nil {
		return err
	}
	g.products, err = ids(ctx, g.tk, store.Select(domain.TableProducts, "product_id").
		Filter(store.Eq("is_active", true)), "product_id")
	return err
}

func (g *ProductView) Tick(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Views
	if len(g.sessions) == 0 || len(g.products) == 0 || tk.Chance(p.RefreshChance) {
		if err := g.refresh(ctx); err != nil {
			return err
		}
	}
	if len(g.sessions) == 0 || len(g.products) == 0 {
		return fmt.Errorf("%w: need an open session and an active product", ErrNoEligibleUpstream)
	}

	patterns := make(policy.Weights, len(p.Patterns))
	for name, vp := range p.Patterns {
		patterns[name] = vp.Weight
	}
	pattern := patterns.Pick(tk.Rand())
	dwell := time.Duration(float64(p.Patterns[pattern].Base) * p.Variation.Sample(tk.Rand()))

	v := domain.ProductView{
		ViewID:          tk.NewID(),
		SessionID:       oneOf(tk, g.sessions),
		ProductID:       oneOf(tk, g.products),
		ViewedAt:        tk.Now(),
		DurationSeconds: max(1, int(dwell.Seconds())),
		ViewPattern:     pattern,
		SourcePage:      p.SourcePages.Pick(tk.Rand()),
	}
	if err := tk.Insert(ctx, domain.TableProductViews, v.Record()); err != nil {
		return err
	}
	return tk.Emit(ctx, event.TypeProductView, event.ProductViewed{ProductView: v})
}

// ids reads one column of up to upstreamLimit rows.
func ids(ctx context.Context, tk *Toolkit, q store.Query, column string) ([]string, error) {
	if q.Limit == 0 {
		q.Limit = upstreamLimit
	}
	rows, err := tk.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String(column)
	}
	return out, nil
}
