package generator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// Category grows the category tree: a bounded number of root families, then
// children under any category shallow enough to take one. Categories are
// never mutated, so there is no working set.
type Category struct {
	tk *Toolkit
}

func NewCategory(tk *Toolkit) *Category { return &Category{tk: tk} }

func (g *Category) Name() string               { return policy.GenCategory }
func (g *Category) Table() string              { return domain.TableCategories }
func (g *Category) Dependencies() []string     { return nil }
func (g *Category) Load(context.Context) error { return nil }

func (g *Category) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *Category) Tick(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Categories
	rows, err := tk.Query(ctx, store.Select(domain.TableCategories))
	if err != nil {
		return err
	}
	all := make([]domain.Category, len(rows))
	parents := make(map[string]string, len(rows))
	used := make(map[string]bool)
	roots := 0
	for i, r := range rows {
		c := domain.CategoryFromRecord(r)
		all[i] = c
		parents[c.CategoryID] = ""
		if c.ParentCategoryID != nil {
			parents[c.CategoryID] = *c.ParentCategoryID
		} else {
			roots++
			used[c.Name] = true
		}
	}

	if (len(all) == 0 || tk.Chance(p.RootChance)) && roots < p.MaxRoots {
		if free := unusedFamilies(p.Families, used); len(free) > 0 {
			name := oneOf(tk, free)
			return g.create(ctx, nil, name, p.Families[name])
		}
	}

	var eligible []domain.Category
	for _, c := range all {
		if domain.CategoryDepth(parents, c.CategoryID) < p.MaxDepth-1 {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return fmt.Errorf("%w: no category can take a child", ErrNoEligibleUpstream)
	}
	parent := eligible[tk.Rand().IntN(len(eligible))]
	root := rootName(all, parents, parent.CategoryID)
	name := tk.Fake().Title(root + " - " + tk.Fake().Word())
	return g.create(ctx, &parent.CategoryID, name, tk.Fake().Sentence(8))
}

func (g *Category) create(ctx context.Context, parent *string, name, description string) error {
	tk := g.tk
	now := tk.Now()
	c := domain.Category{
		CategoryID:       tk.NewID(),
		ParentCategoryID: parent,
		Name:             name,
		Description:      description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tk.Insert(ctx, domain.TableCategories, c.Record()); err != nil {
		return err
	}
	return tk.Emit(ctx, event.TypeCategoryCreate, event.CategoryCreated{Category: c})
}

func unusedFamilies(families map[string]string, used map[string]bool) []string {
	var names []string
	for n := range families {
		if !used[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func rootName(all []domain.Category, parents map[string]string, id string) string {
	names := make(map[string]string, len(all))
	for _, c := range all {
		names[c.CategoryID] = c.Name
	}
	seen := map[string]bool{}
	for parents[id] != "" && !seen[id] {
		seen[id] = true
		if _, ok := names[parents[id]]; !ok {
			break
		}
		id = parents[id]
	}
	return names[id]
}
