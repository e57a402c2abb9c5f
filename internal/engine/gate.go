package engine

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// Gate decides whether a generator's upstream data exists.
type Gate interface {
	// Ready returns nil once every table holds at least one row, an error
	// wrapping ErrDependencyNotReady while one is empty, or the check error.
	Ready(ctx context.Context, tables ...string) error
}

// StoreGate answers readiness from the entity store.
type StoreGate struct {
	gw store.Gateway
}

func NewGate(gw store.Gateway) *StoreGate {
	return &StoreGate{gw: gw}
}

func (g *StoreGate) Ready(ctx context.Context, tables ...string) error {
	for _, t := range tables {
		ok, err := g.gw.Exists(ctx, t)
		if err != nil {
			return fmt.Errorf("check %s: %w", t, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s is empty", ErrDependencyNotReady, t)
		}
	}
	return nil
}
