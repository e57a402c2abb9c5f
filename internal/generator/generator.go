// Package generator holds the nine entity generators. Each one owns a private
// working set of live entities, reads its upstream entities through the store
// gateway and turns every state change into exactly one published (or
// quarantined) event.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

// ErrNoEligibleUpstream reports a tick that had nothing to act on. The
// orchestrator counts it as a no-op, never as a failure.
var ErrNoEligibleUpstream = errors.New("no eligible upstream entity")

var ErrUnknownGenerator = errors.New("unknown generator")

// Generator is one entity producer. Tick is never called concurrently for the
// same generator.
type Generator interface {
	Name() string
	Table() string
	Dependencies() []string
	// Load rebuilds the working set from the store. It runs on start and
	// after every crash.
	Load(ctx context.Context) error
	Tick(ctx context.Context) error
	NextInterval(now time.Time) time.Duration
}

type constructor func(tk *Toolkit) Generator

var registry = map[string]constructor{
	policy.GenUser:          func(tk *Toolkit) Generator { return NewUser(tk) },
	policy.GenSession:       func(tk *Toolkit) Generator { return NewSession(tk) },
	policy.GenCategory:      func(tk *Toolkit) Generator { return NewCategory(tk) },
	policy.GenProduct:       func(tk *Toolkit) Generator { return NewProduct(tk) },
	policy.GenProductView:   func(tk *Toolkit) Generator { return NewProductView(tk) },
	policy.GenWishlist:      func(tk *Toolkit) Generator { return NewWishlist(tk) },
	policy.GenCart:          func(tk *Toolkit) Generator { return NewCart(tk) },
	policy.GenOrder:         func(tk *Toolkit) Generator { return NewOrder(tk) },
	policy.GenSupportTicket: func(tk *Toolkit) Generator { return NewSupportTicket(tk) },
}

// Names lists every registered generator in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the generator called name with its own toolkit.
func New(name string, d Deps) (Generator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}
	tk, err := NewToolkit(name, d)
	if err != nil {
		return nil, err
	}
	return ctor(tk), nil
}

// All builds the named generators, or every registered one when names is
// empty.
func All(d Deps, names ...string) ([]Generator, error) {
	if len(names) == 0 {
		names = Names()
	}
	gens := make([]Generator, 0, len(names))
	for _, n := range names {
		g, err := New(n, d)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, nil
}
