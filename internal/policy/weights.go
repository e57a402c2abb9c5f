package policy

import (
	"math/rand/v2"
	"sort"
	"strconv"
)

// Weights is a discrete distribution keyed by outcome name. Weights need not
// sum to one; an outcome with weight zero is never picked.
//
// YAML overrides merge key by key into the defaults, so setting a weight to 0
// is the way to switch an outcome off.
type Weights map[string]float64

// Pick draws one outcome. Keys are visited in sorted order so a seeded rng
// always yields the same sequence. Returns "" when every weight is zero.
func (w Weights) Pick(r *rand.Rand) string {
	keys := w.Keys()
	total := 0.0
	for _, k := range keys {
		if w[k] > 0 {
			total += w[k]
		}
	}
	if total <= 0 {
		return ""
	}
	x := r.Float64() * total
	last := ""
	for _, k := range keys {
		if w[k] <= 0 {
			continue
		}
		last = k
		x -= w[k]
		if x < 0 {
			return k
		}
	}
	return last
}

// PickInt is Pick for distributions keyed by integers ("1".."5").
func (w Weights) PickInt(r *rand.Rand) (int, bool) {
	k := w.Pick(r)
	if k == "" {
		return 0, false
	}
	n, err := strconv.Atoi(k)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Keys returns the outcome names in sorted order.
func (w Weights) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total sums the positive weights.
func (w Weights) Total() float64 {
	t := 0.0
	for _, v := range w {
		if v > 0 {
			t += v
		}
	}
	return t
}

func (w Weights) clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Range is a closed float interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Sample draws uniformly from [Min, Max].
func (rg Range) Sample(r *rand.Rand) float64 {
	if rg.Max <= rg.Min {
		return rg.Min
	}
	return rg.Min + r.Float64()*(rg.Max-rg.Min)
}

// IntRange is a closed integer interval.
type IntRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Sample draws uniformly from [Min, Max].
func (rg IntRange) Sample(r *rand.Rand) int {
	if rg.Max <= rg.Min {
		return rg.Min
	}
	return rg.Min + r.IntN(rg.Max-rg.Min+1)
}

// Chance reports whether an event with probability p happened.
func Chance(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}
