package policy

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// IntervalKind names the distribution an Interval samples from.
type IntervalKind string

const (
	KindUniform     IntervalKind = "uniform"
	KindExponential IntervalKind = "exponential"
	KindFixed       IntervalKind = "fixed"
)

// Interval is a named pause distribution between two generator ticks.
//
//	uniform:     Min..Max
//	exponential: Exp(Mean), capped at Max when Max > 0
//	fixed:       Mean
type Interval struct {
	Kind IntervalKind  `yaml:"kind" json:"kind"`
	Min  time.Duration `yaml:"min,omitempty" json:"min,omitempty"`
	Max  time.Duration `yaml:"max,omitempty" json:"max,omitempty"`
	Mean time.Duration `yaml:"mean,omitempty" json:"mean,omitempty"`
}

// Uniform returns a uniform interval over [min, max].
func Uniform(min, max time.Duration) Interval {
	return Interval{Kind: KindUniform, Min: min, Max: max}
}

// Exponential returns an exponential interval with the given mean.
func Exponential(mean time.Duration) Interval {
	return Interval{Kind: KindExponential, Mean: mean}
}

// Fixed returns a constant interval.
func Fixed(d time.Duration) Interval {
	return Interval{Kind: KindFixed, Mean: d}
}

// Sample draws one pause.
func (i Interval) Sample(r *rand.Rand) time.Duration {
	switch i.Kind {
	case KindUniform:
		if i.Max <= i.Min {
			return i.Min
		}
		return i.Min + time.Duration(r.Int64N(int64(i.Max-i.Min)+1))
	case KindExponential:
		d := time.Duration(r.ExpFloat64() * float64(i.Mean))
		if i.Max > 0 && d > i.Max {
			d = i.Max
		}
		if d < i.Min {
			d = i.Min
		}
		return d
	default:
		return i.Mean
	}
}

// Validate reports a problem with the interval, or nil.
func (i Interval) Validate() error {
	switch i.Kind {
	case KindUniform:
		if i.Min < 0 || i.Max < i.Min {
			return fmt.Errorf("uniform interval needs 0 <= min <= max, got %s..%s", i.Min, i.Max)
		}
	case KindExponential:
		if i.Mean <= 0 {
			return fmt.Errorf("exponential interval needs mean > 0, got %s", i.Mean)
		}
	case KindFixed:
		if i.Mean < 0 {
			return fmt.Errorf("fixed interval needs mean >= 0, got %s", i.Mean)
		}
	default:
		return fmt.Errorf("unknown interval kind %q", i.Kind)
	}
	return nil
}

// ActivityMultiplier scales activity by wall-clock time: busier during
// business hours and evenings, quiet at night, busier on weekends.
func ActivityMultiplier(t time.Time) float64 {
	m := 1.0
	switch h := t.Hour(); {
	case h >= 9 && h <= 17:
		m *= 1.5
	case h >= 1 && h <= 6:
		m *= 0.2
	case h >= 18 && h <= 22:
		m *= 1.3
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		m *= 1.3
	}
	return m
}

// Scale divides d by the activity multiplier at t.
func Scale(d time.Duration, t time.Time) time.Duration {
	return time.Duration(float64(d) / ActivityMultiplier(t))
}
