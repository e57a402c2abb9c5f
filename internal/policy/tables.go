// Package policy holds the probabilistic tables that drive every generator:
// action weights, status transition weights, value ranges and the pause
// distribution between ticks. The tables are plain data; sampling helpers
// take the caller's *rand.Rand so each generator keeps its own stream.
package policy

import (
	"sync/atomic"
	"time"
)

// Tables is the full set of policy tables.
type Tables struct {
	// Intervals maps a generator name to its pause distribution.
	Intervals map[string]Interval `yaml:"intervals" json:"intervals"`
	// TimePatterns scales intervals by ActivityMultiplier when set.
	TimePatterns bool `yaml:"time_patterns" json:"time_patterns"`

	Users      UserPolicy     `yaml:"users" json:"users"`
	Sessions   SessionPolicy  `yaml:"sessions" json:"sessions"`
	Categories CategoryPolicy `yaml:"categories" json:"categories"`
	Products   ProductPolicy  `yaml:"products" json:"products"`
	Views      ViewPolicy     `yaml:"views" json:"views"`
	Wishlists  WishlistPolicy `yaml:"wishlists" json:"wishlists"`
	Carts      CartPolicy     `yaml:"carts" json:"carts"`
	Orders     OrderPolicy    `yaml:"orders" json:"orders"`
	Tickets    TicketPolicy   `yaml:"tickets" json:"tickets"`
	Failures   FailurePolicy  `yaml:"failures" json:"failures"`
}

type UserPolicy struct {
	NewUserChance    float64 `yaml:"new_user_chance" json:"new_user_chance"`
	DeactivateChance float64 `yaml:"deactivate_chance" json:"deactivate_chance"`
	UpdateKinds      Weights `yaml:"update_kinds" json:"update_kinds"`
	AgeRanges        Weights `yaml:"age_ranges" json:"age_ranges"`
	Genders          Weights `yaml:"genders" json:"genders"`
	IncomeBrackets   Weights `yaml:"income_brackets" json:"income_brackets"`
	AddressTypes     Weights `yaml:"address_types" json:"address_types"`
	Languages        Weights `yaml:"languages" json:"languages"`
	Currencies       Weights `yaml:"currencies" json:"currencies"`
}

type SessionPolicy struct {
	TouchChance float64 `yaml:"touch_chance" json:"touch_chance"`
	EndChance   float64 `yaml:"end_chance" json:"end_chance"`
	// Duration is in minutes: Exp(Typical) clamped to [Min, Max].
	Duration     SessionDuration     `yaml:"duration" json:"duration"`
	DeviceTypes  Weights             `yaml:"device_types" json:"device_types"`
	OperatingSys map[string][]string `yaml:"operating_systems" json:"operating_systems"`
	Browsers     Weights             `yaml:"browsers" json:"browsers"`
	Referrals    Weights             `yaml:"referrals" json:"referrals"`
}

type SessionDuration struct {
	Typical float64 `yaml:"typical_minutes" json:"typical_minutes"`
	Min     float64 `yaml:"min_minutes" json:"min_minutes"`
	Max     float64 `yaml:"max_minutes" json:"max_minutes"`
}

type CategoryPolicy struct {
	RootChance float64 `yaml:"root_chance" json:"root_chance"`
	MaxRoots   int     `yaml:"max_roots" json:"max_roots"`
	MaxDepth   int     `yaml:"max_depth" json:"max_depth"`
	// Families maps a root category name to its description.
	Families map[string]string `yaml:"families" json:"families"`
}

type ProductPolicy struct {
	UpdateChance     float64             `yaml:"update_chance" json:"update_chance"`
	DeactivateChance float64             `yaml:"deactivate_chance" json:"deactivate_chance"`
	UpdateFields     Weights             `yaml:"update_fields" json:"update_fields"`
	PriceRanges      map[string]Range    `yaml:"price_ranges" json:"price_ranges"`
	CostRatio        Range               `yaml:"cost_ratio" json:"cost_ratio"`
	StockLevels      Weights             `yaml:"stock_levels" json:"stock_levels"`
	StockRanges      map[string]IntRange `yaml:"stock_ranges" json:"stock_ranges"`
}

type ViewPolicy struct {
	Patterns      map[string]ViewPattern `yaml:"patterns" json:"patterns"`
	Variation     Range                  `yaml:"variation" json:"variation"`
	SourcePages   Weights                `yaml:"source_pages" json:"source_pages"`
	RefreshChance float64                `yaml:"refresh_chance" json:"refresh_chance"`
}

// ViewPattern is one dwell-time bucket of a product view.
type ViewPattern struct {
	Weight float64       `yaml:"weight" json:"weight"`
	Base   time.Duration `yaml:"base" json:"base"`
}

type WishlistPolicy struct {
	AddChance float64  `yaml:"add_chance" json:"add_chance"`
	Notes     []string `yaml:"notes" json:"notes"`
}

type CartPolicy struct {
	CreateChance       float64  `yaml:"create_chance" json:"create_chance"`
	StatusChangeChance float64  `yaml:"status_change_chance" json:"status_change_chance"`
	AddItemChance      float64  `yaml:"add_item_chance" json:"add_item_chance"`
	Items              IntRange `yaml:"items" json:"items"`
	Quantity           IntRange `yaml:"quantity" json:"quantity"`
	Statuses           Weights  `yaml:"statuses" json:"statuses"`
}

type OrderPolicy struct {
	CreateChance          float64 `yaml:"create_chance" json:"create_chance"`
	TaxRate               float64 `yaml:"tax_rate" json:"tax_rate"`
	ShippingFee           float64 `yaml:"shipping_fee" json:"shipping_fee"`
	FreeShippingThreshold float64 `yaml:"free_shipping_threshold" json:"free_shipping_threshold"`
	DiscountThreshold     float64 `yaml:"discount_threshold" json:"discount_threshold"`
	DiscountRate          float64 `yaml:"discount_rate" json:"discount_rate"`
	PaymentMethods        Weights `yaml:"payment_methods" json:"payment_methods"`
	DeliveryMethods       Weights `yaml:"delivery_methods" json:"delivery_methods"`
	RefreshChance         float64 `yaml:"refresh_chance" json:"refresh_chance"`
}

type TicketPolicy struct {
	UpdateChance float64       `yaml:"update_chance" json:"update_chance"`
	IssueTypes   Weights       `yaml:"issue_types" json:"issue_types"`
	Priorities   Weights       `yaml:"priorities" json:"priorities"`
	Satisfaction Weights       `yaml:"satisfaction" json:"satisfaction"`
	RecentWindow time.Duration `yaml:"recent_window" json:"recent_window"`
}

type FailurePolicy struct {
	// PublishFailureRate is the injected transient publish failure rate.
	PublishFailureRate float64 `yaml:"publish_failure_rate" json:"publish_failure_rate"`
	// QualityIssueRate is the share of payloads that get a corrupted field.
	QualityIssueRate float64 `yaml:"quality_issue_rate" json:"quality_issue_rate"`
}

// Interval returns the pause distribution for a generator, falling back to a
// fixed second when none is configured.
func (t *Tables) Interval(generator string) Interval {
	if iv, ok := t.Intervals[generator]; ok {
		return iv
	}
	return Fixed(time.Second)
}

// Source hands out the current Tables to concurrent readers and lets a
// config reload swap them in one step.
type Source struct {
	p atomic.Pointer[Tables]
}

// NewSource returns a Source holding t.
func NewSource(t *Tables) *Source {
	s := &Source{}
	s.p.Store(t)
	return s
}

// Load returns the current tables. Callers must not mutate them.
func (s *Source) Load() *Tables { return s.p.Load() }

// Store replaces the current tables.
func (s *Source) Store(t *Tables) { s.p.Store(t) }
