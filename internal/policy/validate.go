package policy

import "fmt"

// Problems lists every inconsistency in t. An empty result means the tables
// are usable.
func (t *Tables) Problems() []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}
	prob := func(name string, p float64) {
		if p < 0 || p > 1 {
			add("%s must be within [0, 1], got %v", name, p)
		}
	}
	nonEmpty := func(name string, w Weights) {
		if w.Total() <= 0 {
			add("%s needs at least one positive weight", name)
		}
	}

	for name, iv := range t.Intervals {
		if err := iv.Validate(); err != nil {
			add("intervals.%s: %s", name, err)
		}
	}

	prob("users.new_user_chance", t.Users.NewUserChance)
	prob("users.deactivate_chance", t.Users.DeactivateChance)
	nonEmpty("users.update_kinds", t.Users.UpdateKinds)

	prob("sessions.touch_chance", t.Sessions.TouchChance)
	prob("sessions.end_chance", t.Sessions.EndChance)
	d := t.Sessions.Duration
	if d.Typical <= 0 || d.Min < 0 || d.Max < d.Min {
		add("sessions.duration needs typical > 0 and 0 <= min <= max")
	}
	nonEmpty("sessions.device_types", t.Sessions.DeviceTypes)
	for device := range t.Sessions.DeviceTypes {
		if len(t.Sessions.OperatingSys[device]) == 0 {
			add("sessions.operating_systems has no entry for device %q", device)
		}
	}

	prob("categories.root_chance", t.Categories.RootChance)
	if t.Categories.MaxDepth < 1 {
		add("categories.max_depth must be >= 1")
	}
	if t.Categories.MaxRoots < 1 {
		add("categories.max_roots must be >= 1")
	}
	if len(t.Categories.Families) == 0 {
		add("categories.families must not be empty")
	}

	prob("products.update_chance", t.Products.UpdateChance)
	prob("products.deactivate_chance", t.Products.DeactivateChance)
	nonEmpty("products.update_fields", t.Products.UpdateFields)
	if len(t.Products.PriceRanges) == 0 {
		add("products.price_ranges must not be empty")
	}
	for name, rg := range t.Products.PriceRanges {
		if rg.Min <= 0 || rg.Max < rg.Min {
			add("products.price_ranges.%s needs 0 < min <= max", name)
		}
	}
	nonEmpty("products.stock_levels", t.Products.StockLevels)
	for level, w := range t.Products.StockLevels {
		if _, ok := t.Products.StockRanges[level]; !ok && level != "out_of_stock" && w > 0 {
			add("products.stock_ranges has no entry for level %q", level)
		}
	}

	if len(t.Views.Patterns) == 0 {
		add("views.patterns must not be empty")
	}
	prob("views.refresh_chance", t.Views.RefreshChance)
	prob("wishlists.add_chance", t.Wishlists.AddChance)

	prob("carts.create_chance", t.Carts.CreateChance)
	prob("carts.status_change_chance", t.Carts.StatusChangeChance)
	prob("carts.add_item_chance", t.Carts.AddItemChance)
	if t.Carts.Items.Min < 1 || t.Carts.Items.Max < t.Carts.Items.Min {
		add("carts.items needs 1 <= min <= max")
	}
	if t.Carts.Quantity.Min < 1 || t.Carts.Quantity.Max < t.Carts.Quantity.Min {
		add("carts.quantity needs 1 <= min <= max")
	}
	nonEmpty("carts.statuses", t.Carts.Statuses)

	prob("orders.create_chance", t.Orders.CreateChance)
	prob("orders.tax_rate", t.Orders.TaxRate)
	prob("orders.discount_rate", t.Orders.DiscountRate)
	nonEmpty("orders.payment_methods", t.Orders.PaymentMethods)
	nonEmpty("orders.delivery_methods", t.Orders.DeliveryMethods)

	prob("tickets.update_chance", t.Tickets.UpdateChance)
	nonEmpty("tickets.issue_types", t.Tickets.IssueTypes)
	nonEmpty("tickets.priorities", t.Tickets.Priorities)
	nonEmpty("tickets.satisfaction", t.Tickets.Satisfaction)
	if t.Tickets.RecentWindow <= 0 {
		add("tickets.recent_window must be > 0")
	}

	prob("failures.publish_failure_rate", t.Failures.PublishFailureRate)
	prob("failures.quality_issue_rate", t.Failures.QualityIssueRate)
	return errs
}
