package policy

import "time"

// Generator names the intervals are keyed by.
const (
	GenUser          = "user"
	GenSession       = "session"
	GenCategory      = "product_category"
	GenProduct       = "product"
	GenProductView   = "product_view"
	GenWishlist      = "wishlist"
	GenCart          = "cart"
	GenOrder         = "order"
	GenSupportTicket = "support_ticket"
)

// Generators lists every generator name in sorted order.
func Generators() []string {
	return []string{
		GenCart, GenOrder, GenProduct, GenCategory, GenProductView,
		GenSession, GenSupportTicket, GenUser, GenWishlist,
	}
}

// Default returns a fresh copy of the built-in tables.
func Default() *Tables {
	return &Tables{
		Intervals: map[string]Interval{
			GenUser:          Exponential(10 * time.Second),
			GenSession:       Uniform(100*time.Millisecond, 2*time.Second),
			GenCategory:      Uniform(60*time.Second, 300*time.Second),
			GenProduct:       Uniform(5*time.Second, 30*time.Second),
			GenProductView:   Exponential(5 * time.Second),
			GenWishlist:      Uniform(10*time.Second, 60*time.Second),
			GenCart:          Exponential(30 * time.Second),
			GenOrder:         Uniform(60*time.Second, 300*time.Second),
			GenSupportTicket: Uniform(120*time.Second, 300*time.Second),
		},
		Users: UserPolicy{
			NewUserChance:    0.3,
			DeactivateChance: 0.1,
			UpdateKinds: Weights{
				"user_update":         1,
				"demographics_update": 1,
				"address_update":      1,
				"address_add":         1,
			},
			AgeRanges:      even("18-24", "25-34", "35-44", "45-54", "55-64", "65+"),
			Genders:        even("male", "female", "non_binary", "prefer_not_to_say"),
			IncomeBrackets: even("low", "lower_middle", "middle", "upper_middle", "high"),
			AddressTypes:   even("billing", "shipping"),
			Languages:      even("en", "es", "fr"),
			Currencies:     even("USD", "EUR", "GBP"),
		},
		Sessions: SessionPolicy{
			TouchChance: 0.7,
			EndChance:   0.2,
			Duration:    SessionDuration{Typical: 15, Min: 1, Max: 120},
			DeviceTypes: Weights{"mobile": 0.55, "desktop": 0.35, "tablet": 0.10},
			OperatingSys: map[string][]string{
				"mobile":  {"iOS 15", "iOS 16", "Android 12", "Android 13"},
				"desktop": {"Windows 11", "macOS 12", "Ubuntu 22.04"},
				"tablet":  {"iPadOS 16", "Android 12"},
			},
			Browsers:  Weights{"chrome": 0.60, "safari": 0.20, "firefox": 0.10, "edge": 0.10},
			Referrals: even("organic_search", "paid_search", "social", "email", "direct"),
		},
		Categories: CategoryPolicy{
			RootChance: 0.3,
			MaxRoots:   5,
			MaxDepth:   3,
			Families: map[string]string{
				"Electronics":   "Electronic devices and accessories",
				"Clothing":      "Fashion and apparel",
				"Home & Garden": "Home improvement and decoration",
				"Books":         "Books and literature",
				"Sports":        "Sports equipment and accessories",
			},
		},
		Products: ProductPolicy{
			UpdateChance:     0.7,
			DeactivateChance: 0.1,
			UpdateFields:     even("price", "stock_quantity"),
			PriceRanges: map[string]Range{
				"budget":  {Min: 5, Max: 50},
				"mid":     {Min: 50, Max: 200},
				"premium": {Min: 200, Max: 1000},
			},
			CostRatio: Range{Min: 0.4, Max: 0.7},
			StockLevels: Weights{
				"out_of_stock": 0.05,
				"low":          0.15,
				"medium":       0.60,
				"high":         0.20,
			},
			StockRanges: map[string]IntRange{
				"low":    {Min: 1, Max: 10},
				"medium": {Min: 11, Max: 100},
				"high":   {Min: 101, Max: 500},
			},
		},
		Views: ViewPolicy{
			Patterns: map[string]ViewPattern{
				"bounce":          {Weight: 0.15, Base: 5 * time.Second},
				"quick_view":      {Weight: 0.45, Base: 30 * time.Second},
				"detailed_view":   {Weight: 0.30, Base: 2 * time.Minute},
				"thorough_review": {Weight: 0.10, Base: 5 * time.Minute},
			},
			Variation: Range{Min: 0.8, Max: 1.2},
			SourcePages: Weights{
				"search_results":       0.40,
				"category_page":        0.30,
				"recommended_products": 0.15,
				"homepage_featured":    0.10,
				"email_link":           0.05,
			},
			RefreshChance: 0.05,
		},
		Wishlists: WishlistPolicy{
			AddChance: 0.7,
			Notes:     []string{"", "Birthday gift idea", "Wait for a sale", "Compare with similar items", "Holiday shopping"},
		},
		Carts: CartPolicy{
			CreateChance:       0.3,
			StatusChangeChance: 0.3,
			AddItemChance:      0.7,
			Items:              IntRange{Min: 1, Max: 5},
			Quantity:           IntRange{Min: 1, Max: 5},
			Statuses:           Weights{"active": 0.2, "abandoned": 0.7, "converted": 0.1},
		},
		Orders: OrderPolicy{
			CreateChance:          0.3,
			TaxRate:               0.08,
			ShippingFee:           10,
			FreeShippingThreshold: 100,
			DiscountThreshold:     200,
			DiscountRate:          0.10,
			PaymentMethods: Weights{
				"credit_card":   0.50,
				"debit_card":    0.20,
				"paypal":        0.20,
				"bank_transfer": 0.10,
			},
			DeliveryMethods: Weights{"standard": 0.60, "express": 0.30, "same_day": 0.10},
			RefreshChance:   0.2,
		},
		Tickets: TicketPolicy{
			UpdateChance: 0.7,
			IssueTypes: Weights{
				"order_status":   0.30,
				"delivery_delay": 0.25,
				"product_issue":  0.20,
				"payment_issue":  0.10,
				"return_refund":  0.15,
			},
			Priorities:   Weights{"low": 0.3, "medium": 0.5, "high": 0.2},
			Satisfaction: Weights{"1": 0.05, "2": 0.10, "3": 0.20, "4": 0.40, "5": 0.25},
			RecentWindow: 30 * 24 * time.Hour,
		},
		Failures: FailurePolicy{
			PublishFailureRate: 0.02,
			QualityIssueRate:   0,
		},
	}
}

func even(keys ...string) Weights {
	w := make(Weights, len(keys))
	for _, k := range keys {
		w[k] = 1
	}
	return w
}
