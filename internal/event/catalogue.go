package event

import "sort"

const (
	TopicUsers             = "users"
	TopicUserDemographics  = "user_demographics"
	TopicUserAddresses     = "user_addresses"
	TopicSessions          = "sessions"
	TopicProductCategories = "product_categories"
	TopicProducts          = "products"
	TopicProductViews      = "product_views"
	TopicWishlists         = "wishlists"
	TopicCarts             = "carts"
	TopicOrders            = "orders"
	TopicSupportTickets    = "support_tickets"
	TopicTicketMessages    = "ticket_messages"
)

const (
	TypeNewUser              Type = "new_user"
	TypeUserUpdate           Type = "user_update"
	TypeDemographicsRecorded Type = "demographics_recorded"
	TypeDemographicsUpdate   Type = "demographics_update"
	TypeAddressAdded         Type = "address_added"
	TypeAddressAdd           Type = "address_add"
	TypeAddressUpdate        Type = "address_update"
	TypeSessionStart         Type = "session_start"
	TypeSessionActivity      Type = "session_activity"
	TypeSessionEnd           Type = "session_end"
	TypeCategoryCreate       Type = "category_create"
	TypeProductCreate        Type = "product_create"
	TypeProductUpdate        Type = "product_update"
	TypeProductView          Type = "product_view"
	TypeWishlistAdd          Type = "wishlist_add"
	TypeWishlistRemove       Type = "wishlist_remove"
	TypeCartCreate           Type = "cart_create"
	TypeCartUpdate           Type = "cart_update"
	TypeItemAdd              Type = "item_add"
	TypeItemRemove           Type = "item_remove"
	TypeOrderCreate          Type = "order_create"
	TypeOrderUpdate          Type = "order_update"
	TypeTicketCreate         Type = "ticket_create"
	TypeTicketUpdate         Type = "ticket_update"
	TypeTicketMessage        Type = "ticket_message"
)

type descriptor struct {
	topic   string
	idField string
	factory func() Payload
}

// catalogue is the dispatch table from event type to topic, identity field
// and payload constructor.
var catalogue = map[Type]descriptor{
	TypeNewUser:              {TopicUsers, "user_id", func() Payload { return &UserRegistered{} }},
	TypeUserUpdate:           {TopicUsers, "user_id", func() Payload { return &UserUpdated{} }},
	TypeDemographicsRecorded: {TopicUserDemographics, "demographic_id", func() Payload { return &DemographicsChanged{} }},
	TypeDemographicsUpdate:   {TopicUserDemographics, "demographic_id", func() Payload { return &DemographicsChanged{} }},
	TypeAddressAdded:         {TopicUserAddresses, "address_id", func() Payload { return &AddressChanged{} }},
	TypeAddressAdd:           {TopicUserAddresses, "address_id", func() Payload { return &AddressChanged{} }},
	TypeAddressUpdate:        {TopicUserAddresses, "address_id", func() Payload { return &AddressChanged{} }},
	TypeSessionStart:         {TopicSessions, "session_id", func() Payload { return &SessionChanged{} }},
	TypeSessionActivity:      {TopicSessions, "session_id", func() Payload { return &SessionChanged{} }},
	TypeSessionEnd:           {TopicSessions, "session_id", func() Payload { return &SessionChanged{} }},
	TypeCategoryCreate:       {TopicProductCategories, "category_id", func() Payload { return &CategoryCreated{} }},
	TypeProductCreate:        {TopicProducts, "product_id", func() Payload { return &ProductCreated{} }},
	TypeProductUpdate:        {TopicProducts, "product_id", func() Payload { return &ProductUpdated{} }},
	TypeProductView:          {TopicProductViews, "view_id", func() Payload { return &ProductViewed{} }},
	TypeWishlistAdd:          {TopicWishlists, "wishlist_id", func() Payload { return &WishlistChanged{} }},
	TypeWishlistRemove:       {TopicWishlists, "wishlist_id", func() Payload { return &WishlistChanged{} }},
	TypeCartCreate:           {TopicCarts, "cart_id", func() Payload { return &CartCreated{} }},
	TypeCartUpdate:           {TopicCarts, "cart_id", func() Payload { return &CartStatusChanged{} }},
	TypeItemAdd:              {TopicCarts, "cart_id", func() Payload { return &CartItemAdded{} }},
	TypeItemRemove:           {TopicCarts, "cart_id", func() Payload { return &CartItemRemoved{} }},
	TypeOrderCreate:          {TopicOrders, "order_id", func() Payload { return &OrderPlaced{} }},
	TypeOrderUpdate:          {TopicOrders, "order_id", func() Payload { return &OrderStatusChanged{} }},
	TypeTicketCreate:         {TopicSupportTickets, "ticket_id", func() Payload { return &TicketOpened{} }},
	TypeTicketUpdate:         {TopicSupportTickets, "ticket_id", func() Payload { return &TicketStatusChanged{} }},
	TypeTicketMessage:        {TopicTicketMessages, "ticket_id", func() Payload { return &TicketMessagePosted{} }},
}

// Lookup returns the payload constructor registered for t.
func Lookup(t Type) (func() Payload, bool) {
	d, ok := catalogue[t]
	if !ok {
		return nil, false
	}
	return d.factory, true
}

// TopicOf returns the topic events of type t are published to.
func TopicOf(t Type) (string, bool) {
	d, ok := catalogue[t]
	return d.topic, ok
}

// IDField returns the payload field that identifies the aggregate of t.
func IDField(t Type) string {
	return catalogue[t].idField
}

// Types returns every registered event type in lexical order.
func Types() []Type {
	out := make([]Type, 0, len(catalogue))
	for t := range catalogue {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Topics returns every topic in lexical order.
func Topics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range catalogue {
		if _, ok := seen[d.topic]; ok {
			continue
		}
		seen[d.topic] = struct{}{}
		out = append(out, d.topic)
	}
	sort.Strings(out)
	return out
}
