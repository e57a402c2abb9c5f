package event_test

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
)

var at = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func orderPlaced() event.OrderPlaced {
	item := func(id, product string, qty int, price, discount float64) domain.OrderItem {
		return domain.OrderItem{
			OrderItemID: id, OrderID: "order-1", ProductID: product,
			Quantity: qty, UnitPrice: price, DiscountAmount: discount, CreatedAt: at,
		}
	}
	return event.OrderPlaced{
		Order: domain.Order{
			OrderID: "order-1", UserID: "user-1", CartID: "cart-1", Status: domain.OrderPending,
			Subtotal: 250, TaxAmount: 20, ShippingAmount: 0, DiscountAmount: 25, TotalAmount: 245,
			PaymentMethod: "credit_card", DeliveryMethod: "standard",
			BillingAddressID: "addr-b", ShippingAddressID: "addr-s",
			CreatedAt: at, UpdatedAt: at,
		},
		Items: []domain.OrderItem{
			item("oi-1", "prod-1", 2, 100, 20),
			item("oi-2", "prod-2", 1, 50, 5),
		},
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	ev, err := event.New("5f0c1d1e-0000-4000-8000-000000000001", event.TypeCartUpdate, event.CartStatusChanged{
		CartID: "cart-1", From: domain.CartActive, To: domain.CartConverted, UpdatedAt: at,
	}, at.Add(500*time.Millisecond))
	require.NoError(t, err)

	data, err := event.Marshal(ev)
	require.NoError(t, err)
	golden(t).Assert(t, "cart_update", data)
}

func TestOrderPlacedWireFormat(t *testing.T) {
	ev, err := event.New("5f0c1d1e-0000-4000-8000-000000000002", event.TypeOrderCreate, orderPlaced(), at)
	require.NoError(t, err)

	data, err := event.Marshal(ev)
	require.NoError(t, err)
	golden(t).Assert(t, "order_create", data)
}

func TestNewDerivesTopicAndKey(t *testing.T) {
	local := time.FixedZone("CET", 3600)
	ev, err := event.New("id", event.TypeItemAdd, event.CartItemAdded{CartItem: domain.CartItem{CartItemID: "ci", CartID: "c"}}, at.In(local))
	require.NoError(t, err)
	assert.Equal(t, event.TopicCarts, ev.Topic)
	assert.Equal(t, "c", ev.Key)
	assert.Equal(t, time.UTC, ev.EmittedAt.Location())
}

func TestNewRejectsUnknownTypeAndWrongPayload(t *testing.T) {
	_, err := event.New("id", "order_refund", event.OrderStatusChanged{OrderID: "o"}, at)
	assert.ErrorIs(t, err, event.ErrUnknownType)

	_, err = event.New("id", event.TypeOrderUpdate, event.CartStatusChanged{CartID: "c"}, at)
	assert.ErrorIs(t, err, event.ErrPayloadMismatch)

	_, err = event.New("id", event.TypeOrderUpdate, nil, at)
	assert.ErrorIs(t, err, event.ErrPayloadMismatch)

	_, err = event.New("id", event.TypeOrderUpdate, &event.OrderStatusChanged{OrderID: "o"}, at)
	assert.NoError(t, err)
}

func TestDecodeDispatchesPayload(t *testing.T) {
	ev, err := event.New("e1", event.TypeOrderCreate, orderPlaced(), at)
	require.NoError(t, err)
	data, err := event.Marshal(ev)
	require.NoError(t, err)

	got, err := event.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, event.TopicOrders, got.Topic)
	assert.True(t, got.EmittedAt.Equal(at))

	placed, ok := got.Payload.(*event.OrderPlaced)
	require.True(t, ok, "payload is %T", got.Payload)
	assert.Equal(t, 245.0, placed.TotalAmount)
	require.Len(t, placed.Items, 2)
	assert.Equal(t, 20.0, placed.Items[0].DiscountAmount)

	assert.Equal(t, "order-1", got.Fields["order_id"])
	assert.Equal(t, 245.0, got.Fields["total_amount"])
}

func TestDecodeRejectsBadEnvelopes(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":        `{"event_id":`,
		"missing type":    `{"event_id":"e","payload":{}}`,
		"missing payload": `{"event_id":"e","type":"new_user"}`,
		"bad timestamp":   `{"event_id":"e","type":"new_user","emitted_at":"yesterday","payload":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := event.Decode([]byte(raw))
			assert.ErrorIs(t, err, event.ErrMalformedEnvelope)
		})
	}

	_, err := event.Decode([]byte(`{"event_id":"e","type":"refund","emitted_at":"2024-03-01T10:00:00Z","payload":{}}`))
	assert.ErrorIs(t, err, event.ErrUnknownType)
}

func TestCatalogueIdentityFields(t *testing.T) {
	for _, typ := range event.Types() {
		factory, ok := event.Lookup(typ)
		require.True(t, ok)
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(factory())
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &fields))
		assert.Contains(t, fields, event.IDField(typ), "type %s", typ)

		topic, ok := event.TopicOf(typ)
		require.True(t, ok)
		assert.Contains(t, event.Topics(), topic)
	}
	assert.Len(t, event.Topics(), 12)
}
