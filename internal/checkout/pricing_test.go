package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
)

func items(prices ...float64) []models.LineItem {
	out := make([]models.LineItem, 0, len(prices))
	for _, p := range prices {
		out = append(out, models.LineItem{ProductID: "p", Price: p, Quantity: 1})
	}
	return out
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		items    []models.LineItem
		delivery string
		coupon   *models.Coupon
		shipping string
		total    string
		final    string
	}{
		{name: "standard", items: []models.LineItem{{Price: 100, Quantity: 2}}, delivery: models.DeliveryStandard, shipping: "0", total: "200", final: "200"},
		{name: "express at threshold", items: items(500), delivery: models.DeliveryExpress, shipping: "60", total: "560", final: "560"},
		{name: "express above threshold", items: items(500, 0.01), delivery: models.DeliveryExpress, shipping: "0", total: "500.01", final: "500.01"},
		{name: "coupon", items: []models.LineItem{{Price: 100, Quantity: 2}}, delivery: models.DeliveryExpress, coupon: &models.Coupon{Code: "TEN", DiscountPercent: 10}, shipping: "60", total: "260", final: "234"},
		{name: "coupon rounds to cents", items: items(19.99), delivery: models.DeliveryStandard, coupon: &models.Coupon{Code: "X", DiscountPercent: 15}, shipping: "0", total: "19.99", final: "16.99"},
		{name: "float prices add exactly", items: items(0.1, 0.2), delivery: models.DeliveryStandard, shipping: "0", total: "0.3", final: "0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Price(tt.items, tt.delivery, tt.coupon)
			assert.True(t, q.ShippingFee.Equal(decimal.RequireFromString(tt.shipping)), "shipping %s", q.ShippingFee)
			assert.True(t, q.OrderTotal.Equal(decimal.RequireFromString(tt.total)), "total %s", q.OrderTotal)
			assert.True(t, q.FinalTotal.Equal(decimal.RequireFromString(tt.final)), "final %s", q.FinalTotal)
		})
	}
}

func TestInstallments(t *testing.T) {
	q := Price(items(100), models.DeliveryStandard, nil)

	parts := q.Installments(3)
	require.Len(t, parts, 3)
	assert.Equal(t, "33.33", parts[0].StringFixed(2))
	assert.Equal(t, "33.34", parts[2].StringFixed(2))
	assert.True(t, decimal.Sum(parts[0], parts[1:]...).Equal(q.FinalTotal))

	p := q.Purchase(items(100), 3)
	assert.Equal(t, []float64{33.33, 33.33, 33.34}, p.Installments)
	assert.Nil(t, q.Purchase(items(100), 1).Installments)
}

func TestValidateOrder(t *testing.T) {
	line := []models.CartLine{{Product: models.ProductSnapshot{ID: "p1", Price: 10, Stock: 3}, Quantity: 1}}

	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
		code   string
	}{
		{name: "empty cart", mutate: func(r *Request) { r.Lines = nil }, field: "cart", code: CodeEmpty},
		{name: "name", mutate: func(r *Request) { r.Contact.Name = "  " }, field: "name", code: CodeRequired},
		{name: "phone missing", mutate: func(r *Request) { r.Contact.Phone = "" }, field: "phone", code: CodeRequired},
		{name: "phone short", mutate: func(r *Request) { r.Contact.Phone = "12345678" }, field: "phone", code: CodeInvalid},
		{name: "phone letters", mutate: func(r *Request) { r.Contact.Phone = "05012345ab" }, field: "phone", code: CodeInvalid},
		{name: "email", mutate: func(r *Request) { r.Contact.Email = "ada@" }, field: "email", code: CodeInvalid},
		{name: "street", mutate: func(r *Request) { r.Shipping.Street = "" }, field: "street", code: CodeRequired},
		{name: "house", mutate: func(r *Request) { r.Shipping.House = "" }, field: "house", code: CodeRequired},
		{name: "city", mutate: func(r *Request) { r.Shipping.City = "" }, field: "city", code: CodeRequired},
		{name: "delivery", mutate: func(r *Request) { r.Shipping.Delivery = "" }, field: "delivery", code: CodeRequired},
		{name: "delivery unknown", mutate: func(r *Request) { r.Shipping.Delivery = "Drone" }, field: "delivery", code: CodeInvalid},
		{name: "cardholder", mutate: func(r *Request) { r.Card.CardholderName = "" }, field: "cardholderName", code: CodeRequired},
		{name: "card ungrouped", mutate: func(r *Request) { r.Card.Number = "4580123456789012" }, field: "cardNumber", code: CodeInvalid},
		{name: "card short", mutate: func(r *Request) { r.Card.Number = "4580 1234 5678 901" }, field: "cardNumber", code: CodeInvalid},
		{name: "expiration month", mutate: func(r *Request) { r.Card.Expiration = "13/29" }, field: "expiration", code: CodeInvalid},
		{name: "expiration zero month", mutate: func(r *Request) { r.Card.Expiration = "00/29" }, field: "expiration", code: CodeInvalid},
		{name: "cvc", mutate: func(r *Request) { r.Card.CVC = "12a" }, field: "cvc", code: CodeInvalid},
		{name: "unconfirmed", mutate: func(r *Request) { r.Confirmed = false }, field: "confirmed", code: CodeUnconfirmed},
		{name: "installments", mutate: func(r *Request) { r.Installments = 13 }, field: "installments", code: CodeInvalid},
		{
			name: "first failure wins",
			mutate: func(r *Request) {
				r.Contact.Email = ""
				r.Card.CVC = ""
				r.Confirmed = false
			},
			field: "email",
			code:  CodeRequired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(line)
			tt.mutate(&req)

			var ve *errs.ValidationError
			require.ErrorAs(t, Validate(req), &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.code, ve.Code)
		})
	}

	assert.NoError(t, Validate(validRequest(line)))
}
