package checkout

import (
	"github.com/shopspring/decimal"

	"camera-kingdom/internal/models"
)

var (
	expressFee       = decimal.NewFromInt(60)
	expressThreshold = decimal.NewFromInt(500)
	hundred          = decimal.NewFromInt(100)
)

// Quote is the priced cart.
type Quote struct {
	ProductsTotal decimal.Decimal
	ShippingFee   decimal.Decimal
	OrderTotal    decimal.Decimal
	// FinalTotal equals OrderTotal when no coupon applies.
	FinalTotal decimal.Decimal
	Discount   *models.Discount
}

// Price computes the quote. Express delivery costs 60 up to and including a
// products total of 500 and is free above it; standard delivery is free.
func Price(items []models.LineItem, delivery string, coupon *models.Coupon) Quote {
	products := decimal.Zero
	for _, it := range items {
		products = products.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	shipping := decimal.Zero
	if delivery == models.DeliveryExpress && products.LessThanOrEqual(expressThreshold) {
		shipping = expressFee
	}

	q := Quote{
		ProductsTotal: products,
		ShippingFee:   shipping,
		OrderTotal:    products.Add(shipping),
	}
	q.FinalTotal = q.OrderTotal

	if coupon != nil {
		pct := decimal.NewFromFloat(coupon.DiscountPercent)
		q.FinalTotal = q.OrderTotal.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred))).Round(2)
		q.Discount = &models.Discount{Code: coupon.Code, Percent: coupon.DiscountPercent}
	}
	return q
}

// Purchase turns the quote into the immutable purchase block of an order.
// installments above 1 add the monthly payment schedule.
func (q Quote) Purchase(items []models.LineItem, installments int) models.Purchase {
	p := models.Purchase{
		Items:         items,
		ProductsPrice: q.ProductsTotal.InexactFloat64(),
		ShippingPrice: q.ShippingFee.InexactFloat64(),
		TotalPrice:    q.OrderTotal.InexactFloat64(),
	}
	if q.Discount != nil {
		d := *q.Discount
		final := q.FinalTotal.InexactFloat64()
		p.Discount = &d
		p.DiscountedPrice = &final
	}
	if installments > 1 {
		for _, part := range q.Installments(installments) {
			p.Installments = append(p.Installments, part.InexactFloat64())
		}
	}
	return p
}

// Installments splits the amount to pay into n monthly parts rounded to cents.
// The last part absorbs the rounding remainder so the parts sum to the total.
func (q Quote) Installments(n int) []decimal.Decimal {
	if n < 1 {
		return nil
	}
	part := q.FinalTotal.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	out := make([]decimal.Decimal, n)
	rest := q.FinalTotal
	for i := 0; i < n-1; i++ {
		out[i] = part
		rest = rest.Sub(part)
	}
	out[n-1] = rest
	return out
}
