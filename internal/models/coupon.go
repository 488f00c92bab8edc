package models

// Coupon is the discount descriptor returned by the coupon lookup.
type Coupon struct {
	Code            string  `json:"code" bson:"_id"`
	DiscountPercent float64 `json:"discountPercent" bson:"discountPercent"`
}
