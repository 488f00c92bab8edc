package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusConfirmed  OrderStatus = "Confirmed"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusCompleted  OrderStatus = "Completed"
	StatusCanceled   OrderStatus = "Canceled"
	StatusRefunded   OrderStatus = "Refunded"
)

// Terminal reports whether no transition leaves the status.
func (s OrderStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusRefunded
}

// Delivery options offered at checkout.
const (
	DeliveryStandard = "Standard"
	DeliveryExpress  = "Express"
)

// LineItem is one purchased product inside an order.
type LineItem struct {
	ProductID string  `json:"productId" bson:"productId"`
	Brand     string  `json:"brand" bson:"brand"`
	Model     string  `json:"model" bson:"model"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

// Discount records the coupon applied to a purchase.
type Discount struct {
	Code    string  `json:"code" bson:"code"`
	Percent float64 `json:"percent" bson:"percent"`
}

// Purchase is the priced snapshot of the cart taken at checkout.
type Purchase struct {
	Items           []LineItem `json:"items" bson:"items"`
	ProductsPrice   float64    `json:"productsPrice" bson:"productsPrice"`
	ShippingPrice   float64    `json:"shippingPrice" bson:"shippingPrice"`
	TotalPrice      float64    `json:"totalPrice" bson:"totalPrice"`
	Discount        *Discount  `json:"discount,omitempty" bson:"discount,omitempty"`
	DiscountedPrice *float64   `json:"discountedPrice,omitempty" bson:"discountedPrice,omitempty"`
	Installments    []float64  `json:"installments,omitempty" bson:"installments,omitempty"`
	Date            time.Time  `json:"date" bson:"date"`
}

// FinalPrice is the amount charged: the discounted price when a coupon was
// applied, the total otherwise.
func (p Purchase) FinalPrice() float64 {
	if p.DiscountedPrice != nil {
		return *p.DiscountedPrice
	}
	return p.TotalPrice
}

// Customer holds the contact details entered at checkout.
type Customer struct {
	UserID      string `json:"userId" bson:"userId"`
	DisplayName string `json:"displayName" bson:"displayName"`
	Name        string `json:"name" bson:"name"`
	Phone       string `json:"phone" bson:"phone"`
	Email       string `json:"email" bson:"email"`
}

// Shipping holds the delivery address and option.
type Shipping struct {
	Street   string `json:"street" bson:"street"`
	House    string `json:"house" bson:"house"`
	City     string `json:"city" bson:"city"`
	Zip      string `json:"zip,omitempty" bson:"zip,omitempty"`
	Notes    string `json:"notes,omitempty" bson:"notes,omitempty"`
	Delivery string `json:"delivery" bson:"delivery"`
}

// Payment is display-only card data. The number is stored masked and the CVC
// is never stored.
type Payment struct {
	CardholderName string `json:"cardholderName" bson:"cardholderName"`
	CardNumber     string `json:"cardNumber" bson:"cardNumber"`
	Expiration     string `json:"expiration" bson:"expiration"`
}

// Order is the authoritative order document.
type Order struct {
	ID          string      `json:"id" bson:"_id"`
	OrderNumber int64       `json:"orderNumber" bson:"orderNumber"`
	UserID      string      `json:"userId" bson:"userId"`
	Status      OrderStatus `json:"status" bson:"status"`
	Purchase    Purchase    `json:"purchase" bson:"purchase"`
	Customer    Customer    `json:"customer" bson:"customer"`
	Shipping    Shipping    `json:"shipping" bson:"shipping"`
	Payment     Payment     `json:"payment" bson:"payment"`
	Saga        *SagaState  `json:"saga,omitempty" bson:"saga,omitempty"`
	Reversal    *SagaState  `json:"reversal,omitempty" bson:"reversal,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	out := o
	out.Purchase.Items = append([]LineItem(nil), o.Purchase.Items...)
	out.Purchase.Installments = append([]float64(nil), o.Purchase.Installments...)
	if o.Purchase.Discount != nil {
		d := *o.Purchase.Discount
		out.Purchase.Discount = &d
	}
	if o.Purchase.DiscountedPrice != nil {
		v := *o.Purchase.DiscountedPrice
		out.Purchase.DiscountedPrice = &v
	}
	if o.Saga != nil {
		s := o.Saga.Clone()
		out.Saga = &s
	}
	if o.Reversal != nil {
		r := o.Reversal.Clone()
		out.Reversal = &r
	}
	return out
}

// OrderDetails are the fields an admin or owner may correct after checkout.
// Nil fields are left untouched.
type OrderDetails struct {
	OrderNumber *int64    `json:"orderNumber,omitempty"`
	Customer    *Customer `json:"customer,omitempty"`
	Shipping    *Shipping `json:"shipping,omitempty"`
}
