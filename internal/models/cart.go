package models

// ProductSnapshot is the product as seen when it was put in the cart.
type ProductSnapshot struct {
	ID    string  `json:"id" bson:"id"`
	Brand string  `json:"brand" bson:"brand"`
	Model string  `json:"model" bson:"model"`
	Price float64 `json:"price" bson:"price"`
	Stock int     `json:"stock" bson:"stock"`
}

// CartLine is one pending line item of a user's cart.
type CartLine struct {
	Product  ProductSnapshot `json:"product" bson:"product"`
	Quantity int             `json:"quantity" bson:"quantity"`
}

// LineItem converts the cart line into the order line it becomes at checkout.
func (l CartLine) LineItem() LineItem {
	return LineItem{
		ProductID: l.Product.ID,
		Brand:     l.Product.Brand,
		Model:     l.Product.Model,
		Price:     l.Product.Price,
		Quantity:  l.Quantity,
	}
}

// CloneLines returns a copy of lines that shares no backing array.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
