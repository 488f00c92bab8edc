package models

import "time"

// Product is a catalog entry. Stock is owned by the stock ledger once the
// product exists.
type Product struct {
	ID          string    `json:"id" bson:"_id"`
	Brand       string    `json:"brand" bson:"brand" binding:"required"`
	Model       string    `json:"model" bson:"model" binding:"required"`
	Category    string    `json:"category" bson:"category"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Price       float64   `json:"price" bson:"price" binding:"gte=0"`
	Stock       int       `json:"stock" bson:"stock" binding:"gte=0"`
	Images      []string  `json:"images,omitempty" bson:"images,omitempty"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	IsDeleted   bool      `json:"-" bson:"isDeleted"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Snapshot captures the fields a cart line keeps from the product at add time.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:    p.ID,
		Brand: p.Brand,
		Model: p.Model,
		Price: p.Price,
		Stock: p.Stock,
	}
}
