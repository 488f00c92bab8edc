package models

// User is the customer record. Orders is a denormalized mirror of the orders
// collection filtered by user and is never read as the source of truth.
type User struct {
	ID          string     `json:"id" bson:"_id"`
	DisplayName string     `json:"displayName" bson:"displayName"`
	Email       string     `json:"email,omitempty" bson:"email,omitempty"`
	Cart        []CartLine `json:"cart" bson:"cart"`
	Orders      []Order    `json:"orders" bson:"orders"`
}
