package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contractor is a tradesperson a landlord assigns to repairs.
type Contractor struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID   primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Name      string             `bson:"name" json:"name"`
	Trade     string             `bson:"trade" json:"trade"` // e.g. "plumbing", "electrical"
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted   bool               `bson:"deleted" json:"-"`
}
