package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tenant represents an occupant of a property.
type Tenant struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID primitive.ObjectID `bson:"property_id" json:"property_id"`
	OwnerID    primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Name       string             `bson:"name" json:"name"`
	Email      string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	MovedInAt  time.Time          `bson:"moved_in_at" json:"moved_in_at"`
	MovedOutAt *time.Time         `bson:"moved_out_at,omitempty" json:"moved_out_at,omitempty"`
	Active     bool               `bson:"active" json:"active"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted    bool               `bson:"deleted" json:"-"`
}
