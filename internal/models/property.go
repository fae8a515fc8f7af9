package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Property represents a rental unit owned by exactly one account.
// RentAmount is the standalone monthly base rent, independent of any
// carried-forward balance.
type Property struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID           primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Nickname          string             `bson:"nickname" json:"nickname"`
	Address           string             `bson:"address" json:"address"`
	RentAmount        float64            `bson:"rent_amount" json:"rent_amount"`
	UtilityCategories []string           `bson:"utility_categories" json:"utility_categories"` // e.g. "Water", "Electric"
	Archived          bool               `bson:"archived" json:"archived"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted           bool               `bson:"deleted" json:"-"` // Soft delete flag
}
