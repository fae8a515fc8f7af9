package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ShareGrant gives another user read-only visibility of everything the owner
// tracks (properties, payments, repairs, contractors, tenants). The grantee
// is identified by email until they accept, at which point GranteeID is set.
type ShareGrant struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID      primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	GranteeEmail string              `bson:"grantee_email" json:"grantee_email"`
	GranteeID    *primitive.ObjectID `bson:"grantee_id,omitempty" json:"grantee_id,omitempty"`
	Token        string              `bson:"token" json:"-"` // uuid, used in the accept link
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	AcceptedAt   *time.Time          `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	Revoked      bool                `bson:"revoked" json:"revoked"`
}
