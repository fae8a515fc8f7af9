package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RepairStatus enumerates the lifecycle states of a repair request.
// Membership is the only semantics; the states are not ordered.
type RepairStatus string

const (
	RepairStatusPendingLabor  RepairStatus = "pending-labor"
	RepairStatusPendingSupply RepairStatus = "pending-supply"
	RepairStatusInProgress    RepairStatus = "in-progress"
	RepairStatusComplete      RepairStatus = "complete"
)

// ValidRepairStatus reports whether s is one of the known statuses.
func ValidRepairStatus(s RepairStatus) bool {
	switch s {
	case RepairStatusPendingLabor, RepairStatusPendingSupply, RepairStatusInProgress, RepairStatusComplete:
		return true
	}
	return false
}

// Repair represents a repair request against a property. Open repairs
// (anything not complete) count against the property's health score.
type Repair struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID   primitive.ObjectID  `bson:"property_id" json:"property_id"`
	OwnerID      primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	ContractorID *primitive.ObjectID `bson:"contractor_id,omitempty" json:"contractor_id,omitempty"`
	Description  string              `bson:"description" json:"description"`
	Status       RepairStatus        `bson:"status" json:"status"`
	Cost         float64             `bson:"cost" json:"cost"`
	RequestedAt  time.Time           `bson:"requested_at" json:"requested_at"`
	CompletedAt  *time.Time          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Deleted      bool                `bson:"deleted" json:"-"`
}

// Open reports whether the repair still counts against the health score.
func (r *Repair) Open() bool {
	return r.Status != RepairStatusComplete
}
