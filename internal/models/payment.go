package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UtilityLine is one tracked utility category within a monthly payment record.
// Utility shortfalls are NOT carried forward month to month; only rent is.
type UtilityLine struct {
	Category string  `bson:"category" json:"category"`
	Bill     float64 `bson:"bill" json:"bill"`
	Paid     float64 `bson:"paid" json:"paid"`
}

// PaymentRecord holds one calendar month of rent and utility amounts for a
// property. At most one record exists per (property, year, month); the
// payments collection carries a unique index enforcing this.
//
// RentBill is base rent plus any balance carried forward from the nearest
// earlier record. It is mutable after creation: editing or deleting an
// earlier month causes the ledger engine to rewrite it.
type PaymentRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID primitive.ObjectID `bson:"property_id" json:"property_id"`
	OwnerID    primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Year       int                `bson:"year" json:"year"`
	Month      int                `bson:"month" json:"month"` // 1-12
	RentBill   float64            `bson:"rent_bill" json:"rent_bill"`
	RentPaid   float64            `bson:"rent_paid" json:"rent_paid"`
	Utilities  []UtilityLine      `bson:"utilities" json:"utilities"`
	Note       string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// Shortfall returns the unpaid rent remainder for the record, clamped at
// zero. Overpayment is not carried as a credit.
func (p *PaymentRecord) Shortfall() float64 {
	if d := p.RentBill - p.RentPaid; d > 0 {
		return d
	}
	return 0
}
