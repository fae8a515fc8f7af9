package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dlnapm/pmpr/internal/config"
	"dlnapm/pmpr/internal/db"
	"dlnapm/pmpr/internal/ledger"
	"dlnapm/pmpr/internal/models"
)

// ErrDuplicateMonth is returned when a second payment record is recorded for
// the same property and calendar month.
var ErrDuplicateMonth = errors.New("a payment record already exists for this month")

// PaymentInput carries the user-supplied amounts for a create or update.
// RentBill is optional on create: when nil the bill is derived from the
// property's base rent plus the carried balance of the nearest earlier record.
type PaymentInput struct {
	RentBill  *float64
	RentPaid  float64
	Utilities []models.UtilityLine
	Note      string
}

// IPaymentService defines the interface for payment ledger operations.
//
// Every mutation re-reads the post-mutation record set for the property and
// applies the carry-forward recalculation, so the record following the
// changed month always reflects the correct bill.
type IPaymentService interface {
	CreatePayment(ctx context.Context, ownerID, propertyID primitive.ObjectID, year, month int, input PaymentInput) (*models.PaymentRecord, error)
	UpdatePayment(ctx context.Context, paymentID, ownerID primitive.ObjectID, input PaymentInput) (*models.PaymentRecord, error)
	DeletePayment(ctx context.Context, paymentID, ownerID primitive.ObjectID) error
	FindPaymentByID(ctx context.Context, paymentID primitive.ObjectID) (*models.PaymentRecord, error)
	ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.PaymentRecord, error)
}

const paymentsCollection = "payments"

// paymentService implements IPaymentService.
type paymentService struct {
	db              *mongo.Database
	cfg             *config.Config
	propertyService IPropertyService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(db *mongo.Database, cfg *config.Config, propertyService IPropertyService) IPaymentService {
	return &paymentService{db: db, cfg: cfg, propertyService: propertyService}
}

// loadPaymentsForProperty fetches all payment records for one property.
// Shared with the property service's health score computation.
func loadPaymentsForProperty(ctx context.Context, database *mongo.Database, propertyID primitive.ObjectID) ([]models.PaymentRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}})
	cursor, err := database.Collection(paymentsCollection).Find(ctx, bson.M{"property_id": propertyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error loading payments for property %s: %w", propertyID.Hex(), err)
	}
	defer cursor.Close(ctx)

	records := []models.PaymentRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding payments for property %s: %w", propertyID.Hex(), err)
	}
	return records, nil
}

// CreatePayment records a payment for a calendar month. The rent bill, unless
// supplied explicitly, is the property's base rent plus the unpaid remainder
// of the nearest earlier record. The unique (property, year, month) index
// rejects a second record for the same month.
func (s *paymentService) CreatePayment(ctx context.Context, ownerID, propertyID primitive.ObjectID, year, month int, input PaymentInput) (*models.PaymentRecord, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	property, err := s.propertyService.FindPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	existing, err := loadPaymentsForProperty(ctx, s.db, propertyID)
	if err != nil {
		return nil, err
	}

	key := ledger.RecordKey{Year: year, Month: month}
	bill := ledger.InitialBill(key, existing, property.RentAmount)
	if input.RentBill != nil {
		bill = *input.RentBill
	}

	now := time.Now().UTC()
	if input.Utilities == nil {
		input.Utilities = []models.UtilityLine{}
	}
	record := &models.PaymentRecord{
		ID:         primitive.NewObjectID(),
		PropertyID: propertyID,
		OwnerID:    ownerID,
		Year:       year,
		Month:      month,
		RentBill:   bill,
		RentPaid:   input.RentPaid,
		Utilities:  input.Utilities,
		Note:       input.Note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = db.Try(func() error {
		_, insertErr := s.db.Collection(paymentsCollection).InsertOne(ctx, record)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateMonth
		}
		return nil, fmt.Errorf("failed to insert payment for property %s %d-%02d: %w", propertyID.Hex(), year, month, err)
	}

	if err := s.recalculateFollowing(ctx, property, key, false); err != nil {
		return nil, err
	}
	return record, nil
}

// UpdatePayment replaces the mutable amounts of an existing record and
// propagates the change to the following record.
func (s *paymentService) UpdatePayment(ctx context.Context, paymentID, ownerID primitive.ObjectID, input PaymentInput) (*models.PaymentRecord, error) {
	record, err := s.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	setFields := bson.M{
		"rent_paid":  input.RentPaid,
		"note":       input.Note,
		"updated_at": time.Now().UTC(),
	}
	if input.RentBill != nil {
		setFields["rent_bill"] = *input.RentBill
	}
	if input.Utilities != nil {
		setFields["utilities"] = input.Utilities
	}

	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)
	var updated models.PaymentRecord
	err = s.db.Collection(paymentsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": paymentID}, bson.M{"$set": setFields}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating payment %s: %w", paymentID.Hex(), err)
	}

	property, err := s.propertyService.FindPropertyByID(ctx, updated.PropertyID)
	if err != nil {
		// Orphaned record: leave the following month alone. The bill is a
		// derived field and will be recomputed on the next touch.
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &updated, nil
		}
		return nil, err
	}
	key := ledger.RecordKey{Year: updated.Year, Month: updated.Month}
	if err := s.recalculateFollowing(ctx, property, key, false); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePayment removes a record and recomputes the following record against
// the new nearest predecessor.
func (s *paymentService) DeletePayment(ctx context.Context, paymentID, ownerID primitive.ObjectID) error {
	record, err := s.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if record.OwnerID != ownerID {
		return ErrNotOwner
	}

	res, err := s.db.Collection(paymentsCollection).DeleteOne(ctx, bson.M{"_id": paymentID})
	if err != nil {
		return fmt.Errorf("error deleting payment %s: %w", paymentID.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	property, err := s.propertyService.FindPropertyByID(ctx, record.PropertyID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil // nothing left to adjust against
		}
		return err
	}
	key := ledger.RecordKey{Year: record.Year, Month: record.Month}
	return s.recalculateFollowing(ctx, property, key, true)
}

// recalculateFollowing re-reads the post-mutation record set and persists the
// single bill adjustment the ledger engine requests, if any.
func (s *paymentService) recalculateFollowing(ctx context.Context, property *models.Property, changed ledger.RecordKey, isDeletion bool) error {
	records, err := loadPaymentsForProperty(ctx, s.db, property.ID)
	if err != nil {
		return err
	}

	adj, ok := ledger.RecalculateFollowingRecord(changed, records, property.RentAmount, isDeletion)
	if !ok {
		return nil
	}

	update := bson.M{"$set": bson.M{"rent_bill": adj.NewRentBill, "updated_at": time.Now().UTC()}}
	_, err = s.db.Collection(paymentsCollection).UpdateOne(ctx, bson.M{"_id": adj.RecordID}, update)
	if err != nil {
		return fmt.Errorf("failed to persist carried balance on record %s: %w", adj.RecordID.Hex(), err)
	}
	return nil
}

// FindPaymentByID finds a payment record by ID.
func (s *paymentService) FindPaymentByID(ctx context.Context, paymentID primitive.ObjectID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := s.db.Collection(paymentsCollection).FindOne(ctx, bson.M{"_id": paymentID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding payment by ID %s: %w", paymentID.Hex(), err)
	}
	return &record, nil
}

// ListByProperty returns the property's records sorted ascending by (year, month).
func (s *paymentService) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.PaymentRecord, error) {
	return loadPaymentsForProperty(ctx, s.db, propertyID)
}
