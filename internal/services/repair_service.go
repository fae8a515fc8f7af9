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

	"dlnapm/pmpr/internal/models"
)

// ErrInvalidStatus is returned when a repair status outside the known set is supplied.
var ErrInvalidStatus = errors.New("invalid repair status")

// IRepairService defines the interface for repair request operations.
type IRepairService interface {
	CreateRepair(ctx context.Context, ownerID, propertyID primitive.ObjectID, description string, cost float64, contractorID *primitive.ObjectID) (*models.Repair, error)
	FindRepairByID(ctx context.Context, repairID primitive.ObjectID) (*models.Repair, error)
	UpdateStatus(ctx context.Context, repairID, ownerID primitive.ObjectID, status models.RepairStatus) (*models.Repair, error)
	UpdateRepair(ctx context.Context, repairID, ownerID primitive.ObjectID, description *string, cost *float64, contractorID *primitive.ObjectID) (*models.Repair, error)
	DeleteRepair(ctx context.Context, repairID, ownerID primitive.ObjectID) error
	ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Repair, error)
}

const repairsCollection = "repairs"

// repairService implements IRepairService.
type repairService struct {
	db *mongo.Database
}

// NewRepairService creates a new RepairService.
func NewRepairService(db *mongo.Database) IRepairService {
	return &repairService{db: db}
}

// CreateRepair records a new repair request in pending-labor state.
func (s *repairService) CreateRepair(ctx context.Context, ownerID, propertyID primitive.ObjectID, description string, cost float64, contractorID *primitive.ObjectID) (*models.Repair, error) {
	now := time.Now().UTC()
	repair := &models.Repair{
		ID:           primitive.NewObjectID(),
		PropertyID:   propertyID,
		OwnerID:      ownerID,
		ContractorID: contractorID,
		Description:  description,
		Status:       models.RepairStatusPendingLabor,
		Cost:         cost,
		RequestedAt:  now,
	}
	if _, err := s.db.Collection(repairsCollection).InsertOne(ctx, repair); err != nil {
		return nil, fmt.Errorf("failed to insert repair for property %s: %w", propertyID.Hex(), err)
	}
	return repair, nil
}

// FindRepairByID finds a non-deleted repair by ID.
func (s *repairService) FindRepairByID(ctx context.Context, repairID primitive.ObjectID) (*models.Repair, error) {
	var repair models.Repair
	err := s.db.Collection(repairsCollection).
		FindOne(ctx, bson.M{"_id": repairID, "deleted": false}).
		Decode(&repair)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding repair by ID %s: %w", repairID.Hex(), err)
	}
	return &repair, nil
}

// UpdateStatus moves a repair to another status. Completing a repair stamps
// CompletedAt; reopening clears it.
func (s *repairService) UpdateStatus(ctx context.Context, repairID, ownerID primitive.ObjectID, status models.RepairStatus) (*models.Repair, error) {
	if !models.ValidRepairStatus(status) {
		return nil, ErrInvalidStatus
	}

	setFields := bson.M{"status": status}
	var unsetFields bson.M
	if status == models.RepairStatusComplete {
		setFields["completed_at"] = time.Now().UTC()
	} else {
		unsetFields = bson.M{"completed_at": ""}
	}

	update := bson.M{"$set": setFields}
	if unsetFields != nil {
		update["$unset"] = unsetFields
	}

	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)
	var updated models.Repair
	err := s.db.Collection(repairsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": repairID, "owner_id": ownerID, "deleted": false}, update, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating repair status %s: %w", repairID.Hex(), err)
	}
	return &updated, nil
}

// UpdateRepair updates the mutable fields of a repair.
func (s *repairService) UpdateRepair(ctx context.Context, repairID, ownerID primitive.ObjectID, description *string, cost *float64, contractorID *primitive.ObjectID) (*models.Repair, error) {
	setFields := bson.M{}
	if description != nil {
		setFields["description"] = *description
	}
	if cost != nil {
		setFields["cost"] = *cost
	}
	if contractorID != nil {
		setFields["contractor_id"] = *contractorID
	}
	if len(setFields) == 0 {
		return s.FindRepairByID(ctx, repairID)
	}

	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)
	var updated models.Repair
	err := s.db.Collection(repairsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": repairID, "owner_id": ownerID, "deleted": false}, bson.M{"$set": setFields}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating repair %s: %w", repairID.Hex(), err)
	}
	return &updated, nil
}

// DeleteRepair soft-deletes a repair.
func (s *repairService) DeleteRepair(ctx context.Context, repairID, ownerID primitive.ObjectID) error {
	res, err := s.db.Collection(repairsCollection).UpdateOne(ctx,
		bson.M{"_id": repairID, "owner_id": ownerID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("error deleting repair %s: %w", repairID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByProperty returns all non-deleted repairs for a property, newest first.
func (s *repairService) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Repair, error) {
	opts := options.Find().SetSort(bson.D{{Key: "requested_at", Value: -1}})
	cursor, err := s.db.Collection(repairsCollection).Find(ctx, bson.M{"property_id": propertyID, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing repairs for property %s: %w", propertyID.Hex(), err)
	}
	defer cursor.Close(ctx)

	repairs := []models.Repair{}
	if err := cursor.All(ctx, &repairs); err != nil {
		return nil, fmt.Errorf("error decoding repairs for property %s: %w", propertyID.Hex(), err)
	}
	return repairs, nil
}
