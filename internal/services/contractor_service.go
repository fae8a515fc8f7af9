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

// IContractorService defines the interface for contractor directory operations.
type IContractorService interface {
	CreateContractor(ctx context.Context, ownerID primitive.ObjectID, name, trade, phone, email, notes string) (*models.Contractor, error)
	FindContractorByID(ctx context.Context, contractorID primitive.ObjectID) (*models.Contractor, error)
	UpdateContractor(ctx context.Context, contractorID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Contractor, error)
	DeleteContractor(ctx context.Context, contractorID, ownerID primitive.ObjectID) error
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contractor, error)
}

const contractorsCollection = "contractors"

type contractorService struct {
	db *mongo.Database
}

// NewContractorService creates a new ContractorService.
func NewContractorService(db *mongo.Database) IContractorService {
	return &contractorService{db: db}
}

func (s *contractorService) CreateContractor(ctx context.Context, ownerID primitive.ObjectID, name, trade, phone, email, notes string) (*models.Contractor, error) {
	now := time.Now().UTC()
	contractor := &models.Contractor{
		ID:        primitive.NewObjectID(),
		OwnerID:   ownerID,
		Name:      name,
		Trade:     trade,
		Phone:     phone,
		Email:     email,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(contractorsCollection).InsertOne(ctx, contractor); err != nil {
		return nil, fmt.Errorf("failed to insert contractor for owner %s: %w", ownerID.Hex(), err)
	}
	return contractor, nil
}

func (s *contractorService) FindContractorByID(ctx context.Context, contractorID primitive.ObjectID) (*models.Contractor, error) {
	var contractor models.Contractor
	err := s.db.Collection(contractorsCollection).
		FindOne(ctx, bson.M{"_id": contractorID, "deleted": false}).
		Decode(&contractor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding contractor by ID %s: %w", contractorID.Hex(), err)
	}
	return &contractor, nil
}

var contractorUpdatableFields = map[string]bool{
	"name":  true,
	"trade": true,
	"phone": true,
	"email": true,
	"notes": true,
}

func (s *contractorService) UpdateContractor(ctx context.Context, contractorID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Contractor, error) {
	setFields := bson.M{}
	for k, v := range updates {
		if contractorUpdatableFields[k] {
			setFields[k] = v
		}
	}
	if len(setFields) == 0 {
		return s.FindContractorByID(ctx, contractorID)
	}
	setFields["updated_at"] = time.Now().UTC()

	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)
	var updated models.Contractor
	err := s.db.Collection(contractorsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": contractorID, "owner_id": ownerID, "deleted": false}, bson.M{"$set": setFields}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating contractor %s: %w", contractorID.Hex(), err)
	}
	return &updated, nil
}

func (s *contractorService) DeleteContractor(ctx context.Context, contractorID, ownerID primitive.ObjectID) error {
	res, err := s.db.Collection(contractorsCollection).UpdateOne(ctx,
		bson.M{"_id": contractorID, "owner_id": ownerID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("error deleting contractor %s: %w", contractorID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *contractorService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contractor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(contractorsCollection).Find(ctx, bson.M{"owner_id": ownerID, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing contractors for owner %s: %w", ownerID.Hex(), err)
	}
	defer cursor.Close(ctx)

	contractors := []models.Contractor{}
	if err := cursor.All(ctx, &contractors); err != nil {
		return nil, fmt.Errorf("error decoding contractors for owner %s: %w", ownerID.Hex(), err)
	}
	return contractors, nil
}
