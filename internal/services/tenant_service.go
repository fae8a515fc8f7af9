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

// ITenantService defines the interface for tenant operations.
type ITenantService interface {
	CreateTenant(ctx context.Context, ownerID, propertyID primitive.ObjectID, name, email, phone string, movedInAt time.Time) (*models.Tenant, error)
	FindTenantByID(ctx context.Context, tenantID primitive.ObjectID) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Tenant, error)
	MoveOut(ctx context.Context, tenantID, ownerID primitive.ObjectID, movedOutAt time.Time) error
	DeleteTenant(ctx context.Context, tenantID, ownerID primitive.ObjectID) error
	ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Tenant, error)
}

const tenantsCollection = "tenants"

type tenantService struct {
	db *mongo.Database
}

// NewTenantService creates a new TenantService.
func NewTenantService(db *mongo.Database) ITenantService {
	return &tenantService{db: db}
}

func (s *tenantService) CreateTenant(ctx context.Context, ownerID, propertyID primitive.ObjectID, name, email, phone string, movedInAt time.Time) (*models.Tenant, error) {
	now := time.Now().UTC()
	tenant := &models.Tenant{
		ID:         primitive.NewObjectID(),
		PropertyID: propertyID,
		OwnerID:    ownerID,
		Name:       name,
		Email:      email,
		Phone:      phone,
		MovedInAt:  movedInAt,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.Collection(tenantsCollection).InsertOne(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to insert tenant for property %s: %w", propertyID.Hex(), err)
	}
	return tenant, nil
}

func (s *tenantService) FindTenantByID(ctx context.Context, tenantID primitive.ObjectID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.Collection(tenantsCollection).
		FindOne(ctx, bson.M{"_id": tenantID, "deleted": false}).
		Decode(&tenant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding tenant by ID %s: %w", tenantID.Hex(), err)
	}
	return &tenant, nil
}

var tenantUpdatableFields = map[string]bool{
	"name":  true,
	"email": true,
	"phone": true,
}

func (s *tenantService) UpdateTenant(ctx context.Context, tenantID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Tenant, error) {
	setFields := bson.M{}
	for k, v := range updates {
		if tenantUpdatableFields[k] {
			setFields[k] = v
		}
	}
	if len(setFields) == 0 {
		return s.FindTenantByID(ctx, tenantID)
	}
	setFields["updated_at"] = time.Now().UTC()

	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)
	var updated models.Tenant
	err := s.db.Collection(tenantsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": tenantID, "owner_id": ownerID, "deleted": false}, bson.M{"$set": setFields}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating tenant %s: %w", tenantID.Hex(), err)
	}
	return &updated, nil
}

// MoveOut stamps the move-out date and deactivates the tenant.
func (s *tenantService) MoveOut(ctx context.Context, tenantID, ownerID primitive.ObjectID, movedOutAt time.Time) error {
	res, err := s.db.Collection(tenantsCollection).UpdateOne(ctx,
		bson.M{"_id": tenantID, "owner_id": ownerID, "deleted": false},
		bson.M{"$set": bson.M{"moved_out_at": movedOutAt, "active": false, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("error moving out tenant %s: %w", tenantID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *tenantService) DeleteTenant(ctx context.Context, tenantID, ownerID primitive.ObjectID) error {
	res, err := s.db.Collection(tenantsCollection).UpdateOne(ctx,
		bson.M{"_id": tenantID, "owner_id": ownerID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("error deleting tenant %s: %w", tenantID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *tenantService) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Tenant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "moved_in_at", Value: -1}})
	cursor, err := s.db.Collection(tenantsCollection).Find(ctx, bson.M{"property_id": propertyID, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing tenants for property %s: %w", propertyID.Hex(), err)
	}
	defer cursor.Close(ctx)

	tenants := []models.Tenant{}
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, fmt.Errorf("error decoding tenants for property %s: %w", propertyID.Hex(), err)
	}
	return tenants, nil
}
