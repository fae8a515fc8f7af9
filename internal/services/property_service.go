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
	"dlnapm/pmpr/internal/ledger"
	"dlnapm/pmpr/internal/models"
)

// ErrNotOwner is returned when a user attempts to mutate a record they do not own.
var ErrNotOwner = errors.New("record does not belong to this user")

// IPropertyService defines the interface for property-related operations.
type IPropertyService interface {
	CreateProperty(ctx context.Context, ownerID primitive.ObjectID, nickname, address string, rentAmount float64, utilityCategories []string) (*models.Property, error)
	FindPropertyByID(ctx context.Context, propertyID primitive.ObjectID) (*models.Property, error)
	UpdateProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Property, error)
	ArchiveProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID) error
	DeleteProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID) error
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Property, error)
	HealthScore(ctx context.Context, propertyID primitive.ObjectID) (int, error)
}

const propertiesCollection = "properties"

// propertyService implements IPropertyService.
type propertyService struct {
	db  *mongo.Database
	cfg *config.Config
	now func() time.Time // injected clock for health scoring
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(db *mongo.Database, cfg *config.Config) IPropertyService {
	return &propertyService{db: db, cfg: cfg, now: time.Now}
}

// CreateProperty creates a new property document.
func (s *propertyService) CreateProperty(ctx context.Context, ownerID primitive.ObjectID, nickname, address string, rentAmount float64, utilityCategories []string) (*models.Property, error) {
	collection := s.db.Collection(propertiesCollection)
	now := time.Now().UTC()

	if utilityCategories == nil {
		utilityCategories = []string{}
	}
	property := &models.Property{
		ID:                primitive.NewObjectID(),
		OwnerID:           ownerID,
		Nickname:          nickname,
		Address:           address,
		RentAmount:        rentAmount,
		UtilityCategories: utilityCategories,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := collection.InsertOne(ctx, property); err != nil {
		return nil, fmt.Errorf("failed to insert property for owner %s: %w", ownerID.Hex(), err)
	}
	return property, nil
}

// FindPropertyByID finds a non-deleted property by its ID.
// It does NOT check ownership; callers decide visibility.
func (s *propertyService) FindPropertyByID(ctx context.Context, propertyID primitive.ObjectID) (*models.Property, error) {
	var property models.Property
	collection := s.db.Collection(propertiesCollection)
	filter := bson.M{"_id": propertyID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding property by ID %s: %w", propertyID.Hex(), err)
	}
	return &property, nil
}

// allowed update fields for UpdateProperty
var propertyUpdatableFields = map[string]bool{
	"nickname":           true,
	"address":            true,
	"rent_amount":        true,
	"utility_categories": true,
}

// UpdateProperty applies the given field updates after verifying ownership.
// Changing rent_amount affects only bills computed after the change; existing
// records keep their bills until the ledger engine touches them.
func (s *propertyService) UpdateProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Property, error) {
	setFields := bson.M{}
	for k, v := range updates {
		if propertyUpdatableFields[k] {
			setFields[k] = v
		}
	}
	if len(setFields) == 0 {
		return s.FindPropertyByID(ctx, propertyID)
	}
	setFields["updated_at"] = time.Now().UTC()

	collection := s.db.Collection(propertiesCollection)
	filter := bson.M{"_id": propertyID, "owner_id": ownerID, "deleted": false}
	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)

	var updated models.Property
	err := collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": setFields}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating property %s: %w", propertyID.Hex(), err)
	}
	return &updated, nil
}

// ArchiveProperty marks a property archived (kept visible, excluded from
// active dashboards).
func (s *propertyService) ArchiveProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID) error {
	return s.setFlag(ctx, propertyID, ownerID, "archived", true)
}

// DeleteProperty soft-deletes a property.
func (s *propertyService) DeleteProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID) error {
	return s.setFlag(ctx, propertyID, ownerID, "deleted", true)
}

func (s *propertyService) setFlag(ctx context.Context, propertyID, ownerID primitive.ObjectID, field string, value bool) error {
	collection := s.db.Collection(propertiesCollection)
	filter := bson.M{"_id": propertyID, "owner_id": ownerID, "deleted": false}
	update := bson.M{"$set": bson.M{field: value, "updated_at": time.Now().UTC()}}
	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error setting %s on property %s: %w", field, propertyID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByOwner returns all non-deleted properties owned by a user.
func (s *propertyService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Property, error) {
	collection := s.db.Collection(propertiesCollection)
	filter := bson.M{"owner_id": ownerID, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing properties for owner %s: %w", ownerID.Hex(), err)
	}
	defer cursor.Close(ctx)

	properties := []models.Property{}
	if err := cursor.All(ctx, &properties); err != nil {
		return nil, fmt.Errorf("error decoding properties for owner %s: %w", ownerID.Hex(), err)
	}
	return properties, nil
}

// HealthScore loads the property's payment and repair history and computes
// the 0-100 health score heuristic.
func (s *propertyService) HealthScore(ctx context.Context, propertyID primitive.ObjectID) (int, error) {
	payments, err := loadPaymentsForProperty(ctx, s.db, propertyID)
	if err != nil {
		return 0, err
	}

	repairCursor, err := s.db.Collection(repairsCollection).Find(ctx, bson.M{"property_id": propertyID, "deleted": false})
	if err != nil {
		return 0, fmt.Errorf("error loading repairs for property %s: %w", propertyID.Hex(), err)
	}
	defer repairCursor.Close(ctx)
	repairs := []models.Repair{}
	if err := repairCursor.All(ctx, &repairs); err != nil {
		return 0, fmt.Errorf("error decoding repairs for property %s: %w", propertyID.Hex(), err)
	}

	return ledger.ComputeHealthScore(payments, repairs, s.now()), nil
}
