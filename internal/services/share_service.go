package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/models"
)

// ErrGrantExists is returned when the owner already shares with the grantee.
var ErrGrantExists = errors.New("share grant already exists for this email")

// ErrGrantMismatch is returned when a user tries to accept a grant issued to
// a different email address.
var ErrGrantMismatch = errors.New("share grant was issued to a different email")

// IShareService manages read-only sharing of one account's records with
// other users. A grant covers everything the owner tracks.
type IShareService interface {
	CreateGrant(ctx context.Context, ownerID primitive.ObjectID, granteeEmail string) (*models.ShareGrant, error)
	AcceptGrant(ctx context.Context, token string, grantee *models.User) (*models.ShareGrant, error)
	RevokeGrant(ctx context.Context, grantID, ownerID primitive.ObjectID) error
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.ShareGrant, error)
	ListForGrantee(ctx context.Context, granteeID primitive.ObjectID) ([]models.ShareGrant, error)
	HasVisibility(ctx context.Context, viewerID, ownerID primitive.ObjectID) (bool, error)
}

const shareGrantsCollection = "share_grants"

type shareService struct {
	db *mongo.Database
}

// NewShareService creates a new ShareService.
func NewShareService(db *mongo.Database) IShareService {
	return &shareService{db: db}
}

// CreateGrant issues a new share grant keyed by a uuid token. The token goes
// out in the invitation email; the grant is inert until accepted.
func (s *shareService) CreateGrant(ctx context.Context, ownerID primitive.ObjectID, granteeEmail string) (*models.ShareGrant, error) {
	granteeEmail = strings.ToLower(strings.TrimSpace(granteeEmail))
	collection := s.db.Collection(shareGrantsCollection)

	count, err := collection.CountDocuments(ctx, bson.M{
		"owner_id":      ownerID,
		"grantee_email": granteeEmail,
		"revoked":       false,
	})
	if err != nil {
		return nil, fmt.Errorf("error checking existing grants for %s: %w", granteeEmail, err)
	}
	if count > 0 {
		return nil, ErrGrantExists
	}

	grant := &models.ShareGrant{
		ID:           primitive.NewObjectID(),
		OwnerID:      ownerID,
		GranteeEmail: granteeEmail,
		Token:        uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := collection.InsertOne(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to insert share grant for %s: %w", granteeEmail, err)
	}
	return grant, nil
}

// AcceptGrant binds the grant to the accepting user. The accepting user's
// email must match the one the grant was issued to.
func (s *shareService) AcceptGrant(ctx context.Context, token string, grantee *models.User) (*models.ShareGrant, error) {
	collection := s.db.Collection(shareGrantsCollection)

	var grant models.ShareGrant
	err := collection.FindOne(ctx, bson.M{"token": token, "revoked": false}).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding share grant by token: %w", err)
	}

	if !strings.EqualFold(grant.GranteeEmail, grantee.Email) {
		return nil, ErrGrantMismatch
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"grantee_id": grantee.ID, "accepted_at": now}}
	if _, err := collection.UpdateOne(ctx, bson.M{"_id": grant.ID}, update); err != nil {
		return nil, fmt.Errorf("failed to accept share grant %s: %w", grant.ID.Hex(), err)
	}
	grant.GranteeID = &grantee.ID
	grant.AcceptedAt = &now
	return &grant, nil
}

// RevokeGrant turns off a grant. The grant document stays for auditability.
func (s *shareService) RevokeGrant(ctx context.Context, grantID, ownerID primitive.ObjectID) error {
	res, err := s.db.Collection(shareGrantsCollection).UpdateOne(ctx,
		bson.M{"_id": grantID, "owner_id": ownerID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return fmt.Errorf("error revoking share grant %s: %w", grantID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByOwner returns the owner's active grants.
func (s *shareService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.ShareGrant, error) {
	return s.list(ctx, bson.M{"owner_id": ownerID, "revoked": false})
}

// ListForGrantee returns the accepted grants that give this user visibility
// into other accounts.
func (s *shareService) ListForGrantee(ctx context.Context, granteeID primitive.ObjectID) ([]models.ShareGrant, error) {
	return s.list(ctx, bson.M{"grantee_id": granteeID, "revoked": false})
}

func (s *shareService) list(ctx context.Context, filter bson.M) ([]models.ShareGrant, error) {
	cursor, err := s.db.Collection(shareGrantsCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing share grants: %w", err)
	}
	defer cursor.Close(ctx)

	grants := []models.ShareGrant{}
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, fmt.Errorf("error decoding share grants: %w", err)
	}
	return grants, nil
}

// HasVisibility reports whether viewer may read owner's records: true for
// the owner themselves or for an accepted, unrevoked grantee.
func (s *shareService) HasVisibility(ctx context.Context, viewerID, ownerID primitive.ObjectID) (bool, error) {
	if viewerID == ownerID {
		return true, nil
	}
	count, err := s.db.Collection(shareGrantsCollection).CountDocuments(ctx, bson.M{
		"owner_id":   ownerID,
		"grantee_id": viewerID,
		"revoked":    false,
	})
	if err != nil {
		return false, fmt.Errorf("error checking share visibility: %w", err)
	}
	return count > 0, nil
}
