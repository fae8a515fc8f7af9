package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/auth"
	"dlnapm/pmpr/internal/db"
	"dlnapm/pmpr/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned on a failed login attempt. Deliberately
// identical for unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateNotificationPreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error
	DeleteUser(ctx context.Context, userID primitive.ObjectID) error
	ListStatementSubscribers(ctx context.Context) ([]models.User, error)
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// Register creates a new activated user with a bcrypt password hash.
func (s *userService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	collection := s.db.Collection(usersCollection)

	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newUser := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Activated:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
		NotificationPreferences: &models.NotificationPreferences{
			RepairUpdates:    true,
			MonthlyStatement: true,
			OverdueRent:      true,
		},
	}

	err = db.Try(func() error {
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	})
	if err != nil {
		// The unique email index can still reject a concurrent registration.
		if db.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert new user %s: %w", email, err)
	}

	return newUser, nil
}

// Authenticate verifies email/password and returns the user on success.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Suspended || !user.Activated {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": email, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by ID.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

// UpdateNotificationPreferences replaces the user's notification preferences.
func (s *userService) UpdateNotificationPreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error {
	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{
		"notification_preferences": prefs,
		"updated_at":               time.Now().UTC(),
	}}
	res, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("failed to update notification preferences for %s: %w", userID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListStatementSubscribers returns all active users who opted into the
// monthly statement email.
func (s *userService) ListStatementSubscribers(ctx context.Context) ([]models.User, error) {
	collection := s.db.Collection(usersCollection)
	filter := bson.M{
		"deleted":   false,
		"suspended": false,
		"notification_preferences.monthly_statement": true,
	}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing statement subscribers: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding statement subscribers: %w", err)
	}
	return users, nil
}

// DeleteUser soft-deletes the user. Their records stay in place so that
// share grantees lose access but nothing is destroyed irrecoverably.
func (s *userService) DeleteUser(ctx context.Context, userID primitive.ObjectID) error {
	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}}
	res, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
