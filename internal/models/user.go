package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationPreferences allows users to control email notifications.
type NotificationPreferences struct {
	RepairUpdates    bool `bson:"repair_updates" json:"repair_updates"`
	MonthlyStatement bool `bson:"monthly_statement" json:"monthly_statement"`
	OverdueRent      bool `bson:"overdue_rent" json:"overdue_rent"`
}

// User represents an account holder (a landlord, or a user a landlord shares with).
type User struct {
	ID                      primitive.ObjectID       `bson:"_id,omitempty" json:"id,omitempty"`
	Name                    string                   `bson:"name" json:"name"`
	Email                   string                   `bson:"email" json:"email"`
	PasswordHash            string                   `bson:"password" json:"-"` // Store hash, not plaintext
	IsAdmin                 bool                     `bson:"is_admin" json:"is_admin"`
	Activated               bool                     `bson:"activated" json:"activated"`
	Suspended               bool                     `bson:"suspended" json:"suspended"`
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notification_preferences,omitempty"`
	CreatedAt               time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt               time.Time                `bson:"updated_at" json:"updated_at"`
	Deleted                 bool                     `bson:"deleted" json:"-"` // Soft delete flag
}
